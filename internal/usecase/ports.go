package usecase

import (
	"context"

	"github.com/inklet/inklet"
	"github.com/inklet/inklet/internal/domain"
)

// CacheStore is the fast, volatile tier. It may be wiped at any time;
// nothing here is the system of record except the in-flight counter value.
type CacheStore interface {
	Increment(ctx context.Context, key string) (int64, error)
	GetCounter(ctx context.Context, key string) (int64, bool, error)
	SetCounterNX(ctx context.Context, key string, value int64) (bool, error)

	PushFront(ctx context.Context, key, value string) error
	PopFront(ctx context.Context, key string) (string, bool, error)

	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, keys ...string) error
	ScanPrefix(ctx context.Context, prefix string) ([]string, error)
}

// StrokeRepository is the mirror store's stroke table.
type StrokeRepository interface {
	Insert(ctx context.Context, stroke domain.Stroke) error
	FindByRoom(ctx context.Context, roomID string) ([]domain.Stroke, error)
}

// MirrorRepository is the mirror store's append-only copy of ledger commits.
type MirrorRepository interface {
	InsertRecord(ctx context.Context, rec inklet.LedgerRecord) error
	FindMarkersByRoom(ctx context.Context, roomID string) ([]domain.Marker, error)
	LatestCounter(ctx context.Context) (int64, bool, error)
	LatestWatermark(ctx context.Context, scope string) (domain.Watermark, bool, error)
}

// LedgerCommitter accepts records for asynchronous, retried delivery to the
// append-only commit service. It never reports failure to the caller.
type LedgerCommitter interface {
	Enqueue(rec inklet.LedgerRecord)
}

// SnapshotStore caches assembled room views.
type SnapshotStore interface {
	Get(roomID string) (domain.RoomSnapshot, bool)
	Set(roomID string, snap domain.RoomSnapshot)
	Invalidate(roomID string)
}

// EventPublisher fans mutation events out to the signal channel.
type EventPublisher interface {
	Publish(ctx context.Context, roomID string, event inklet.Event) error
}
