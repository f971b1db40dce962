package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/inklet/inklet"
	"github.com/inklet/inklet/internal/domain"
)

// ClearUsecase records clear watermarks and purges the per-room undo/redo
// state. The cache write is the user-visible one; durability failures are
// logged and absorbed so the room always appears cleared immediately.
type ClearUsecase struct {
	allocator *AllocatorUsecase
	cache     CacheStore
	mirror    MirrorRepository
	ledger    LedgerCommitter
	snapshots SnapshotStore
	signal    EventPublisher
	now       func() int64
}

func NewClearUsecase(
	allocator *AllocatorUsecase,
	cache CacheStore,
	mirror MirrorRepository,
	ledger LedgerCommitter,
	snapshots SnapshotStore,
	signal EventPublisher,
) *ClearUsecase {
	return &ClearUsecase{
		allocator: allocator,
		cache:     cache,
		mirror:    mirror,
		ledger:    ledger,
		snapshots: snapshots,
		signal:    signal,
		now:       func() int64 { return time.Now().UnixMilli() },
	}
}

// Clear sets the room's (or, with an empty roomID, the global) watermark and
// purges the room-scoped stacks and cache markers. Mirror markers are left:
// once superseded by the watermark they are harmless, and deleting mirror
// history would break history recall.
func (uc *ClearUsecase) Clear(ctx context.Context, roomID string) (domain.Watermark, error) {
	ctx, span := tracer.Start(ctx, "Clear.Clear")
	defer span.End()

	scope := roomID
	if scope == "" {
		scope = domain.GlobalScope
	}

	counter, err := uc.allocator.CurrentCount(ctx)
	if err != nil {
		span.RecordError(err)
		return domain.Watermark{}, err
	}

	watermark := domain.Watermark{
		RoomID:    scope,
		Timestamp: uc.now(),
		Counter:   counter,
	}
	body, err := json.Marshal(watermark)
	if err != nil {
		return domain.Watermark{}, err
	}

	primary, legacy := domain.WatermarkKeys(scope)
	if err := uc.cache.Set(ctx, primary, string(body)); err != nil {
		err = errors.Wrap(err, "watermark cache write failed")
		span.RecordError(err)
		return domain.Watermark{}, err
	}
	_ = uc.cache.Set(ctx, legacy, string(body))

	rec := inklet.LedgerRecord{
		ID:        inklet.RecordID(inklet.RecordKindClear, body),
		Kind:      inklet.RecordKindClear,
		RefID:     primary,
		RoomID:    scope,
		Timestamp: watermark.Timestamp,
		Body:      body,
	}
	if err := uc.mirror.InsertRecord(ctx, rec); err != nil {
		// cleared in cache, durability catches up via the ledger path
		slog.Warn(
			"watermark mirror write failed",
			slog.String("error", err.Error()),
			slog.String("scope", scope),
			slog.String("module", "clear"),
		)
	}
	if uc.ledger != nil {
		uc.ledger.Enqueue(rec)
	}

	uc.purgeStacks(ctx, roomID)
	uc.purgeMarkers(ctx, roomID)

	if uc.snapshots != nil && roomID != "" {
		uc.snapshots.Invalidate(roomID)
	}
	if uc.signal != nil {
		_ = uc.signal.Publish(ctx, scope, inklet.Event{
			Type:   "clear",
			RoomID: scope,
			Body:   body,
		})
	}

	return watermark, nil
}

// purgeStacks removes every undo/redo stack scoped to the room, covering
// all legacy key shapes. The user-only legacy shape carries no room and is
// only purged by a global clear.
func (uc *ClearUsecase) purgeStacks(ctx context.Context, roomID string) {
	for _, prefix := range []string{domain.UndoStackPrefix, domain.RedoStackPrefix} {
		keys, err := uc.cache.ScanPrefix(ctx, prefix)
		if err != nil {
			slog.Warn(
				"stack purge scan failed",
				slog.String("error", err.Error()),
				slog.String("prefix", prefix),
				slog.String("module", "clear"),
			)
			continue
		}
		for _, key := range keys {
			if roomID == "" || stackKeyMatchesRoom(key, prefix, roomID) {
				_ = uc.cache.Delete(ctx, key)
			}
		}
	}
}

func stackKeyMatchesRoom(key, prefix, roomID string) bool {
	rest := strings.TrimPrefix(key, prefix)
	return strings.HasPrefix(rest, roomID+"-") || strings.HasSuffix(rest, "-"+roomID)
}

// purgeMarkers deletes the room's undo/redo markers from the cache only.
func (uc *ClearUsecase) purgeMarkers(ctx context.Context, roomID string) {
	for _, prefix := range []string{domain.MarkerKeyPrefix, domain.LegacyRedoMarkerKey} {
		keys, err := uc.cache.ScanPrefix(ctx, prefix)
		if err != nil {
			slog.Warn(
				"marker purge scan failed",
				slog.String("error", err.Error()),
				slog.String("prefix", prefix),
				slog.String("module", "clear"),
			)
			continue
		}
		for _, key := range keys {
			if roomID == "" {
				_ = uc.cache.Delete(ctx, key)
				continue
			}
			raw, ok, err := uc.cache.Get(ctx, key)
			if err != nil || !ok {
				continue
			}
			var marker domain.Marker
			if err := json.Unmarshal([]byte(raw), &marker); err != nil {
				continue
			}
			if marker.RoomID == roomID {
				_ = uc.cache.Delete(ctx, key)
			}
		}
	}
}
