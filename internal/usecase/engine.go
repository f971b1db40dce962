package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/inklet/inklet"
	"github.com/inklet/inklet/internal/domain"
)

// SubmitInput is the validated input for committing a stroke.
type SubmitInput struct {
	RoomID    string
	UserID    string
	Timestamp int64
	Payload   json.RawMessage
}

// EngineUsecase is the undo/redo reconciliation engine: it owns the
// per-(room,user) stacks and the marker writes that determine visibility.
type EngineUsecase struct {
	allocator *AllocatorUsecase
	cache     CacheStore
	strokes   StrokeRepository
	mirror    MirrorRepository
	ledger    LedgerCommitter
	snapshots SnapshotStore
	signal    EventPublisher
	now       func() int64
}

func NewEngineUsecase(
	allocator *AllocatorUsecase,
	cache CacheStore,
	strokes StrokeRepository,
	mirror MirrorRepository,
	ledger LedgerCommitter,
	snapshots SnapshotStore,
	signal EventPublisher,
) *EngineUsecase {
	return &EngineUsecase{
		allocator: allocator,
		cache:     cache,
		strokes:   strokes,
		mirror:    mirror,
		ledger:    ledger,
		snapshots: snapshots,
		signal:    signal,
		now:       func() int64 { return time.Now().UnixMilli() },
	}
}

// SubmitStroke records a new stroke, pushes it onto the author's undo stack
// and invalidates the author's redo stack (a new stroke forks the timeline;
// the redone future is gone).
func (uc *EngineUsecase) SubmitStroke(ctx context.Context, input SubmitInput) (domain.Stroke, error) {
	ctx, span := tracer.Start(ctx, "Engine.SubmitStroke")
	defer span.End()

	id, err := uc.allocator.NextID(ctx)
	if err != nil {
		span.RecordError(err)
		return domain.Stroke{}, err
	}

	stroke := domain.Stroke{
		ID:              inklet.FormatStrokeID(id),
		RoomID:          input.RoomID,
		UserID:          input.UserID,
		Timestamp:       input.Timestamp,
		ServerTimestamp: uc.now(),
		Payload:         input.Payload,
	}

	raw, err := json.Marshal(stroke)
	if err != nil {
		return domain.Stroke{}, err
	}

	// mirror first: it is the durable owner and its failure fails the submit
	if err := uc.strokes.Insert(ctx, stroke); err != nil {
		err = errors.Wrap(err, "mirror stroke write failed")
		span.RecordError(err)
		return domain.Stroke{}, err
	}

	if err := uc.cache.Set(ctx, domain.StrokeKey(stroke.ID), string(raw)); err != nil {
		// the mirror copy makes the cache entry rebuildable
		slog.Warn(
			"stroke cache write failed",
			slog.String("error", err.Error()),
			slog.String("stroke", stroke.ID),
			slog.String("module", "engine"),
		)
	}

	if uc.ledger != nil {
		uc.ledger.Enqueue(inklet.LedgerRecord{
			ID:        inklet.RecordID(inklet.RecordKindStroke, raw),
			Kind:      inklet.RecordKindStroke,
			RefID:     stroke.ID,
			RoomID:    stroke.RoomID,
			Timestamp: stroke.Timestamp,
			Body:      raw,
		})
	}

	undoKey := domain.StackKeyCandidates(domain.UndoStackPrefix, input.RoomID, input.UserID)[0]
	if err := uc.cache.PushFront(ctx, undoKey, string(raw)); err != nil {
		slog.Warn(
			"undo stack push failed",
			slog.String("error", err.Error()),
			slog.String("key", undoKey),
			slog.String("module", "engine"),
		)
	}

	redoKeys := domain.StackKeyCandidates(domain.RedoStackPrefix, input.RoomID, input.UserID)
	_ = uc.cache.Delete(ctx, redoKeys...)

	uc.afterMutation(ctx, input.RoomID, "stroke", raw)

	return stroke, nil
}

// Undo pops the most recent stroke from the user's undo stack and records a
// suppression marker. An empty stack is a normal outcome, not an error.
func (uc *EngineUsecase) Undo(ctx context.Context, roomID, userID string) (domain.OpStatus, error) {
	ctx, span := tracer.Start(ctx, "Engine.Undo")
	defer span.End()

	status, err := uc.reverse(ctx, roomID, userID, true)
	if err != nil {
		span.RecordError(err)
	}
	return status, err
}

// Redo pops from the redo stack and records a restore marker.
func (uc *EngineUsecase) Redo(ctx context.Context, roomID, userID string) (domain.OpStatus, error) {
	ctx, span := tracer.Start(ctx, "Engine.Redo")
	defer span.End()

	status, err := uc.reverse(ctx, roomID, userID, false)
	if err != nil {
		span.RecordError(err)
	}
	return status, err
}

func (uc *EngineUsecase) reverse(ctx context.Context, roomID, userID string, undone bool) (domain.OpStatus, error) {

	fromPrefix, toPrefix := domain.UndoStackPrefix, domain.RedoStackPrefix
	if !undone {
		fromPrefix, toPrefix = domain.RedoStackPrefix, domain.UndoStackPrefix
	}

	popped, sourceKey, err := uc.popFirst(ctx, fromPrefix, roomID, userID)
	if err != nil {
		return "", errors.Wrap(err, "stack pop failed")
	}
	if popped == "" {
		return domain.StatusEmpty, nil
	}

	marker := domain.Marker{
		StrokeID:  uc.deriveStrokeID(popped),
		RoomID:    roomID,
		ActorID:   userID,
		Undone:    undone,
		Timestamp: uc.now(),
	}
	marker.ID = inklet.MarkerID(marker.StrokeID)

	body, err := json.Marshal(marker)
	if err != nil {
		return "", err
	}

	rec := inklet.LedgerRecord{
		ID:        inklet.RecordID(inklet.RecordKindMarker, body),
		Kind:      inklet.RecordKindMarker,
		RefID:     marker.ID,
		RoomID:    roomID,
		Timestamp: marker.Timestamp,
		Body:      body,
	}

	// the authoritative marker must be durable before we acknowledge; on
	// failure the popped record goes back so stack and markers stay aligned
	if err := uc.mirror.InsertRecord(ctx, rec); err != nil {
		_ = uc.cache.PushFront(ctx, sourceKey, popped)
		return "", errors.Wrap(err, "marker mirror write failed")
	}

	if err := uc.cache.Set(ctx, marker.ID, string(body)); err != nil {
		slog.Warn(
			"marker cache write failed",
			slog.String("error", err.Error()),
			slog.String("marker", marker.ID),
			slog.String("module", "engine"),
		)
	}
	// the legacy opposite-direction slot would shadow the rewrite
	_ = uc.cache.Delete(ctx, domain.LegacyRedoMarkerKey+marker.StrokeID)

	if uc.ledger != nil {
		uc.ledger.Enqueue(rec)
	}

	toKey := domain.StackKeyCandidates(toPrefix, roomID, userID)[0]
	if err := uc.cache.PushFront(ctx, toKey, popped); err != nil {
		slog.Warn(
			"stack push failed",
			slog.String("error", err.Error()),
			slog.String("key", toKey),
			slog.String("module", "engine"),
		)
	}

	eventType := "undo"
	if !undone {
		eventType = "redo"
	}
	uc.afterMutation(ctx, roomID, eventType, body)

	return domain.StatusSuccess, nil
}

// popFirst tries each candidate stack key in priority order and pops from
// the first one that yields a value.
func (uc *EngineUsecase) popFirst(ctx context.Context, prefix, roomID, userID string) (string, string, error) {
	for _, key := range domain.StackKeyCandidates(prefix, roomID, userID) {
		value, ok, err := uc.cache.PopFront(ctx, key)
		if err != nil {
			return "", "", err
		}
		if ok {
			return value, key, nil
		}
	}
	return "", "", nil
}

// deriveStrokeID extracts the stroke id from a popped stack record, trying
// the known id fields in fixed priority order. Records with no usable id
// get a content-derived placeholder so the marker write cannot collide.
func (uc *EngineUsecase) deriveStrokeID(raw string) string {
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err == nil {
		for _, name := range []string{"id", "strokeId", "_id"} {
			switch v := fields[name].(type) {
			case string:
				if v != "" {
					return v
				}
			case float64:
				return strconv.FormatInt(int64(v), 10)
			}
		}
	}

	stamp := strconv.FormatInt(uc.now(), 10)
	return "orphan-" + inklet.GetHash([]byte(raw+stamp))
}

func (uc *EngineUsecase) afterMutation(ctx context.Context, roomID, eventType string, body []byte) {
	if uc.snapshots != nil {
		uc.snapshots.Invalidate(roomID)
	}
	if uc.signal != nil {
		err := uc.signal.Publish(ctx, roomID, inklet.Event{
			Type:   eventType,
			RoomID: roomID,
			Body:   body,
		})
		if err != nil {
			slog.Debug(
				"event publish failed",
				slog.String("error", err.Error()),
				slog.String("room", roomID),
				slog.String("module", "engine"),
			)
		}
	}
}
