package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/inklet/inklet/internal/domain"
	"github.com/inklet/inklet/schemas"
)

// VisibilityUsecase is the read path: it assembles a room's visible stroke
// set by reconciling cache and mirror data. The resolution order is
// load-bearing: merge+dedupe, then markers, then cuts, then the clear
// watermark (or the history window). Reordering dedupe and marker
// resolution would let a stale cache duplicate mask a newer mirror marker.
type VisibilityUsecase struct {
	cache     CacheStore
	strokes   StrokeRepository
	mirror    MirrorRepository
	snapshots SnapshotStore
}

func NewVisibilityUsecase(
	cache CacheStore,
	strokes StrokeRepository,
	mirror MirrorRepository,
	snapshots SnapshotStore,
) *VisibilityUsecase {
	return &VisibilityUsecase{
		cache:     cache,
		strokes:   strokes,
		mirror:    mirror,
		snapshots: snapshots,
	}
}

// ListStrokes resolves the visible strokes of a room. A non-nil window
// switches to history mode, which ignores the clear watermark. The boolean
// result reports degraded reads (one storage tier unreachable).
func (uc *VisibilityUsecase) ListStrokes(ctx context.Context, roomID string, window *domain.Window) ([]domain.Stroke, bool, error) {
	ctx, span := tracer.Start(ctx, "Visibility.ListStrokes")
	defer span.End()

	history := window != nil
	watermark := uc.effectiveWatermark(ctx, roomID)

	if !history && uc.snapshots != nil {
		if snap, ok := uc.snapshots.Get(roomID); ok && snap.Watermark == watermark {
			return snap.Strokes, false, nil
		}
	}

	merged, degraded, err := uc.candidates(ctx, roomID)
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}

	undone, markersDegraded := uc.resolveUndone(ctx, roomID)
	degraded = degraded || markersDegraded

	cut := cutSuppressed(merged, undone)

	visible := make([]domain.Stroke, 0, len(merged))
	for _, stroke := range merged {
		if undone[stroke.ID] || cut[stroke.ID] {
			continue
		}
		if history {
			if window.Since != nil && stroke.Timestamp < *window.Since {
				continue
			}
			if window.Until != nil && stroke.Timestamp > *window.Until {
				continue
			}
		} else if stroke.Timestamp <= watermark {
			continue
		}
		visible = append(visible, stroke)
	}

	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].Timestamp < visible[j].Timestamp
	})

	if !history && !degraded && uc.snapshots != nil {
		uc.snapshots.Set(roomID, domain.RoomSnapshot{
			Watermark: watermark,
			Strokes:   visible,
		})
	}

	return visible, degraded, nil
}

// candidates merges the cache and mirror stroke sets. Partial cache hits
// are not trusted for completeness, so the mirror is always consulted; the
// cache only gets dedupe priority. One unreachable tier degrades the read,
// two fail it.
func (uc *VisibilityUsecase) candidates(ctx context.Context, roomID string) ([]domain.Stroke, bool, error) {

	cached, cacheErr := uc.cacheStrokes(ctx, roomID)
	mirrored, mirrorErr := uc.strokes.FindByRoom(ctx, roomID)

	if cacheErr != nil && mirrorErr != nil {
		return nil, false, errors.Wrap(domain.StorageUnavailableError{Op: "stroke read"}, mirrorErr.Error())
	}

	degraded := cacheErr != nil || mirrorErr != nil
	if cacheErr != nil {
		slog.Warn(
			"cache stroke read degraded to mirror",
			slog.String("error", cacheErr.Error()),
			slog.String("room", roomID),
			slog.String("module", "resolver"),
		)
	}
	if mirrorErr != nil {
		slog.Warn(
			"mirror stroke read degraded to cache",
			slog.String("error", mirrorErr.Error()),
			slog.String("room", roomID),
			slog.String("module", "resolver"),
		)
	}

	seen := make(map[string]bool)
	merged := make([]domain.Stroke, 0, len(cached)+len(mirrored))
	for _, stroke := range append(cached, mirrored...) {
		if seen[stroke.ID] {
			continue
		}
		seen[stroke.ID] = true
		merged = append(merged, stroke)
	}
	return merged, degraded, nil
}

func (uc *VisibilityUsecase) cacheStrokes(ctx context.Context, roomID string) ([]domain.Stroke, error) {
	keys, err := uc.cache.ScanPrefix(ctx, domain.StrokeKeyPrefix)
	if err != nil {
		return nil, err
	}

	var strokes []domain.Stroke
	for _, key := range keys {
		raw, ok, err := uc.cache.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var stroke domain.Stroke
		if err := json.Unmarshal([]byte(raw), &stroke); err != nil {
			continue
		}
		if stroke.RoomID == roomID {
			strokes = append(strokes, stroke)
		}
	}
	return strokes, nil
}

// resolveUndone unions the markers of both tiers and keeps, per stroke, the
// one with the greatest timestamp. Ties go to the most recently processed
// marker (cache first, then mirror rows in insertion order).
func (uc *VisibilityUsecase) resolveUndone(ctx context.Context, roomID string) (map[string]bool, bool) {

	var all []domain.Marker
	degraded := false

	cacheMarkers, err := uc.cacheMarkers(ctx, roomID)
	if err != nil {
		degraded = true
		slog.Warn(
			"cache marker scan failed",
			slog.String("error", err.Error()),
			slog.String("room", roomID),
			slog.String("module", "resolver"),
		)
	}
	all = append(all, cacheMarkers...)

	mirrorMarkers, err := uc.mirror.FindMarkersByRoom(ctx, roomID)
	if err != nil {
		degraded = true
		slog.Warn(
			"mirror marker read failed",
			slog.String("error", err.Error()),
			slog.String("room", roomID),
			slog.String("module", "resolver"),
		)
	}
	all = append(all, mirrorMarkers...)

	latest := make(map[string]domain.Marker)
	for _, marker := range all {
		if marker.StrokeID == "" {
			continue
		}
		best, found := latest[marker.StrokeID]
		if !found || marker.Timestamp >= best.Timestamp {
			latest[marker.StrokeID] = marker
		}
	}

	undone := make(map[string]bool)
	for strokeID, marker := range latest {
		if marker.Undone {
			undone[strokeID] = true
		}
	}
	return undone, degraded
}

func (uc *VisibilityUsecase) cacheMarkers(ctx context.Context, roomID string) ([]domain.Marker, error) {
	keys, err := uc.cache.ScanPrefix(ctx, domain.MarkerKeyPrefix)
	if err != nil {
		return nil, err
	}

	var markers []domain.Marker
	for _, key := range keys {
		raw, ok, err := uc.cache.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var marker domain.Marker
		if err := json.Unmarshal([]byte(raw), &marker); err != nil {
			continue
		}
		if marker.RoomID != "" && marker.RoomID != roomID {
			continue
		}
		if marker.StrokeID == "" {
			if id, ok := strokeIDFromKey(key); ok {
				marker.StrokeID = id
			}
		}
		markers = append(markers, marker)
	}
	return markers, nil
}

// cutSuppressed collects the originalStrokeIds of every cut record that is
// not itself undone; undoing a cut restores its originals.
func cutSuppressed(strokes []domain.Stroke, undone map[string]bool) map[string]bool {
	cut := make(map[string]bool)
	for _, stroke := range strokes {
		if undone[stroke.ID] {
			continue
		}
		payload, ok := schemas.ExtractCut(stroke.Payload)
		if !ok {
			continue
		}
		for _, id := range payload.OriginalStrokeIds {
			cut[id] = true
		}
	}
	return cut
}

// effectiveWatermark is the later of the room's and the global clear
// timestamps. Missing or unreachable watermarks resolve to zero: an
// un-clearable room beats an unreadable one.
func (uc *VisibilityUsecase) effectiveWatermark(ctx context.Context, roomID string) int64 {
	room := uc.watermarkFor(ctx, roomID)
	global := uc.watermarkFor(ctx, domain.GlobalScope)
	if global > room {
		return global
	}
	return room
}

func (uc *VisibilityUsecase) watermarkFor(ctx context.Context, scope string) int64 {
	primary, legacy := domain.WatermarkKeys(scope)

	for _, key := range []string{primary, legacy} {
		raw, ok, err := uc.cache.Get(ctx, key)
		if err != nil || !ok {
			continue
		}
		var wm domain.Watermark
		if err := json.Unmarshal([]byte(raw), &wm); err == nil {
			return wm.Timestamp
		}
	}

	wm, found, err := uc.mirror.LatestWatermark(ctx, scope)
	if err != nil || !found {
		return 0
	}

	// reseed the cache so the next read skips the mirror round trip
	if body, err := json.Marshal(wm); err == nil {
		_ = uc.cache.Set(ctx, primary, string(body))
		_ = uc.cache.Set(ctx, legacy, string(body))
	}

	return wm.Timestamp
}

func strokeIDFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, domain.MarkerKeyPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(key, domain.MarkerKeyPrefix)
	return id, id != ""
}
