package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/inklet/inklet"
	"github.com/inklet/inklet/internal/domain"
)

// --- fast cache fake ---

type memCache struct {
	mu       sync.Mutex
	kv       map[string]string
	counters map[string]int64
	lists    map[string][]string
	fail     bool
}

func newMemCache() *memCache {
	c := &memCache{}
	c.reset()
	return c
}

func (c *memCache) reset() {
	c.kv = make(map[string]string)
	c.counters = make(map[string]int64)
	c.lists = make(map[string][]string)
}

// Wipe simulates a full cache loss.
func (c *memCache) Wipe() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func (c *memCache) Increment(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return 0, fmt.Errorf("cache down")
	}
	c.counters[key]++
	return c.counters[key], nil
}

func (c *memCache) GetCounter(ctx context.Context, key string) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return 0, false, fmt.Errorf("cache down")
	}
	v, ok := c.counters[key]
	return v, ok, nil
}

func (c *memCache) SetCounterNX(ctx context.Context, key string, value int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return false, fmt.Errorf("cache down")
	}
	if _, ok := c.counters[key]; ok {
		return false, nil
	}
	c.counters[key] = value
	return true, nil
}

func (c *memCache) PushFront(ctx context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return fmt.Errorf("cache down")
	}
	c.lists[key] = append([]string{value}, c.lists[key]...)
	return nil
}

func (c *memCache) PopFront(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return "", false, fmt.Errorf("cache down")
	}
	list := c.lists[key]
	if len(list) == 0 {
		return "", false, nil
	}
	head := list[0]
	if len(list) == 1 {
		delete(c.lists, key)
	} else {
		c.lists[key] = list[1:]
	}
	return head, true, nil
}

func (c *memCache) Set(ctx context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return fmt.Errorf("cache down")
	}
	c.kv[key] = value
	return nil
}

func (c *memCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return "", false, fmt.Errorf("cache down")
	}
	v, ok := c.kv[key]
	return v, ok, nil
}

func (c *memCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return fmt.Errorf("cache down")
	}
	for _, key := range keys {
		delete(c.kv, key)
		delete(c.counters, key)
		delete(c.lists, key)
	}
	return nil
}

func (c *memCache) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return nil, fmt.Errorf("cache down")
	}
	var keys []string
	for k := range c.kv {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	for k := range c.lists {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (c *memCache) listLen(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lists[key])
}

// --- mirror fakes ---

type memStrokes struct {
	mu   sync.Mutex
	rows []domain.Stroke
	fail bool
}

func (s *memStrokes) Insert(ctx context.Context, stroke domain.Stroke) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("mirror down")
	}
	for _, row := range s.rows {
		if row.ID == stroke.ID {
			return nil
		}
	}
	s.rows = append(s.rows, stroke)
	return nil
}

func (s *memStrokes) FindByRoom(ctx context.Context, roomID string) ([]domain.Stroke, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, fmt.Errorf("mirror down")
	}
	var out []domain.Stroke
	for _, row := range s.rows {
		if row.RoomID == roomID {
			out = append(out, row)
		}
	}
	return out, nil
}

type memMirror struct {
	mu   sync.Mutex
	recs []inklet.LedgerRecord
	fail bool
}

func (m *memMirror) InsertRecord(ctx context.Context, rec inklet.LedgerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return fmt.Errorf("mirror down")
	}
	for _, existing := range m.recs {
		if existing.ID == rec.ID {
			return nil
		}
	}
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memMirror) FindMarkersByRoom(ctx context.Context, roomID string) ([]domain.Marker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, fmt.Errorf("mirror down")
	}
	var out []domain.Marker
	for _, rec := range m.recs {
		if rec.Kind != inklet.RecordKindMarker || rec.RoomID != roomID {
			continue
		}
		var marker domain.Marker
		if err := json.Unmarshal(rec.Body, &marker); err != nil {
			continue
		}
		out = append(out, marker)
	}
	return out, nil
}

func (m *memMirror) LatestCounter(ctx context.Context) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return 0, false, fmt.Errorf("mirror down")
	}
	best := int64(0)
	found := false
	for _, rec := range m.recs {
		if rec.Kind != inklet.RecordKindCounter {
			continue
		}
		v, err := strconv.ParseInt(string(rec.Body), 10, 64)
		if err != nil {
			continue
		}
		if !found || v > best {
			best = v
			found = true
		}
	}
	return best, found, nil
}

func (m *memMirror) LatestWatermark(ctx context.Context, scope string) (domain.Watermark, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return domain.Watermark{}, false, fmt.Errorf("mirror down")
	}
	var best domain.Watermark
	found := false
	for _, rec := range m.recs {
		if rec.Kind != inklet.RecordKindClear || rec.RoomID != scope {
			continue
		}
		var wm domain.Watermark
		if err := json.Unmarshal(rec.Body, &wm); err != nil {
			continue
		}
		if !found || wm.Timestamp > best.Timestamp {
			best = wm
			found = true
		}
	}
	return best, found, nil
}

func (m *memMirror) markerRecords() []inklet.LedgerRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []inklet.LedgerRecord
	for _, rec := range m.recs {
		if rec.Kind == inklet.RecordKindMarker {
			out = append(out, rec)
		}
	}
	return out
}

// --- ledger / snapshot / signal fakes ---

type memLedger struct {
	mu   sync.Mutex
	recs []inklet.LedgerRecord
}

func (l *memLedger) Enqueue(rec inklet.LedgerRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recs = append(l.recs, rec)
}

type memSnapshots struct {
	mu sync.Mutex
	m  map[string]domain.RoomSnapshot
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{m: make(map[string]domain.RoomSnapshot)}
}

func (s *memSnapshots) Get(roomID string) (domain.RoomSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.m[roomID]
	return snap, ok
}

func (s *memSnapshots) Set(roomID string, snap domain.RoomSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[roomID] = snap
}

func (s *memSnapshots) Invalidate(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, roomID)
}

type memSignal struct {
	mu     sync.Mutex
	events []inklet.Event
}

func (s *memSignal) Publish(ctx context.Context, roomID string, event inklet.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// --- harness ---

// world wires the usecases over the in-memory fakes with a deterministic,
// settable clock. Every now() call advances the clock by one millisecond so
// marker timestamps are strictly increasing.
type world struct {
	cache   *memCache
	strokes *memStrokes
	mirror  *memMirror
	ledger  *memLedger
	snaps   *memSnapshots
	signal  *memSignal

	allocator  *AllocatorUsecase
	engine     *EngineUsecase
	visibility *VisibilityUsecase
	clear      *ClearUsecase

	mu    sync.Mutex
	clock int64
}

func newWorld() *world {
	w := &world{
		cache:   newMemCache(),
		strokes: &memStrokes{},
		mirror:  &memMirror{},
		ledger:  &memLedger{},
		snaps:   newMemSnapshots(),
		signal:  &memSignal{},
		clock:   1_000_000,
	}

	w.allocator = NewAllocatorUsecase(w.cache, w.mirror, w.ledger)
	w.engine = NewEngineUsecase(w.allocator, w.cache, w.strokes, w.mirror, w.ledger, w.snaps, w.signal)
	w.visibility = NewVisibilityUsecase(w.cache, w.strokes, w.mirror, w.snaps)
	w.clear = NewClearUsecase(w.allocator, w.cache, w.mirror, w.ledger, w.snaps, w.signal)

	w.allocator.now = w.tick
	w.engine.now = w.tick
	w.clear.now = w.tick

	return w
}

func (w *world) tick() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clock++
	return w.clock
}

func (w *world) setClock(v int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clock = v
}

func (w *world) submit(roomID, userID string, ts int64, payload string) (domain.Stroke, error) {
	return w.engine.SubmitStroke(context.Background(), SubmitInput{
		RoomID:    roomID,
		UserID:    userID,
		Timestamp: ts,
		Payload:   json.RawMessage(payload),
	})
}

func (w *world) visibleIDs(roomID string) ([]string, error) {
	strokes, _, err := w.visibility.ListStrokes(context.Background(), roomID, nil)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(strokes))
	for _, s := range strokes {
		ids = append(ids, s.ID)
	}
	return ids, nil
}
