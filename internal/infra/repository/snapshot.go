package repository

import (
	"encoding/json"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/inklet/inklet/internal/domain"
)

const snapshotTTL = 30 // seconds

// SnapshotRepository keeps short-lived copies of assembled room views in
// memcached. Snapshots are best-effort: every error degrades to a miss, and
// mutations invalidate the room's entry.
type SnapshotRepository struct {
	mc *memcache.Client
}

func NewSnapshotRepository(mc *memcache.Client) *SnapshotRepository {
	return &SnapshotRepository{mc: mc}
}

func snapshotKey(roomID string) string {
	return "roomview-" + roomID
}

func (r *SnapshotRepository) Get(roomID string) (domain.RoomSnapshot, bool) {
	item, err := r.mc.Get(snapshotKey(roomID))
	if err != nil {
		return domain.RoomSnapshot{}, false
	}

	var snap domain.RoomSnapshot
	if err := json.Unmarshal(item.Value, &snap); err != nil {
		return domain.RoomSnapshot{}, false
	}
	return snap, true
}

func (r *SnapshotRepository) Set(roomID string, snap domain.RoomSnapshot) {
	value, err := json.Marshal(snap)
	if err != nil {
		return
	}
	_ = r.mc.Set(&memcache.Item{
		Key:        snapshotKey(roomID),
		Value:      value,
		Expiration: snapshotTTL,
	})
}

func (r *SnapshotRepository) Invalidate(roomID string) {
	_ = r.mc.Delete(snapshotKey(roomID))
}
