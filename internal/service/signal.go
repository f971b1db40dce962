package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/inklet/inklet"
)

// SignalService fans mutation events out over redis pub/sub. Presence and
// notification logic live outside this core; this is only the narrow
// publish/subscribe surface they consume.
type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func channelFor(roomID string) string {
	return "room:" + roomID
}

func (s *SignalService) Publish(ctx context.Context, roomID string, event inklet.Event) error {

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, channelFor(roomID), jsonstr).Err()
	if err != nil {
		return err
	}

	return nil
}

// Subscribe opens a pub/sub stream for a room's events. The caller owns the
// returned subscription and must close it.
func (s *SignalService) Subscribe(ctx context.Context, roomID string) *redis.PubSub {
	return s.rdb.Subscribe(ctx, channelFor(roomID))
}
