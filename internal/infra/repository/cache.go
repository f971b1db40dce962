package repository

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// CacheRepository backs the fast, volatile tier: the stroke counter, the
// per-(room,user) stacks and the marker/watermark keys. Every mutation is a
// single-key operation relying on redis's own atomicity; no application
// locks are held.
type CacheRepository struct {
	rdb *redis.Client
}

func NewCacheRepository(rdb *redis.Client) *CacheRepository {
	return &CacheRepository{rdb: rdb}
}

func (r *CacheRepository) Increment(ctx context.Context, key string) (int64, error) {
	return r.rdb.Incr(ctx, key).Result()
}

func (r *CacheRepository) GetCounter(ctx context.Context, key string) (int64, bool, error) {
	v, err := r.rdb.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (r *CacheRepository) SetCounterNX(ctx context.Context, key string, value int64) (bool, error) {
	return r.rdb.SetNX(ctx, key, value, 0).Result()
}

func (r *CacheRepository) PushFront(ctx context.Context, key, value string) error {
	return r.rdb.LPush(ctx, key, value).Err()
}

func (r *CacheRepository) PopFront(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.LPop(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *CacheRepository) Set(ctx context.Context, key, value string) error {
	return r.rdb.Set(ctx, key, value, 0).Err()
}

func (r *CacheRepository) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *CacheRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.rdb.Del(ctx, keys...).Err()
}

func (r *CacheRepository) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := r.rdb.Scan(ctx, 0, prefix+"*", 256).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
