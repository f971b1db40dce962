package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/inklet/inklet"
	"github.com/inklet/inklet/internal/domain"
)

var tracer = otel.Tracer("usecase")

// AllocatorUsecase issues monotonically increasing, deployment-unique stroke
// ids. The cache's atomic increment is the single must-be-atomic primitive
// in the system; the mirror's counter checkpoints exist only to reseed the
// cache after a wipe.
type AllocatorUsecase struct {
	cache  CacheStore
	mirror MirrorRepository
	ledger LedgerCommitter
	now    func() int64
}

func NewAllocatorUsecase(cache CacheStore, mirror MirrorRepository, ledger LedgerCommitter) *AllocatorUsecase {
	return &AllocatorUsecase{
		cache:  cache,
		mirror: mirror,
		ledger: ledger,
		now:    func() int64 { return time.Now().UnixMilli() },
	}
}

// NextID atomically increments the stroke counter. Silently restarting at
// zero after a cache wipe would reissue ids, so the counter is reseeded from
// the mirror before the first increment.
func (uc *AllocatorUsecase) NextID(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "Allocator.NextID")
	defer span.End()

	if err := uc.ensureSeeded(ctx); err != nil {
		span.RecordError(err)
		return 0, err
	}

	value, err := uc.cache.Increment(ctx, domain.CounterKey)
	if err != nil {
		span.RecordError(err)
		return 0, errors.Wrap(domain.StorageUnavailableError{Op: "id allocation"}, err.Error())
	}

	uc.checkpoint(ctx, value)

	return value, nil
}

// CurrentCount returns the counter without incrementing it, recovering from
// the mirror and reseeding the cache when the cache has no value.
func (uc *AllocatorUsecase) CurrentCount(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "Allocator.CurrentCount")
	defer span.End()

	value, ok, cacheErr := uc.cache.GetCounter(ctx, domain.CounterKey)
	if cacheErr == nil && ok {
		return value, nil
	}

	seed, found, mirrorErr := uc.mirror.LatestCounter(ctx)
	if mirrorErr != nil {
		err := errors.Wrap(domain.StorageUnavailableError{Op: "counter read"}, mirrorErr.Error())
		span.RecordError(err)
		return 0, err
	}
	if !found {
		return 0, nil
	}

	if cacheErr == nil {
		// reseed; a concurrent allocator may already have done it
		_, _ = uc.cache.SetCounterNX(ctx, domain.CounterKey, seed)
	}

	return seed, nil
}

func (uc *AllocatorUsecase) ensureSeeded(ctx context.Context) error {
	_, ok, err := uc.cache.GetCounter(ctx, domain.CounterKey)
	if err != nil {
		return errors.Wrap(domain.StorageUnavailableError{Op: "id allocation"}, err.Error())
	}
	if ok {
		return nil
	}

	seed, found, err := uc.mirror.LatestCounter(ctx)
	if err != nil {
		return errors.Wrap(domain.StorageUnavailableError{Op: "id allocation"}, err.Error())
	}
	if !found {
		// fresh deployment, the increment below starts from zero
		return nil
	}

	_, err = uc.cache.SetCounterNX(ctx, domain.CounterKey, seed)
	if err != nil {
		return errors.Wrap(domain.StorageUnavailableError{Op: "id allocation"}, err.Error())
	}
	return nil
}

// checkpoint mirrors the counter so a wipe never rewinds allocation. Best
// effort: durability of the checkpoint is the ledger path's job, not the
// allocation's.
func (uc *AllocatorUsecase) checkpoint(ctx context.Context, value int64) {
	body, _ := json.Marshal(value)
	rec := inklet.LedgerRecord{
		ID:        inklet.RecordID(inklet.RecordKindCounter, body),
		Kind:      inklet.RecordKindCounter,
		RefID:     domain.CounterKey,
		Timestamp: uc.now(),
		Body:      body,
	}

	_ = uc.mirror.InsertRecord(ctx, rec)
	if uc.ledger != nil {
		uc.ledger.Enqueue(rec)
	}
}
