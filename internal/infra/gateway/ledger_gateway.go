package gateway

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/inklet/inklet"
	"github.com/inklet/inklet/client"
)

const (
	retryInterval  = 5 * time.Second
	maxBatch       = 64
	commitTimeout  = 3 * time.Second
	memoExpiration = 10 * time.Minute
)

// LedgerGateway delivers records to the commit service asynchronously. A
// failed commit stays queued for the periodic retry loop; the submitting
// request is never blocked or failed by the ledger. Delivered content ids
// are memoized so at-least-once retries stay idempotent on our side.
type LedgerGateway struct {
	client *client.Client
	memo   *gocache.Cache

	mu    sync.Mutex
	queue []inklet.LedgerRecord

	flushing atomic.Bool
	done     chan struct{}
	closed   sync.Once
}

func NewLedgerGateway(cl *client.Client) *LedgerGateway {
	g := &LedgerGateway{
		client: cl,
		memo:   gocache.New(memoExpiration, 15*time.Minute),
		done:   make(chan struct{}),
	}
	go g.retryLoop()
	return g
}

// Enqueue accepts a record for eventual commit and kicks an immediate
// delivery attempt off the caller's path.
func (g *LedgerGateway) Enqueue(rec inklet.LedgerRecord) {
	g.mu.Lock()
	g.queue = append(g.queue, rec)
	g.mu.Unlock()

	go g.Flush(context.Background())
}

// Flush drains up to one batch from the queue. On the first failure the
// remainder is requeued and left for the retry loop.
func (g *LedgerGateway) Flush(ctx context.Context) {
	if !g.flushing.CompareAndSwap(false, true) {
		return
	}
	defer g.flushing.Store(false)

	batch := g.takeBatch()
	for i, rec := range batch {
		if _, hit := g.memo.Get(rec.ID); hit {
			continue
		}

		commitCtx, cancel := context.WithTimeout(ctx, commitTimeout)
		txID, err := g.client.Commit(commitCtx, rec)
		cancel()
		if err != nil {
			g.requeue(batch[i:])
			slog.Warn(
				"ledger commit failed, queued for retry",
				slog.String("error", errors.Wrap(err, "commit").Error()),
				slog.String("record", rec.ID),
				slog.Int("pending", g.pending()),
				slog.String("module", "ledger"),
			)
			return
		}

		g.memo.Set(rec.ID, txID, gocache.DefaultExpiration)
	}
}

// Pending reports the number of records awaiting commit.
func (g *LedgerGateway) Pending() int {
	return g.pending()
}

func (g *LedgerGateway) Close() {
	g.closed.Do(func() {
		close(g.done)
	})
}

func (g *LedgerGateway) retryLoop() {
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.done:
			return
		case <-ticker.C:
			g.Flush(context.Background())
		}
	}
}

func (g *LedgerGateway) takeBatch() []inklet.LedgerRecord {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := len(g.queue)
	if n > maxBatch {
		n = maxBatch
	}
	batch := make([]inklet.LedgerRecord, n)
	copy(batch, g.queue[:n])
	g.queue = append([]inklet.LedgerRecord{}, g.queue[n:]...)
	return batch
}

func (g *LedgerGateway) requeue(recs []inklet.LedgerRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queue = append(recs, g.queue...)
}

func (g *LedgerGateway) pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}
