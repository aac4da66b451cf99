package storage

import (
	"context"
	"sync"
	"time"

	"github.com/Puyodead1/matscan/internal/logging"
)

// Flusher applies an accumulated batch of updates. *Store implements it;
// tests substitute their own.
type Flusher interface {
	BulkUpsert(ctx context.Context, updates []BulkUpdate) error
}

// Batcher accumulates bulk updates and flushes them when the batch fills or
// ages out. Add never blocks on the store: workers hand updates off and keep
// processing while flushes run on the batcher's own goroutine.
type Batcher struct {
	flusher  Flusher
	size     int
	interval time.Duration
	logger   *logging.Logger

	mu   sync.Mutex
	buf  []BulkUpdate
	kick chan struct{}
}

// NewBatcher creates a batcher flushing at the given batch size or age,
// whichever comes first.
func NewBatcher(flusher Flusher, size int, interval time.Duration, logger *logging.Logger) *Batcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Batcher{
		flusher:  flusher,
		size:     size,
		interval: interval,
		logger:   logger.WithComponent("batcher"),
		buf:      make([]BulkUpdate, 0, size),
		kick:     make(chan struct{}, 1),
	}
}

// Add queues one update for the next flush.
func (b *Batcher) Add(u BulkUpdate) {
	b.mu.Lock()
	b.buf = append(b.buf, u)
	full := len(b.buf) >= b.size
	b.mu.Unlock()

	if full {
		select {
		case b.kick <- struct{}{}:
		default:
		}
	}
}

// Pending returns the number of updates waiting to be flushed.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Run flushes on size and age triggers until ctx is cancelled, then drains
// what remains.
func (b *Batcher) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final drain runs on a fresh context; the store deserves a
			// bounded chance to take the last batch.
			drainCtx, cancel := context.WithTimeout(context.Background(), b.interval)
			b.Flush(drainCtx)
			cancel()
			return
		case <-ticker.C:
			b.Flush(ctx)
		case <-b.kick:
			b.Flush(ctx)
		}
	}
}

// Flush writes out the current batch, if any. Failures are logged and the
// batch is dropped; probe data is re-acquired on the next scan pass, so
// retrying stale partial updates buys nothing.
func (b *Batcher) Flush(ctx context.Context) {
	b.mu.Lock()
	if len(b.buf) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.buf
	b.buf = make([]BulkUpdate, 0, b.size)
	b.mu.Unlock()

	if err := b.flusher.BulkUpsert(ctx, batch); err != nil {
		b.logger.ErrorStore("batch flush failed", err, "updates", len(batch))
		return
	}
	b.logger.Debug("flushed update batch", "updates", len(batch))
}
