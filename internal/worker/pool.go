// Package worker runs the probe-response processing pool. Each worker takes
// (target, raw payload) pairs from the scanning engine, normalizes and vets
// them, and hands accepted records to the write batcher. Per-record work is
// pure; the only shared state is the anomaly tracker, which workers consult
// through its own locking.
package worker

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/Puyodead1/matscan/internal/logging"
	"github.com/Puyodead1/matscan/internal/metrics"
	"github.com/Puyodead1/matscan/internal/processing"
	"github.com/Puyodead1/matscan/internal/scanning"
	"github.com/Puyodead1/matscan/internal/storage"
)

// sideEffectTimeout bounds the store work triggered by one blocklist
// promotion.
const sideEffectTimeout = 30 * time.Second

// UpdateSink receives accepted update requests. *storage.Batcher implements
// it.
type UpdateSink interface {
	Add(u storage.BulkUpdate)
}

// BlockPersister runs the durable blocklist side effects. *storage.Store
// implements it.
type BlockPersister interface {
	AddBadAddress(ctx context.Context, addr netip.Addr) error
	DeleteNonDefaultPorts(ctx context.Context, addr netip.Addr) (int64, error)
}

// Notifier announces blocklist promotions to operators. May be nil.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// Config sizes the pool.
type Config struct {
	// Workers is the number of concurrent processing goroutines.
	Workers int

	// QueueSize is the probe queue capacity.
	QueueSize int
}

// Deps are the pool's collaborators, injected explicitly; the pool owns no
// ambient global state.
type Deps struct {
	Tracker  *processing.Tracker
	Updates  UpdateSink
	Store    BlockPersister
	Notifier Notifier
	Logger   *logging.Logger
	Metrics  *metrics.Metrics
}

// Pool processes probes concurrently.
type Pool struct {
	config Config
	deps   Deps
	logger *logging.Logger

	probes chan scanning.Probe

	ctx    context.Context
	cancel context.CancelFunc

	workerWg sync.WaitGroup
	effectWg sync.WaitGroup
}

// New creates a processing pool.
func New(cfg Config, deps Deps) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 2
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Pool{
		config: cfg,
		deps:   deps,
		logger: logger.WithComponent("worker"),
		probes: make(chan scanning.Probe, cfg.QueueSize),
	}
}

// Start launches the workers.
func (p *Pool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.logger.Info("starting processing pool", "workers", p.config.Workers)
	for i := 0; i < p.config.Workers; i++ {
		p.workerWg.Add(1)
		go p.run()
	}
}

// Stop drains the workers and waits for in-flight blocklist side effects.
func (p *Pool) Stop() {
	p.cancel()
	p.workerWg.Wait()
	p.effectWg.Wait()
	p.logger.Info("processing pool stopped")
}

// Submit queues one probe for processing, blocking while the queue is full.
func (p *Pool) Submit(probe scanning.Probe) error {
	if p.ctx.Err() != nil {
		return fmt.Errorf("processing pool is shutting down")
	}
	select {
	case p.probes <- probe:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("processing pool is shutting down")
	}
}

func (p *Pool) run() {
	defer p.workerWg.Done()
	for {
		select {
		case probe := <-p.probes:
			p.process(probe)
		case <-p.ctx.Done():
			return
		}
	}
}

// process runs one probe through normalize, anomaly vetting, and update
// construction.
func (p *Pool) process(probe scanning.Probe) {
	target := probe.Target

	// Fail fast for blocklisted addresses before any parse or hash work.
	if p.deps.Tracker.Blocked(target.Addr, target.Port) {
		p.reject(metrics.ReasonBlocklisted)
		return
	}

	rec, ok := processing.Normalize(probe.Data)
	if !ok {
		// Not a status response; routine at internet scale.
		p.reject(metrics.ReasonNotStatus)
		return
	}

	fp := processing.ContentFingerprint(rec)

	switch p.deps.Tracker.Observe(target.Addr, target.Port, fp) {
	case processing.OutcomeReject:
		p.reject(metrics.ReasonBlocklisted)

	case processing.OutcomePromote:
		p.reject(metrics.ReasonPromoted)
		p.logger.Warn("address promoted to blocklist",
			"addr", target.Addr.String(), "port", target.Port)
		if p.deps.Metrics != nil {
			p.deps.Metrics.Promotions.Inc()
			p.deps.Metrics.BlocklistSize.Set(float64(p.deps.Tracker.BlockedCount()))
		}
		// The durable side effects run off the probe path so a slow
		// store never stalls ingestion.
		p.effectWg.Add(1)
		go p.persistPromotion(target.Addr)

	case processing.OutcomeAccept:
		p.deps.Updates.Add(processing.BuildUpdate(target, rec))
		if p.deps.Metrics != nil {
			p.deps.Metrics.ResponsesAccepted.Inc()
			p.deps.Metrics.BatchedUpdates.Inc()
		}
	}
}

func (p *Pool) reject(reason string) {
	if p.deps.Metrics != nil {
		p.deps.Metrics.ResponsesRejected.WithLabelValues(reason).Inc()
	}
}

// persistPromotion runs the deferred blocklist side effects: persist the
// block, delete the fabricated records, tell the operator. All best-effort;
// failures are logged and the in-memory block stands regardless.
func (p *Pool) persistPromotion(addr netip.Addr) {
	defer p.effectWg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()

	if err := p.deps.Store.AddBadAddress(ctx, addr); err != nil {
		p.logger.ErrorStore("failed to persist blocklisted address", err, "addr", addr.String())
	}

	if n, err := p.deps.Store.DeleteNonDefaultPorts(ctx, addr); err != nil {
		p.logger.ErrorStore("failed to delete records for blocklisted address", err, "addr", addr.String())
	} else {
		p.logger.Info("deleted records for blocklisted address",
			"addr", addr.String(), "deleted", n)
	}

	if p.deps.Notifier != nil {
		p.deps.Notifier.Notify(ctx, fmt.Sprintf("found a new bad ip: %s", addr))
	}
}
