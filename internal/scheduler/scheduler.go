// Package scheduler periodically runs the rescan and fingerprint selection
// passes and hands the resulting target ranges to the scanning engine's
// sink. Timing comes from cron expressions; the selectors own all policy.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Puyodead1/matscan/internal/fingerprint"
	"github.com/Puyodead1/matscan/internal/logging"
	"github.com/Puyodead1/matscan/internal/rescan"
	"github.com/Puyodead1/matscan/internal/scanning"
)

// rescanSource produces rescan target ranges. *rescan.Selector implements it.
type rescanSource interface {
	Targets(ctx context.Context, p rescan.Policy) ([]scanning.ScanRange, error)
}

// fingerprintSource produces fingerprint candidates. *fingerprint.Selector
// implements it.
type fingerprintSource interface {
	Candidates(ctx context.Context, p fingerprint.Policy) ([]scanning.Target, error)
}

// Config holds the pass schedules and policies. An empty cron expression
// disables that pass.
type Config struct {
	RescanCron        string
	RescanPolicy      rescan.Policy
	FingerprintCron   string
	FingerprintPolicy fingerprint.Policy

	// PassTimeout bounds one selection pass end to end.
	PassTimeout time.Duration
}

const defaultPassTimeout = time.Hour

// Scheduler drives the selection passes.
type Scheduler struct {
	config      Config
	cron        *cron.Cron
	rescan      rescanSource
	fingerprint fingerprintSource
	sink        scanning.Sink
	logger      *logging.Logger
}

// New creates a scheduler delivering selected targets to sink.
func New(cfg Config, rescanSel rescanSource, fingerprintSel fingerprintSource,
	sink scanning.Sink, logger *logging.Logger) *Scheduler {
	if cfg.PassTimeout <= 0 {
		cfg.PassTimeout = defaultPassTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		config:      cfg,
		cron:        cron.New(),
		rescan:      rescanSel,
		fingerprint: fingerprintSel,
		sink:        sink,
		logger:      logger.WithComponent("scheduler"),
	}
}

// Start registers the configured passes and starts the cron loop.
func (s *Scheduler) Start() error {
	if s.config.RescanCron != "" {
		if _, err := s.cron.AddFunc(s.config.RescanCron, s.runRescan); err != nil {
			return err
		}
		s.logger.Info("rescan pass scheduled", "cron", s.config.RescanCron)
	}
	if s.config.FingerprintCron != "" {
		if _, err := s.cron.AddFunc(s.config.FingerprintCron, s.runFingerprint); err != nil {
			return err
		}
		s.logger.Info("fingerprint pass scheduled", "cron", s.config.FingerprintCron)
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runRescan() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.PassTimeout)
	defer cancel()

	ranges, err := s.rescan.Targets(ctx, s.config.RescanPolicy)
	if err != nil {
		// Partial results are still worth delivering; the next pass
		// picks up whatever this one missed.
		s.logger.Error("rescan selection failed", "error", err, "partial", len(ranges))
	}
	if len(ranges) == 0 {
		return
	}
	if err := s.sink.Deliver(ranges); err != nil {
		s.logger.Error("failed to deliver rescan targets", "error", err)
	}
}

func (s *Scheduler) runFingerprint() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.PassTimeout)
	defer cancel()

	candidates, err := s.fingerprint.Candidates(ctx, s.config.FingerprintPolicy)
	if err != nil {
		s.logger.Error("fingerprint selection failed", "error", err, "partial", len(candidates))
	}
	if len(candidates) == 0 {
		return
	}

	ranges := make([]scanning.ScanRange, 0, len(candidates))
	for _, t := range candidates {
		ranges = append(ranges, scanning.ScanRange{Targets: []scanning.Target{t}})
	}
	if err := s.sink.Deliver(ranges); err != nil {
		s.logger.Error("failed to deliver fingerprint targets", "error", err)
	}
}
