package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Puyodead1/matscan/internal/config"
	"github.com/Puyodead1/matscan/internal/fingerprint"
	"github.com/Puyodead1/matscan/internal/logging"
	"github.com/Puyodead1/matscan/internal/processing"
	"github.com/Puyodead1/matscan/internal/rescan"
	"github.com/Puyodead1/matscan/internal/scanning"
	"github.com/Puyodead1/matscan/internal/storage"
)

// connectStore opens the document store from the loaded configuration.
func connectStore(ctx context.Context, cfg *config.Config) (*storage.Store, error) {
	return storage.Connect(ctx, storage.Config{
		URI:               cfg.Database.URI,
		Database:          cfg.Database.Database,
		ServersCollection: cfg.Database.ServersCollection,
		BadIPsCollection:  cfg.Database.BadIPsCollection,
		ConnectTimeout:    cfg.Database.ConnectTimeout,
	}, logging.Default())
}

// seedTracker builds the shared anomaly tracker, seeded from the persisted
// blocklist. The repeat cache itself always starts empty.
func seedTracker(ctx context.Context, store *storage.Store) (*processing.Tracker, error) {
	tracker := processing.NewTracker()
	addrs, err := store.LoadBadAddresses(ctx)
	if err != nil {
		return nil, err
	}
	tracker.Seed(addrs)
	logging.Info("seeded blocklist from store", "addresses", len(addrs))
	return tracker, nil
}

// rescanPolicy maps the config section onto the selector policy.
func rescanPolicy(cfg *config.Config) rescan.Policy {
	return rescan.Policy{
		Interval:       cfg.Rescan.Interval,
		MaxStaleness:   cfg.Rescan.MaxStaleness,
		ActivityWindow: cfg.Rescan.ActivityWindow,
		ExtraFilter:    cfg.Rescan.ExtraFilter,
		Limit:          cfg.Rescan.Limit,
		Sort:           rescan.Sort(cfg.Rescan.Sort),
	}
}

// fingerprintPolicy maps the config section onto the selector policy.
func fingerprintPolicy(cfg *config.Config) fingerprint.Policy {
	return fingerprint.Policy{
		OnlineWindow: cfg.Fingerprint.OnlineWindow,
		Cooldown:     cfg.Fingerprint.Cooldown,
	}
}

// lineSink writes selected targets one per line as ip:port, the format the
// scanning engine's target feed consumes.
type lineSink struct {
	mu sync.Mutex
	w  io.Writer
}

func newLineSink(w io.Writer) *lineSink {
	return &lineSink{w: w}
}

// Deliver implements scanning.Sink.
func (s *lineSink) Deliver(ranges []scanning.ScanRange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range ranges {
		for _, t := range r.Targets {
			if _, err := fmt.Fprintf(s.w, "%s\n", t); err != nil {
				return err
			}
		}
	}
	return nil
}
