package main

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Puyodead1/matscan/internal/fingerprint"
	"github.com/Puyodead1/matscan/internal/logging"
	"github.com/Puyodead1/matscan/internal/metrics"
	"github.com/Puyodead1/matscan/internal/rescan"
	"github.com/Puyodead1/matscan/internal/scanning"
	"github.com/Puyodead1/matscan/internal/scheduler"
	"github.com/Puyodead1/matscan/internal/storage"
	"github.com/Puyodead1/matscan/internal/webhook"
	"github.com/Puyodead1/matscan/internal/worker"
)

const (
	shutdownTimeout = 30 * time.Second

	// Probe payloads are capped by the protocol at well under this, but
	// the reader must survive hostile line lengths.
	maxProbeLine = 4 * 1024 * 1024
)

var daemonTargetsOut string

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the ingestion pipeline",
	Long: `Runs the full ingestion pipeline: probe results are read from stdin as
JSON lines ({"ip": "1.2.3.4", "port": 25565, "data": "<base64>"}), processed
concurrently, and persisted in batches. The rescan and fingerprint selection
passes run on their configured cron schedules and write selected targets to
the target feed.`,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&daemonTargetsOut, "targets-out", "-",
		"file receiving selected targets, one ip:port per line (- for stdout)")
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := connectStore(ctx, cfg)
	if err != nil {
		return err
	}

	tracker, err := seedTracker(ctx, store)
	if err != nil {
		return err
	}

	m := metrics.New()
	m.BlocklistSize.Set(float64(tracker.BlockedCount()))
	if cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.Metrics.Listen, mux); err != nil {
				logger.Error("metrics endpoint failed", "error", err)
			}
		}()
		logger.Info("metrics endpoint listening", "addr", cfg.Metrics.Listen)
	}

	notifier := webhook.New(cfg.Webhook.URL, cfg.Webhook.Timeout, logger)

	batcher := storage.NewBatcher(store, cfg.Processing.BatchSize, cfg.Processing.FlushInterval, logger)
	batchCtx, stopBatcher := context.WithCancel(context.Background())
	defer stopBatcher()
	var batchWg sync.WaitGroup
	batchWg.Add(1)
	go func() {
		defer batchWg.Done()
		batcher.Run(batchCtx)
	}()

	pool := worker.New(worker.Config{
		Workers:   cfg.Processing.Workers,
		QueueSize: cfg.Processing.QueueSize,
	}, worker.Deps{
		Tracker:  tracker,
		Updates:  batcher,
		Store:    store,
		Notifier: notifier,
		Logger:   logger,
		Metrics:  m,
	})
	pool.Start(ctx)

	sinkWriter := os.Stdout
	if daemonTargetsOut != "-" {
		f, err := os.OpenFile(daemonTargetsOut, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		sinkWriter = f
	}
	sink := newLineSink(sinkWriter)

	sched := scheduler.New(scheduler.Config{
		RescanCron:        cfg.Rescan.Cron,
		RescanPolicy:      rescanPolicy(cfg),
		FingerprintCron:   cfg.Fingerprint.Cron,
		FingerprintPolicy: fingerprintPolicy(cfg),
	},
		rescan.New(store, tracker, logger, m),
		fingerprint.New(store, logger, m),
		sink, logger)
	if err := sched.Start(); err != nil {
		return err
	}

	go readProbes(ctx, os.Stdin, pool, logger)

	logger.Info("matscan daemon running",
		"workers", cfg.Processing.Workers, "batch_size", cfg.Processing.BatchSize)
	<-ctx.Done()
	logger.Info("shutting down")

	sched.Stop()
	pool.Stop()
	stopBatcher()
	batchWg.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return store.Close(closeCtx)
}

// probeLine is one scanning-engine result on the ingest feed. Data arrives
// base64-encoded.
type probeLine struct {
	IP   string `json:"ip"`
	Port uint16 `json:"port"`
	Data []byte `json:"data"`
}

// readProbes feeds scanning-engine results from r into the pool until EOF
// or cancellation. Malformed lines are skipped with a diagnostic.
func readProbes(ctx context.Context, r *os.File, pool *worker.Pool, logger *logging.Logger) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxProbeLine)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		var line probeLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			logger.Warn("malformed probe line", "error", err)
			continue
		}
		addr, err := netip.ParseAddr(line.IP)
		if err != nil {
			logger.Warn("malformed probe address", "ip", line.IP)
			continue
		}

		probe := scanning.Probe{
			Target:   scanning.Target{Addr: addr, Port: line.Port},
			Data:     line.Data,
			Received: time.Now(),
		}
		if err := pool.Submit(probe); err != nil {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Error("probe feed read failed", "error", err)
	}
}
