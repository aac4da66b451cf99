package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Puyodead1/matscan/internal/logging"
	"github.com/Puyodead1/matscan/internal/rescan"
)

var (
	rescanLimit int
	rescanSort  string
)

var rescanCmd = &cobra.Command{
	Use:   "rescan",
	Short: "Select servers due for re-probing",
	Long: `Runs one rescan selection pass against the store and writes the selected
targets to stdout, one ip:port per line, for the scanning engine to consume.`,
	RunE: runRescan,
}

func init() {
	rescanCmd.Flags().IntVar(&rescanLimit, "limit", -1, "cap the number of selected targets (-1 uses the configured limit)")
	rescanCmd.Flags().StringVar(&rescanSort, "sort", "", "sort mode: oldest or random (default from config)")
	rootCmd.AddCommand(rescanCmd)
}

func runRescan(_ *cobra.Command, _ []string) error {
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
	defer store.Close(context.Background())

	tracker, err := seedTracker(ctx, store)
	if err != nil {
		return err
	}

	policy := rescanPolicy(cfg)
	if rescanLimit >= 0 {
		policy.Limit = rescanLimit
	}
	if rescanSort != "" {
		policy.Sort = rescan.Sort(rescanSort)
	}

	ranges, err := rescan.New(store, tracker, logger, nil).Targets(ctx, policy)
	if deliverErr := newLineSink(os.Stdout).Deliver(ranges); deliverErr != nil {
		return deliverErr
	}
	return err
}
