package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Puyodead1/matscan/internal/fingerprint"
	"github.com/Puyodead1/matscan/internal/logging"
)

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint",
	Short: "Select servers eligible for the fingerprinting pass",
	Long: `Runs one fingerprint candidate selection pass against the store and
writes every eligible target to stdout as "ip:port protocol", for the
fingerprinting engine to consume.`,
	RunE: runFingerprint,
}

func init() {
	rootCmd.AddCommand(fingerprintCmd)
}

func runFingerprint(_ *cobra.Command, _ []string) error {
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

	candidates, err := fingerprint.New(store, logger, nil).Candidates(ctx, fingerprintPolicy(cfg))
	for _, t := range candidates {
		fmt.Printf("%s %d\n", t, t.ProtocolHint)
	}
	return err
}
