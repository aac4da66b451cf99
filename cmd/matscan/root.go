package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Puyodead1/matscan/internal/config"
	"github.com/Puyodead1/matscan/internal/logging"
)

var (
	cfgFile string
	verbose bool
)

// Build information - set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "matscan",
	Short: "Minecraft server discovery ingestion core",
	Long: `matscan processes raw status-probe responses from a scanning engine,
filters out honeypots and middleboxes, persists discovered servers, and
selects known servers for rescanning and fingerprinting.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
}

// Execute runs the root command. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./matscan.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind verbose flag: %v\n", err)
	}
}

// initConfig points viper at the config file and environment.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("matscan")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("MATSCAN")

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// loadConfig loads the effective configuration and installs the logger.
func loadConfig() (*config.Config, error) {
	path := viper.ConfigFileUsed()
	if path == "" {
		path = "matscan.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if verbose {
		cfg.Logging.Level = logging.LevelDebug
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logging.SetDefault(logger)

	return cfg, nil
}
