// Package main implements the schedforge CLI: weekly schedule generation,
// re-validation and certificate lookup.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"schedforge/internal/config"
	"schedforge/internal/logging"
	"schedforge/internal/pipeline"
	"schedforge/internal/store"
)

var (
	// Global flags
	verbose    bool
	configPath string
	timeout    time.Duration

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger

	// now is the wall clock; tests pin it.
	now = time.Now
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "schedforge",
	Short: "Weekly content schedule generator",
	Long: `schedforge builds a creator's weekly send schedule: it compounds
performance triggers, allocates send types per day, places them in time,
prices them, adds followups and issues a signed validation certificate.

Examples:
  schedforge generate --context creator.yaml --week-start 2026-10-19
  schedforge batch --dir contexts/ --week-start 2026-10-19 --persist
  schedforge certificate --creator creator-1 --week-start 2026-10-19`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", configPath, err)
		}

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			cfg.Logging.DebugMode = true
			cfg.Logging.Level = "debug"
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if err := logging.Initialize(cfg.Logging.Options()); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		logging.Boot("config loaded from %s (seed=%d)", configPath, cfg.Seed)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "schedforge.yaml", "Config file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(certificateCmd)
	rootCmd.AddCommand(catalogCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commandContext returns a context bounded by --timeout and cancelled on
// SIGINT/SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	return ctx, func() {
		stop()
		cancel()
	}
}

// openStore opens the configured certificate store.
func openStore() (*store.Store, error) {
	s, err := store.NewStore(cfg.Store.DatabasePath, store.WithClock(now))
	if err != nil {
		return nil, fmt.Errorf("failed to open certificate store: %w", err)
	}
	return s, nil
}

// newPipeline builds a pipeline, persisting through s when it is non-nil.
func newPipeline(s *store.Store, extra ...pipeline.Option) *pipeline.Pipeline {
	opts := []pipeline.Option{pipeline.WithClock(now)}
	if s != nil {
		opts = append(opts, pipeline.WithPersister(s))
	}
	return pipeline.New(cfg, append(opts, extra...)...)
}

// writeJSON writes v indented to path, or to w when path is empty.
func writeJSON(w io.Writer, path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	data = append(data, '\n')
	if path == "" {
		_, err = w.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
