package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"schedforge/internal/pipeline"
	"schedforge/internal/preflight"
	"schedforge/internal/store"
)

var (
	contextFile string
	weekStart   string
	seed        int64
	outFile     string
	persist     bool
)

// generateCmd runs the full pipeline for one creator week
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate and certify one creator week",
	Long: `Loads a creator context (YAML or JSON), runs every stage and prints the
schedule, its certificate and the run report as JSON.

Expired triggers in the context are dropped before the run. With --persist
the certificate is appended to the certificate store.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&contextFile, "context", "", "Creator context file (required)")
	generateCmd.Flags().StringVar(&weekStart, "week-start", "", "Week start date, YYYY-MM-DD (required)")
	generateCmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (default: config seed)")
	generateCmd.Flags().StringVarP(&outFile, "out", "o", "", "Write JSON here instead of stdout")
	generateCmd.Flags().BoolVar(&persist, "persist", false, "Store the certificate")
	generateCmd.MarkFlagRequired("context")
	generateCmd.MarkFlagRequired("week-start")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	snap, err := preflight.Load(contextFile, now())
	if err != nil {
		return err
	}
	for _, t := range snap.Expired {
		logger.Info("Dropped expired trigger",
			zap.String("content_type", t.ContentType),
			zap.String("trigger_type", string(t.Type)),
			zap.Time("expires_at", t.ExpiresAt))
	}

	var s *store.Store
	if persist {
		if s, err = openStore(); err != nil {
			return err
		}
		defer s.Close()
	}

	res, err := newPipeline(s).Run(ctx, pipeline.Request{Context: snap.Context, WeekStart: weekStart, Seed: seed})
	if err != nil {
		return fmt.Errorf("generate %s: %w", snap.Context.CreatorID, err)
	}
	logger.Info("Schedule generated",
		zap.String("creator_id", res.Output.CreatorID),
		zap.String("week_start", res.Output.WeekStart),
		zap.Int("items", len(res.Output.Items)),
		zap.Int("followups", len(res.Output.Followups)),
		zap.String("status", string(res.Certificate.Status)),
		zap.Float64("score", res.Certificate.QualityScore))
	return writeJSON(cmd.OutOrStdout(), outFile, res)
}
