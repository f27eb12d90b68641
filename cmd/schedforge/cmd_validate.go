package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"schedforge/internal/preflight"
	"schedforge/internal/types"
	"schedforge/internal/validator"
)

var (
	validateContext string
	scheduleFile    string
	validateOut     string
)

// validateCmd re-validates an existing schedule
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Re-validate a schedule against a creator context",
	Long: `Runs the hard gates and quality scoring over a schedule file (as written
by generate, or a bare schedule) and prints a fresh certificate. Each run
issues a new certificate; existing ones are never edited.

The command exits non-zero when the schedule is rejected.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateContext, "context", "", "Creator context file (required)")
	validateCmd.Flags().StringVar(&scheduleFile, "schedule", "", "Schedule JSON file (required)")
	validateCmd.Flags().StringVarP(&validateOut, "out", "o", "", "Write JSON here instead of stdout")
	validateCmd.MarkFlagRequired("context")
	validateCmd.MarkFlagRequired("schedule")
}

func runValidate(cmd *cobra.Command, args []string) error {
	snap, err := preflight.Load(validateContext, now())
	if err != nil {
		return err
	}
	out, err := preflight.LoadSchedule(scheduleFile)
	if err != nil {
		return err
	}
	if err := types.ValidateContext(snap.Context, now()); err != nil {
		return err
	}

	v := newPipeline(nil).Validator()
	cert, err := v.Validate(out, snap.Context)
	if err != nil {
		return err
	}
	if err := validator.Verify(cert, out); err != nil {
		return err
	}
	logger.Info("Schedule validated",
		zap.String("creator_id", cert.CreatorID),
		zap.String("status", string(cert.Status)),
		zap.Float64("score", cert.QualityScore))

	if err := writeJSON(cmd.OutOrStdout(), validateOut, cert); err != nil {
		return err
	}
	if cert.Status == types.StatusRejected {
		return fmt.Errorf("schedule rejected: %d violations", len(cert.Violations))
	}
	return nil
}
