package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"schedforge/internal/pipeline"
	"schedforge/internal/preflight"
	"schedforge/internal/store"
	"schedforge/internal/types"
)

var (
	contextDir  string
	concurrency int
	batchOut    string
)

// batchCmd generates every creator in a directory
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Generate a week for every creator context in a directory",
	Long: `Loads every .yaml, .yml and .json context in --dir and runs them
concurrently (bounded by batch.max_concurrency or --concurrency). One
creator's failure does not stop the others; the summary lists each outcome.`,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVar(&contextDir, "dir", "", "Directory of creator context files (required)")
	batchCmd.Flags().StringVar(&weekStart, "week-start", "", "Week start date, YYYY-MM-DD (required)")
	batchCmd.Flags().Int64Var(&seed, "seed", 0, "Random seed for every creator (default: config seed)")
	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "Parallel runs (default: config batch.max_concurrency)")
	batchCmd.Flags().StringVarP(&batchOut, "out", "o", "", "Write JSON here instead of stdout")
	batchCmd.Flags().BoolVar(&persist, "persist", false, "Store every certificate")
	batchCmd.MarkFlagRequired("dir")
	batchCmd.MarkFlagRequired("week-start")
}

// batchEntry is one line of the batch summary.
type batchEntry struct {
	File          string       `json:"file"`
	CreatorID     string       `json:"creator_id"`
	Status        types.Status `json:"status,omitempty"`
	QualityScore  float64      `json:"quality_score,omitempty"`
	CertificateID string       `json:"certificate_id,omitempty"`
	Items         int          `json:"items,omitempty"`
	Error         string       `json:"error,omitempty"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	snaps, err := preflight.LoadDir(contextDir, now())
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		return fmt.Errorf("no context files in %s", contextDir)
	}

	var s *store.Store
	if persist {
		if s, err = openStore(); err != nil {
			return err
		}
		defer s.Close()
	}

	var extra []pipeline.Option
	if concurrency > 0 {
		extra = append(extra, pipeline.WithConcurrency(concurrency))
	}
	p := newPipeline(s, extra...)

	reqs := make([]pipeline.Request, len(snaps))
	for i, snap := range snaps {
		reqs[i] = pipeline.Request{Context: snap.Context, WeekStart: weekStart, Seed: seed}
	}
	results, err := p.RunBatch(ctx, reqs)
	if err != nil {
		return fmt.Errorf("batch interrupted: %w", err)
	}

	summary := make([]batchEntry, len(results))
	failed := 0
	for i, r := range results {
		e := batchEntry{File: snaps[i].Path, CreatorID: r.Request.Context.CreatorID}
		if r.Err != nil {
			failed++
			e.Error = r.Err.Error()
			logger.Warn("Creator failed", zap.String("file", e.File), zap.Error(r.Err))
		} else {
			e.Status = r.Result.Certificate.Status
			e.QualityScore = r.Result.Certificate.QualityScore
			e.CertificateID = r.Result.Certificate.CertificateID
			e.Items = len(r.Result.Output.Items)
		}
		summary[i] = e
	}
	logger.Info("Batch complete", zap.Int("creators", len(results)), zap.Int("failed", failed))

	if err := writeJSON(cmd.OutOrStdout(), batchOut, summary); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d creators failed", failed, len(results))
	}
	return nil
}
