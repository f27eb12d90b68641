package main

import (
	"errors"

	"github.com/spf13/cobra"

	"schedforge/internal/store"
)

var (
	creatorID    string
	showAll      bool
	withSchedule bool
)

// certificateCmd prints stored certificates
var certificateCmd = &cobra.Command{
	Use:   "certificate",
	Short: "Show the latest stored certificate for a creator week",
	Long: `Reads the certificate store. By default prints the most recent
certificate for --creator and --week-start; --all lists every certificate
stored for the creator.`,
	RunE: runCertificate,
}

func init() {
	certificateCmd.Flags().StringVar(&creatorID, "creator", "", "Creator id (required)")
	certificateCmd.Flags().StringVar(&weekStart, "week-start", "", "Week start date, YYYY-MM-DD")
	certificateCmd.Flags().BoolVar(&showAll, "all", false, "List every stored certificate for the creator")
	certificateCmd.Flags().BoolVar(&withSchedule, "with-schedule", false, "Include the attested schedule")
	certificateCmd.MarkFlagRequired("creator")
}

func runCertificate(cmd *cobra.Command, args []string) error {
	if !showAll && weekStart == "" {
		return errors.New("--week-start is required unless --all is set")
	}
	ctx, cancel := commandContext()
	defer cancel()

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if showAll {
		records, err := s.List(ctx, creatorID)
		if err != nil {
			return err
		}
		for i := range records {
			trim(&records[i])
		}
		return writeJSON(cmd.OutOrStdout(), "", records)
	}

	rec, err := s.Latest(ctx, creatorID, weekStart)
	if err != nil {
		return err
	}
	trim(rec)
	return writeJSON(cmd.OutOrStdout(), "", rec)
}

func trim(r *store.Record) {
	if !withSchedule {
		r.Schedule = nil
	}
}
