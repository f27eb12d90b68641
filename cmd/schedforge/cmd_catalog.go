package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"schedforge/internal/catalog"
)

var catalogJSON bool

// catalogCmd prints the send-type catalog
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the send-type catalog",
	RunE:  runCatalog,
}

func init() {
	catalogCmd.Flags().BoolVar(&catalogJSON, "json", false, "Print as JSON")
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle      = lipgloss.NewStyle().Padding(0, 1)
	categoryStyles = map[catalog.Category]lipgloss.Style{
		catalog.CategoryRevenue:    cellStyle.Foreground(lipgloss.Color("#10b981")),
		catalog.CategoryEngagement: cellStyle.Foreground(lipgloss.Color("#3b82f6")),
		catalog.CategoryRetention:  cellStyle.Foreground(lipgloss.Color("#f59e0b")),
	}
)

var catalogHeaders = []string{"KEY", "CATEGORY", "PAGE", "DAILY", "WEEKLY", "GAP", "FLAGS", "CHANNEL"}

func runCatalog(cmd *cobra.Command, args []string) error {
	sendTypes := catalog.Default().All()
	if catalogJSON {
		return writeJSON(cmd.OutOrStdout(), "", sendTypes)
	}

	rows := make([][]string, 0, len(sendTypes))
	for _, t := range sendTypes {
		weekly := "-"
		if t.WeeklyMax > 0 {
			weekly = fmt.Sprint(t.WeeklyMax)
		}
		rows = append(rows, []string{
			t.Key, string(t.Category), string(t.PageType), fmt.Sprint(t.DailyMax),
			weekly, t.MinGap.String(), flags(t), t.Channel,
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(catalogHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 && row >= 0 && row < len(sendTypes) {
				if s, ok := categoryStyles[sendTypes[row].Category]; ok {
					return s
				}
			}
			return cellStyle
		})
	_, err := fmt.Fprintln(cmd.OutOrStdout(), tbl.Render())
	return err
}

func flags(t catalog.SendType) string {
	var f []string
	if t.RequiresMedia {
		f = append(f, "media")
	}
	if t.RequiresPrice {
		f = append(f, "price")
	}
	if t.RequiresFlyer {
		f = append(f, "flyer")
	}
	if t.Derived {
		f = append(f, "derived")
	}
	if len(f) == 0 {
		return "-"
	}
	return strings.Join(f, ",")
}
