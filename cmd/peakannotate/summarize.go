// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mzgrid/peakannotate/internal/annotate"
	"github.com/mzgrid/peakannotate/internal/summary"
	"github.com/mzgrid/peakannotate/pkg/types"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Join annotation results into one report",
	Long: `Summary joins whatever tables the earlier stages produced into a
single peak-indexed table, stores it in the annotation database, and
writes it as tab-separated values to --output (or standard output).

With --single-row each peak collapses to one row, alternative
annotations joined by "||"; --single-column further folds the reference
columns into one annotation column.`,
	RunE: runSummary,
}

func runSummary(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		return fmt.Errorf("--db is required")
	}
	peaks, err := loadPeaks(cmd)
	if err != nil {
		return err
	}

	cfg := types.SummaryConfig{
		SingleRow:    boolSetting(cmd, "single-row", "summary.single_row"),
		SingleColumn: boolSetting(cmd, "single-column", "summary.single_column"),
		ConvertRT:    stringSetting(cmd, "convert-rt", "summary.convert_rt"),
	}
	// Zero digits is a valid rounding width, so only an explicit
	// setting enables m/z rounding.
	if cmd.Flags().Changed("ndigits-mz") || viper.IsSet("summary.ndigits_mz") {
		n := intSetting(cmd, "ndigits-mz", "summary.ndigits_mz")
		cfg.NDigitsMZ = &n
	}

	db, err := annotate.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	report, err := summary.Build(context.Background(), db.Conn(), peaks, cfg)
	if err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		return report.WriteTSV(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := report.WriteTSV(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "summary: %d rows -> %s\n", len(report.Rows), path)
	return nil
}

func init() {
	summaryCmd.Flags().String("peaklist", "", "peak list TSV (name, mz, rt, intensity)")
	summaryCmd.Flags().String("db", "", "annotation database to read and extend (SQLite)")
	summaryCmd.Flags().String("output", "", "report TSV path (default: standard output)")
	summaryCmd.Flags().Bool("single-row", false, "one row per peak")
	summaryCmd.Flags().Bool("single-column", false, "fold reference columns into one annotation column")
	summaryCmd.Flags().String("convert-rt", "", "add a converted retention-time column: min or sec")
	summaryCmd.Flags().Int("ndigits-mz", 0, "round reported m/z to this many decimals (omit to disable)")

	rootCmd.AddCommand(summaryCmd)
}
