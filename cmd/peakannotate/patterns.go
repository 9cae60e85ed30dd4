// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mzgrid/peakannotate/internal/annotate"
	"github.com/mzgrid/peakannotate/internal/library"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Annotate adduct pairs, isotopes, charge states, oligomers and artifacts",
	Long: `Patterns scans the peak list (or the relationship graph, when --graph
names a grouping database) for peak pairs separated by a library mass:
adduct pairs, isotopic pairs, multiply charged forms of the same molecule,
oligomers, and near-duplicate artifacts. Results accumulate in the
annotation database, one table per relationship kind.

The oligomer and artifact scans are off by default; enable them with
--max-oligomers and --artifact-diff.`,
	RunE: runPatterns,
}

func runPatterns(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		return fmt.Errorf("--db is required")
	}

	peaks, err := loadPeaks(cmd)
	if err != nil {
		return err
	}
	src, err := loadSource(cmd, peaks)
	if err != nil {
		return err
	}
	adducts, err := adductLibrary(cmd)
	if err != nil {
		return err
	}

	var isotopes library.Isotopes
	if path, _ := cmd.Flags().GetString("isotopes"); path != "" {
		isotopes, err = library.LoadIsotopes(path)
	} else {
		isotopes, err = library.DefaultIsotopes(polaritySetting(cmd))
	}
	if err != nil {
		return err
	}

	var charges *library.Library
	if path, _ := cmd.Flags().GetString("multicharge"); path != "" {
		charges, err = library.LoadAdducts(path)
	} else {
		charges, err = library.DefaultMultipleCharges(polaritySetting(cmd))
	}
	if err != nil {
		return err
	}

	db, err := annotate.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	ppm := floatSetting(cmd, "ppm", "annotation.ppm")
	add, _ := cmd.Flags().GetBool("add")

	if err := db.AnnotateAdductPairs(ctx, src, ppm, adducts, add, os.Stdout); err != nil {
		return err
	}
	if err := db.AnnotateIsotopes(ctx, src, ppm, isotopes, os.Stdout); err != nil {
		return err
	}
	if err := db.AnnotateMultipleChargedIons(ctx, src, ppm, charges, add, os.Stdout); err != nil {
		return err
	}
	if max := intSetting(cmd, "max-oligomers", "annotation.max_oligomers"); max >= 2 {
		if err := db.AnnotateOligomers(ctx, src, ppm, adducts, max, os.Stdout); err != nil {
			return err
		}
	}
	if diff := floatSetting(cmd, "artifact-diff", "annotation.artifact_diff"); diff > 0 {
		if err := db.AnnotateArtifacts(ctx, src, diff, os.Stdout); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	patternsCmd.Flags().String("peaklist", "", "peak list TSV (name, mz, rt, intensity)")
	patternsCmd.Flags().String("db", "", "annotation database to write (SQLite)")
	patternsCmd.Flags().String("graph", "", "grouping database with a groups table; scan its edges instead of all peak pairs")
	patternsCmd.Flags().Float64("ppm", 5.0, "mass tolerance in parts per million")
	patternsCmd.Flags().String("polarity", "pos", "ion mode for the built-in libraries: pos or neg")
	patternsCmd.Flags().String("adducts", "", "adduct library YAML (overrides the built-in library)")
	patternsCmd.Flags().String("isotopes", "", "isotope library YAML (overrides the built-in library)")
	patternsCmd.Flags().String("multicharge", "", "multiply-charged library YAML (overrides the built-in library)")
	patternsCmd.Flags().Bool("add", false, "add to existing adduct and charge tables instead of replacing them")
	patternsCmd.Flags().Int("max-oligomers", 0, "largest oligomer to search for (2 = dimers; 0 disables)")
	patternsCmd.Flags().Float64("artifact-diff", 0, "flag peak pairs closer than this m/z difference as artifacts (0 disables)")

	rootCmd.AddCommand(patternsCmd)
}
