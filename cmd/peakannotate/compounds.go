// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mzgrid/peakannotate/internal/annotate"
	"github.com/mzgrid/peakannotate/internal/refstore"
)

var compoundsCmd = &cobra.Command{
	Use:   "compounds",
	Short: "Match peaks against a compound collection",
	Long: `Compounds matches neutral masses against a named compound collection,
read from a TSV dump (--dump) or from an existing SQLite database
(--database) whose table is named after the collection. Matches land in
a compounds_<source> table, so several collections can annotate the
same run side by side.`,
	RunE: runCompounds,
}

func runCompounds(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		return fmt.Errorf("--db is required")
	}
	name, _ := cmd.Flags().GetString("source")
	if name == "" {
		return fmt.Errorf("--source is required (e.g. hmdb)")
	}

	peaks, err := loadPeaks(cmd)
	if err != nil {
		return err
	}
	adducts, err := adductLibrary(cmd)
	if err != nil {
		return err
	}

	dump, _ := cmd.Flags().GetString("dump")
	database, _ := cmd.Flags().GetString("database")
	var store *refstore.CompoundStore
	switch {
	case dump != "" && database != "":
		return fmt.Errorf("--dump and --database are mutually exclusive")
	case dump != "":
		store, err = refstore.NewCompoundStoreFromTSV(dump)
	case database != "":
		store, err = refstore.OpenCompoundDatabase(database, name)
	default:
		return fmt.Errorf("--dump or --database is required")
	}
	if err != nil {
		return err
	}
	defer store.Close()

	db, err := annotate.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.AnnotateCompounds(context.Background(), peaks,
		floatSetting(cmd, "ppm", "annotation.ppm"), adducts, store, name, os.Stdout)
}

func init() {
	compoundsCmd.Flags().String("peaklist", "", "peak list TSV (name, mz, rt, intensity)")
	compoundsCmd.Flags().String("db", "", "annotation database to write (SQLite)")
	compoundsCmd.Flags().Float64("ppm", 5.0, "mass tolerance in parts per million")
	compoundsCmd.Flags().String("polarity", "pos", "ion mode for the built-in adduct library: pos or neg")
	compoundsCmd.Flags().String("adducts", "", "adduct library YAML (overrides the built-in library)")
	compoundsCmd.Flags().String("source", "", "collection name; the output table becomes compounds_<source>")
	compoundsCmd.Flags().String("dump", "", "compound dump TSV")
	compoundsCmd.Flags().String("database", "", "SQLite database holding the collection")

	rootCmd.AddCommand(compoundsCmd)
}
