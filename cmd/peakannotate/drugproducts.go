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

var drugProductsCmd = &cobra.Command{
	Use:   "drug-products",
	Short: "Match peaks against predicted drug metabolites",
	Long: `Drug-products matches neutral masses against a list of predicted
metabolism products (SMILES, formula, prediction score and pathway),
typically produced by an in-silico metabolism tool for the drug under
study. Matches land in the drug_products table.`,
	RunE: runDrugProducts,
}

func runDrugProducts(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		return fmt.Errorf("--db is required")
	}
	candidatesPath, _ := cmd.Flags().GetString("candidates")
	if candidatesPath == "" {
		return fmt.Errorf("--candidates is required")
	}

	peaks, err := loadPeaks(cmd)
	if err != nil {
		return err
	}
	adducts, err := adductLibrary(cmd)
	if err != nil {
		return err
	}

	candidates, err := refstore.LoadDrugCandidates(candidatesPath)
	if err != nil {
		return err
	}
	store, err := refstore.NewDrugProductStore(candidates)
	if err != nil {
		return err
	}
	defer store.Close()

	db, err := annotate.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.AnnotateDrugProducts(context.Background(), peaks,
		floatSetting(cmd, "ppm", "annotation.ppm"), adducts, store, os.Stdout)
}

func init() {
	drugProductsCmd.Flags().String("peaklist", "", "peak list TSV (name, mz, rt, intensity)")
	drugProductsCmd.Flags().String("db", "", "annotation database to write (SQLite)")
	drugProductsCmd.Flags().Float64("ppm", 5.0, "mass tolerance in parts per million")
	drugProductsCmd.Flags().String("polarity", "pos", "ion mode for the built-in adduct library: pos or neg")
	drugProductsCmd.Flags().String("adducts", "", "adduct library YAML (overrides the built-in library)")
	drugProductsCmd.Flags().String("candidates", "", "predicted metabolite candidates YAML")

	rootCmd.AddCommand(drugProductsCmd)
}
