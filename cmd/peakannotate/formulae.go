// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mzgrid/peakannotate/internal/annotate"
	"github.com/mzgrid/peakannotate/internal/refstore"
	"github.com/mzgrid/peakannotate/pkg/types"
)

var formulaeCmd = &cobra.Command{
	Use:   "formulae",
	Short: "Match peaks against molecular formulae",
	Long: `Formulae subtracts each adduct mass from each peak and looks the
remaining neutral mass up in a molecular-formula collection: a local
TSV dump when --dump is given, otherwise the remote formula service.
Matches land in the molecular_formulae table.`,
	RunE: runFormulae,
}

func runFormulae(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		return fmt.Errorf("--db is required")
	}

	peaks, err := loadPeaks(cmd)
	if err != nil {
		return err
	}
	adducts, err := adductLibrary(cmd)
	if err != nil {
		return err
	}

	var source annotate.FormulaSource
	if dump, _ := cmd.Flags().GetString("dump"); dump != "" {
		store, err := refstore.NewFormulaStore(dump)
		if err != nil {
			return err
		}
		defer store.Close()
		source = store
	} else {
		source = refstore.NewRemoteFormulaSource(types.RemoteConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("formula.remote.timeout"),
				UserAgent: "peakannotate/" + version,
			},
			BaseURL:           stringSetting(cmd, "remote-url", "formula.remote.base_url"),
			RequestsPerSecond: floatSetting(cmd, "rps", "formula.remote.requests_per_second"),
		})
	}

	db, err := annotate.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.AnnotateMolecularFormulae(context.Background(), peaks,
		floatSetting(cmd, "ppm", "annotation.ppm"), adducts, source,
		boolSetting(cmd, "rules", "formula.rules"),
		floatSetting(cmd, "max-mz", "formula.max_mz"),
		os.Stdout)
}

func init() {
	formulaeCmd.Flags().String("peaklist", "", "peak list TSV (name, mz, rt, intensity)")
	formulaeCmd.Flags().String("db", "", "annotation database to write (SQLite)")
	formulaeCmd.Flags().Float64("ppm", 5.0, "mass tolerance in parts per million")
	formulaeCmd.Flags().String("polarity", "pos", "ion mode for the built-in adduct library: pos or neg")
	formulaeCmd.Flags().String("adducts", "", "adduct library YAML (overrides the built-in library)")
	formulaeCmd.Flags().String("dump", "", "molecular-formula dump TSV; when empty the remote service is queried")
	formulaeCmd.Flags().String("remote-url", "https://mfdb.bham.ac.uk", "remote formula service root")
	formulaeCmd.Flags().Float64("rps", refstore.DefaultRequestsPerSecond, "remote request rate limit per second")
	formulaeCmd.Flags().Bool("rules", true, "only accept formulae passing the heuristic validity rules")
	formulaeCmd.Flags().Float64("max-mz", 0, "skip peaks above this m/z (0 = no cap)")

	rootCmd.AddCommand(formulaeCmd)
}
