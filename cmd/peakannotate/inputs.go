// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mzgrid/peakannotate/internal/library"
	"github.com/mzgrid/peakannotate/internal/peakio"
	"github.com/mzgrid/peakannotate/pkg/types"
)

// loadPeaks reads the peak list named by --peaklist.
func loadPeaks(cmd *cobra.Command) ([]types.Peak, error) {
	path, _ := cmd.Flags().GetString("peaklist")
	if path == "" {
		return nil, fmt.Errorf("--peaklist is required")
	}
	return peakio.LoadPeaklist(path)
}

// loadSource wraps the peaks as a flat source, or joins them with the
// groups table of the database named by --graph.
func loadSource(cmd *cobra.Command, peaks []types.Peak) (types.PeakSource, error) {
	path, _ := cmd.Flags().GetString("graph")
	if path == "" {
		return types.PeaklistSource(peaks), nil
	}
	g, err := peakio.LoadGraph(path, peaks)
	if err != nil {
		return types.PeakSource{}, err
	}
	return types.GraphSource(g), nil
}

// polaritySetting resolves the ion mode for the built-in libraries.
func polaritySetting(cmd *cobra.Command) string {
	return stringSetting(cmd, "polarity", "annotation.polarity")
}

// adductLibrary returns the library from --adducts, or the built-in
// library for the configured polarity.
func adductLibrary(cmd *cobra.Command) (*library.Library, error) {
	if path, _ := cmd.Flags().GetString("adducts"); path != "" {
		return library.LoadAdducts(path)
	}
	return library.DefaultAdducts(polaritySetting(cmd))
}
