//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

// DrugProducts annotates the demo peaklist against predicted paracetamol
// metabolites.
func DrugProducts() error {
	mg.Deps(Build)
	fmt.Println("[drug-products] Matching demo peaks against predicted metabolites.")
	if err := demoInputs(); err != nil {
		return err
	}
	return runBin("drug-products",
		"--peaklist", demoPeaklist,
		"--db", demoResults,
		"--candidates", demoCandidates,
		"--ppm", "5.0")
}
