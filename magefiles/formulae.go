//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

// Formulae annotates the demo peaklist against a bundled molecular-formula
// dump, so the demo never touches the remote service.
func Formulae() error {
	mg.Deps(Build)
	fmt.Println("[formulae] Matching demo peaks against the bundled formula dump.")
	if err := demoInputs(); err != nil {
		return err
	}
	return runBin("formulae",
		"--peaklist", demoPeaklist,
		"--db", demoResults,
		"--dump", demoFormulae,
		"--ppm", "5.0")
}
