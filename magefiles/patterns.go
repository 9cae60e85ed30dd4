//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

// Patterns annotates the demo peaklist with adduct pairs, isotopes, and
// multiply charged ions.
func Patterns() error {
	mg.Deps(Build)
	fmt.Println("[patterns] Annotating isotopic and adduct patterns in the demo peaklist.")
	if err := demoInputs(); err != nil {
		return err
	}
	return runBin("patterns",
		"--peaklist", demoPeaklist,
		"--db", demoResults,
		"--ppm", "5.0")
}
