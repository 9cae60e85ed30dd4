//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

// Compounds annotates the demo peaklist against a small HMDB-style
// compound dump.
func Compounds() error {
	mg.Deps(Build)
	fmt.Println("[compounds] Matching demo peaks against the bundled compound dump.")
	if err := demoInputs(); err != nil {
		return err
	}
	return runBin("compounds",
		"--peaklist", demoPeaklist,
		"--db", demoResults,
		"--dump", demoCompounds,
		"--source", "hmdb",
		"--ppm", "5.0")
}
