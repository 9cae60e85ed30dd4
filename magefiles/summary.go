//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
)

// Summary builds the summary report for the demo annotation run and
// prints it.
func Summary() error {
	mg.Deps(Build)
	fmt.Println("[summary] Building the summary report for the demo run.")
	if err := demoInputs(); err != nil {
		return err
	}
	err := runBin("summary",
		"--peaklist", demoPeaklist,
		"--db", demoResults,
		"--output", demoSummary,
		"--convert-rt", "min")
	if err != nil {
		return err
	}
	report, err := os.ReadFile(demoSummary)
	if err != nil {
		return fmt.Errorf("reading %s: %w", demoSummary, err)
	}
	fmt.Print(string(report))
	return nil
}
