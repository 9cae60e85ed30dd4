// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// LoadAdducts reads an adduct or charge-state library from a YAML file:
// a list of {label, mass, charge} entries. File order is kept. A missing
// charge defaults to one.
func LoadAdducts(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing library %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("library %s is empty", path)
	}
	l := New()
	for i, e := range entries {
		if e.Label == "" {
			return nil, fmt.Errorf("library %s: entry %d has no label", path, i+1)
		}
		l.Add(e.Label, e.Mass, e.Charge)
	}
	return l, nil
}

// LoadIsotopes reads an isotope pair library from a YAML file: a list
// of {label_a, label_b, mass_difference, abundance_a, abundance_b}
// entries. File order is kept.
func LoadIsotopes(path string) (Isotopes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pairs Isotopes
	if err := yaml.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("parsing isotope library %s: %w", path, err)
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("isotope library %s is empty", path)
	}
	for i, p := range pairs {
		if p.LabelA == "" || p.LabelB == "" {
			return nil, fmt.Errorf("isotope library %s: entry %d has no labels", path, i+1)
		}
		if p.MassDifference <= 0 {
			return nil, fmt.Errorf("isotope library %s: entry %d has non-positive mass difference", path, i+1)
		}
	}
	return pairs, nil
}
