// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package library defines the ordered adduct, charge-state, and isotope
// label libraries the annotators match peak pairs against.
package library

import (
	"fmt"
	"sort"
)

// Ion modes accepted by the default libraries.
const (
	Positive = "pos"
	Negative = "neg"
)

// Entry is a single labelled ion: an adduct or charge state with the
// mass shift it applies to the neutral molecule.
type Entry struct {
	Label  string  `yaml:"label"`
	Mass   float64 `yaml:"mass"`
	Charge int     `yaml:"charge"`
}

// Library is an insertion-ordered collection of entries. Entries
// preserves that order; Pairs imposes its own.
type Library struct {
	entries []Entry
	index   map[string]int
}

// New returns an empty library.
func New() *Library {
	return &Library{index: make(map[string]int)}
}

// Add appends an entry, or replaces the entry with the same label in
// place. A charge below one is normalised to one.
func (l *Library) Add(label string, mass float64, charge int) {
	if charge < 1 {
		charge = 1
	}
	e := Entry{Label: label, Mass: mass, Charge: charge}
	if i, ok := l.index[label]; ok {
		l.entries[i] = e
		return
	}
	l.index[label] = len(l.entries)
	l.entries = append(l.entries, e)
}

// Remove deletes the entry with the given label, keeping the order of
// the remaining entries.
func (l *Library) Remove(label string) {
	i, ok := l.index[label]
	if !ok {
		return
	}
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
	delete(l.index, label)
	for j := i; j < len(l.entries); j++ {
		l.index[l.entries[j].Label] = j
	}
}

// Get returns the entry with the given label.
func (l *Library) Get(label string) (Entry, bool) {
	i, ok := l.index[label]
	if !ok {
		return Entry{}, false
	}
	return l.entries[i], true
}

// Entries returns the entries in insertion order.
func (l *Library) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Library) Len() int {
	return len(l.entries)
}

// Pair is an oriented pair of library entries. The matchers apply side
// A to the lighter peak of an m/z-ordered peak pair, so orientation
// decides whether a relationship is detectable at all.
type Pair struct {
	A Entry
	B Entry
}

// orient puts a pair in canonical orientation: A takes the smaller
// mass, or between equal masses the larger charge, since a higher
// charge state puts the same ion lower on the m/z axis. Full ties
// order by label.
func orient(a, b Entry) Pair {
	var swap bool
	switch {
	case a.Mass != b.Mass:
		swap = a.Mass > b.Mass
	case a.Charge != b.Charge:
		swap = a.Charge < b.Charge
	default:
		swap = a.Label > b.Label
	}
	if swap {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// Separation is the absolute mass difference between the two entries.
func (p Pair) Separation() float64 {
	d := p.A.Mass - p.B.Mass
	if d < 0 {
		d = -d
	}
	return d
}

// Pairs returns every unordered pair of entries in canonical
// orientation, sorted by descending separation; ties order by
// (A.Label, B.Label) ascending.
func (l *Library) Pairs() []Pair {
	var pairs []Pair
	for i := 0; i < len(l.entries); i++ {
		for j := i + 1; j < len(l.entries); j++ {
			pairs = append(pairs, orient(l.entries[i], l.entries[j]))
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		si, sj := pairs[i].Separation(), pairs[j].Separation()
		if si != sj {
			return si > sj
		}
		if pairs[i].A.Label != pairs[j].A.Label {
			return pairs[i].A.Label < pairs[j].A.Label
		}
		return pairs[i].B.Label < pairs[j].B.Label
	})
	return pairs
}

// IsotopePair relates a light isotope label to its heavier partner: the
// mass difference between them and their natural abundances.
type IsotopePair struct {
	LabelA         string  `yaml:"label_a"`
	LabelB         string  `yaml:"label_b"`
	MassDifference float64 `yaml:"mass_difference"`
	AbundanceA     float64 `yaml:"abundance_a"`
	AbundanceB     float64 `yaml:"abundance_b"`
}

// Isotopes is an ordered isotope pair library.
type Isotopes []IsotopePair

// Pairs returns a copy sorted by descending mass difference; ties order
// by (LabelA, LabelB) ascending.
func (iso Isotopes) Pairs() []IsotopePair {
	out := make([]IsotopePair, len(iso))
	copy(out, iso)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MassDifference != out[j].MassDifference {
			return out[i].MassDifference > out[j].MassDifference
		}
		if out[i].LabelA != out[j].LabelA {
			return out[i].LabelA < out[j].LabelA
		}
		return out[i].LabelB < out[j].LabelB
	})
	return out
}

// Abundances maps every isotope label to its natural abundance.
func (iso Isotopes) Abundances() map[string]float64 {
	out := make(map[string]float64, 2*len(iso))
	for _, p := range iso {
		out[p.LabelA] = p.AbundanceA
		out[p.LabelB] = p.AbundanceB
	}
	return out
}

func validPolarity(polarity string) error {
	switch polarity {
	case Positive, Negative:
		return nil
	}
	return fmt.Errorf("unknown ion mode %q (want %q or %q)", polarity, Positive, Negative)
}
