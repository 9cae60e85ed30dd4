// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestAddReplaceRemove(t *testing.T) {
	l := New()
	l.Add("[M+H]+", 1.007276, 1)
	l.Add("[M+Na]+", 22.989221, 1)
	l.Add("[M+H]+", 1.007300, 0) // replace in place, charge normalised

	if l.Len() != 2 {
		t.Fatalf("Len = %d, want 2", l.Len())
	}
	e, ok := l.Get("[M+H]+")
	if !ok || e.Mass != 1.0073 || e.Charge != 1 {
		t.Errorf("Get after replace = %+v, %v", e, ok)
	}
	if got := l.Entries()[0].Label; got != "[M+H]+" {
		t.Errorf("replace moved entry to position of %q", got)
	}

	l.Remove("[M+H]+")
	if l.Len() != 1 {
		t.Fatalf("Len after remove = %d, want 1", l.Len())
	}
	if _, ok := l.Get("[M+H]+"); ok {
		t.Error("removed label still present")
	}
	if e, ok := l.Get("[M+Na]+"); !ok || e.Mass != 22.989221 {
		t.Errorf("surviving entry = %+v, %v", e, ok)
	}
}

func TestPairsOrderedBySeparation(t *testing.T) {
	l, err := DefaultAdducts(Positive)
	if err != nil {
		t.Fatal(err)
	}
	pairs := l.Pairs()
	if len(pairs) != 3 {
		t.Fatalf("len(pairs) = %d, want 3", len(pairs))
	}
	// Widest separation first: H/K (37.96), H/Na (21.98), Na/K (15.97).
	want := [][2]string{
		{"[M+H]+", "[M+K]+"},
		{"[M+H]+", "[M+Na]+"},
		{"[M+Na]+", "[M+K]+"},
	}
	for i, w := range want {
		if pairs[i].A.Label != w[0] || pairs[i].B.Label != w[1] {
			t.Errorf("pairs[%d] = (%s, %s), want (%s, %s)",
				i, pairs[i].A.Label, pairs[i].B.Label, w[0], w[1])
		}
	}
}

func TestPairsTieBreakOnLabels(t *testing.T) {
	l, err := DefaultMultipleCharges(Positive)
	if err != nil {
		t.Fatal(err)
	}
	// All entries share one mass, so every separation is zero: the
	// higher charge state takes the A side and the label tie-break
	// orders the list.
	pairs := l.Pairs()
	want := [][2]string{
		{"[M+2H]2+", "[M+H]+"},
		{"[M+3H]3+", "[M+2H]2+"},
		{"[M+3H]3+", "[M+H]+"},
	}
	for i, w := range want {
		if pairs[i].A.Label != w[0] || pairs[i].B.Label != w[1] {
			t.Errorf("pairs[%d] = (%s, %s), want (%s, %s)",
				i, pairs[i].A.Label, pairs[i].B.Label, w[0], w[1])
		}
	}
	for _, p := range pairs {
		if p.A.Charge <= p.B.Charge {
			t.Errorf("pair (%s, %s): lighter side must carry the higher charge",
				p.A.Label, p.B.Label)
		}
	}
}

func TestIsotopePairsOrdered(t *testing.T) {
	iso, err := DefaultIsotopes(Positive)
	if err != nil {
		t.Fatal(err)
	}
	pairs := iso.Pairs()
	want := []string{"(39K)", "(32S)", "(12C)"}
	for i, w := range want {
		if pairs[i].LabelA != w {
			t.Errorf("pairs[%d].LabelA = %s, want %s", i, pairs[i].LabelA, w)
		}
	}

	ab := iso.Abundances()
	if math.Abs(ab["(13C)"]-0.0107) > 1e-12 {
		t.Errorf("abundance (13C) = %v", ab["(13C)"])
	}
	if math.Abs(ab["(39K)"]-0.9326) > 1e-12 {
		t.Errorf("abundance (39K) = %v", ab["(39K)"])
	}
}

func TestDefaultPolarities(t *testing.T) {
	neg, err := DefaultAdducts(Negative)
	if err != nil {
		t.Fatal(err)
	}
	if e, ok := neg.Get("[M-H]-"); !ok || e.Mass != -1.007276 {
		t.Errorf("negative [M-H]- = %+v, %v", e, ok)
	}

	iso, err := DefaultIsotopes(Negative)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := iso.Abundances()["(37Cl)"]; !ok {
		t.Error("negative isotopes missing chlorine")
	}
	if _, ok := iso.Abundances()["(39K)"]; ok {
		t.Error("negative isotopes include potassium")
	}

	if _, err := DefaultAdducts("positive"); err == nil {
		t.Error("unknown ion mode accepted")
	}
}

func TestLoadAdducts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adducts.yaml")
	doc := `- label: "[M+NH4]+"
  mass: 18.033823
- label: "[M+2H]2+"
  mass: 1.007276
  charge: 2
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := LoadAdducts(path)
	if err != nil {
		t.Fatal(err)
	}
	if l.Len() != 2 {
		t.Fatalf("Len = %d, want 2", l.Len())
	}
	e, _ := l.Get("[M+NH4]+")
	if e.Charge != 1 {
		t.Errorf("missing charge defaulted to %d, want 1", e.Charge)
	}
	e, _ = l.Get("[M+2H]2+")
	if e.Charge != 2 {
		t.Errorf("charge = %d, want 2", e.Charge)
	}
	if l.Entries()[0].Label != "[M+NH4]+" {
		t.Error("file order not kept")
	}
}

func TestLoadIsotopes(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "isotopes.yaml")
	doc := `- label_a: "(12C)"
  label_b: "(13C)"
  mass_difference: 1.003355
  abundance_a: 0.9893
  abundance_b: 0.0107
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	iso, err := LoadIsotopes(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(iso) != 1 || iso[0].LabelB != "(13C)" {
		t.Fatalf("LoadIsotopes = %+v", iso)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("- label_a: \"(12C)\"\n  label_b: \"(13C)\"\n  mass_difference: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadIsotopes(bad); err == nil {
		t.Error("negative mass difference accepted")
	}

	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadIsotopes(empty); err == nil {
		t.Error("empty library accepted")
	}
}
