// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refstore

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/mzgrid/peakannotate/internal/mass"
	"github.com/mzgrid/peakannotate/pkg/types"
)

// --- test helpers ---

func writeFormulaTSV(t *testing.T) string {
	t.Helper()
	header := "exact_mass\tC\tH\tN\tO\tP\tS\tHC\tNOPSC\tlewis\tsenior\tdouble_bond_equivalents\n"
	rows := "" +
		"180.06339\t6\t12\t0\t6\t0\t0\t1\t1\t1\t1\t1.0\n" + // glucose
		"180.06339\t5\t12\t2\t2\t1\t0\t1\t1\t0\t1\t1.5\n" + // fails lewis
		"151.063329\t8\t9\t1\t2\t0\t0\t1\t1\t1\t1\t5.0\n" // paracetamol
	path := filepath.Join(t.TempDir(), "formulae.tsv")
	if err := os.WriteFile(path, []byte(header+rows), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeCompoundTSV(t *testing.T) string {
	t.Helper()
	header := "compound_id\tcompound_name\texact_mass\tmolecular_formula\n"
	rows := "" +
		"HMDB0000122\tD-Glucose\t180.06339\tC6H12O6\n" +
		"HMDB0001859\tAcetaminophen\t151.063329\tC8H9NO2\n" +
		"HMDB0029446\tChloroacetic acid\t93.982140\tC2H3ClO2\n"
	path := filepath.Join(t.TempDir(), "compounds.tsv")
	if err := os.WriteFile(path, []byte(header+rows), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// --- formula store ---

func TestFormulaStoreLookup(t *testing.T) {
	store, err := NewFormulaStore(writeFormulaTSV(t))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	all, err := store.Lookup(ctx, 180.0, 180.1, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("unfiltered lookup returned %d records, want 2", len(all))
	}

	ruled, err := store.Lookup(ctx, 180.0, 180.1, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(ruled) != 1 {
		t.Fatalf("rule-filtered lookup returned %d records, want 1", len(ruled))
	}
	f := ruled[0]
	if f.MolecularFormula() != "C6H12O6" {
		t.Errorf("formula = %q, want C6H12O6", f.MolecularFormula())
	}
	if !f.CHNOPS || !f.Lewis || !f.Senior || !f.HC || !f.NOPSC {
		t.Errorf("flags = %+v", f)
	}
	if f.DoubleBondEquivalents != 1.0 {
		t.Errorf("DBE = %v, want 1.0", f.DoubleBondEquivalents)
	}
}

func TestFormulaStoreInclusiveBounds(t *testing.T) {
	store, err := NewFormulaStore(writeFormulaTSV(t))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	// Both window edges land exactly on the stored mass.
	hits, err := store.Lookup(ctx, 180.06339, 180.06339, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Errorf("edge-exact lookup returned %d records, want 2", len(hits))
	}

	none, err := store.Lookup(ctx, 200.0, 300.0, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("empty window returned %d records", len(none))
	}
}

func TestFormulaStoreMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.tsv")
	if err := os.WriteFile(path, []byte("exact_mass\tC\n180.0\t6\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFormulaStore(path); err == nil {
		t.Error("store accepted dump with missing columns")
	}
}

// --- compound store ---

func TestCompoundStoreFromTSV(t *testing.T) {
	store, err := NewCompoundStoreFromTSV(writeCompoundTSV(t))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	hits, err := store.Lookup(ctx, 151.0, 151.1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("lookup returned %d records, want 1", len(hits))
	}
	c := hits[0]
	if c.CompoundID != "HMDB0001859" || c.CompoundName != "Acetaminophen" {
		t.Errorf("record = %+v", c)
	}
	if c.Composition != (mass.Composition{C: 8, H: 9, N: 1, O: 2}) {
		t.Errorf("composition = %+v", c.Composition)
	}
	if !c.CHNOPS {
		t.Error("CHNOPS flag not set for C8H9NO2")
	}

	// Chlorine is outside CHNOPS: trimmed from the composition, flag off.
	hits, err = store.Lookup(ctx, 93.0, 94.0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("lookup returned %d records, want 1", len(hits))
	}
	if hits[0].CHNOPS {
		t.Error("CHNOPS flag set for C2H3ClO2")
	}
	if hits[0].Composition != (mass.Composition{C: 2, H: 3, O: 2}) {
		t.Errorf("composition = %+v", hits[0].Composition)
	}
	if hits[0].MolecularFormula != "C2H3ClO2" {
		t.Errorf("formula string = %q, want original C2H3ClO2", hits[0].MolecularFormula)
	}
}

func TestOpenCompoundDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	stmts := []string{
		`CREATE TABLE hmdb (
			id TEXT PRIMARY KEY, name TEXT, exact_mass REAL,
			C INTEGER, H INTEGER, N INTEGER, O INTEGER, P INTEGER, S INTEGER,
			CHNOPS INTEGER, molecular_formula TEXT
		)`,
		`INSERT INTO hmdb VALUES ('HMDB0000122', 'D-Glucose', 180.06339, 6, 12, 0, 6, 0, 0, 1, 'C6H12O6')`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	store, err := OpenCompoundDatabase(path, "hmdb")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	hits, err := store.Lookup(context.Background(), 180.0, 181.0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("lookup returned %d records, want 1", len(hits))
	}
	if hits[0].CompoundID != "HMDB0000122" || hits[0].CompoundName != "D-Glucose" {
		t.Errorf("record = %+v", hits[0])
	}

	if _, err := OpenCompoundDatabase(path, "missing"); err == nil {
		t.Error("opened database without the requested table")
	}
	if _, err := OpenCompoundDatabase(path, "bad name;"); err == nil {
		t.Error("accepted invalid table name")
	}
}

func TestValidSourceName(t *testing.T) {
	for _, ok := range []string{"hmdb", "lipid_maps", "DB_2", "_x"} {
		if err := ValidSourceName(ok); err != nil {
			t.Errorf("ValidSourceName(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "2db", "a-b", "a b", "drop;table"} {
		if err := ValidSourceName(bad); err == nil {
			t.Errorf("ValidSourceName(%q) accepted", bad)
		}
	}
}

// --- drug product store ---

func TestLoadDrugCandidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "candidates.yaml")
	doc := `- smiles: "CC(=O)Nc1ccc(O)cc1"
  molecular_formula: "C8H9NO2"
  sygma_score: 1.0
  sygma_pathway: "parent"
  parent: "CC(=O)Nc1ccc(O)cc1"
- smiles: "CC(=O)Nc1ccc(OS(=O)(=O)O)cc1"
  molecular_formula: "C8H9NO5S"
  sygma_score: 0.2
  sygma_pathway: "sulfation"
  parent: "CC(=O)Nc1ccc(O)cc1"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	candidates, err := LoadDrugCandidates(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 2 {
		t.Fatalf("loaded %d candidates, want 2", len(candidates))
	}
	if candidates[1].SygmaPathway != "sulfation" {
		t.Errorf("pathway = %q", candidates[1].SygmaPathway)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("- smiles: \"CCO\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDrugCandidates(bad); err == nil {
		t.Error("candidate without formula accepted")
	}
}

func TestDrugProductStore(t *testing.T) {
	candidates := []DrugCandidate{
		{SMILES: "CC(=O)Nc1ccc(O)cc1", MolecularFormula: "C8H9NO2",
			SygmaScore: 1.0, SygmaPathway: "parent", Parent: "CC(=O)Nc1ccc(O)cc1"},
		{SMILES: "OC(=O)COc1ccc(Cl)cc1", MolecularFormula: "C8H7ClO3",
			SygmaScore: 0.5, SygmaPathway: "phase1", Parent: "x"},
	}
	store, err := NewDrugProductStore(candidates)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	hits, err := store.Lookup(ctx, 151.0, 151.1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("lookup returned %d records, want 1", len(hits))
	}
	p := hits[0]
	if p.CompoundID != p.SMILES || p.CompoundName != p.SMILES {
		t.Errorf("id/name = %q/%q, want the SMILES", p.CompoundID, p.CompoundName)
	}
	if math.Abs(p.ExactMass-151.063329) > 1e-5 {
		t.Errorf("exact mass = %v, want ~151.063329", p.ExactMass)
	}
	// Mass is the rounded recomputed formula mass.
	elements, err := mass.ParseFormula("C8H9NO2")
	if err != nil {
		t.Fatal(err)
	}
	m, err := mass.MonoisotopicMass(elements)
	if err != nil {
		t.Fatal(err)
	}
	if p.ExactMass != mass.Round(m, 6) {
		t.Errorf("exact mass = %v, want %v", p.ExactMass, mass.Round(m, 6))
	}
	if !p.CHNOPS {
		t.Error("CHNOPS flag not set for C8H9NO2")
	}
	if p.SygmaPathway != "parent" || p.SygmaScore != 1.0 {
		t.Errorf("record = %+v", p)
	}

	// Chlorinated product: flag off, composition trimmed, formula kept
	// over the full element set.
	elements, err = mass.ParseFormula("C8H7ClO3")
	if err != nil {
		t.Fatal(err)
	}
	m, err = mass.MonoisotopicMass(elements)
	if err != nil {
		t.Fatal(err)
	}
	hits, err = store.Lookup(ctx, m-0.01, m+0.01)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("lookup returned %d records, want 1", len(hits))
	}
	if hits[0].CHNOPS {
		t.Error("CHNOPS flag set for chlorinated product")
	}
	if hits[0].MolecularFormula != "C8H7ClO3" {
		t.Errorf("formula = %q, want C8H7ClO3", hits[0].MolecularFormula)
	}
	if hits[0].Composition != (mass.Composition{C: 8, H: 7, O: 3}) {
		t.Errorf("composition = %+v", hits[0].Composition)
	}
}

func TestDrugProductStoreDuplicateKeepsFirst(t *testing.T) {
	candidates := []DrugCandidate{
		{SMILES: "CCO", MolecularFormula: "C2H6O", SygmaScore: 0.9, SygmaPathway: "a"},
		{SMILES: "CCO", MolecularFormula: "C2H6O", SygmaScore: 0.1, SygmaPathway: "b"},
	}
	store, err := NewDrugProductStore(candidates)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	hits, err := store.Lookup(context.Background(), 0, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("lookup returned %d records, want 1", len(hits))
	}
	if hits[0].SygmaScore != 0.9 || hits[0].SygmaPathway != "a" {
		t.Errorf("duplicate did not keep first record: %+v", hits[0])
	}
}

// --- remote source ---

func TestRemoteFormulaSource(t *testing.T) {
	var gotPath, gotLower, gotUpper, gotRules string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/formula/mass":
			if r.URL.Query().Get("mass") != "180.06339" {
				t.Errorf("ping mass = %q", r.URL.Query().Get("mass"))
			}
			fmt.Fprint(w, `{"records": []}`)
		case "/api/formula/mass_range":
			gotPath = r.URL.Path
			gotLower = r.URL.Query().Get("lower")
			gotUpper = r.URL.Query().Get("upper")
			gotRules = r.URL.Query().Get("rules")
			fmt.Fprint(w, `{"records": [
				{"exact_mass": 180.06339,
				 "atoms": {"C": 6, "H": 12, "O": 6},
				 "rules": {"HC": 1, "NOPSC": 1, "lewis": 1, "senior": 1},
				 "double_bond_equivalents": 1.0}
			]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	src := NewRemoteFormulaSource(types.RemoteConfig{BaseURL: ts.URL, RequestsPerSecond: 1000})
	ctx := context.Background()

	if err := src.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	hits, err := src.Lookup(ctx, 180.0, 180.1, true)
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != "/api/formula/mass_range" {
		t.Errorf("path = %q", gotPath)
	}
	if gotLower != "180" || gotUpper != "180.1" || gotRules != "1" {
		t.Errorf("params = lower %q upper %q rules %q", gotLower, gotUpper, gotRules)
	}
	if len(hits) != 1 {
		t.Fatalf("lookup returned %d records, want 1", len(hits))
	}
	f := hits[0]
	if f.Composition != (mass.Composition{C: 6, H: 12, O: 6}) {
		t.Errorf("composition = %+v", f.Composition)
	}
	if !f.CHNOPS {
		t.Error("remote record not flagged CHNOPS")
	}
	if !f.Lewis || !f.Senior || !f.HC || !f.NOPSC {
		t.Errorf("rule flags = %+v", f)
	}
	if f.MolecularFormula() != "C6H12O6" {
		t.Errorf("formula = %q", f.MolecularFormula())
	}
}

func TestRemoteFormulaSourceErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	src := NewRemoteFormulaSource(types.RemoteConfig{BaseURL: ts.URL, RequestsPerSecond: 1000})
	if err := src.Ping(context.Background()); err == nil {
		t.Error("Ping succeeded against failing service")
	}
	if _, err := src.Lookup(context.Background(), 100, 101, false); err == nil {
		t.Error("Lookup succeeded against failing service")
	}
}
