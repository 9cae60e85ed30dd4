// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package refstore loads molecular-formula, compound, and drug-product
// reference collections into queryable range stores. Stores are built
// once up front and then shared read-only by the annotators; every
// lookup is an inclusive range scan over an indexed exact mass.
package refstore

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mzgrid/peakannotate/internal/mass"
)

// Formula is one molecular-formula reference record. The heuristic
// flags (HC, NOPSC, Lewis, Senior) drive the optional rule filter.
type Formula struct {
	ExactMass             float64
	Composition           mass.Composition
	CHNOPS                bool
	HC                    bool
	NOPSC                 bool
	Lewis                 bool
	Senior                bool
	DoubleBondEquivalents float64
}

// MolecularFormula returns the canonical formula string of the record.
func (f Formula) MolecularFormula() string {
	return f.Composition.Formula()
}

// FormulaStore is an in-memory range store over a molecular-formula
// dump.
type FormulaStore struct {
	db *sql.DB
}

// NewFormulaStore loads a tab-separated molecular-formula dump into an
// in-memory store. Expected header columns: exact_mass, C, H, N, O, P,
// S, HC, NOPSC, lewis, senior, double_bond_equivalents.
func NewFormulaStore(path string) (*FormulaStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory store: %w", err)
	}
	// A second pool connection would see a different empty database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &FormulaStore{db: db}
	if err := s.load(f, path); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *FormulaStore) load(r io.Reader, path string) error {
	statements := []string{
		`CREATE TABLE mf (
			exact_mass REAL,
			C INTEGER DEFAULT 0,
			H INTEGER DEFAULT 0,
			N INTEGER DEFAULT 0,
			O INTEGER DEFAULT 0,
			P INTEGER DEFAULT 0,
			S INTEGER DEFAULT 0,
			CHNOPS INTEGER DEFAULT NULL,
			HC INTEGER DEFAULT NULL,
			NOPSC INTEGER DEFAULT NULL,
			lewis INTEGER DEFAULT NULL,
			senior INTEGER DEFAULT NULL,
			double_bond_equivalents REAL,
			PRIMARY KEY (C, H, N, O, P, S, exact_mass)
		)`,
		`CREATE INDEX idx_mf_exact_mass ON mf (exact_mass)`,
		`CREATE INDEX idx_mf_exact_mass_rules ON mf (exact_mass, HC, NOPSC, lewis, senior)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating formula schema: %w", err)
		}
	}

	cols, rows, err := readTSV(r, path, []string{
		"exact_mass", "C", "H", "N", "O", "P", "S",
		"HC", "NOPSC", "lewis", "senior", "double_bond_equivalents",
	})
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO mf (exact_mass, C, H, N, O, P, S, CHNOPS, HC, NOPSC, lewis, senior, double_bond_equivalents)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing formula insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		line := i + 2 // header is line 1
		exactMass, err := strconv.ParseFloat(row[cols["exact_mass"]], 64)
		if err != nil {
			return fmt.Errorf("%s line %d: parsing exact_mass: %w", path, line, err)
		}
		var counts [6]int
		for k, el := range []string{"C", "H", "N", "O", "P", "S"} {
			counts[k], err = strconv.Atoi(row[cols[el]])
			if err != nil {
				return fmt.Errorf("%s line %d: parsing %s: %w", path, line, el, err)
			}
		}
		var flags [4]bool
		for k, fl := range []string{"HC", "NOPSC", "lewis", "senior"} {
			flags[k], err = parseFlag(row[cols[fl]])
			if err != nil {
				return fmt.Errorf("%s line %d: parsing %s: %w", path, line, fl, err)
			}
		}
		dbe, err := strconv.ParseFloat(row[cols["double_bond_equivalents"]], 64)
		if err != nil {
			return fmt.Errorf("%s line %d: parsing double_bond_equivalents: %w", path, line, err)
		}

		_, err = stmt.Exec(exactMass,
			counts[0], counts[1], counts[2], counts[3], counts[4], counts[5],
			true, flags[0], flags[1], flags[2], flags[3], dbe)
		if err != nil {
			return fmt.Errorf("%s line %d: inserting formula: %w", path, line, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing formula load: %w", err)
	}
	return nil
}

// Lookup returns all formulae with lo <= exact_mass <= hi, both ends
// inclusive. When rules is set only records passing all four heuristic
// filters are returned.
func (s *FormulaStore) Lookup(ctx context.Context, lo, hi float64, rules bool) ([]Formula, error) {
	query := `SELECT exact_mass, C, H, N, O, P, S, CHNOPS, HC, NOPSC, lewis, senior, double_bond_equivalents
		 FROM mf WHERE exact_mass >= ? AND exact_mass <= ?`
	if rules {
		query += ` AND lewis = 1 AND senior = 1 AND HC = 1 AND NOPSC = 1`
	}

	rows, err := s.db.QueryContext(ctx, query, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("querying formulae: %w", err)
	}
	defer rows.Close()

	var out []Formula
	for rows.Next() {
		var f Formula
		err := rows.Scan(&f.ExactMass,
			&f.Composition.C, &f.Composition.H, &f.Composition.N,
			&f.Composition.O, &f.Composition.P, &f.Composition.S,
			&f.CHNOPS, &f.HC, &f.NOPSC, &f.Lewis, &f.Senior,
			&f.DoubleBondEquivalents)
		if err != nil {
			return nil, fmt.Errorf("scanning formula: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Close releases the in-memory database.
func (s *FormulaStore) Close() error {
	return s.db.Close()
}

// sourceName matches identifiers safe to splice into table names.
var sourceName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidSourceName reports whether name can be used as a reference source
// name (it becomes part of a results table name).
func ValidSourceName(name string) error {
	if !sourceName.MatchString(name) {
		return fmt.Errorf("invalid reference source name %q", name)
	}
	return nil
}

func parseFlag(v string) (bool, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return false, err
	}
	return n != 0, nil
}

// readTSV reads a tab-separated file with a header line and returns the
// column index of each required column plus all data rows.
func readTSV(r io.Reader, path string, required []string) (map[string]int, [][]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%s is empty", path)
	}

	cols := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		cols[name] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, nil, fmt.Errorf("%s is missing column %q", path, name)
		}
	}

	for i, row := range records[1:] {
		if len(row) < len(records[0]) {
			return nil, nil, fmt.Errorf("%s line %d: %d fields, want %d", path, i+2, len(row), len(records[0]))
		}
	}
	return cols, records[1:], nil
}
