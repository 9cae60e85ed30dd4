// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"

	"github.com/mzgrid/peakannotate/internal/mass"
)

// Compound is one compound reference record.
type Compound struct {
	CompoundID       string
	CompoundName     string
	ExactMass        float64
	Composition      mass.Composition
	CHNOPS           bool
	MolecularFormula string
}

// CompoundStore is a range store over a compound collection, either
// loaded from a tab-separated dump or attached to an existing compound
// database file.
type CompoundStore struct {
	db    *sql.DB
	table string
	// attached databases use the collection's own column names
	attached bool
}

// NewCompoundStoreFromTSV loads a tab-separated compound dump into an
// in-memory store. Expected header columns: compound_id, compound_name,
// exact_mass, molecular_formula. Compositions are parsed from the
// formula strings and trimmed to CHNOPS.
func NewCompoundStoreFromTSV(path string) (*CompoundStore, error) {
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

	s := &CompoundStore{db: db, table: "compounds"}

	statements := []string{
		`CREATE TABLE compounds (
			compound_id TEXT PRIMARY KEY NOT NULL,
			compound_name TEXT,
			exact_mass REAL,
			C INTEGER DEFAULT 0,
			H INTEGER DEFAULT 0,
			N INTEGER DEFAULT 0,
			O INTEGER DEFAULT 0,
			P INTEGER DEFAULT 0,
			S INTEGER DEFAULT 0,
			CHNOPS INTEGER DEFAULT NULL,
			molecular_formula TEXT DEFAULT NULL
		)`,
		`CREATE INDEX idx_compounds_exact_mass ON compounds (exact_mass)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating compound schema: %w", err)
		}
	}

	cols, rows, err := readTSV(f, path, []string{
		"compound_id", "compound_name", "exact_mass", "molecular_formula",
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	tx, err := db.Begin()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO compounds (compound_id, compound_name, exact_mass, C, H, N, O, P, S, CHNOPS, molecular_formula)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing compound insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		line := i + 2
		exactMass, err := strconv.ParseFloat(row[cols["exact_mass"]], 64)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("%s line %d: parsing exact_mass: %w", path, line, err)
		}
		formula := row[cols["molecular_formula"]]
		elements, err := mass.ParseFormula(formula)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		comp, complete := mass.Restrict(elements)

		_, err = stmt.Exec(row[cols["compound_id"]], row[cols["compound_name"]], exactMass,
			comp.C, comp.H, comp.N, comp.O, comp.P, comp.S, complete, formula)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("%s line %d: inserting compound: %w", path, line, err)
		}
	}

	if err := tx.Commit(); err != nil {
		db.Close()
		return nil, fmt.Errorf("committing compound load: %w", err)
	}
	return s, nil
}

// OpenCompoundDatabase attaches to an existing SQLite compound database
// holding a table named after the collection, with columns id, name,
// exact_mass, C..S, CHNOPS, and molecular_formula.
func OpenCompoundDatabase(path, name string) (*CompoundStore, error) {
	if err := ValidSourceName(name); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening compound database %s: %w", path, err)
	}

	var found string
	err = db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
	).Scan(&found)
	if err == sql.ErrNoRows {
		db.Close()
		return nil, fmt.Errorf("compound database %s has no table %q", path, name)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("inspecting compound database %s: %w", path, err)
	}

	return &CompoundStore{db: db, table: name, attached: true}, nil
}

// Lookup returns all compounds with lo <= exact_mass <= hi, both ends
// inclusive.
func (s *CompoundStore) Lookup(ctx context.Context, lo, hi float64) ([]Compound, error) {
	// Table and column identifiers cannot be bound as parameters; the
	// table name is validated at construction.
	query := fmt.Sprintf(
		`SELECT compound_id, compound_name, exact_mass, C, H, N, O, P, S, CHNOPS, molecular_formula
		 FROM %s WHERE exact_mass >= ? AND exact_mass <= ?`, s.table)
	if s.attached {
		query = fmt.Sprintf(
			`SELECT id, name, exact_mass, C, H, N, O, P, S, CHNOPS, molecular_formula
			 FROM %s WHERE exact_mass >= ? AND exact_mass <= ?`, s.table)
	}

	rows, err := s.db.QueryContext(ctx, query, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("querying compounds: %w", err)
	}
	defer rows.Close()

	var out []Compound
	for rows.Next() {
		var c Compound
		var name, formula sql.NullString
		var chnops sql.NullBool
		err := rows.Scan(&c.CompoundID, &name, &c.ExactMass,
			&c.Composition.C, &c.Composition.H, &c.Composition.N,
			&c.Composition.O, &c.Composition.P, &c.Composition.S,
			&chnops, &formula)
		if err != nil {
			return nil, fmt.Errorf("scanning compound: %w", err)
		}
		c.CompoundName = name.String
		c.MolecularFormula = formula.String
		c.CHNOPS = chnops.Bool
		out = append(out, c)
	}
	return out, rows.Err()
}

// Close releases the underlying database.
func (s *CompoundStore) Close() error {
	return s.db.Close()
}
