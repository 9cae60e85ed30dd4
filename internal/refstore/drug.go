// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/mzgrid/peakannotate/internal/mass"
)

// DrugCandidate is one pre-predicted metabolite record: the product
// SMILES with its formula, prediction score, pathway, and parent SMILES.
type DrugCandidate struct {
	SMILES           string  `yaml:"smiles"`
	MolecularFormula string  `yaml:"molecular_formula"`
	SygmaScore       float64 `yaml:"sygma_score"`
	SygmaPathway     string  `yaml:"sygma_pathway"`
	Parent           string  `yaml:"parent"`
}

// DrugProduct is one queryable drug-product record. The product SMILES
// doubles as compound id and name.
type DrugProduct struct {
	CompoundID       string
	CompoundName     string
	SMILES           string
	SygmaScore       float64
	SygmaPathway     string
	Parent           string
	ExactMass        float64
	Composition      mass.Composition
	CHNOPS           bool
	MolecularFormula string
}

// LoadDrugCandidates reads a YAML list of prediction candidates.
func LoadDrugCandidates(path string) ([]DrugCandidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var candidates []DrugCandidate
	if err := yaml.Unmarshal(data, &candidates); err != nil {
		return nil, fmt.Errorf("parsing candidates %s: %w", path, err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("candidates %s is empty", path)
	}
	for i, c := range candidates {
		if c.SMILES == "" || c.MolecularFormula == "" {
			return nil, fmt.Errorf("candidates %s: entry %d needs smiles and molecular_formula", path, i+1)
		}
	}
	return candidates, nil
}

// DrugProductStore is an in-memory range store over prediction
// candidates. Masses are recomputed from the formula over the full
// element set and rounded to 6 decimals; duplicate product SMILES keep
// the first record.
type DrugProductStore struct {
	db *sql.DB
}

// NewDrugProductStore builds the store from candidate records.
func NewDrugProductStore(candidates []DrugCandidate) (*DrugProductStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory store: %w", err)
	}
	// A second pool connection would see a different empty database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	statements := []string{
		`CREATE TABLE predicted_drug_products (
			compound_id TEXT PRIMARY KEY NOT NULL,
			compound_name TEXT,
			smiles TEXT,
			exact_mass REAL,
			C INTEGER DEFAULT 0,
			H INTEGER DEFAULT 0,
			N INTEGER DEFAULT 0,
			O INTEGER DEFAULT 0,
			P INTEGER DEFAULT 0,
			S INTEGER DEFAULT 0,
			CHNOPS INTEGER DEFAULT NULL,
			molecular_formula TEXT DEFAULT NULL,
			sygma_score REAL,
			sygma_pathway TEXT,
			parent TEXT
		)`,
		`CREATE INDEX idx_drug_exact_mass ON predicted_drug_products (exact_mass)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating drug product schema: %w", err)
		}
	}

	tx, err := db.Begin()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO predicted_drug_products
		 (compound_id, compound_name, smiles, exact_mass, C, H, N, O, P, S, CHNOPS, molecular_formula, sygma_score, sygma_pathway, parent)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing drug product insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range candidates {
		elements, err := mass.ParseFormula(c.MolecularFormula)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("candidate %d (%s): %w", i+1, c.SMILES, err)
		}
		exactMass, err := mass.MonoisotopicMass(elements)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("candidate %d (%s): %w", i+1, c.SMILES, err)
		}
		comp, complete := mass.Restrict(elements)

		_, err = stmt.Exec(c.SMILES, c.SMILES, c.SMILES,
			mass.Round(exactMass, 6),
			comp.C, comp.H, comp.N, comp.O, comp.P, comp.S,
			complete, mass.FormulaString(elements),
			c.SygmaScore, c.SygmaPathway, c.Parent)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("inserting candidate %s: %w", c.SMILES, err)
		}
	}

	if err := tx.Commit(); err != nil {
		db.Close()
		return nil, fmt.Errorf("committing drug product load: %w", err)
	}
	return &DrugProductStore{db: db}, nil
}

// Lookup returns all drug products with lo <= exact_mass <= hi, both
// ends inclusive.
func (s *DrugProductStore) Lookup(ctx context.Context, lo, hi float64) ([]DrugProduct, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT compound_id, compound_name, smiles, sygma_score, sygma_pathway, parent,
		        exact_mass, C, H, N, O, P, S, CHNOPS, molecular_formula
		 FROM predicted_drug_products WHERE exact_mass >= ? AND exact_mass <= ?`, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("querying drug products: %w", err)
	}
	defer rows.Close()

	var out []DrugProduct
	for rows.Next() {
		var p DrugProduct
		err := rows.Scan(&p.CompoundID, &p.CompoundName, &p.SMILES,
			&p.SygmaScore, &p.SygmaPathway, &p.Parent,
			&p.ExactMass,
			&p.Composition.C, &p.Composition.H, &p.Composition.N,
			&p.Composition.O, &p.Composition.P, &p.Composition.S,
			&p.CHNOPS, &p.MolecularFormula)
		if err != nil {
			return nil, fmt.Errorf("scanning drug product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Close releases the in-memory database.
func (s *DrugProductStore) Close() error {
	return s.db.Close()
}
