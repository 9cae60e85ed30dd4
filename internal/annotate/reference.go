// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package annotate

import (
	"context"
	"fmt"
	"io"

	"github.com/mzgrid/peakannotate/internal/library"
	"github.com/mzgrid/peakannotate/internal/mass"
	"github.com/mzgrid/peakannotate/internal/refstore"
	"github.com/mzgrid/peakannotate/pkg/types"
)

// FormulaSource yields formula records whose neutral monoisotopic mass
// falls inside an inclusive window. Both the local reference store and
// the remote service satisfy it.
type FormulaSource interface {
	Lookup(ctx context.Context, lo, hi float64, rules bool) ([]refstore.Formula, error)
}

// CompoundSource yields compound records inside an inclusive neutral
// mass window.
type CompoundSource interface {
	Lookup(ctx context.Context, lo, hi float64) ([]refstore.Compound, error)
}

// DrugProductSource yields predicted drug product records inside an
// inclusive neutral mass window.
type DrugProductSource interface {
	Lookup(ctx context.Context, lo, hi float64) ([]refstore.DrugProduct, error)
}

// Singly charged ions below this m/z smell like fragments rather than
// intact molecules, so reference matching skips them.
const minNeutralMass = 0.5

type formulaMatch struct {
	id        string
	mz        float64
	exactMass float64
	ppmError  float64
	adduct    string
	formula   refstore.Formula
}

// AnnotateMolecularFormulae matches each peak against candidate
// molecular formulae, adjusting the search window for every adduct in
// the library, and records the hits in molecular_formulae. Sources
// backed by a remote service are pinged before any results are
// replaced. Peaks above maxMZ are skipped; zero means no limit.
func (d *DB) AnnotateMolecularFormulae(ctx context.Context, peaks []types.Peak, ppm float64, adducts *library.Library, source FormulaSource, rules bool, maxMZ float64, w io.Writer) error {
	if p, ok := source.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			return err
		}
	}

	var matches []formulaMatch
	for _, peak := range peaks {
		if maxMZ > 0 && peak.MZ > maxMZ {
			continue
		}
		lo, hi := mass.Tolerance(peak.MZ, ppm)
		for _, adduct := range adducts.Entries() {
			if peak.MZ-adduct.Mass <= minNeutralMass {
				continue
			}
			records, err := source.Lookup(ctx, lo-adduct.Mass, hi-adduct.Mass, rules)
			if err != nil {
				return fmt.Errorf("querying formulae for peak %s: %w", peak.ID, err)
			}
			for _, rec := range records {
				exact := rec.ExactMass + adduct.Mass
				matches = append(matches, formulaMatch{
					id:        peak.ID,
					mz:        peak.MZ,
					exactMass: exact,
					ppmError:  mass.PPMError(peak.MZ, exact),
					adduct:    adduct.Label,
					formula:   rec,
				})
			}
		}
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	err = recreate(ctx, tx, "molecular_formulae",
		`CREATE TABLE molecular_formulae (
			id TEXT DEFAULT NULL,
			mz REAL DEFAULT NULL,
			exact_mass REAL DEFAULT NULL,
			ppm_error REAL DEFAULT NULL,
			adduct TEXT DEFAULT NULL,
			C INTEGER DEFAULT 0,
			H INTEGER DEFAULT 0,
			N INTEGER DEFAULT 0,
			O INTEGER DEFAULT 0,
			P INTEGER DEFAULT 0,
			S INTEGER DEFAULT 0,
			CHNOPS INTEGER DEFAULT NULL,
			molecular_formula TEXT DEFAULT NULL,
			HC INTEGER DEFAULT NULL,
			NOPSC INTEGER DEFAULT NULL,
			lewis INTEGER DEFAULT NULL,
			senior INTEGER DEFAULT NULL,
			double_bond_equivalents REAL DEFAULT NULL,
			PRIMARY KEY (id, mz, molecular_formula, adduct)
		)`, false)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO molecular_formulae
		 (id, mz, exact_mass, ppm_error, adduct, C, H, N, O, P, S, CHNOPS,
		  molecular_formula, HC, NOPSC, lewis, senior, double_bond_equivalents)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range matches {
		c := m.formula.Composition
		_, err := stmt.ExecContext(ctx, m.id, m.mz, m.exactMass, m.ppmError, m.adduct,
			c.C, c.H, c.N, c.O, c.P, c.S, m.formula.CHNOPS,
			m.formula.MolecularFormula(), m.formula.HC, m.formula.NOPSC,
			m.formula.Lewis, m.formula.Senior, m.formula.DoubleBondEquivalents)
		if err != nil {
			return fmt.Errorf("inserting formula match for %s: %w", m.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing molecular formulae: %w", err)
	}
	fmt.Fprintf(w, "molecular_formulae: %d records\n", len(matches))
	return nil
}

type compoundMatch struct {
	id        string
	mz        float64
	exactMass float64
	ppmError  float64
	adduct    string
	compound  refstore.Compound
}

// AnnotateCompounds matches each peak against a compound collection and
// records the hits in compounds_<name>. The collection name becomes part
// of the results table name and is validated accordingly.
func (d *DB) AnnotateCompounds(ctx context.Context, peaks []types.Peak, ppm float64, adducts *library.Library, source CompoundSource, name string, w io.Writer) error {
	if err := refstore.ValidSourceName(name); err != nil {
		return err
	}
	table := "compounds_" + name

	var matches []compoundMatch
	for _, peak := range peaks {
		lo, hi := mass.Tolerance(peak.MZ, ppm)
		for _, adduct := range adducts.Entries() {
			if peak.MZ-adduct.Mass <= minNeutralMass {
				continue
			}
			records, err := source.Lookup(ctx, lo-adduct.Mass, hi-adduct.Mass)
			if err != nil {
				return fmt.Errorf("querying %s for peak %s: %w", name, peak.ID, err)
			}
			for _, rec := range records {
				exact := rec.ExactMass + adduct.Mass
				matches = append(matches, compoundMatch{
					id:        peak.ID,
					mz:        peak.MZ,
					exactMass: exact,
					ppmError:  mass.PPMError(peak.MZ, exact),
					adduct:    adduct.Label,
					compound:  rec,
				})
			}
		}
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// The table name cannot be bound as a parameter; it is validated above.
	err = recreate(ctx, tx, table, fmt.Sprintf(
		`CREATE TABLE %s (
			id TEXT DEFAULT NULL,
			mz REAL DEFAULT NULL,
			exact_mass REAL DEFAULT NULL,
			ppm_error REAL DEFAULT NULL,
			adduct TEXT DEFAULT NULL,
			C INTEGER DEFAULT 0,
			H INTEGER DEFAULT 0,
			N INTEGER DEFAULT 0,
			O INTEGER DEFAULT 0,
			P INTEGER DEFAULT 0,
			S INTEGER DEFAULT 0,
			CHNOPS INTEGER DEFAULT NULL,
			molecular_formula TEXT DEFAULT NULL,
			compound_id TEXT DEFAULT NULL,
			compound_name TEXT DEFAULT NULL,
			PRIMARY KEY (id, compound_id, adduct)
		)`, table), false)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT OR IGNORE INTO %s
		 (id, mz, exact_mass, ppm_error, adduct, C, H, N, O, P, S, CHNOPS,
		  molecular_formula, compound_id, compound_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, table))
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range matches {
		c := m.compound.Composition
		_, err := stmt.ExecContext(ctx, m.id, m.mz, m.exactMass, m.ppmError, m.adduct,
			c.C, c.H, c.N, c.O, c.P, c.S, m.compound.CHNOPS,
			m.compound.MolecularFormula, m.compound.CompoundID, m.compound.CompoundName)
		if err != nil {
			return fmt.Errorf("inserting compound match for %s: %w", m.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", table, err)
	}
	fmt.Fprintf(w, "%s: %d records\n", table, len(matches))
	return nil
}

type drugMatch struct {
	id        string
	mz        float64
	exactMass float64
	ppmError  float64
	adduct    string
	product   refstore.DrugProduct
}

// AnnotateDrugProducts matches each peak against predicted drug
// metabolites and records the hits in drug_products.
func (d *DB) AnnotateDrugProducts(ctx context.Context, peaks []types.Peak, ppm float64, adducts *library.Library, source DrugProductSource, w io.Writer) error {
	var matches []drugMatch
	for _, peak := range peaks {
		lo, hi := mass.Tolerance(peak.MZ, ppm)
		for _, adduct := range adducts.Entries() {
			if peak.MZ-adduct.Mass <= minNeutralMass {
				continue
			}
			records, err := source.Lookup(ctx, lo-adduct.Mass, hi-adduct.Mass)
			if err != nil {
				return fmt.Errorf("querying drug products for peak %s: %w", peak.ID, err)
			}
			for _, rec := range records {
				exact := rec.ExactMass + adduct.Mass
				matches = append(matches, drugMatch{
					id:        peak.ID,
					mz:        peak.MZ,
					exactMass: exact,
					ppmError:  mass.PPMError(peak.MZ, exact),
					adduct:    adduct.Label,
					product:   rec,
				})
			}
		}
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	err = recreate(ctx, tx, "drug_products",
		`CREATE TABLE drug_products (
			id TEXT DEFAULT NULL,
			mz REAL DEFAULT NULL,
			exact_mass REAL DEFAULT NULL,
			ppm_error REAL DEFAULT NULL,
			adduct TEXT DEFAULT NULL,
			C INTEGER DEFAULT 0,
			H INTEGER DEFAULT 0,
			N INTEGER DEFAULT 0,
			O INTEGER DEFAULT 0,
			P INTEGER DEFAULT 0,
			S INTEGER DEFAULT 0,
			CHNOPS INTEGER DEFAULT NULL,
			molecular_formula TEXT DEFAULT NULL,
			compound_id TEXT DEFAULT NULL,
			compound_name TEXT DEFAULT NULL,
			smiles TEXT,
			sygma_score REAL DEFAULT 0.0,
			sygma_pathway TEXT,
			parent TEXT,
			PRIMARY KEY (id, adduct, compound_id)
		)`, false)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO drug_products
		 (id, mz, exact_mass, ppm_error, adduct, C, H, N, O, P, S, CHNOPS,
		  molecular_formula, compound_id, compound_name, smiles, sygma_score, sygma_pathway, parent)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range matches {
		c := m.product.Composition
		_, err := stmt.ExecContext(ctx, m.id, m.mz, m.exactMass, m.ppmError, m.adduct,
			c.C, c.H, c.N, c.O, c.P, c.S, m.product.CHNOPS,
			m.product.MolecularFormula, m.product.CompoundID, m.product.CompoundName,
			m.product.SMILES, m.product.SygmaScore, m.product.SygmaPathway, m.product.Parent)
		if err != nil {
			return fmt.Errorf("inserting drug product match for %s: %w", m.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing drug products: %w", err)
	}
	fmt.Fprintf(w, "drug_products: %d records\n", len(matches))
	return nil
}
