// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package annotate

import (
	"context"
	"fmt"
	"io"

	"github.com/mzgrid/peakannotate/internal/library"
	"github.com/mzgrid/peakannotate/pkg/types"
)

// AnnotateAdductPairs matches peak pairs that differ by an adduct mass
// shift and records them in adduct_pairs. With add set, records are
// appended to an existing table instead of replacing it.
func (d *DB) AnnotateAdductPairs(ctx context.Context, src types.PeakSource, ppm float64, lib *library.Library, add bool, w io.Writer) error {
	if err := src.Validate(); err != nil {
		return err
	}
	assignments := scanMassChargePairs(src, ppm, lib.Pairs())

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	err = recreate(ctx, tx, "adduct_pairs",
		`CREATE TABLE IF NOT EXISTS adduct_pairs (
			peak_id_a TEXT DEFAULT NULL,
			peak_id_b TEXT DEFAULT NULL,
			label_a TEXT DEFAULT NULL,
			label_b TEXT DEFAULT NULL,
			ppm_error REAL DEFAULT NULL,
			PRIMARY KEY (peak_id_a, peak_id_b, label_a, label_b)
		)`, add)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO adduct_pairs (peak_id_a, peak_id_b, label_a, label_b, ppm_error)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range assignments {
		if _, err := stmt.ExecContext(ctx, a.IDA, a.IDB, a.LabelA, a.LabelB, a.PPMError); err != nil {
			return fmt.Errorf("inserting adduct pair %s/%s: %w", a.IDA, a.IDB, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing adduct pairs: %w", err)
	}
	fmt.Fprintf(w, "adduct_pairs: %d records\n", len(assignments))
	return nil
}

// AnnotateMultipleChargedIons matches peak pairs that are charge states
// of one molecule and records them in multiple_charged_ions. With add
// set, records are appended to an existing table.
func (d *DB) AnnotateMultipleChargedIons(ctx context.Context, src types.PeakSource, ppm float64, lib *library.Library, add bool, w io.Writer) error {
	if err := src.Validate(); err != nil {
		return err
	}
	assignments := scanMassChargePairs(src, ppm, lib.Pairs())

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	err = recreate(ctx, tx, "multiple_charged_ions",
		`CREATE TABLE IF NOT EXISTS multiple_charged_ions (
			peak_id_a TEXT DEFAULT NULL,
			peak_id_b TEXT DEFAULT NULL,
			label_a TEXT DEFAULT NULL,
			label_b TEXT DEFAULT NULL,
			charge_a INTEGER DEFAULT NULL,
			charge_b INTEGER DEFAULT NULL,
			ppm_error REAL DEFAULT NULL,
			PRIMARY KEY (peak_id_a, peak_id_b, label_a, label_b, charge_a, charge_b)
		)`, add)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO multiple_charged_ions (peak_id_a, peak_id_b, label_a, label_b, charge_a, charge_b, ppm_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range assignments {
		if _, err := stmt.ExecContext(ctx, a.IDA, a.IDB, a.LabelA, a.LabelB, a.ChargeA, a.ChargeB, a.PPMError); err != nil {
			return fmt.Errorf("inserting charged ion pair %s/%s: %w", a.IDA, a.IDB, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing multiple charged ions: %w", err)
	}
	fmt.Fprintf(w, "multiple_charged_ions: %d records\n", len(assignments))
	return nil
}

// AnnotateIsotopes matches peak pairs separated by an isotope mass
// difference and records them in isotopes, along with the estimated
// atom count derived from the intensity ratio. The atom count is NULL
// when either scaled intensity is zero.
func (d *DB) AnnotateIsotopes(ctx context.Context, src types.PeakSource, ppm float64, iso library.Isotopes, w io.Writer) error {
	if err := src.Validate(); err != nil {
		return err
	}
	assignments := scanDifferencePairs(src, ppm, iso.Pairs())
	abundances := iso.Abundances()

	intensities := make(map[string]float64)
	for _, p := range src.AllPeaks() {
		intensities[p.ID] = p.Intensity
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	err = recreate(ctx, tx, "isotopes",
		`CREATE TABLE isotopes (
			peak_id_a TEXT DEFAULT NULL,
			peak_id_b TEXT DEFAULT NULL,
			label_a TEXT DEFAULT NULL,
			label_b TEXT DEFAULT NULL,
			atoms REAL DEFAULT NULL,
			ppm_error REAL DEFAULT NULL,
			PRIMARY KEY (peak_id_a, peak_id_b, label_a, label_b)
		)`, false)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO isotopes (peak_id_a, peak_id_b, label_a, label_b, atoms, ppm_error)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range assignments {
		// The scaled intensities estimate how many atoms of the light
		// isotope the molecule carries.
		y := abundances[a.LabelA] * intensities[a.IDB]
		x := abundances[a.LabelB] * intensities[a.IDA]

		var atoms *float64
		switch {
		case x == 0 || y == 0:
			// leave NULL
		case abundances[a.LabelA] < abundances[a.LabelB]:
			v := x / y
			atoms = &v
		default:
			v := y / x
			atoms = &v
		}

		if _, err := stmt.ExecContext(ctx, a.IDA, a.IDB, a.LabelA, a.LabelB, atoms, a.PPMError); err != nil {
			return fmt.Errorf("inserting isotope pair %s/%s: %w", a.IDA, a.IDB, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing isotopes: %w", err)
	}
	fmt.Fprintf(w, "isotopes: %d records\n", len(assignments))
	return nil
}

// AnnotateOligomers matches peak pairs where the heavier peak is an
// n-mer of the lighter one and records them in oligomers. Flat sources
// must be m/z-ascending (the peaklist loader guarantees this). maximum
// bounds the oligomer size: 2 finds dimers. A pair claimed by more than
// one adduct keeps the last match scanned.
func (d *DB) AnnotateOligomers(ctx context.Context, src types.PeakSource, ppm float64, adducts *library.Library, maximum int, w io.Writer) error {
	if err := src.Validate(); err != nil {
		return err
	}
	if maximum < 2 {
		maximum = 2
	}
	assignments := scanOligomers(src, ppm, adducts, maximum)

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	err = recreate(ctx, tx, "oligomers",
		`CREATE TABLE oligomers (
			peak_id_a TEXT DEFAULT NULL,
			peak_id_b TEXT DEFAULT NULL,
			mz_a REAL DEFAULT NULL,
			mz_b REAL DEFAULT NULL,
			label_a TEXT DEFAULT NULL,
			label_b TEXT DEFAULT NULL,
			mz_ratio REAL DEFAULT NULL,
			ppm_error REAL DEFAULT NULL,
			PRIMARY KEY (peak_id_a, peak_id_b)
		)`, false)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO oligomers (peak_id_a, peak_id_b, mz_a, mz_b, label_a, label_b, mz_ratio, ppm_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range assignments {
		if _, err := stmt.ExecContext(ctx, a.IDA, a.IDB, a.MZA, a.MZB, a.LabelA, a.LabelB, a.Ratio, a.PPMError); err != nil {
			return fmt.Errorf("inserting oligomer %s/%s: %w", a.IDA, a.IDB, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing oligomers: %w", err)
	}
	fmt.Fprintf(w, "oligomers: %d records\n", len(assignments))
	return nil
}

// AnnotateArtifacts records peak pairs closer than diff in m/z in
// artifacts; such pairs are usually one feature split by the peak
// picker.
func (d *DB) AnnotateArtifacts(ctx context.Context, src types.PeakSource, diff float64, w io.Writer) error {
	if err := src.Validate(); err != nil {
		return err
	}
	assignments := scanArtifacts(src.AllPeaks(), diff)

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	err = recreate(ctx, tx, "artifacts",
		`CREATE TABLE artifacts (
			peak_id_a TEXT DEFAULT NULL,
			peak_id_b TEXT DEFAULT NULL,
			mz_diff REAL DEFAULT NULL,
			ppm_error REAL DEFAULT NULL,
			PRIMARY KEY (peak_id_a, peak_id_b)
		)`, false)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO artifacts (peak_id_a, peak_id_b, mz_diff, ppm_error)
		 VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range assignments {
		if _, err := stmt.ExecContext(ctx, a.IDA, a.IDB, a.MZDiff, a.PPMError); err != nil {
			return fmt.Errorf("inserting artifact %s/%s: %w", a.IDA, a.IDB, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing artifacts: %w", err)
	}
	fmt.Fprintf(w, "artifacts: %d records\n", len(assignments))
	return nil
}
