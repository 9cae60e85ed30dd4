// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package summary joins whatever annotation tables a run produced into
// one peak-indexed summary table and renders it as a report.
package summary

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/mzgrid/peakannotate/pkg/types"
)

// SourceSet records which annotation tables a results database holds.
// The aggregation dispatches on it explicitly: every present/absent
// combination maps to a fixed query shape.
type SourceSet struct {
	Groups          bool
	AdductPairs     bool
	MultipleCharges bool
	Oligomers       bool
	Isotopes        bool
	Formulae        bool

	// Compounds holds the compound match tables (compounds_<name>),
	// sorted by name.
	Compounds []string
}

// HasLabels reports whether any label-bearing relationship table is
// present.
func (s SourceSet) HasLabels() bool {
	return s.AdductPairs || s.MultipleCharges || s.Oligomers
}

// HasRelationships reports whether any relationship table is present.
func (s SourceSet) HasRelationships() bool {
	return s.HasLabels() || s.Isotopes
}

// HasReference reports whether any reference match table is present.
func (s SourceSet) HasReference() bool {
	return s.Formulae || len(s.Compounds) > 0
}

func detect(ctx context.Context, conn *sql.Conn) (SourceSet, error) {
	rows, err := conn.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return SourceSet{}, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var s SourceSet
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return SourceSet{}, err
		}
		switch name {
		case "groups":
			s.Groups = true
		case "adduct_pairs":
			s.AdductPairs = true
		case "multiple_charged_ions":
			s.MultipleCharges = true
		case "oligomers":
			s.Oligomers = true
		case "isotopes":
			s.Isotopes = true
		case "molecular_formulae":
			s.Formulae = true
		default:
			if strings.Contains(name, "compound") {
				s.Compounds = append(s.Compounds, name)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return SourceSet{}, err
	}
	sort.Strings(s.Compounds)
	return s, nil
}

// relationshipTables lists the present relationship tables, all of
// which contribute edges to the connected-component analysis.
func relationshipTables(s SourceSet) []string {
	var out []string
	if s.AdductPairs {
		out = append(out, "adduct_pairs")
	}
	if s.MultipleCharges {
		out = append(out, "multiple_charged_ions")
	}
	if s.Oligomers {
		out = append(out, "oligomers")
	}
	if s.Isotopes {
		out = append(out, "isotopes")
	}
	return out
}

// Build rewrites the peaklist table, assembles peak_labels and summary
// from the annotation tables present in the database, and returns the
// report the configuration asks for. The summary table is left in the
// database for later inspection.
func Build(ctx context.Context, db *sql.DB, peaks []types.Peak, cfg types.SummaryConfig) (*Report, error) {
	switch cfg.ConvertRT {
	case "", "min", "sec":
	default:
		return nil, fmt.Errorf("convert_rt must be min, sec or empty, got %q", cfg.ConvertRT)
	}
	if len(peaks) == 0 {
		return nil, fmt.Errorf("no peaks to summarize")
	}

	// Temporary tables and the multi-statement build must all see the
	// same connection.
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Close()

	if err := writePeaklist(ctx, conn, peaks); err != nil {
		return nil, err
	}

	s, err := detect(ctx, conn)
	if err != nil {
		return nil, err
	}
	if !s.HasRelationships() && !s.HasReference() {
		return nil, fmt.Errorf("no annotation results available to create summary from")
	}

	withGroupings := s.Groups && s.HasRelationships()
	if withGroupings {
		if err := buildSubGroups(ctx, conn, s); err != nil {
			return nil, err
		}
	}
	if err := buildPeakLabels(ctx, conn, s, withGroupings); err != nil {
		return nil, err
	}

	ref, err := buildReference(ctx, conn, s)
	if err != nil {
		return nil, err
	}

	if err := buildSummaryTable(ctx, conn, s, withGroupings, ref); err != nil {
		return nil, err
	}

	query := `SELECT * FROM summary ORDER BY rowid`
	if cfg.SingleRow {
		query = singleRowQuery(s, withGroupings, cfg.SingleColumn)
	}
	cols, raws, err := readRows(ctx, conn, query)
	if err != nil {
		return nil, fmt.Errorf("reading summary: %w", err)
	}

	return newReport(cols, raws, s, cfg), nil
}

func writePeaklist(ctx context.Context, conn *sql.Conn, peaks []types.Peak) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`DROP TABLE IF EXISTS peaklist`,
		`CREATE TABLE peaklist (
			name TEXT,
			mz REAL,
			rt REAL,
			intensity REAL
		)`,
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("rewriting peaklist: %w", err)
		}
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO peaklist (name, mz, rt, intensity) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()
	for _, p := range peaks {
		if _, err := stmt.ExecContext(ctx, p.ID, p.MZ, p.RT, p.Intensity); err != nil {
			return fmt.Errorf("inserting peak %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

type relationshipEdge struct{ a, b string }

// collectEdges unions the directed peak pairs of every relationship
// table, in deterministic order.
func collectEdges(ctx context.Context, conn *sql.Conn, s SourceSet) ([]relationshipEdge, error) {
	tables := relationshipTables(s)
	parts := make([]string, len(tables))
	for i, t := range tables {
		parts[i] = "SELECT peak_id_a, peak_id_b FROM " + t
	}
	query := strings.Join(parts, " UNION ") + " ORDER BY peak_id_a, peak_id_b"

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("collecting relationship edges: %w", err)
	}
	defer rows.Close()

	var edges []relationshipEdge
	for rows.Next() {
		var e relationshipEdge
		if err := rows.Scan(&e.a, &e.b); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// buildSubGroups splits the annotated peak pairs into weakly connected
// components and stores the per-peak component statistics in a
// temporary sub_groups table.
func buildSubGroups(ctx context.Context, conn *sql.Conn, s SourceSet) error {
	edges, err := collectEdges(ctx, conn, s)
	if err != nil {
		return err
	}

	var (
		order  []string
		degree = make(map[string]int)
		parent = make(map[string]string)
	)
	var find func(string) string
	find = func(n string) string {
		if parent[n] != n {
			parent[n] = find(parent[n])
		}
		return parent[n]
	}
	add := func(n string) {
		if _, ok := parent[n]; !ok {
			parent[n] = n
			order = append(order, n)
		}
	}
	for _, e := range edges {
		add(e.a)
		add(e.b)
		parent[find(e.a)] = find(e.b)
		degree[e.a]++
		degree[e.b]++
	}

	// Components numbered 1..n by first appearance in edge order.
	groupOf := make(map[string]int)
	nodes := make(map[int]int)
	next := 1
	for _, n := range order {
		root := find(n)
		if _, ok := groupOf[root]; !ok {
			groupOf[root] = next
			next++
		}
		nodes[groupOf[root]]++
	}
	edgeCount := make(map[int]int)
	for _, e := range edges {
		edgeCount[groupOf[find(e.a)]]++
	}

	stmts := []string{
		`DROP TABLE IF EXISTS temp.sub_groups`,
		`CREATE TEMPORARY TABLE sub_groups (
			sub_group_id INTEGER DEFAULT NULL,
			peak_id TEXT DEFAULT NULL,
			degree INTEGER DEFAULT NULL,
			n_nodes INTEGER DEFAULT NULL,
			n_edges INTEGER DEFAULT NULL,
			PRIMARY KEY (sub_group_id, peak_id)
		)`,
	}
	for _, q := range stmts {
		if _, err := conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("creating sub_groups: %w", err)
		}
	}
	stmt, err := conn.PrepareContext(ctx,
		`INSERT INTO sub_groups (sub_group_id, peak_id, degree, n_nodes, n_edges) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing sub_groups insert: %w", err)
	}
	defer stmt.Close()
	for _, n := range order {
		g := groupOf[find(n)]
		if _, err := stmt.ExecContext(ctx, g, n, degree[n], nodes[g], edgeCount[g]); err != nil {
			return fmt.Errorf("inserting sub group for %s: %w", n, err)
		}
	}
	return nil
}

// groupingsQuery joins the upstream grouping table with the component
// statistics derived from the annotation results.
const groupingsQuery = `SELECT DISTINCT gr.peak_id AS peak_id, gr.group_id AS group_id, gr.degree_cor AS degree_cor,
	sub_groups.sub_group_id AS sub_group_id, sub_groups.degree AS degree,
	sub_groups.n_nodes AS n_nodes, sub_groups.n_edges AS n_edges
FROM (SELECT group_id, peak_id_a AS peak_id, degree_a AS degree_cor FROM groups
	UNION
	SELECT group_id, peak_id_b AS peak_id, degree_b AS degree_cor FROM groups) AS gr
LEFT JOIN sub_groups ON gr.peak_id = sub_groups.peak_id`

const groupingColumns = "peak_id, group_id, degree_cor, sub_group_id, degree, n_nodes, n_edges"

// labelUnion expands every present label-bearing table into symmetric
// (peak, label, charge, oligomer) rows: both peaks of a pair carry
// their own label, and the heavier side of an oligomer carries the
// rounded m/z ratio as its multiplicity.
func labelUnion(s SourceSet) string {
	var parts []string
	if s.AdductPairs {
		parts = append(parts,
			`SELECT peak_id_a AS peak_id_amo, label_a AS label, 1 AS charge, 1 AS oligomer FROM adduct_pairs`,
			`SELECT peak_id_b AS peak_id_amo, label_b AS label, 1 AS charge, 1 AS oligomer FROM adduct_pairs`)
	}
	if s.MultipleCharges {
		parts = append(parts,
			`SELECT peak_id_a AS peak_id_amo, label_a AS label, charge_a AS charge, 1 AS oligomer FROM multiple_charged_ions`,
			`SELECT peak_id_b AS peak_id_amo, label_b AS label, charge_b AS charge, 1 AS oligomer FROM multiple_charged_ions`)
	}
	if s.Oligomers {
		parts = append(parts,
			`SELECT peak_id_a AS peak_id_amo, label_a AS label, 1 AS charge, 1 AS oligomer FROM oligomers`,
			`SELECT peak_id_b AS peak_id_amo, label_b AS label, 1 AS charge, ROUND(mz_ratio) AS oligomer FROM oligomers`)
	}
	return strings.Join(parts, "\nUNION\n")
}

// isotopeAgg aggregates, per peak, the concatenated partners over the
// symmetric isotope union. NULL atom counts drop out of the list.
const isotopeAgg = `SELECT peak_id_a, group_concat(label_a) AS isotope_labels_a,
	group_concat(peak_id_b, ',') AS isotope_ids,
	group_concat(label_b) AS isotope_labels_b,
	group_concat(round(atoms, 1), ',') AS atoms
FROM (SELECT peak_id_a, label_a, peak_id_b, label_b, atoms FROM isotopes
	UNION
	SELECT peak_id_b, label_b, peak_id_a, label_a, atoms FROM isotopes
	ORDER BY peak_id_a, label_a, peak_id_b)
GROUP BY peak_id_a`

const isotopeColumns = "isotope_labels_a, isotope_ids, isotope_labels_b, atoms"

// buildPeakLabels creates the peak_labels table for the present source
// combination and, when labels exist, appends a NULL-label twin for
// every labelled row so reference matches with a disagreeing adduct
// still find a row to join.
func buildPeakLabels(ctx context.Context, conn *sql.Conn, s SourceSet, withGroupings bool) error {
	if !s.HasRelationships() {
		return nil
	}
	if _, err := conn.ExecContext(ctx, `DROP TABLE IF EXISTS peak_labels`); err != nil {
		return fmt.Errorf("dropping peak_labels: %w", err)
	}

	var query string
	switch {
	case s.HasLabels() && s.Isotopes:
		if withGroupings {
			query = `CREATE TABLE peak_labels AS SELECT ` + groupingColumns +
				`, label, charge, oligomer, ` + isotopeColumns +
				` FROM (` + groupingsQuery + `)
				LEFT JOIN (` + labelUnion(s) + `) ON peak_id = peak_id_amo
				LEFT JOIN (` + isotopeAgg + `) ON peak_id = peak_id_a`
		} else {
			query = `CREATE TABLE peak_labels AS SELECT peaklist.name AS peak_id, label, charge, oligomer, ` +
				isotopeColumns + ` FROM peaklist
				LEFT JOIN (` + labelUnion(s) + `) ON peaklist.name = peak_id_amo
				LEFT JOIN (` + isotopeAgg + `) ON peaklist.name = peak_id_a`
		}
	case s.Isotopes:
		if withGroupings {
			query = `CREATE TABLE peak_labels AS SELECT ` + groupingColumns + `, ` + isotopeColumns +
				` FROM (` + groupingsQuery + `)
				LEFT JOIN (` + isotopeAgg + `) ON peak_id = peak_id_a`
		} else {
			query = `CREATE TABLE peak_labels AS SELECT peak_id_a AS peak_id, ` + isotopeColumns +
				` FROM (` + isotopeAgg + `)`
		}
	default:
		if withGroupings {
			query = `CREATE TABLE peak_labels AS SELECT ` + groupingColumns + `, label, charge, oligomer
				FROM (` + groupingsQuery + `)
				LEFT JOIN (` + labelUnion(s) + `) ON peak_id = peak_id_amo`
		} else {
			query = `CREATE TABLE peak_labels AS SELECT peak_id_amo AS peak_id, label, charge, oligomer
				FROM (` + labelUnion(s) + `)`
		}
	}
	if _, err := conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("creating peak_labels: %w", err)
	}

	if !s.HasLabels() {
		return nil
	}
	cols := []string{"peak_id"}
	if withGroupings {
		cols = []string{groupingColumns}
	}
	cols = append(cols, "NULL", "NULL", "NULL")
	if s.Isotopes {
		cols = append(cols, isotopeColumns)
	}
	twin := `INSERT INTO peak_labels SELECT DISTINCT ` + strings.Join(cols, ", ") +
		` FROM peak_labels WHERE label IS NOT NULL`
	if _, err := conn.ExecContext(ctx, twin); err != nil {
		return fmt.Errorf("inserting unlabelled twins: %w", err)
	}
	return nil
}

// referenceJoin carries the select-list columns and the join clause
// contributed by the reference match tables.
type referenceJoin struct {
	columns []string
	join    string
}

var referenceColumns = []string{
	"exact_mass", "ppm_error", "adduct", "C", "H", "N", "O", "P", "S", "molecular_formula",
}

// refJoinOn builds the reference join condition. With labels present a
// match attaches to the row whose label agrees with its adduct, or to
// the peak's unlabelled row when no label anywhere agrees.
func refJoinOn(alias string, hasLabels bool) string {
	if !hasLabels {
		return fmt.Sprintf("ON peaklist.name = %s.id", alias)
	}
	return fmt.Sprintf(`ON (peaklist.name = %[1]s.id AND peak_labels.label = %[1]s.adduct)
		OR (peaklist.name = %[1]s.id AND peak_labels.label IS NULL
			AND NOT EXISTS (SELECT 1 FROM peak_labels WHERE peak_id = %[1]s.id AND label = %[1]s.adduct))`, alias)
}

func buildReference(ctx context.Context, conn *sql.Conn, s SourceSet) (referenceJoin, error) {
	aliased := func(alias string, withCompound bool) []string {
		var out []string
		for _, c := range referenceColumns {
			out = append(out, fmt.Sprintf("%s.%s AS %s", alias, c, c))
		}
		if withCompound {
			out = append(out,
				alias+".compound_name AS compound_name",
				alias+".compound_id AS compound_id")
		}
		return out
	}
	compoundUnion := func() string {
		parts := make([]string, len(s.Compounds))
		for i, t := range s.Compounds {
			parts[i] = "SELECT * FROM " + t
		}
		return strings.Join(parts, " UNION ")
	}

	switch {
	case s.Formulae && len(s.Compounds) > 0:
		// Merge formula and compound matches on (formula, adduct) so a
		// formula confirmed by a compound collection reports both, and
		// compound matches without a formula record still appear.
		stmts := []string{
			`DROP TABLE IF EXISTS temp.compounds`,
			`CREATE TEMPORARY TABLE compounds AS ` + compoundUnion(),
			`DROP TABLE IF EXISTS temp.mf_cd`,
			`CREATE TEMPORARY TABLE mf_cd AS
				SELECT mf.id, mf.exact_mass, mf.ppm_error, mf.adduct, mf.C, mf.H, mf.N, mf.O, mf.P, mf.S,
					mf.molecular_formula, cpds.compound_name, cpds.compound_id
				FROM molecular_formulae AS mf
				LEFT JOIN compounds AS cpds
					ON mf.molecular_formula = cpds.molecular_formula AND mf.adduct = cpds.adduct
				UNION
				SELECT cpds.id, cpds.exact_mass, cpds.ppm_error, cpds.adduct, cpds.C, cpds.H, cpds.N, cpds.O, cpds.P, cpds.S,
					cpds.molecular_formula, cpds.compound_name, cpds.compound_id
				FROM compounds AS cpds
				LEFT JOIN molecular_formulae AS mf
					ON mf.molecular_formula = cpds.molecular_formula AND mf.adduct = cpds.adduct
				WHERE mf.molecular_formula IS NULL`,
		}
		for _, q := range stmts {
			if _, err := conn.ExecContext(ctx, q); err != nil {
				return referenceJoin{}, fmt.Errorf("merging reference matches: %w", err)
			}
		}
		return referenceJoin{
			columns: aliased("mf_cd", true),
			join:    "LEFT JOIN mf_cd " + refJoinOn("mf_cd", s.HasLabels()),
		}, nil

	case len(s.Compounds) > 0:
		return referenceJoin{
			columns: aliased("ct", true),
			join:    "LEFT JOIN (" + compoundUnion() + ") AS ct " + refJoinOn("ct", s.HasLabels()),
		}, nil

	case s.Formulae:
		return referenceJoin{
			columns: aliased("mf", false),
			join:    "LEFT JOIN molecular_formulae AS mf " + refJoinOn("mf", s.HasLabels()),
		}, nil
	}
	return referenceJoin{}, nil
}

// peakLabelColumns lists the peak_labels columns carried into summary,
// peak_id excluded.
func peakLabelColumns(s SourceSet, withGroupings bool) []string {
	var cols []string
	if withGroupings {
		cols = append(cols, "group_id", "degree_cor", "sub_group_id", "degree", "n_nodes", "n_edges")
	}
	if s.HasLabels() {
		cols = append(cols, "label", "charge", "oligomer")
	}
	if s.Isotopes {
		cols = append(cols, "isotope_labels_a", "isotope_ids", "isotope_labels_b", "atoms")
	}
	return cols
}

func buildSummaryTable(ctx context.Context, conn *sql.Conn, s SourceSet, withGroupings bool, ref referenceJoin) error {
	cols := []string{
		"peaklist.name AS name",
		"peaklist.mz AS mz",
		"peaklist.rt AS rt",
		"peaklist.intensity AS intensity",
	}
	var joins []string
	if s.HasRelationships() {
		for _, c := range peakLabelColumns(s, withGroupings) {
			cols = append(cols, "peak_labels."+c+" AS "+c)
		}
		joins = append(joins, "LEFT JOIN peak_labels ON peaklist.name = peak_labels.peak_id")
	}
	cols = append(cols, ref.columns...)
	if ref.join != "" {
		joins = append(joins, ref.join)
	}

	query := `CREATE TABLE summary AS SELECT ` + strings.Join(cols, ", ") +
		` FROM peaklist ` + strings.Join(joins, " ")

	for _, q := range []string{`DROP TABLE IF EXISTS summary`, query} {
		if _, err := conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("creating summary: %w", err)
		}
	}
	return nil
}

// singleRowQuery collapses summary to one row per peak, concatenating
// the alternative labels and annotations.
func singleRowQuery(s SourceSet, withGroupings bool, singleColumn bool) string {
	sel := []string{"name", "mz", "rt", "intensity"}
	if withGroupings {
		sel = append(sel, "group_id", "degree_cor", "sub_group_id", "degree", "n_nodes", "n_edges")
	}
	if s.HasLabels() {
		sel = append(sel, `(SELECT group_concat(label || '::' || charge || '::' || oligomer, '||')
			FROM (SELECT DISTINCT label, charge, oligomer FROM summary AS s WHERE summary.name = s.name)
			) AS label_charge_oligomer`)
	}
	if s.Isotopes {
		sel = append(sel, isotopeColumns)
	}
	switch {
	case len(s.Compounds) > 0:
		if singleColumn {
			sel = append(sel, `group_concat(
				molecular_formula || '::' || adduct || '::' || ifnull(compound_name, 'None') || '::' ||
				ifnull(compound_id, 'None') || '::' || exact_mass || '::' || round(ppm_error, 2),
				'||') AS annotation`)
		} else {
			sel = append(sel,
				`group_concat(molecular_formula, '||') AS molecular_formula`,
				`group_concat(adduct, '||') AS adduct`,
				`group_concat(ifnull(compound_name, 'None'), '||') AS compound_name`,
				`group_concat(ifnull(compound_id, 'None'), '||') AS compound_id`,
				`group_concat(exact_mass, '||') AS exact_mass`,
				`group_concat(round(ppm_error, 2), '||') AS ppm_error`)
		}
	case s.Formulae:
		if singleColumn {
			sel = append(sel, `group_concat(
				molecular_formula || '::' || adduct || '::' || exact_mass || '::' || round(ppm_error, 2),
				'||') AS annotation`)
		} else {
			sel = append(sel,
				`group_concat(molecular_formula, '||') AS molecular_formula`,
				`group_concat(adduct, '||') AS adduct`,
				`group_concat(exact_mass, '||') AS exact_mass`,
				`group_concat(round(ppm_error, 2), '||') AS ppm_error`)
		}
	}
	return `SELECT DISTINCT ` + strings.Join(sel, ", ") + ` FROM summary GROUP BY name ORDER BY rowid`
}

func readRows(ctx context.Context, conn *sql.Conn, query string) ([]string, [][]any, error) {
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var out [][]any
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		out = append(out, raw)
	}
	return cols, out, rows.Err()
}
