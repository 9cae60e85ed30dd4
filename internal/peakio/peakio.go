// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package peakio loads the peak lists and relationship graphs produced
// by upstream peak-picking and grouping tools.
package peakio

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mzgrid/peakannotate/pkg/types"
)

// LoadPeaklist reads a tab-separated peak list with a name/mz/rt/intensity
// header and returns the peaks sorted by ascending m/z.
func LoadPeaklist(path string) ([]types.Peak, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening peaklist: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}

	cols := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		cols[name] = i
	}
	for _, name := range []string{"name", "mz", "rt", "intensity"} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%s is missing column %q", path, name)
		}
	}

	seen := make(map[string]bool, len(records)-1)
	peaks := make([]types.Peak, 0, len(records)-1)
	for i, row := range records[1:] {
		line := i + 2
		if len(row) < len(records[0]) {
			return nil, fmt.Errorf("%s line %d: %d fields, want %d", path, line, len(row), len(records[0]))
		}
		p := types.Peak{ID: row[cols["name"]]}
		if p.ID == "" {
			return nil, fmt.Errorf("%s line %d: empty peak name", path, line)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("%s line %d: duplicate peak name %q", path, line, p.ID)
		}
		seen[p.ID] = true
		if p.MZ, err = strconv.ParseFloat(row[cols["mz"]], 64); err != nil {
			return nil, fmt.Errorf("%s line %d: parsing mz: %w", path, line, err)
		}
		if p.RT, err = strconv.ParseFloat(row[cols["rt"]], 64); err != nil {
			return nil, fmt.Errorf("%s line %d: parsing rt: %w", path, line, err)
		}
		if p.Intensity, err = strconv.ParseFloat(row[cols["intensity"]], 64); err != nil {
			return nil, fmt.Errorf("%s line %d: parsing intensity: %w", path, line, err)
		}
		peaks = append(peaks, p)
	}
	if len(peaks) == 0 {
		return nil, fmt.Errorf("%s has no peaks", path)
	}
	sort.SliceStable(peaks, func(i, j int) bool { return peaks[i].MZ < peaks[j].MZ })
	return peaks, nil
}

// LoadGraph reads the groups table written by the external grouping tool
// and joins its nodes against the peak list. Peaks named by the table but
// absent from the peak list are an error.
func LoadGraph(path string, peaks []types.Peak) (*types.Graph, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening groups database: %w", err)
	}
	defer db.Close()

	byID := make(map[string]types.Peak, len(peaks))
	for _, p := range peaks {
		byID[p.ID] = p
	}

	rows, err := db.Query(`SELECT peak_id_a, peak_id_b FROM groups ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("reading groups from %s: %w", path, err)
	}
	defer rows.Close()

	g := types.NewGraph()
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return nil, err
		}
		pa, ok := byID[a]
		if !ok {
			return nil, fmt.Errorf("groups references %q, which is not in the peaklist", a)
		}
		pb, ok := byID[b]
		if !ok {
			return nil, fmt.Errorf("groups references %q, which is not in the peaklist", b)
		}
		g.AddPeak(pa)
		g.AddPeak(pb)
		if err := g.AddEdge(a, b); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(g.Edges()) == 0 {
		return nil, fmt.Errorf("groups table in %s is empty", path)
	}
	return g, nil
}
