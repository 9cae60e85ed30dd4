// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package peakio

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mzgrid/peakannotate/pkg/types"
)

func writePeaklistFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "peaklist.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing peaklist: %v", err)
	}
	return path
}

func TestLoadPeaklistSortsByMZ(t *testing.T) {
	path := writePeaklistFile(t,
		"name\tmz\trt\tintensity\n"+
			"M150T60\t150.05\t60.0\t400\n"+
			"M100T48\t100.0\t48.0\t1500\n"+
			"M122T48\t121.9825\t48.3\t900\n")

	peaks, err := LoadPeaklist(path)
	if err != nil {
		t.Fatalf("loading peaklist: %v", err)
	}
	if len(peaks) != 3 {
		t.Fatalf("got %d peaks, want 3", len(peaks))
	}
	wantOrder := []string{"M100T48", "M122T48", "M150T60"}
	for i, want := range wantOrder {
		if peaks[i].ID != want {
			t.Errorf("peak %d = %s, want %s", i, peaks[i].ID, want)
		}
	}
	if peaks[0].MZ != 100.0 || peaks[0].RT != 48.0 || peaks[0].Intensity != 1500 {
		t.Errorf("first peak = %+v", peaks[0])
	}
}

func TestLoadPeaklistExtraColumnsIgnored(t *testing.T) {
	path := writePeaklistFile(t,
		"name\tmz\trt\tintensity\tsnr\n"+
			"M100T48\t100.0\t48.0\t1500\t12.5\n")

	peaks, err := LoadPeaklist(path)
	if err != nil {
		t.Fatalf("loading peaklist: %v", err)
	}
	if len(peaks) != 1 || peaks[0].ID != "M100T48" {
		t.Fatalf("peaks = %+v", peaks)
	}
}

func TestLoadPeaklistMissingColumn(t *testing.T) {
	path := writePeaklistFile(t, "name\tmz\trt\nM100T48\t100.0\t48.0\n")
	_, err := LoadPeaklist(path)
	if err == nil || !strings.Contains(err.Error(), "intensity") {
		t.Fatalf("expected a missing-column error, got %v", err)
	}
}

func TestLoadPeaklistDuplicateName(t *testing.T) {
	path := writePeaklistFile(t,
		"name\tmz\trt\tintensity\n"+
			"M100T48\t100.0\t48.0\t1500\n"+
			"M100T48\t100.1\t49.0\t1200\n")
	_, err := LoadPeaklist(path)
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected a duplicate-name error, got %v", err)
	}
}

func TestLoadPeaklistBadNumber(t *testing.T) {
	path := writePeaklistFile(t,
		"name\tmz\trt\tintensity\n"+
			"M100T48\tnot-a-number\t48.0\t1500\n")
	_, err := LoadPeaklist(path)
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected a parse error naming line 2, got %v", err)
	}
}

func writeGroupsDB(t *testing.T, rows ...[2]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "groups.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("opening groups db: %v", err)
	}
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE groups (
		group_id INTEGER DEFAULT NULL,
		peak_id_a TEXT DEFAULT NULL,
		peak_id_b TEXT DEFAULT NULL,
		degree_a INTEGER DEFAULT NULL,
		degree_b INTEGER DEFAULT NULL,
		r_value REAL DEFAULT NULL,
		p_value REAL DEFAULT NULL,
		PRIMARY KEY (group_id, peak_id_a, peak_id_b)
	)`)
	if err != nil {
		t.Fatalf("creating groups table: %v", err)
	}
	for _, r := range rows {
		if _, err := db.Exec(`INSERT INTO groups VALUES (1, ?, ?, 1, 1, 0.9, 0.001)`, r[0], r[1]); err != nil {
			t.Fatalf("inserting group row: %v", err)
		}
	}
	return path
}

func TestLoadGraph(t *testing.T) {
	peaks := []types.Peak{
		{ID: "A", MZ: 100.0},
		{ID: "B", MZ: 121.9825},
		{ID: "C", MZ: 150.05},
		{ID: "D", MZ: 199.0},
	}
	path := writeGroupsDB(t, [2]string{"A", "B"}, [2]string{"A", "C"})

	g, err := LoadGraph(path, peaks)
	if err != nil {
		t.Fatalf("loading graph: %v", err)
	}
	nodes := g.Peaks()
	if len(nodes) != 3 {
		t.Fatalf("got %d nodes, want the 3 grouped peaks", len(nodes))
	}
	// Nodes appear in edge order; the ungrouped peak stays out.
	if nodes[0].ID != "A" || nodes[1].ID != "B" || nodes[2].ID != "C" {
		t.Errorf("node order = %v", nodes)
	}
	if _, ok := g.Peak("D"); ok {
		t.Error("ungrouped peak D should not be a node")
	}
	if got := g.Neighbors("A"); len(got) != 2 || got[0] != "B" || got[1] != "C" {
		t.Errorf("neighbors of A = %v", got)
	}
	if a, ok := g.Peak("A"); !ok || a.MZ != 100.0 {
		t.Errorf("node A = %+v, want peaklist values joined in", a)
	}
}

func TestLoadGraphUnknownPeak(t *testing.T) {
	peaks := []types.Peak{{ID: "A", MZ: 100.0}}
	path := writeGroupsDB(t, [2]string{"A", "Z"})

	_, err := LoadGraph(path, peaks)
	if err == nil || !strings.Contains(err.Error(), `"Z"`) {
		t.Fatalf("expected an unknown-peak error, got %v", err)
	}
}

func TestLoadGraphEmpty(t *testing.T) {
	path := writeGroupsDB(t)
	_, err := LoadGraph(path, []types.Peak{{ID: "A"}})
	if err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("expected an empty-graph error, got %v", err)
	}
}
