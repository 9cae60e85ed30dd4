// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summary

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/mzgrid/peakannotate/internal/mass"
	"github.com/mzgrid/peakannotate/pkg/types"
)

// Report is a rendered summary: column names plus rows of display
// values, NULLs as empty strings.
type Report struct {
	Columns []string
	Rows    [][]string
}

func newReport(cols []string, raws [][]any, s SourceSet, cfg types.SummaryConfig) *Report {
	if cfg.NDigitsMZ != nil {
		roundColumn(cols, raws, "mz", *cfg.NDigitsMZ)
	}
	switch cfg.ConvertRT {
	case "min":
		cols, raws = insertAfter(cols, raws, "rt", "rt_min", func(rt float64) float64 {
			return mass.Round(rt/60.0, 2)
		})
	case "sec":
		cols, raws = insertAfter(cols, raws, "rt", "rt_sec", func(rt float64) float64 {
			return mass.Round(rt*60.0, 1)
		})
	}

	r := &Report{Columns: cols, Rows: make([][]string, len(raws))}
	for i, raw := range raws {
		row := make([]string, len(raw))
		for j, v := range raw {
			row[j] = formatValue(v)
		}
		r.Rows[i] = row
	}

	// Peaks without any compound match concatenate to a bare "None";
	// show those cells as empty instead.
	if cfg.SingleRow && len(s.Compounds) > 0 {
		targets := []string{"compound_name", "compound_id"}
		if cfg.SingleColumn {
			targets = []string{"annotation"}
		}
		for _, name := range targets {
			blankNone(r, name)
		}
	}
	return r
}

func columnIndex(cols []string, name string) int {
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	return -1
}

func roundColumn(cols []string, raws [][]any, name string, digits int) {
	i := columnIndex(cols, name)
	if i < 0 {
		return
	}
	for _, raw := range raws {
		if v, ok := raw[i].(float64); ok {
			raw[i] = mass.Round(v, digits)
		}
	}
}

// insertAfter adds a derived column right after the named one.
func insertAfter(cols []string, raws [][]any, name, derived string, fn func(float64) float64) ([]string, [][]any) {
	i := columnIndex(cols, name)
	if i < 0 {
		return cols, raws
	}
	outCols := make([]string, 0, len(cols)+1)
	outCols = append(outCols, cols[:i+1]...)
	outCols = append(outCols, derived)
	outCols = append(outCols, cols[i+1:]...)

	outRaws := make([][]any, len(raws))
	for k, raw := range raws {
		row := make([]any, 0, len(raw)+1)
		row = append(row, raw[:i+1]...)
		if v, ok := raw[i].(float64); ok {
			row = append(row, fn(v))
		} else {
			row = append(row, nil)
		}
		row = append(row, raw[i+1:]...)
		outRaws[k] = row
	}
	return outCols, outRaws
}

func blankNone(r *Report, name string) {
	i := columnIndex(r.Columns, name)
	if i < 0 {
		return
	}
	for _, row := range r.Rows {
		if row[i] == "None" {
			row[i] = ""
		}
	}
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// WriteTSV writes the report as tab-separated values, header first.
func (r *Report) WriteTSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write(r.Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, row := range r.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
