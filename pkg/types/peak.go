// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// Peak is a single feature from an upstream peak-picking run. Peaks are
// immutable once loaded; annotation stages only read them.
type Peak struct {
	// ID is the peak identifier, unique within a run (e.g. "M127T60").
	ID string `json:"id" yaml:"id"`

	// MZ is the observed mass-to-charge ratio.
	MZ float64 `json:"mz" yaml:"mz"`

	// RT is the retention time, in the unit the upstream tool emitted.
	RT float64 `json:"rt" yaml:"rt"`

	// Intensity is the peak intensity or area.
	Intensity float64 `json:"intensity" yaml:"intensity"`
}

// Edge is a directed candidate relationship between two peaks, produced
// by the external grouping tool. Direction reflects the grouping order.
type Edge struct {
	// A is the source peak ID.
	A string `json:"a" yaml:"a"`

	// B is the target peak ID.
	B string `json:"b" yaml:"b"`
}

// Graph is a peak-relationship graph: peaks as nodes plus directed
// candidate edges between them.
type Graph struct {
	peaks map[string]Peak
	order []string
	edges []Edge
}

// NewGraph returns an empty Graph.
func NewGraph() *Graph {
	return &Graph{peaks: make(map[string]Peak)}
}

// AddPeak adds or replaces a node. Insertion order is preserved for
// iteration.
func (g *Graph) AddPeak(p Peak) {
	if _, ok := g.peaks[p.ID]; !ok {
		g.order = append(g.order, p.ID)
	}
	g.peaks[p.ID] = p
}

// AddEdge appends a directed edge. Both endpoints must already be nodes.
func (g *Graph) AddEdge(a, b string) error {
	if _, ok := g.peaks[a]; !ok {
		return fmt.Errorf("edge %s -> %s: unknown peak %q", a, b, a)
	}
	if _, ok := g.peaks[b]; !ok {
		return fmt.Errorf("edge %s -> %s: unknown peak %q", a, b, b)
	}
	g.edges = append(g.edges, Edge{A: a, B: b})
	return nil
}

// Peak returns the node with the given ID.
func (g *Graph) Peak(id string) (Peak, bool) {
	p, ok := g.peaks[id]
	return p, ok
}

// Peaks returns all nodes in insertion order.
func (g *Graph) Peaks() []Peak {
	out := make([]Peak, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.peaks[id])
	}
	return out
}

// Edges returns the directed edges in insertion order.
func (g *Graph) Edges() []Edge {
	return g.edges
}

// Neighbors returns the targets of all edges leaving id, in edge order.
func (g *Graph) Neighbors(id string) []string {
	var out []string
	for _, e := range g.edges {
		if e.A == id {
			out = append(out, e.B)
		}
	}
	return out
}

// PeakSource is a tagged peak input for the annotation stages: either a
// flat, m/z-ascending peak list or a relationship graph. Exactly one
// shape must be set; matchers dispatch on Kind at a single point.
type PeakSource struct {
	// Peaks is the flat peak list. Nil when Graph is set.
	Peaks []Peak

	// Graph is the relationship graph. Nil when Peaks is set.
	Graph *Graph
}

// SourceKind identifies which shape a PeakSource carries.
type SourceKind string

const (
	SourcePeaklist SourceKind = "peaklist"
	SourceGraph    SourceKind = "graph"
)

// PeaklistSource wraps a flat peak list.
func PeaklistSource(peaks []Peak) PeakSource {
	return PeakSource{Peaks: peaks}
}

// GraphSource wraps a relationship graph.
func GraphSource(g *Graph) PeakSource {
	return PeakSource{Graph: g}
}

// Kind reports the shape of the source.
func (s PeakSource) Kind() SourceKind {
	if s.Graph != nil {
		return SourceGraph
	}
	return SourcePeaklist
}

// Validate rejects sources with zero or both shapes set.
func (s PeakSource) Validate() error {
	if s.Graph != nil && s.Peaks != nil {
		return fmt.Errorf("peak source: both peaklist and graph set")
	}
	if s.Graph == nil && len(s.Peaks) == 0 {
		return fmt.Errorf("peak source: no peaks")
	}
	return nil
}

// AllPeaks returns the peaks regardless of shape: the list itself, or
// the graph nodes in insertion order.
func (s PeakSource) AllPeaks() []Peak {
	if s.Graph != nil {
		return s.Graph.Peaks()
	}
	return s.Peaks
}
