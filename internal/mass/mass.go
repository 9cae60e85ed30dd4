// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mass provides tolerance arithmetic, monoisotopic masses, and
// elemental composition handling for peak annotation.
package mass

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Tolerance returns the inclusive mass window for a ppm tolerance around
// mass: (mass·(1−ppm·1e−6), mass·(1+ppm·1e−6)).
func Tolerance(mass, ppm float64) (lo, hi float64) {
	lo = mass - (mass * 0.000001 * ppm)
	hi = mass + (mass * 0.000001 * ppm)
	return lo, hi
}

// PPMError returns the relative error of an observed mass against a
// theoretical mass, in parts per million. PPMError(m, m) is 0.
func PPMError(observed, theoretical float64) float64 {
	return (theoretical - observed) / (theoretical * 0.000001)
}

// Round rounds v to the given number of decimal digits.
func Round(v float64, digits int) float64 {
	shift := math.Pow(10, float64(digits))
	return math.Round(v*shift) / shift
}

// monoisotopic holds the exact masses of the lightest stable isotope of
// the elements the annotation stages encounter.
var monoisotopic = map[string]float64{
	"H":  1.0078250321,
	"B":  11.0093053600,
	"C":  12.0,
	"N":  14.0030740052,
	"O":  15.9949146221,
	"F":  18.9984031627,
	"Na": 22.9897692800,
	"Mg": 23.9850416970,
	"Si": 27.9769265347,
	"P":  30.9737615100,
	"S":  31.9720706900,
	"Cl": 34.9688526800,
	"K":  38.9637064864,
	"Ca": 39.9625908630,
	"Fe": 55.9349363300,
	"Zn": 63.9291420100,
	"Se": 79.9165218000,
	"Br": 78.9183376000,
	"I":  126.9044730000,
}

// formulaToken matches one element symbol with an optional count.
var formulaToken = regexp.MustCompile(`([A-Z][a-z]?)([0-9]*)`)

// ParseFormula parses a flat molecular formula (e.g. "C6H12O6") into
// element counts. Parenthesised or charged notations are rejected.
func ParseFormula(formula string) (map[string]int, error) {
	if formula == "" {
		return nil, fmt.Errorf("empty molecular formula")
	}

	elements := make(map[string]int)
	rest := formula
	for len(rest) > 0 {
		m := formulaToken.FindStringSubmatch(rest)
		if m == nil || !strings.HasPrefix(rest, m[0]) || m[0] == "" {
			return nil, fmt.Errorf("malformed molecular formula %q", formula)
		}
		count := 1
		if m[2] != "" {
			n, err := strconv.Atoi(m[2])
			if err != nil || n == 0 {
				return nil, fmt.Errorf("malformed molecular formula %q", formula)
			}
			count = n
		}
		elements[m[1]] += count
		rest = rest[len(m[0]):]
	}
	return elements, nil
}

// MonoisotopicMass sums the exact masses of the elements. Unknown
// elements are an error.
func MonoisotopicMass(elements map[string]int) (float64, error) {
	var total float64
	for e, n := range elements {
		m, ok := monoisotopic[e]
		if !ok {
			return 0, fmt.Errorf("unknown element %q", e)
		}
		total += m * float64(n)
	}
	return total, nil
}

// Composition is an elemental composition restricted to CHNOPS, the
// element set the reference stores index.
type Composition struct {
	C int `json:"C" yaml:"C"`
	H int `json:"H" yaml:"H"`
	N int `json:"N" yaml:"N"`
	O int `json:"O" yaml:"O"`
	P int `json:"P" yaml:"P"`
	S int `json:"S" yaml:"S"`
}

// Restrict keeps the CHNOPS counts of an element map and reports whether
// the map contained nothing else.
func Restrict(elements map[string]int) (Composition, bool) {
	c := Composition{
		C: elements["C"],
		H: elements["H"],
		N: elements["N"],
		O: elements["O"],
		P: elements["P"],
		S: elements["S"],
	}
	complete := true
	for e, n := range elements {
		switch e {
		case "C", "H", "N", "O", "P", "S":
		default:
			if n != 0 {
				complete = false
			}
		}
	}
	return c, complete
}

// Mass returns the monoisotopic mass of the composition.
func (c Composition) Mass() float64 {
	return float64(c.C)*monoisotopic["C"] +
		float64(c.H)*monoisotopic["H"] +
		float64(c.N)*monoisotopic["N"] +
		float64(c.O)*monoisotopic["O"] +
		float64(c.P)*monoisotopic["P"] +
		float64(c.S)*monoisotopic["S"]
}

// Formula returns the canonical formula string: C, H, then N, O, P, S;
// zero counts omitted, counts of one written bare.
func (c Composition) Formula() string {
	var b strings.Builder
	for _, el := range []struct {
		symbol string
		count  int
	}{
		{"C", c.C}, {"H", c.H}, {"N", c.N}, {"O", c.O}, {"P", c.P}, {"S", c.S},
	} {
		switch {
		case el.count == 1:
			b.WriteString(el.symbol)
		case el.count > 1:
			b.WriteString(el.symbol)
			b.WriteString(strconv.Itoa(el.count))
		}
	}
	return b.String()
}

// FormulaString renders an element map in Hill order: carbon first,
// hydrogen second, remaining elements alphabetical; when no carbon is
// present all elements sort alphabetically. Zero counts are omitted and
// counts of one are written bare.
func FormulaString(elements map[string]int) string {
	symbols := make([]string, 0, len(elements))
	for e, n := range elements {
		if n > 0 {
			symbols = append(symbols, e)
		}
	}
	hasCarbon := elements["C"] > 0
	sort.Slice(symbols, func(i, j int) bool {
		if hasCarbon {
			ri, rj := hillRank(symbols[i]), hillRank(symbols[j])
			if ri != rj {
				return ri < rj
			}
		}
		return symbols[i] < symbols[j]
	})

	var b strings.Builder
	for _, e := range symbols {
		b.WriteString(e)
		if n := elements[e]; n > 1 {
			b.WriteString(strconv.Itoa(n))
		}
	}
	return b.String()
}

func hillRank(symbol string) int {
	switch symbol {
	case "C":
		return 0
	case "H":
		return 1
	}
	return 2
}
