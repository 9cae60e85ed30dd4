// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package annotate

import (
	"math"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/mzgrid/peakannotate/internal/library"
	"github.com/mzgrid/peakannotate/internal/mass"
	"github.com/mzgrid/peakannotate/pkg/types"
)

// pairAssignment is one accepted label pair for an ordered peak pair.
type pairAssignment struct {
	IDA, IDB         string
	LabelA, LabelB   string
	ChargeA, ChargeB int
	PPMError         float64
}

// overlaps reports strict window overlap: touching boundaries do not
// match.
func overlaps(loA, hiA, loB, hiB float64) bool {
	return loA < hiB && loB < hiA
}

// matchMassCharge tests an ordered m/z pair against a mass/charge
// library pair. Both tolerance windows are mapped to charge-corrected
// neutral mass before the overlap test. Returns the ppm error of the
// corrected masses, rounded to two decimals.
func matchMassCharge(mzX, mzY, ppm float64, p library.Pair) (float64, bool) {
	loA, hiA := mass.Tolerance(mzX, ppm)
	loB, hiB := mass.Tolerance(mzY, ppm)

	qA, qB := float64(p.A.Charge), float64(p.B.Charge)
	loA = (loA - p.A.Mass) * qA
	hiA = (hiA - p.A.Mass) * qA
	loB = (loB - p.B.Mass) * qB
	hiB = (hiB - p.B.Mass) * qB

	if !overlaps(loA, hiA, loB, hiB) {
		return 0, false
	}
	return mass.Round(mass.PPMError((mzX-p.A.Mass)*qA, (mzY-p.B.Mass)*qB), 2), true
}

// matchDifference tests an ordered m/z pair against a fixed mass
// difference: the y-window is shifted down by the difference. Returns
// the ppm error of mzX against the shifted mzY, rounded to two
// decimals.
func matchDifference(mzX, mzY, ppm, diff float64) (float64, bool) {
	loA, hiA := mass.Tolerance(mzX, ppm)
	loB, hiB := mass.Tolerance(mzY, ppm)

	loB -= diff
	hiB -= diff

	if !overlaps(loA, hiA, loB, hiB) {
		return 0, false
	}
	return mass.Round(mass.PPMError(mzX, mzY-diff), 2), true
}

// scanPairs runs try over every ordered peak pair of the source: all
// i<j pairs of a flat list, or each directed edge of a graph. The flat
// scan partitions outer indices across workers; per-index results are
// merged in index order, so output order matches the sequential scan.
func scanPairs(src types.PeakSource, try func(a, b types.Peak) []pairAssignment) []pairAssignment {
	if src.Kind() == types.SourceGraph {
		var out []pairAssignment
		for _, e := range src.Graph.Edges() {
			pa, _ := src.Graph.Peak(e.A)
			pb, _ := src.Graph.Peak(e.B)
			out = append(out, try(pa, pb)...)
		}
		return out
	}

	peaks := src.Peaks
	results := make([][]pairAssignment, len(peaks))

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < runtime.GOMAXPROCS(0); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				var hits []pairAssignment
				for j := i + 1; j < len(peaks); j++ {
					hits = append(hits, try(peaks[i], peaks[j])...)
				}
				results[i] = hits
			}
		}()
	}
	for i := range peaks {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	var out []pairAssignment
	for _, hits := range results {
		out = append(out, hits...)
	}
	return out
}

// scanMassChargePairs matches every peak pair against every mass/charge
// library pair.
func scanMassChargePairs(src types.PeakSource, ppm float64, pairs []library.Pair) []pairAssignment {
	return scanPairs(src, func(a, b types.Peak) []pairAssignment {
		var hits []pairAssignment
		for _, p := range pairs {
			ppmError, ok := matchMassCharge(a.MZ, b.MZ, ppm, p)
			if !ok {
				continue
			}
			hits = append(hits, pairAssignment{
				IDA: a.ID, IDB: b.ID,
				LabelA: p.A.Label, LabelB: p.B.Label,
				ChargeA: p.A.Charge, ChargeB: p.B.Charge,
				PPMError: ppmError,
			})
		}
		return hits
	})
}

// scanDifferencePairs matches every peak pair against every isotope
// pair.
func scanDifferencePairs(src types.PeakSource, ppm float64, pairs []library.IsotopePair) []pairAssignment {
	return scanPairs(src, func(a, b types.Peak) []pairAssignment {
		var hits []pairAssignment
		for _, p := range pairs {
			ppmError, ok := matchDifference(a.MZ, b.MZ, ppm, p.MassDifference)
			if !ok {
				continue
			}
			hits = append(hits, pairAssignment{
				IDA: a.ID, IDB: b.ID,
				LabelA: p.LabelA, LabelB: p.LabelB,
				ChargeA: 1, ChargeB: 1,
				PPMError: ppmError,
			})
		}
		return hits
	})
}

// oligomerAssignment is one accepted oligomer relationship.
type oligomerAssignment struct {
	IDA, IDB       string
	MZA, MZB       float64
	LabelA, LabelB string
	Ratio          float64
	PPMError       float64
}

// oligomerLabel rewrites an adduct label for an n-mer: "M" becomes
// "<n>M", or "<n>" is prefixed when the label has no "M".
func oligomerLabel(adduct string, n int) string {
	if strings.Contains(adduct, "M") {
		return strings.ReplaceAll(adduct, "M", strconv.Itoa(n)+"M")
	}
	return strconv.Itoa(n) + adduct
}

// tryOligomers matches one ordered peak pair against one adduct across
// multiplicities 1..maximum-1. The multiplicity loop stops once the
// candidate window has risen past the target window; the windows
// diverge monotonically so no later multiplicity can match.
func tryOligomers(x, y types.Peak, ppm float64, adduct library.Entry, maximum int) []oligomerAssignment {
	var hits []oligomerAssignment
	for d := 1; d < maximum; d++ {
		loA, hiA := mass.Tolerance(x.MZ+(x.MZ-adduct.Mass)*float64(d), ppm)
		loB, hiB := mass.Tolerance(y.MZ, ppm)

		if loA > hiB {
			break
		}

		loA -= adduct.Mass
		hiA -= adduct.Mass
		loB -= adduct.Mass
		hiB -= adduct.Mass

		if !overlaps(loA, hiA, loB, hiB) {
			continue
		}

		neutralX := x.MZ - adduct.Mass
		neutralY := y.MZ - adduct.Mass
		ratio := neutralY / neutralX
		ppmError := mass.PPMError(neutralX*float64(1+d), neutralY)

		hits = append(hits, oligomerAssignment{
			IDA: x.ID, IDB: y.ID,
			MZA: x.MZ, MZB: y.MZ,
			LabelA:   adduct.Label,
			LabelB:   oligomerLabel(adduct.Label, int(math.Round(ratio))),
			Ratio:    mass.Round(ratio, 2),
			PPMError: mass.Round(ppmError, 2),
		})
	}
	return hits
}

// scanOligomers matches oligomer relationships over the source: flat
// mode scans all i<j pairs (the list must be m/z-ascending); graph mode
// scans each node's neighbors, keeping pairs with rising m/z.
func scanOligomers(src types.PeakSource, ppm float64, adducts *library.Library, maximum int) []oligomerAssignment {
	entries := adducts.Entries()

	if src.Kind() == types.SourceGraph {
		var out []oligomerAssignment
		for _, x := range src.Graph.Peaks() {
			for _, id := range src.Graph.Neighbors(x.ID) {
				y, _ := src.Graph.Peak(id)
				if x.MZ >= y.MZ {
					continue
				}
				for _, adduct := range entries {
					out = append(out, tryOligomers(x, y, ppm, adduct, maximum)...)
				}
			}
		}
		return out
	}

	peaks := src.Peaks
	results := make([][]oligomerAssignment, len(peaks))

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < runtime.GOMAXPROCS(0); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				var hits []oligomerAssignment
				for j := i + 1; j < len(peaks); j++ {
					for _, adduct := range entries {
						hits = append(hits, tryOligomers(peaks[i], peaks[j], ppm, adduct, maximum)...)
					}
				}
				results[i] = hits
			}
		}()
	}
	for i := range peaks {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	var out []oligomerAssignment
	for _, hits := range results {
		out = append(out, hits...)
	}
	return out
}

// artifactAssignment is one near-duplicate peak pair.
type artifactAssignment struct {
	IDA, IDB string
	MZDiff   float64
	PPMError float64
}

// scanArtifacts flags peak pairs closer than diff in m/z. Values are
// not rounded.
func scanArtifacts(peaks []types.Peak, diff float64) []artifactAssignment {
	var out []artifactAssignment
	for i := 0; i < len(peaks); i++ {
		for j := i + 1; j < len(peaks); j++ {
			mzDiff := peaks[i].MZ - peaks[j].MZ
			if math.Abs(mzDiff) < diff {
				out = append(out, artifactAssignment{
					IDA:      peaks[i].ID,
					IDB:      peaks[j].ID,
					MZDiff:   mzDiff,
					PPMError: mass.PPMError(peaks[i].MZ, peaks[j].MZ),
				})
			}
		}
	}
	return out
}
