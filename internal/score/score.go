// Package score derives the single 0-100 readiness number from gate
// statuses and section quality. Derived, never stored as independent truth:
// every call is a full recomputation over the snapshot it is given.
package score

import (
	"math"

	"planwright/api/internal/catalog"
	"planwright/api/internal/gate"
	"planwright/api/internal/section"
)

// Gates carry this share of the total; sections the rest.
const gatePoints = 60
const sectionPoints = 100 - gatePoints

// qualityScale is the maximum section quality value.
const qualityScale = 10

// Recompute is pure and total: an incomplete session yields a low score,
// never an error. Passed gates contribute their weight, checking and failed
// contribute zero, locked gates are excluded from the denominator. Completed
// sections contribute quality scaled by the catalog section weight over the
// weight of all sections, so unfinished sections drag the score down. Not
// monotone: a gate falling from passed to failed lowers the result.
func Recompute(gates map[string]*gate.Gate, sections []section.State, cat *catalog.Catalog) int {
	var gateEarned, gateActive float64
	for _, g := range gates {
		if g.Status == gate.StatusLocked {
			continue
		}
		gateActive += float64(g.Weight)
		if g.Status == gate.StatusPassed {
			gateEarned += float64(g.Weight)
		}
	}
	gateComponent := 0.0
	if gateActive > 0 {
		gateComponent = gateEarned / gateActive * gatePoints
	}

	var sectionEarned, sectionTotal float64
	for _, st := range sections {
		spec, ok := cat.Section(st.ID)
		if !ok {
			continue
		}
		sectionTotal += float64(spec.Weight)
		if st.Status == section.StatusCompleted {
			quality := st.Quality
			if quality > qualityScale {
				quality = qualityScale
			}
			if quality < 0 {
				quality = 0
			}
			sectionEarned += float64(spec.Weight) * float64(quality) / qualityScale
		}
	}
	sectionComponent := 0.0
	if sectionTotal > 0 {
		sectionComponent = sectionEarned / sectionTotal * sectionPoints
	}

	total := int(math.Round(gateComponent + sectionComponent))
	if total < 0 {
		return 0
	}
	if total > 100 {
		return 100
	}
	return total
}
