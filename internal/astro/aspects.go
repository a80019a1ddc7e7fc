package astro

import (
	"math"

	"github.com/astrohelm/natalchart/internal/domain"
)

// aspectDef is one candidate aspect: its target angle and allowed orb.
type aspectDef struct {
	kind  domain.AspectKind
	angle float64
	orb   float64
}

// aspectTable lists the candidate aspects in priority order. When a pair's
// separation falls inside the orb of more than one aspect, the first match
// in this order wins and the rest are not considered.
var aspectTable = []aspectDef{
	{domain.Conjunction, 0, 8},
	{domain.Opposition, 180, 8},
	{domain.Trine, 120, 8},
	{domain.Square, 90, 8},
	{domain.Sextile, 60, 6},
	{domain.Quincunx, 150, 3},
	{domain.SemiSextile, 30, 2},
	{domain.Sesquiquadrate, 135, 2},
}

// Separation returns the angular distance between two ecliptic longitudes,
// measured the short way around the circle. The result is in [0, 180] and
// symmetric in its arguments.
func Separation(a, b float64) float64 {
	d := math.Abs(a - b)
	return math.Min(d, 360-d)
}

// ComputeAspects finds at most one aspect for every unordered pair of
// positions. Pairs are visited in the order of the input slice (outer index
// before inner), and the output preserves that order.
func ComputeAspects(positions []domain.BodyPosition) []domain.Aspect {
	var aspects []domain.Aspect

	for i := 0; i < len(positions); i++ {
		for j := i + 1; j < len(positions); j++ {
			sep := Separation(positions[i].Longitude, positions[j].Longitude)

			for _, def := range aspectTable {
				if sep >= def.angle-def.orb && sep <= def.angle+def.orb {
					aspects = append(aspects, domain.Aspect{
						Kind:       def.kind,
						Separation: sep,
						BodyA:      bodyName(positions[i].Body),
						BodyB:      bodyName(positions[j].Body),
					})
					break
				}
			}
		}
	}

	return aspects
}

func bodyName(id domain.BodyID) string {
	if b, ok := BodyByID(id); ok {
		return b.Name
	}
	return "Unknown"
}
