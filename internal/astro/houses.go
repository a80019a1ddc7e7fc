package astro

import (
	"fmt"

	"github.com/astrohelm/natalchart/internal/domain"
)

// NormalizeCusps converts a raw cusp array from the service into the
// twelve-entry HouseCusps form. The protocol returns either 13 elements
// (index 0 is an unused leading slot) or 12; longer arrays keep their first
// twelve elements, and shorter arrays cannot satisfy the twelve-house
// invariant and are rejected.
func NormalizeCusps(raw []float64) (domain.HouseCusps, error) {
	var houses domain.HouseCusps

	switch {
	case len(raw) == 13:
		copy(houses[:], raw[1:13])
	case len(raw) >= 12:
		copy(houses[:], raw[:12])
	default:
		return houses, &domain.ProtocolError{
			Reason: fmt.Sprintf("cusp array has %d elements, need 12", len(raw)),
		}
	}

	return houses, nil
}

// DeriveAxes extracts the ascendant and midheaven. When the auxiliary ascmc
// array carries a non-zero value it wins; otherwise the first and tenth
// house cusps are used. A genuinely zero-degree ascendant is therefore
// indistinguishable from an absent one; the upstream service always
// populates ascmc, so the distinction never arises in practice.
func DeriveAxes(houses domain.HouseCusps, ascmc []float64) (ascendant, midheaven float64) {
	ascendant = houses[0]
	midheaven = houses[9]

	if len(ascmc) > 0 && ascmc[0] != 0 {
		ascendant = ascmc[0]
	}
	if len(ascmc) > 1 && ascmc[1] != 0 {
		midheaven = ascmc[1]
	}
	return ascendant, midheaven
}
