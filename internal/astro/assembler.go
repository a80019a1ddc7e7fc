package astro

import (
	"fmt"
	"sync"

	"github.com/astrohelm/natalchart/internal/domain"
)

// Assembler accumulates the unordered responses of one chart computation:
// twelve body positions, one Julian day, and one set of house cusps. It is
// safe to call from the transport's message handler without any ordering
// assumptions; duplicate body responses are discarded (first value wins).
//
// The zero Assembler is not ready; use NewAssembler.
type Assembler struct {
	mu sync.Mutex

	// positions holds bodies in arrival order; seen guards against
	// duplicates. Arrival order is preserved through to the final result so
	// aspect pairs come out in receipt order.
	positions []domain.BodyPosition
	seen      map[domain.BodyID]bool

	julianDay    float64
	hasJulianDay bool

	houses       domain.HouseCusps
	ascendant    float64
	midheaven    float64
	hasHouses    bool
	unrecognized int
}

// NewAssembler returns an empty Assembler for one chart computation.
func NewAssembler() *Assembler {
	return &Assembler{
		positions: make([]domain.BodyPosition, 0, domain.BodyCount),
		seen:      make(map[domain.BodyID]bool, domain.BodyCount),
	}
}

// AddBody records one body position. It reports whether the position was
// recorded; a duplicate body id or an id outside the known set is ignored.
func (a *Assembler) AddBody(pos domain.BodyPosition) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := BodyByID(pos.Body); !ok {
		return false
	}
	if a.seen[pos.Body] {
		return false
	}

	a.seen[pos.Body] = true
	a.positions = append(a.positions, pos)
	return true
}

// SetJulianDay records the Julian day. Values at or below the sanity floor
// are rejected as a ProtocolError; a second receipt is ignored.
func (a *Assembler) SetJulianDay(jd float64) (first bool, err error) {
	if jd <= MinJulianDay {
		return false, &domain.ProtocolError{
			Reason: fmt.Sprintf("julian day %g below sanity floor %g", jd, MinJulianDay),
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.hasJulianDay {
		return false, nil
	}
	a.julianDay = jd
	a.hasJulianDay = true
	return true, nil
}

// JulianDay returns the recorded Julian day and whether one has arrived.
func (a *Assembler) JulianDay() (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.julianDay, a.hasJulianDay
}

// AddHouses normalizes and records house data. The first house response
// wins; the protocol is expected to produce exactly one.
func (a *Assembler) AddHouses(rawCusps, ascmc []float64) error {
	houses, err := NormalizeCusps(rawCusps)
	if err != nil {
		return err
	}
	asc, mc := DeriveAxes(houses, ascmc)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.hasHouses {
		return nil
	}
	a.houses = houses
	a.ascendant = asc
	a.midheaven = mc
	a.hasHouses = true
	return nil
}

// NoteUnrecognized counts a response that matched no known shape. The count
// is surfaced in timeout diagnostics so silently dropped messages still
// leave a trace.
func (a *Assembler) NoteUnrecognized() {
	a.mu.Lock()
	a.unrecognized++
	a.mu.Unlock()
}

// Progress reports the current accumulation state.
func (a *Assembler) Progress() domain.Progress {
	a.mu.Lock()
	defer a.mu.Unlock()
	return domain.Progress{
		BodiesReceived:   len(a.positions),
		JulianDayKnown:   a.hasJulianDay,
		HousesReceived:   a.hasHouses,
		UnrecognizedMsgs: a.unrecognized,
	}
}

// Result assembles the final chart once all twelve bodies, the Julian day,
// and the houses are present. It returns false until then; there is no
// partial result.
func (a *Assembler) Result() (domain.ChartResult, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.positions) != domain.BodyCount || !a.hasJulianDay || !a.hasHouses {
		return domain.ChartResult{}, false
	}

	bodies := make([]domain.ChartBody, 0, domain.BodyCount)
	for _, pos := range a.positions {
		b, _ := BodyByID(pos.Body)
		bodies = append(bodies, domain.ChartBody{
			ID:         pos.Body,
			Name:       b.Name,
			Symbol:     b.Symbol,
			Longitude:  pos.Longitude,
			Sign:       SignAt(pos.Longitude),
			SignSymbol: SignSymbol(pos.Longitude),
		})
	}

	return domain.ChartResult{
		Bodies:    bodies,
		Houses:    a.houses,
		Ascendant: a.ascendant,
		Midheaven: a.midheaven,
		Aspects:   ComputeAspects(a.positions),
		JulianDay: a.julianDay,
	}, true
}
