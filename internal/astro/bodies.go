// Package astro implements the chart-assembly core: UTC timestamp
// normalization, the celestial body and house-system tables, pairwise aspect
// detection, house-cusp normalization, and the response-accumulation state
// machine that turns unordered ephemeris responses into a ChartResult.
//
// Everything in this package is pure computation; the websocket transport
// lives in internal/ephemeris.
package astro

import "github.com/astrohelm/natalchart/internal/domain"

// Body is one entry of the fixed celestial-body table.
type Body struct {
	ID     domain.BodyID
	Name   string
	Symbol string
}

// Bodies lists the twelve bodies of a chart in protocol-id order.
var Bodies = [domain.BodyCount]Body{
	{domain.Sun, "Sun", "☉"},
	{domain.Moon, "Moon", "☽"},
	{domain.Mercury, "Mercury", "☿"},
	{domain.Venus, "Venus", "♀"},
	{domain.Mars, "Mars", "♂"},
	{domain.Jupiter, "Jupiter", "♃"},
	{domain.Saturn, "Saturn", "♄"},
	{domain.Uranus, "Uranus", "♅"},
	{domain.Neptune, "Neptune", "♆"},
	{domain.Pluto, "Pluto", "♇"},
	{domain.MeanNode, "MeanNode", "☊"},
	{domain.TrueNode, "TrueNode", "☋"},
}

// BodyByID returns the table entry for id, or false when id is outside the
// known set.
func BodyByID(id domain.BodyID) (Body, bool) {
	if id < 0 || int(id) >= len(Bodies) {
		return Body{}, false
	}
	return Bodies[id], true
}

// houseSystemCodes maps house-system names to the single-letter codes the
// swisseph protocol expects.
var houseSystemCodes = map[string]byte{
	"placidus":      'P',
	"koch":          'K',
	"equal":         'E',
	"campanus":      'C',
	"regiomontanus": 'R',
	"porphyrius":    'O',
	"morinus":       'Q',
}

// HouseSystemCode returns the protocol code for the named house system,
// defaulting to Placidus for unknown names.
func HouseSystemCode(name string) byte {
	if c, ok := houseSystemCodes[name]; ok {
		return c
	}
	return 'P'
}

var zodiacSigns = [12]struct {
	Name   string
	Symbol string
}{
	{"Aries", "♈"},
	{"Taurus", "♉"},
	{"Gemini", "♊"},
	{"Cancer", "♋"},
	{"Leo", "♌"},
	{"Virgo", "♍"},
	{"Libra", "♎"},
	{"Scorpio", "♏"},
	{"Sagittarius", "♐"},
	{"Capricorn", "♑"},
	{"Aquarius", "♒"},
	{"Pisces", "♓"},
}

// SignAt returns the zodiac sign name containing the given ecliptic
// longitude. Each sign spans 30 degrees starting from Aries at 0.
func SignAt(longitude float64) string {
	idx := int(longitude/30) % 12
	if idx < 0 {
		idx += 12
	}
	return zodiacSigns[idx].Name
}

// SignSymbol returns the glyph for the sign containing the longitude.
func SignSymbol(longitude float64) string {
	idx := int(longitude/30) % 12
	if idx < 0 {
		idx += 12
	}
	return zodiacSigns[idx].Symbol
}
