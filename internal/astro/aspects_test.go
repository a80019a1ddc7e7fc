package astro

import (
	"testing"

	"github.com/astrohelm/natalchart/internal/domain"
)

func TestSeparationSymmetricAndBounded(t *testing.T) {
	longitudes := []float64{0, 0.5, 15.2, 45, 90, 136, 179.9, 180, 222.2, 280.5, 359.9}

	for _, a := range longitudes {
		for _, b := range longitudes {
			s1 := Separation(a, b)
			s2 := Separation(b, a)
			if s1 != s2 {
				t.Fatalf("sep(%v,%v)=%v but sep(%v,%v)=%v", a, b, s1, b, a, s2)
			}
			if s1 < 0 || s1 > 180 {
				t.Fatalf("sep(%v,%v)=%v out of [0,180]", a, b, s1)
			}
		}
	}
}

func TestComputeAspects(t *testing.T) {
	pair := func(a, b float64) []domain.BodyPosition {
		return []domain.BodyPosition{
			{Body: domain.Sun, Longitude: a},
			{Body: domain.Moon, Longitude: b},
		}
	}

	cases := []struct {
		name    string
		pos     []domain.BodyPosition
		want    []domain.AspectKind
	}{
		{"identical is conjunction only", pair(100, 100), []domain.AspectKind{domain.Conjunction}},
		{"opposed is opposition only", pair(10, 190), []domain.AspectKind{domain.Opposition}},
		{"91 degrees is square", pair(45, 136), []domain.AspectKind{domain.Square}},
		{"119 degrees is trine", pair(0, 119), []domain.AspectKind{domain.Trine}},
		{"63 degrees is sextile", pair(0, 63), []domain.AspectKind{domain.Sextile}},
		{"151 degrees is quincunx", pair(0, 151), []domain.AspectKind{domain.Quincunx}},
		{"31 degrees is semi-sextile", pair(0, 31), []domain.AspectKind{domain.SemiSextile}},
		{"136 degrees is sesquiquadrate", pair(0, 136), []domain.AspectKind{domain.Sesquiquadrate}},
		{"no aspect at 75 degrees", pair(0, 75), nil},
		{"wraps around 360", pair(358, 2), []domain.AspectKind{domain.Conjunction}},
	}

	for _, tc := range cases {
		got := ComputeAspects(tc.pos)
		if len(got) != len(tc.want) {
			t.Errorf("%s: got %d aspects (%v), want %d", tc.name, len(got), got, len(tc.want))
			continue
		}
		for i, kind := range tc.want {
			if got[i].Kind != kind {
				t.Errorf("%s: aspect %d = %s, want %s", tc.name, i, got[i].Kind, kind)
			}
		}
	}
}

// A pair contributes at most one aspect even when the separation falls
// inside the orb of more than one table entry.
func TestComputeAspectsSingleMatchPerPair(t *testing.T) {
	got := ComputeAspects([]domain.BodyPosition{
		{Body: domain.Sun, Longitude: 0},
		{Body: domain.Moon, Longitude: 7},
	})
	if len(got) != 1 || got[0].Kind != domain.Conjunction {
		t.Fatalf("got %v, want single conjunction", got)
	}
}

func TestComputeAspectsPairOrdering(t *testing.T) {
	pos := []domain.BodyPosition{
		{Body: domain.Mars, Longitude: 0},
		{Body: domain.Venus, Longitude: 90},
		{Body: domain.Sun, Longitude: 180},
	}

	got := ComputeAspects(pos)
	want := []struct{ a, b string }{
		{"Mars", "Venus"}, // square
		{"Mars", "Sun"},   // opposition
		{"Venus", "Sun"},  // square
	}

	if len(got) != len(want) {
		t.Fatalf("got %d aspects, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].BodyA != w.a || got[i].BodyB != w.b {
			t.Errorf("aspect %d: pair (%s,%s), want (%s,%s)", i, got[i].BodyA, got[i].BodyB, w.a, w.b)
		}
	}
}

func TestSignAt(t *testing.T) {
	cases := []struct {
		lon  float64
		sign string
	}{
		{0, "Aries"},
		{29.99, "Aries"},
		{30, "Taurus"},
		{280.5, "Capricorn"},
		{359.9, "Pisces"},
	}
	for _, tc := range cases {
		if got := SignAt(tc.lon); got != tc.sign {
			t.Errorf("SignAt(%v) = %s, want %s", tc.lon, got, tc.sign)
		}
	}
}
