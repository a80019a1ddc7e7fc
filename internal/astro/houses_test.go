package astro

import (
	"errors"
	"testing"

	"github.com/astrohelm/natalchart/internal/domain"
)

func TestNormalizeCusps(t *testing.T) {
	twelve := []float64{10, 40, 70, 100, 130, 160, 190, 220, 250, 280, 310, 340}
	thirteen := append([]float64{999}, twelve...)

	t.Run("thirteen elements drop the leading slot", func(t *testing.T) {
		houses, err := NormalizeCusps(thirteen)
		if err != nil {
			t.Fatal(err)
		}
		for i, want := range twelve {
			if houses[i] != want {
				t.Fatalf("houses[%d] = %v, want %v", i, houses[i], want)
			}
		}
	})

	t.Run("twelve elements pass through", func(t *testing.T) {
		houses, err := NormalizeCusps(twelve)
		if err != nil {
			t.Fatal(err)
		}
		for i, want := range twelve {
			if houses[i] != want {
				t.Fatalf("houses[%d] = %v, want %v", i, houses[i], want)
			}
		}
	})

	t.Run("longer arrays keep the first twelve", func(t *testing.T) {
		houses, err := NormalizeCusps(append(append([]float64{}, twelve...), 1, 2, 3))
		if err != nil {
			t.Fatal(err)
		}
		if houses[11] != 340 {
			t.Fatalf("houses[11] = %v, want 340", houses[11])
		}
	})

	t.Run("short arrays are a protocol error", func(t *testing.T) {
		_, err := NormalizeCusps(twelve[:7])
		var perr *domain.ProtocolError
		if !errors.As(err, &perr) {
			t.Fatalf("err = %v, want ProtocolError", err)
		}
	})
}

func TestDeriveAxes(t *testing.T) {
	var houses domain.HouseCusps
	copy(houses[:], []float64{10, 40, 70, 100, 130, 160, 190, 220, 250, 280, 310, 340})

	t.Run("no ascmc falls back to cusps", func(t *testing.T) {
		asc, mc := DeriveAxes(houses, nil)
		if asc != 10 || mc != 160 {
			t.Fatalf("asc=%v mc=%v, want 10 and 160", asc, mc)
		}
	})

	t.Run("ascmc values win when non-zero", func(t *testing.T) {
		asc, mc := DeriveAxes(houses, []float64{12.5, 165.25})
		if asc != 12.5 || mc != 165.25 {
			t.Fatalf("asc=%v mc=%v, want 12.5 and 165.25", asc, mc)
		}
	})

	t.Run("zero ascmc entries fall back per element", func(t *testing.T) {
		asc, mc := DeriveAxes(houses, []float64{0, 165.25})
		if asc != 10 || mc != 165.25 {
			t.Fatalf("asc=%v mc=%v, want 10 and 165.25", asc, mc)
		}
	})
}
