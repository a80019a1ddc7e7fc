package astro

import (
	"time"

	"github.com/soniakeys/meeus/v3/julian"

	"github.com/astrohelm/natalchart/internal/domain"
)

// UTCFields is the calendar form of a birth moment after conversion to UTC,
// in the layout the ephemeris service expects: 1-based month and a
// fractional hour (integer hour plus minutes/60).
type UTCFields struct {
	Year  int     `json:"year"`
	Month int     `json:"month"`
	Day   int     `json:"day"`
	Hour  float64 `json:"hour"`
}

// NormalizeUTC converts a naive local wall-clock moment with a flat UTC
// offset into UTC calendar fields. The conversion goes through an absolute
// instant rather than field-by-field borrow arithmetic, so offsets that
// roll the date over a month or year boundary come out right.
func NormalizeUTC(m domain.BirthMoment) UTCFields {
	local := time.Date(m.Year, time.Month(m.Month), m.Day, m.Hour, m.Minute, 0, 0, time.UTC)
	utc := local.Add(-time.Duration(m.UTCOffsetHours * float64(time.Hour)))

	return UTCFields{
		Year:  utc.Year(),
		Month: int(utc.Month()),
		Day:   utc.Day(),
		Hour:  float64(utc.Hour()) + float64(utc.Minute())/60,
	}
}

// JulianDay computes the Julian day for the given UTC fields. The remote
// service computes its own via swe_julday; this local value is used to
// cross-check the response and as the reference in tests.
func JulianDay(f UTCFields) float64 {
	return julian.CalendarGregorianToJD(f.Year, f.Month, float64(f.Day)+f.Hour/24)
}

// MinJulianDay is the sanity floor for Julian day values returned by the
// service. Anything at or below it cannot be a modern-era Julian day.
const MinJulianDay = 2_000_000.0
