// Package domain defines the core types shared by the natal chart service:
// birth input, geographic coordinates, the assembled chart result, and the
// store/cache interfaces implemented by the infrastructure packages.
package domain

import (
	"fmt"
	"time"
)

// BodyID identifies one of the twelve celestial bodies the ephemeris service
// computes. The numeric values are the wire ids of the swisseph protocol and
// must not be reordered.
type BodyID int

const (
	Sun BodyID = iota
	Moon
	Mercury
	Venus
	Mars
	Jupiter
	Saturn
	Uranus
	Neptune
	Pluto
	MeanNode
	TrueNode
)

// BodyCount is the number of celestial bodies in a complete chart.
const BodyCount = 12

// BirthMoment is a naive local wall-clock instant plus a flat UTC offset.
// No timezone-database rules are applied; the offset is a plain numeric
// shift (the mainland-China deployment always uses +8).
type BirthMoment struct {
	Year           int     `json:"year"`
	Month          int     `json:"month"` // 1-12
	Day            int     `json:"day"`
	Hour           int     `json:"hour"`   // 0-23
	Minute         int     `json:"minute"` // 0-59
	UTCOffsetHours float64 `json:"utc_offset_hours"`
}

// Validate checks the calendar fields for obviously impossible values.
func (m BirthMoment) Validate() error {
	if m.Year < 1 || m.Year > 9999 {
		return fmt.Errorf("%w: year %d", ErrInvalidInput, m.Year)
	}
	if m.Month < 1 || m.Month > 12 {
		return fmt.Errorf("%w: month %d", ErrInvalidInput, m.Month)
	}
	if m.Day < 1 || m.Day > 31 {
		return fmt.Errorf("%w: day %d", ErrInvalidInput, m.Day)
	}
	if m.Hour < 0 || m.Hour > 23 {
		return fmt.Errorf("%w: hour %d", ErrInvalidInput, m.Hour)
	}
	if m.Minute < 0 || m.Minute > 59 {
		return fmt.Errorf("%w: minute %d", ErrInvalidInput, m.Minute)
	}
	if m.UTCOffsetHours < -12 || m.UTCOffsetHours > 14 {
		return fmt.Errorf("%w: utc offset %g", ErrInvalidInput, m.UTCOffsetHours)
	}
	return nil
}

// GeoCoordinate is a geographic position in decimal degrees.
type GeoCoordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Validate checks the coordinate ranges.
func (g GeoCoordinate) Validate() error {
	if g.Latitude < -90 || g.Latitude > 90 {
		return fmt.Errorf("%w: latitude %g", ErrInvalidInput, g.Latitude)
	}
	if g.Longitude < -180 || g.Longitude > 180 {
		return fmt.Errorf("%w: longitude %g", ErrInvalidInput, g.Longitude)
	}
	return nil
}

// Place is a geocoded location: the resolved display name plus coordinates.
type Place struct {
	Name  string        `json:"name"`
	Coord GeoCoordinate `json:"coord"`
}

// BirthInput is the full user submission for one chart: the moment, the
// place, the selected house system, and whether the birth time is only
// approximately known (the input form lets users flag uncertain times).
type BirthInput struct {
	Moment        BirthMoment `json:"moment"`
	Place         Place       `json:"place"`
	HouseSystem   string      `json:"house_system"`
	TimeUncertain bool        `json:"time_uncertain,omitempty"`
}

// Validate checks the moment and coordinates.
func (in BirthInput) Validate() error {
	if err := in.Moment.Validate(); err != nil {
		return err
	}
	return in.Place.Coord.Validate()
}

// BodyPosition is one ephemeris answer: a body and its ecliptic longitude
// in [0, 360).
type BodyPosition struct {
	Body      BodyID  `json:"body"`
	Longitude float64 `json:"longitude"`
}

// HouseCusps holds the twelve house-cusp longitudes. Index 0 is the first
// house cusp (the ascendant under most house systems), index 9 the tenth.
type HouseCusps [12]float64

// AspectKind names an angular relationship between two bodies.
type AspectKind string

const (
	Conjunction    AspectKind = "conjunction"
	Opposition     AspectKind = "opposition"
	Trine          AspectKind = "trine"
	Square         AspectKind = "square"
	Sextile        AspectKind = "sextile"
	Quincunx       AspectKind = "quincunx"
	SemiSextile    AspectKind = "semi-sextile"
	Sesquiquadrate AspectKind = "sesquiquadrate"
)

// Aspect is a detected angular relationship between two bodies. Separation
// is the angular distance on the circle, always in [0, 180].
type Aspect struct {
	Kind       AspectKind `json:"kind"`
	Separation float64    `json:"separation"`
	BodyA      string     `json:"body_a"`
	BodyB      string     `json:"body_b"`
}

// ChartBody is one body's entry in a completed chart, carrying the display
// fields the result page renders alongside the raw longitude.
type ChartBody struct {
	ID         BodyID  `json:"id"`
	Name       string  `json:"name"`
	Symbol     string  `json:"symbol"`
	Longitude  float64 `json:"longitude"`
	Sign       string  `json:"sign"`
	SignSymbol string  `json:"sign_symbol"`
}

// ChartResult is the terminal output of a chart computation. It is complete
// by construction: exactly twelve bodies, twelve houses, and the derived
// axes and aspects. It is never mutated once produced.
type ChartResult struct {
	Bodies    []ChartBody `json:"bodies"`
	Houses    HouseCusps  `json:"houses"`
	Ascendant float64     `json:"ascendant"`
	Midheaven float64     `json:"midheaven"`
	Aspects   []Aspect    `json:"aspects"`
	JulianDay float64     `json:"julian_day"`
}

// ChartRecord is a persisted chart: the input that produced it, the result,
// and bookkeeping fields.
type ChartRecord struct {
	ID        string      `json:"id"`
	Input     BirthInput  `json:"input"`
	Result    ChartResult `json:"result"`
	CreatedAt time.Time   `json:"created_at"`
}

// Progress reports how far a chart computation got. It is attached to
// timeout errors so operators can tell a dead service from a slow one.
type Progress struct {
	BodiesReceived   int  `json:"bodies_received"`
	JulianDayKnown   bool `json:"julian_day_known"`
	HousesReceived   bool `json:"houses_received"`
	UnrecognizedMsgs int  `json:"unrecognized_msgs"`
}
