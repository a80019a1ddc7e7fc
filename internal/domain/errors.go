package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid birth input")
	ErrAddressNotFound = errors.New("address not found")
	ErrTransport       = errors.New("transport failure")
	ErrSessionClosed   = errors.New("session closed")
)

// TimeoutError is returned when a chart computation or geocode lookup does
// not finish within its deadline. Progress records what had arrived so far.
type TimeoutError struct {
	Stage    string // "handshake" or "compute"
	Progress Progress
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf(
		"timeout during %s: %d/%d bodies, julian_day=%t, houses=%t, unrecognized=%d",
		e.Stage, e.Progress.BodiesReceived, BodyCount,
		e.Progress.JulianDayKnown, e.Progress.HousesReceived,
		e.Progress.UnrecognizedMsgs,
	)
}

// ProtocolError is returned when a response from the ephemeris service
// cannot be interpreted: malformed JSON, an insane Julian day, or house
// data that cannot satisfy the twelve-cusp invariant. It is fatal for the
// computation and never retried automatically.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Reason
}
