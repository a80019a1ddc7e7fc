package ephemeris

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/astrohelm/natalchart/internal/astro"
	"github.com/astrohelm/natalchart/internal/domain"
)

const (
	// defaultHandshakeTimeout bounds the websocket open before any request
	// is sent.
	defaultHandshakeTimeout = 10 * time.Second

	// defaultComputeTimeout bounds the whole computation from request
	// issuance to the final response.
	defaultComputeTimeout = 30 * time.Second

	// jdDriftWarn is how far the service's Julian day may drift from the
	// locally computed reference before we log about it. The service
	// computes in terrestrial time, so sub-minute drift is expected.
	jdDriftWarn = 0.05
)

// Config holds the ephemeris client parameters.
type Config struct {
	// URL is the websocket endpoint of the computation service.
	URL string

	HandshakeTimeout time.Duration
	ComputeTimeout   time.Duration
}

// Client computes natal charts against the remote swisseph service. Each
// ComputeChart call opens its own session; the client itself is stateless
// and safe for concurrent use.
type Client struct {
	cfg    Config
	logger *slog.Logger
}

// NewClient creates a chart computation client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.ComputeTimeout <= 0 {
		cfg.ComputeTimeout = defaultComputeTimeout
	}
	return &Client{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "ephemeris")),
	}
}

// ComputeChart runs one full chart computation: it normalizes the birth
// moment to UTC, requests all twelve body positions plus the Julian day,
// requests house cusps once the Julian day arrives, and assembles the
// result. It either returns a complete chart or an error; the session is
// closed on every exit path.
func (c *Client) ComputeChart(ctx context.Context, in domain.BirthInput) (domain.ChartResult, error) {
	if err := in.Validate(); err != nil {
		return domain.ChartResult{}, err
	}

	fields := astro.NormalizeUTC(in.Moment)
	localJD := astro.JulianDay(fields)
	coord := in.Place.Coord
	hsys := astro.HouseSystemCode(in.HouseSystem)

	sess, err := DialSession(ctx, c.cfg.URL, c.cfg.HandshakeTimeout)
	if err != nil {
		return domain.ChartResult{}, err
	}
	defer sess.Close()

	// Twelve position requests plus the Julian day request. The houses
	// request is gated on the Julian day and sent from the receive loop.
	for i := range astro.Bodies {
		if err := sess.Send(bodyRequest(astro.Bodies[i].ID, fields, coord)); err != nil {
			return domain.ChartResult{}, err
		}
	}
	if err := sess.Send(julianDayRequest(fields)); err != nil {
		return domain.ChartResult{}, err
	}

	asm := astro.NewAssembler()
	msgs, readErrs := sess.Messages()

	deadline := time.NewTimer(c.cfg.ComputeTimeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return domain.ChartResult{}, fmt.Errorf("ephemeris: compute: %w", ctx.Err())

		case <-deadline.C:
			return domain.ChartResult{}, &domain.TimeoutError{
				Stage:    "compute",
				Progress: asm.Progress(),
			}

		case err := <-readErrs:
			return domain.ChartResult{}, fmt.Errorf("ephemeris: read: %w: %w", domain.ErrTransport, err)

		case raw := <-msgs:
			result, done, err := c.handleMessage(sess, asm, raw, coord, hsys, localJD)
			if err != nil {
				return domain.ChartResult{}, err
			}
			if done {
				return result, nil
			}
		}
	}
}

// handleMessage decodes and routes one inbound frame. It returns done=true
// with the assembled chart once the accumulation completes.
func (c *Client) handleMessage(
	sess *Session,
	asm *astro.Assembler,
	raw []byte,
	coord domain.GeoCoordinate,
	hsys byte,
	localJD float64,
) (domain.ChartResult, bool, error) {
	resp, err := DecodeResponse(raw)
	if err != nil {
		return domain.ChartResult{}, false, err
	}

	switch r := resp.(type) {
	case JulianDayResponse:
		first, err := asm.SetJulianDay(r.JD)
		if err != nil {
			return domain.ChartResult{}, false, err
		}
		if first {
			if math.Abs(r.JD-localJD) > jdDriftWarn {
				c.logger.Warn("julian day drift against local reference",
					slog.Float64("service", r.JD),
					slog.Float64("local", localJD),
				)
			}
			if err := sess.Send(housesRequest(r.JD, coord, hsys)); err != nil {
				return domain.ChartResult{}, false, err
			}
		}

	case BodyResponse:
		asm.AddBody(r.Position)

	case HousesResponse:
		if err := asm.AddHouses(r.Cusps, r.Ascmc); err != nil {
			return domain.ChartResult{}, false, err
		}

	case ServiceErrorResponse:
		return domain.ChartResult{}, false, &domain.ProtocolError{
			Reason: "service error: " + r.Message,
		}

	case UnrecognizedResponse:
		asm.NoteUnrecognized()
		c.logger.Warn("unrecognized response shape", slog.Int("bytes", len(raw)))
	}

	if result, ok := asm.Result(); ok {
		return result, true, nil
	}
	return domain.ChartResult{}, false, nil
}

// Compile-time interface check.
var _ domain.ChartComputer = (*Client)(nil)
