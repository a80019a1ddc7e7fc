// Package geocode resolves free-text place names through the same websocket
// service that computes charts, using its amap geocoding function. Every
// lookup opens a short-lived session of its own.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/astrohelm/natalchart/internal/domain"
)

const (
	defaultTimeout = 10 * time.Second
	writeWait      = 5 * time.Second
)

// Config holds the geocoder parameters.
type Config struct {
	// URL is the websocket endpoint, shared with the ephemeris client.
	URL string

	// Timeout bounds the whole lookup including the handshake.
	Timeout time.Duration
}

// Resolver implements domain.Geocoder over the websocket service.
type Resolver struct {
	cfg    Config
	logger *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(cfg Config, logger *slog.Logger) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Resolver{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "geocode")),
	}
}

// geocodeEnvelope is the amap request wrapper.
type geocodeEnvelope struct {
	Type string        `json:"type"`
	Data []geocodeCall `json:"data"`
}

type geocodeCall struct {
	Func string `json:"func"`
	Args []any  `json:"args"`
}

// geocodeReply is the single response frame of a lookup.
type geocodeReply struct {
	Result *struct {
		Name string  `json:"name"`
		Lat  float64 `json:"lat"`
		Lng  float64 `json:"lng"`
	} `json:"result"`
	Error string `json:"error"`
}

// Resolve looks up a place name. Every failure mode (no match, malformed
// response, transport error, timeout) surfaces as ErrAddressNotFound; the
// underlying cause is logged but callers only need "not found".
func (r *Resolver) Resolve(ctx context.Context, query string) (domain.Place, error) {
	place, err := r.lookup(ctx, query)
	if err != nil {
		if !errors.Is(err, domain.ErrAddressNotFound) {
			r.logger.Warn("geocode lookup failed",
				slog.String("query", query),
				slog.String("error", err.Error()),
			)
		}
		return domain.Place{}, fmt.Errorf("geocode %q: %w", query, domain.ErrAddressNotFound)
	}
	return place, nil
}

func (r *Resolver) lookup(ctx context.Context, query string) (domain.Place, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: r.cfg.Timeout}
	conn, _, err := dialer.DialContext(ctx, r.cfg.URL, nil)
	if err != nil {
		return domain.Place{}, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	env := geocodeEnvelope{
		Type: "amap",
		Data: []geocodeCall{{Func: "geocode", Args: []any{query}}},
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return domain.Place{}, fmt.Errorf("marshal: %w", err)
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return domain.Place{}, fmt.Errorf("write: %w", err)
	}

	deadline, _ := ctx.Deadline()
	conn.SetReadDeadline(deadline)

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return domain.Place{}, fmt.Errorf("read: %w", err)
	}

	var reply geocodeReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return domain.Place{}, fmt.Errorf("decode: %w", err)
	}
	if reply.Result == nil || reply.Result.Name == "" {
		if reply.Error != "" {
			return domain.Place{}, fmt.Errorf("service: %s", reply.Error)
		}
		return domain.Place{}, domain.ErrAddressNotFound
	}

	return domain.Place{
		Name: reply.Result.Name,
		Coord: domain.GeoCoordinate{
			Latitude:  reply.Result.Lat,
			Longitude: reply.Result.Lng,
		},
	}, nil
}

// Compile-time interface check.
var _ domain.Geocoder = (*Resolver)(nil)
