// Package service contains the orchestration layer between the HTTP
// handlers and the infrastructure packages.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/astrohelm/natalchart/internal/domain"
	"github.com/astrohelm/natalchart/internal/notify"
)

// Broadcaster pushes a completed chart to connected websocket clients. The
// server's hub satisfies it; a nil Broadcaster disables pushes.
type Broadcaster interface {
	BroadcastChart(rec domain.ChartRecord)
}

// ChartService orchestrates chart creation: geocoding, cache lookup, the
// ephemeris round trip, persistence, and fan-out.
type ChartService struct {
	computer domain.ChartComputer
	geocoder domain.Geocoder
	store    domain.ChartStore
	cache    domain.ChartCache
	births   domain.BirthInputCache
	notifier *notify.Notifier
	hub      Broadcaster
	group    singleflight.Group
	logger   *slog.Logger
}

// NewChartService creates a ChartService with all required dependencies.
// notifier and hub may be nil.
func NewChartService(
	computer domain.ChartComputer,
	geocoder domain.Geocoder,
	store domain.ChartStore,
	cache domain.ChartCache,
	births domain.BirthInputCache,
	notifier *notify.Notifier,
	hub Broadcaster,
	logger *slog.Logger,
) *ChartService {
	return &ChartService{
		computer: computer,
		geocoder: geocoder,
		store:    store,
		cache:    cache,
		births:   births,
		notifier: notifier,
		hub:      hub,
		logger:   logger.With(slog.String("component", "chart_service")),
	}
}

// Fingerprint derives the cache key for a birth input. Inputs that produce
// the same chart (same moment, coordinates, and house system) share a
// fingerprint; the place display name and the uncertain-time flag do not
// participate.
func Fingerprint(in domain.BirthInput) string {
	m := in.Moment
	s := fmt.Sprintf("%d-%d-%d %d:%d|%g|%.6f,%.6f|%s",
		m.Year, m.Month, m.Day, m.Hour, m.Minute, m.UTCOffsetHours,
		in.Place.Coord.Latitude, in.Place.Coord.Longitude, in.HouseSystem,
	)
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:16])
}

// CreateChart produces a chart for the given input. If the place carries a
// name but no coordinates it is geocoded first. Identical inputs hit the
// result cache; concurrent identical submissions are collapsed into a single
// ephemeris round trip.
//
// clientKey identifies the submitting client for input prefill; it may be
// empty.
func (s *ChartService) CreateChart(ctx context.Context, clientKey string, in domain.BirthInput) (domain.ChartRecord, error) {
	if in.Place.Name != "" && in.Place.Coord == (domain.GeoCoordinate{}) {
		place, err := s.geocoder.Resolve(ctx, in.Place.Name)
		if err != nil {
			return domain.ChartRecord{}, fmt.Errorf("chart_service: geocode %q: %w", in.Place.Name, err)
		}
		in.Place = place
	}

	if err := in.Validate(); err != nil {
		return domain.ChartRecord{}, err
	}

	result, err := s.computeOrCached(ctx, in)
	if err != nil {
		s.reportFailure(ctx, in, err)
		return domain.ChartRecord{}, err
	}

	rec := domain.ChartRecord{
		ID:        uuid.NewString(),
		Input:     in,
		Result:    result,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		return domain.ChartRecord{}, fmt.Errorf("chart_service: persist chart: %w", err)
	}

	if clientKey != "" {
		if err := s.births.Set(ctx, clientKey, in); err != nil {
			s.logger.WarnContext(ctx, "birth input cache set failed",
				slog.String("client_key", clientKey),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.hub != nil {
		s.hub.BroadcastChart(rec)
	}

	s.logger.InfoContext(ctx, "chart created",
		slog.String("id", rec.ID),
		slog.String("place", in.Place.Name),
	)
	return rec, nil
}

// computeOrCached checks the result cache, and on a miss computes the chart
// via the ephemeris service. The singleflight group guarantees at most one
// in-flight computation per fingerprint.
func (s *ChartService) computeOrCached(ctx context.Context, in domain.BirthInput) (domain.ChartResult, error) {
	fp := Fingerprint(in)

	v, err, shared := s.group.Do(fp, func() (any, error) {
		cached, err := s.cache.Get(ctx, fp)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "chart cache get failed",
				slog.String("fingerprint", fp),
				slog.String("error", err.Error()),
			)
		}

		result, err := s.computer.ComputeChart(ctx, in)
		if err != nil {
			return nil, err
		}

		if cacheErr := s.cache.Set(ctx, fp, result); cacheErr != nil {
			s.logger.WarnContext(ctx, "chart cache set failed",
				slog.String("fingerprint", fp),
				slog.String("error", cacheErr.Error()),
			)
		}
		return result, nil
	})
	if err != nil {
		return domain.ChartResult{}, err
	}
	if shared {
		s.logger.DebugContext(ctx, "chart computation shared",
			slog.String("fingerprint", fp),
		)
	}
	return v.(domain.ChartResult), nil
}

// GetChart fetches a persisted chart by id.
func (s *ChartService) GetChart(ctx context.Context, id string) (domain.ChartRecord, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ChartRecord{}, domain.ErrNotFound
		}
		return domain.ChartRecord{}, fmt.Errorf("chart_service: get chart %s: %w", id, err)
	}
	return rec, nil
}

// ListCharts returns recent charts, newest first.
func (s *ChartService) ListCharts(ctx context.Context, limit, offset int) ([]domain.ChartRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	recs, err := s.store.ListRecent(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("chart_service: list charts: %w", err)
	}
	return recs, nil
}

// LastInput returns the client's most recently submitted birth input, for
// prefilling the entry form. ErrNotFound means the client has none.
func (s *ChartService) LastInput(ctx context.Context, clientKey string) (domain.BirthInput, error) {
	return s.births.Get(ctx, clientKey)
}

// CachedChart returns the client's last input together with its cached
// result, if the result is still in the cache. The result pointer is nil on
// a cache miss; ErrNotFound means the client has no remembered input at all.
func (s *ChartService) CachedChart(ctx context.Context, clientKey string) (domain.BirthInput, *domain.ChartResult, error) {
	in, err := s.births.Get(ctx, clientKey)
	if err != nil {
		return domain.BirthInput{}, nil, err
	}

	result, err := s.cache.Get(ctx, Fingerprint(in))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "chart cache get failed",
				slog.String("client_key", clientKey),
				slog.String("error", err.Error()),
			)
		}
		return in, nil, nil
	}
	return in, &result, nil
}

// reportFailure raises an operator alert for a failed computation. Timeouts
// get their own event kind so they can be filtered separately.
func (s *ChartService) reportFailure(ctx context.Context, in domain.BirthInput, err error) {
	if s.notifier == nil {
		return
	}
	if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrAddressNotFound) {
		return
	}

	event := notify.EventComputeFailed
	var te *domain.TimeoutError
	if errors.As(err, &te) {
		event = notify.EventEphemerisTimeout
	}
	msg := fmt.Sprintf("place=%s error=%v", in.Place.Name, err)
	if nerr := s.notifier.Notify(ctx, event, "Chart computation failed", msg); nerr != nil {
		s.logger.WarnContext(ctx, "notify failed", slog.String("error", nerr.Error()))
	}
}
