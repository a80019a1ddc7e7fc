package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/astrohelm/natalchart/internal/domain"
	"github.com/astrohelm/natalchart/internal/service"
)

type stubComputer struct {
	result domain.ChartResult
	err    error
}

func (s *stubComputer) ComputeChart(ctx context.Context, in domain.BirthInput) (domain.ChartResult, error) {
	return s.result, s.err
}

type stubGeocoder struct{}

func (stubGeocoder) Resolve(ctx context.Context, query string) (domain.Place, error) {
	return domain.Place{
		Name:  query,
		Coord: domain.GeoCoordinate{Latitude: 31.23, Longitude: 121.47},
	}, nil
}

type stubStore struct {
	mu   sync.Mutex
	recs map[string]domain.ChartRecord
}

func newStubStore() *stubStore {
	return &stubStore{recs: make(map[string]domain.ChartRecord)}
}

func (s *stubStore) Insert(ctx context.Context, rec domain.ChartRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.ID] = rec
	return nil
}

func (s *stubStore) Get(ctx context.Context, id string) (domain.ChartRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return domain.ChartRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (s *stubStore) ListRecent(ctx context.Context, limit, offset int) ([]domain.ChartRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ChartRecord
	for _, rec := range s.recs {
		out = append(out, rec)
	}
	return out, nil
}

func (s *stubStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ChartRecord, error) {
	return nil, nil
}

func (s *stubStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type stubCache struct {
	mu   sync.Mutex
	vals map[string]domain.ChartResult
}

func newStubCache() *stubCache {
	return &stubCache{vals: make(map[string]domain.ChartResult)}
}

func (c *stubCache) Set(ctx context.Context, fp string, r domain.ChartResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals[fp] = r
	return nil
}

func (c *stubCache) Get(ctx context.Context, fp string) (domain.ChartResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.vals[fp]
	if !ok {
		return domain.ChartResult{}, domain.ErrNotFound
	}
	return r, nil
}

type stubBirths struct {
	mu   sync.Mutex
	vals map[string]domain.BirthInput
}

func newStubBirths() *stubBirths {
	return &stubBirths{vals: make(map[string]domain.BirthInput)}
}

func (b *stubBirths) Set(ctx context.Context, key string, in domain.BirthInput) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.vals[key] = in
	return nil
}

func (b *stubBirths) Get(ctx context.Context, key string) (domain.BirthInput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	in, ok := b.vals[key]
	if !ok {
		return domain.BirthInput{}, domain.ErrNotFound
	}
	return in, nil
}

func newTestHandler(computer domain.ChartComputer) *ChartHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewChartService(
		computer, stubGeocoder{}, newStubStore(), newStubCache(), newStubBirths(),
		nil, nil, logger,
	)
	return NewChartHandler(svc, logger)
}

const createBody = `{
	"year": 2000, "month": 1, "day": 1, "hour": 12, "minute": 0,
	"utc_offset_hours": 8, "place": "Shanghai", "house_system": "placidus"
}`

func TestCreateChart(t *testing.T) {
	h := newTestHandler(&stubComputer{result: domain.ChartResult{JulianDay: 2451545.0}})

	req := httptest.NewRequest(http.MethodPost, "/api/charts", strings.NewReader(createBody))
	req.Header.Set("X-Client-Key", "client-1")
	rr := httptest.NewRecorder()
	h.CreateChart(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)

	var rec domain.ChartRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	require.NotEmpty(t, rec.ID)
	require.Equal(t, 2451545.0, rec.Result.JulianDay)
	require.InDelta(t, 31.23, rec.Input.Place.Coord.Latitude, 1e-9)
}

func TestCreateChartBadJSON(t *testing.T) {
	h := newTestHandler(&stubComputer{})

	req := httptest.NewRequest(http.MethodPost, "/api/charts", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	h.CreateChart(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateChartInvalidInput(t *testing.T) {
	h := newTestHandler(&stubComputer{})

	body := strings.Replace(createBody, `"month": 1`, `"month": 13`, 1)
	req := httptest.NewRequest(http.MethodPost, "/api/charts", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.CreateChart(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateChartTimeout(t *testing.T) {
	h := newTestHandler(&stubComputer{err: &domain.TimeoutError{
		Stage:    "compute",
		Progress: domain.Progress{BodiesReceived: 7},
	}})

	req := httptest.NewRequest(http.MethodPost, "/api/charts", strings.NewReader(createBody))
	rr := httptest.NewRecorder()
	h.CreateChart(rr, req)

	require.Equal(t, http.StatusGatewayTimeout, rr.Code)
}

func TestCreateChartProtocolError(t *testing.T) {
	h := newTestHandler(&stubComputer{err: &domain.ProtocolError{Reason: "insane julian day"}})

	req := httptest.NewRequest(http.MethodPost, "/api/charts", strings.NewReader(createBody))
	rr := httptest.NewRecorder()
	h.CreateChart(rr, req)

	require.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestGetChartNotFound(t *testing.T) {
	h := newTestHandler(&stubComputer{})

	req := httptest.NewRequest(http.MethodGet, "/api/charts/nope", nil)
	req.SetPathValue("id", "nope")
	rr := httptest.NewRecorder()
	h.GetChart(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCachedChartMissingKey(t *testing.T) {
	h := newTestHandler(&stubComputer{})

	req := httptest.NewRequest(http.MethodGet, "/api/charts/cached", nil)
	rr := httptest.NewRecorder()
	h.CachedChart(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCachedChartRoundTrip(t *testing.T) {
	h := newTestHandler(&stubComputer{result: domain.ChartResult{JulianDay: 2451545.0}})

	create := httptest.NewRequest(http.MethodPost, "/api/charts", strings.NewReader(createBody))
	create.Header.Set("X-Client-Key", "client-2")
	rr := httptest.NewRecorder()
	h.CreateChart(rr, create)
	require.Equal(t, http.StatusCreated, rr.Code)

	cached := httptest.NewRequest(http.MethodGet, "/api/charts/cached", nil)
	cached.Header.Set("X-Client-Key", "client-2")
	rr = httptest.NewRecorder()
	h.CachedChart(rr, cached)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Input  domain.BirthInput   `json:"input"`
		Result *domain.ChartResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 2000, resp.Input.Moment.Year)
	require.NotNil(t, resp.Result)
	require.Equal(t, 2451545.0, resp.Result.JulianDay)
}
