package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/astrohelm/natalchart/internal/domain"
)

type fakeComputer struct {
	mu      sync.Mutex
	calls   int32
	block   chan struct{}
	result  domain.ChartResult
	err     error
	lastIn  domain.BirthInput
	started chan struct{}
}

func (f *fakeComputer) ComputeChart(ctx context.Context, in domain.BirthInput) (domain.ChartResult, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.lastIn = in
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	return f.result, f.err
}

type fakeGeocoder struct {
	place domain.Place
	err   error
	calls int
}

func (f *fakeGeocoder) Resolve(ctx context.Context, query string) (domain.Place, error) {
	f.calls++
	if f.err != nil {
		return domain.Place{}, f.err
	}
	return f.place, nil
}

type memStore struct {
	mu   sync.Mutex
	recs map[string]domain.ChartRecord
}

func newMemStore() *memStore {
	return &memStore{recs: make(map[string]domain.ChartRecord)}
}

func (m *memStore) Insert(ctx context.Context, rec domain.ChartRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.ID] = rec
	return nil
}

func (m *memStore) Get(ctx context.Context, id string) (domain.ChartRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return domain.ChartRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (m *memStore) ListRecent(ctx context.Context, limit, offset int) ([]domain.ChartRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ChartRecord
	for _, rec := range m.recs {
		out = append(out, rec)
	}
	return out, nil
}

func (m *memStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ChartRecord, error) {
	return nil, nil
}

func (m *memStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type memCache struct {
	mu   sync.Mutex
	vals map[string]domain.ChartResult
}

func newMemCache() *memCache {
	return &memCache{vals: make(map[string]domain.ChartResult)}
}

func (m *memCache) Set(ctx context.Context, fp string, r domain.ChartResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[fp] = r
	return nil
}

func (m *memCache) Get(ctx context.Context, fp string) (domain.ChartResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.vals[fp]
	if !ok {
		return domain.ChartResult{}, domain.ErrNotFound
	}
	return r, nil
}

type memBirths struct {
	mu   sync.Mutex
	vals map[string]domain.BirthInput
}

func newMemBirths() *memBirths {
	return &memBirths{vals: make(map[string]domain.BirthInput)}
}

func (m *memBirths) Set(ctx context.Context, key string, in domain.BirthInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = in
	return nil
}

func (m *memBirths) Get(ctx context.Context, key string) (domain.BirthInput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.vals[key]
	if !ok {
		return domain.BirthInput{}, domain.ErrNotFound
	}
	return in, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testInput() domain.BirthInput {
	return domain.BirthInput{
		Moment: domain.BirthMoment{
			Year: 2000, Month: 1, Day: 1, Hour: 12, Minute: 0,
			UTCOffsetHours: 8,
		},
		Place: domain.Place{
			Name:  "Shanghai",
			Coord: domain.GeoCoordinate{Latitude: 31.23, Longitude: 121.47},
		},
		HouseSystem: "placidus",
	}
}

func testResult() domain.ChartResult {
	return domain.ChartResult{
		Bodies:    []domain.ChartBody{{ID: domain.Sun, Name: "Sun", Longitude: 280.5, Sign: "Capricorn"}},
		Ascendant: 10,
		Midheaven: 160,
		JulianDay: 2451545.0,
	}
}

func newTestService(computer *fakeComputer, geo *fakeGeocoder) (*ChartService, *memStore, *memCache, *memBirths) {
	store := newMemStore()
	cache := newMemCache()
	births := newMemBirths()
	svc := NewChartService(computer, geo, store, cache, births, nil, nil, discardLogger())
	return svc, store, cache, births
}

func TestCreateChartComputesAndPersists(t *testing.T) {
	computer := &fakeComputer{result: testResult()}
	svc, store, cache, births := newTestService(computer, &fakeGeocoder{})

	rec, err := svc.CreateChart(context.Background(), "client-1", testInput())
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	require.Equal(t, testResult().JulianDay, rec.Result.JulianDay)

	stored, err := store.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.Input, stored.Input)

	_, err = cache.Get(context.Background(), Fingerprint(rec.Input))
	require.NoError(t, err)

	in, err := births.Get(context.Background(), "client-1")
	require.NoError(t, err)
	require.Equal(t, rec.Input, in)
}

func TestCreateChartCacheHitSkipsComputation(t *testing.T) {
	computer := &fakeComputer{result: testResult()}
	svc, _, _, _ := newTestService(computer, &fakeGeocoder{})

	_, err := svc.CreateChart(context.Background(), "", testInput())
	require.NoError(t, err)
	_, err = svc.CreateChart(context.Background(), "", testInput())
	require.NoError(t, err)

	require.Equal(t, int32(1), atomic.LoadInt32(&computer.calls))
}

func TestCreateChartGeocodesNamedPlace(t *testing.T) {
	geo := &fakeGeocoder{place: domain.Place{
		Name:  "Shanghai, China",
		Coord: domain.GeoCoordinate{Latitude: 31.23, Longitude: 121.47},
	}}
	computer := &fakeComputer{result: testResult()}
	svc, _, _, _ := newTestService(computer, geo)

	in := testInput()
	in.Place = domain.Place{Name: "Shanghai"}

	rec, err := svc.CreateChart(context.Background(), "", in)
	require.NoError(t, err)
	require.Equal(t, 1, geo.calls)
	require.Equal(t, "Shanghai, China", rec.Input.Place.Name)
	require.InDelta(t, 31.23, rec.Input.Place.Coord.Latitude, 1e-9)
}

func TestCreateChartGeocodeFailure(t *testing.T) {
	geo := &fakeGeocoder{err: domain.ErrAddressNotFound}
	svc, _, _, _ := newTestService(&fakeComputer{result: testResult()}, geo)

	in := testInput()
	in.Place = domain.Place{Name: "nowhere at all"}

	_, err := svc.CreateChart(context.Background(), "", in)
	require.ErrorIs(t, err, domain.ErrAddressNotFound)
}

func TestCreateChartInvalidInput(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeComputer{result: testResult()}, &fakeGeocoder{})

	in := testInput()
	in.Moment.Month = 13

	_, err := svc.CreateChart(context.Background(), "", in)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreateChartConcurrentSubmissionsShareComputation(t *testing.T) {
	computer := &fakeComputer{
		result:  testResult(),
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	svc, _, _, _ := newTestService(computer, &fakeGeocoder{})

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateChart(context.Background(), "", testInput())
		}(i)
	}

	<-computer.started
	close(computer.block)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), atomic.LoadInt32(&computer.calls))
}

func TestCreateChartComputeFailure(t *testing.T) {
	wantErr := errors.New("boom")
	computer := &fakeComputer{err: wantErr}
	svc, _, _, _ := newTestService(computer, &fakeGeocoder{})

	_, err := svc.CreateChart(context.Background(), "", testInput())
	require.ErrorIs(t, err, wantErr)
}

func TestFingerprintIgnoresDisplayFields(t *testing.T) {
	a := testInput()
	b := testInput()
	b.Place.Name = "different display name"
	b.TimeUncertain = true
	require.Equal(t, Fingerprint(a), Fingerprint(b))

	c := testInput()
	c.Moment.Minute = 1
	require.NotEqual(t, Fingerprint(a), Fingerprint(c))
}

func TestLastInput(t *testing.T) {
	svc, _, _, births := newTestService(&fakeComputer{result: testResult()}, &fakeGeocoder{})

	_, err := svc.LastInput(context.Background(), "unknown")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, births.Set(context.Background(), "client-2", testInput()))
	in, err := svc.LastInput(context.Background(), "client-2")
	require.NoError(t, err)
	require.Equal(t, testInput(), in)
}
