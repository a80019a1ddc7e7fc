package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/astrohelm/natalchart/internal/domain"
)

// ChartStore implements domain.ChartStore using PostgreSQL. Birth input is
// stored in typed columns for querying; the assembled result is kept as an
// opaque JSONB blob, matching its write-once nature.
type ChartStore struct {
	pool *pgxpool.Pool
}

// NewChartStore creates a ChartStore backed by the given connection pool.
func NewChartStore(pool *pgxpool.Pool) *ChartStore {
	return &ChartStore{pool: pool}
}

// Insert persists one completed chart.
func (s *ChartStore) Insert(ctx context.Context, rec domain.ChartRecord) error {
	result, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("postgres: marshal chart %s: %w", rec.ID, err)
	}

	const query = `
		INSERT INTO charts (
			id, birth_year, birth_month, birth_day, birth_hour, birth_minute,
			utc_offset, place_name, latitude, longitude, house_system,
			time_uncertain, result, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14
		)`

	m := rec.Input.Moment
	_, err = s.pool.Exec(ctx, query,
		rec.ID, m.Year, m.Month, m.Day, m.Hour, m.Minute,
		m.UTCOffsetHours, rec.Input.Place.Name,
		rec.Input.Place.Coord.Latitude, rec.Input.Place.Coord.Longitude,
		rec.Input.HouseSystem, rec.Input.TimeUncertain,
		result, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert chart %s: %w", rec.ID, err)
	}
	return nil
}

const selectColumns = `
	id, birth_year, birth_month, birth_day, birth_hour, birth_minute,
	utc_offset, place_name, latitude, longitude, house_system,
	time_uncertain, result, created_at`

// Get fetches one chart by id. It returns domain.ErrNotFound when the id
// does not exist.
func (s *ChartStore) Get(ctx context.Context, id string) (domain.ChartRecord, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT"+selectColumns+" FROM charts WHERE id = $1", id)

	rec, err := scanChart(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ChartRecord{}, domain.ErrNotFound
		}
		return domain.ChartRecord{}, fmt.Errorf("postgres: get chart %s: %w", id, err)
	}
	return rec, nil
}

// ListRecent returns charts ordered newest first.
func (s *ChartStore) ListRecent(ctx context.Context, limit, offset int) ([]domain.ChartRecord, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT"+selectColumns+" FROM charts ORDER BY created_at DESC LIMIT $1 OFFSET $2",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list charts: %w", err)
	}
	defer rows.Close()

	return collectCharts(rows)
}

// ListBefore returns all charts created strictly before the cutoff, oldest
// first, for archival.
func (s *ChartStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ChartRecord, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT"+selectColumns+" FROM charts WHERE created_at < $1 ORDER BY created_at ASC",
		before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list charts before %s: %w", before, err)
	}
	defer rows.Close()

	return collectCharts(rows)
}

// DeleteBefore removes charts created strictly before the cutoff and
// returns the number deleted. Run only after the archive is verified.
func (s *ChartStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM charts WHERE created_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete charts before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

func collectCharts(rows pgx.Rows) ([]domain.ChartRecord, error) {
	var recs []domain.ChartRecord
	for rows.Next() {
		rec, err := scanChart(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan chart: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate charts: %w", err)
	}
	return recs, nil
}

func scanChart(row pgx.Row) (domain.ChartRecord, error) {
	var (
		rec       domain.ChartRecord
		resultRaw []byte
	)
	err := row.Scan(
		&rec.ID,
		&rec.Input.Moment.Year, &rec.Input.Moment.Month, &rec.Input.Moment.Day,
		&rec.Input.Moment.Hour, &rec.Input.Moment.Minute,
		&rec.Input.Moment.UTCOffsetHours,
		&rec.Input.Place.Name,
		&rec.Input.Place.Coord.Latitude, &rec.Input.Place.Coord.Longitude,
		&rec.Input.HouseSystem, &rec.Input.TimeUncertain,
		&resultRaw, &rec.CreatedAt,
	)
	if err != nil {
		return domain.ChartRecord{}, err
	}
	if err := json.Unmarshal(resultRaw, &rec.Result); err != nil {
		return domain.ChartRecord{}, fmt.Errorf("decode result: %w", err)
	}
	return rec, nil
}

// Compile-time interface check.
var _ domain.ChartStore = (*ChartStore)(nil)
