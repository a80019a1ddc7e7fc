package domain

import (
	"context"
	"io"
	"time"
)

// ChartStore persists completed charts.
type ChartStore interface {
	Insert(ctx context.Context, rec ChartRecord) error
	Get(ctx context.Context, id string) (ChartRecord, error)
	ListRecent(ctx context.Context, limit, offset int) ([]ChartRecord, error)
	// ListBefore returns charts created strictly before the cutoff, for
	// archival.
	ListBefore(ctx context.Context, before time.Time) ([]ChartRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ChartCache caches completed charts keyed by the birth-input fingerprint,
// so resubmitting identical birth data skips the ephemeris round trip.
type ChartCache interface {
	Set(ctx context.Context, fingerprint string, result ChartResult) error
	// Get returns ErrNotFound when the fingerprint is absent. A cached value
	// that fails to deserialize is treated as absent.
	Get(ctx context.Context, fingerprint string) (ChartResult, error)
}

// BirthInputCache remembers the last submitted birth input per client so the
// input form can be prefilled on the next visit.
type BirthInputCache interface {
	Set(ctx context.Context, clientKey string, in BirthInput) error
	Get(ctx context.Context, clientKey string) (BirthInput, error)
}

// Geocoder resolves a free-text place name to a Place. A failed lookup is
// reported as ErrAddressNotFound.
type Geocoder interface {
	Resolve(ctx context.Context, query string) (Place, error)
}

// ChartComputer produces a complete chart for the given input, or fails.
// There is no partial result.
type ChartComputer interface {
	ComputeChart(ctx context.Context, in BirthInput) (ChartResult, error)
}

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// Archiver moves aged chart records out of the primary store into blob
// storage.
type Archiver interface {
	ArchiveCharts(ctx context.Context, before time.Time) (int64, error)
}
