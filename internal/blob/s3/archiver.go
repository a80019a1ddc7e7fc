package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/astrohelm/natalchart/internal/domain"
)

// ChartArchiveStore provides read access to chart records for archival. The
// Postgres store satisfies it; the archiver does not need the full
// domain.ChartStore surface.
type ChartArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.ChartRecord, error)
}

// multipartThreshold is the payload size above which the archiver switches
// from a single PutObject to a multipart upload.
const multipartThreshold = 8 * 1024 * 1024

// ChartArchiver implements domain.Archiver by querying the store for aged
// chart records, serializing them to JSONL, and uploading the result to blob
// storage.
//
// Deletion of the archived records from the primary store is intentionally
// not performed here; that is a separate step run after the archive upload
// has succeeded.
type ChartArchiver struct {
	writer domain.BlobWriter
	store  ChartArchiveStore
	logger *slog.Logger
}

// NewChartArchiver creates a ChartArchiver.
func NewChartArchiver(writer domain.BlobWriter, store ChartArchiveStore, logger *slog.Logger) *ChartArchiver {
	return &ChartArchiver{
		writer: writer,
		store:  store,
		logger: logger.With("component", "archiver"),
	}
}

// ArchiveCharts queries all charts created before the cutoff, serializes
// them to JSONL, and uploads the file at archive/charts/YYYY-MM.jsonl. It
// returns the number of records archived.
func (a *ChartArchiver) ArchiveCharts(ctx context.Context, before time.Time) (int64, error) {
	recs, err := a.store.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive charts query: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive charts marshal: %w", err)
	}

	path := archivePath("charts", before)
	if int64(len(buf)) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive charts upload: %w", err)
	}

	count := int64(len(recs))
	a.logger.Info("archived charts",
		"path", path,
		"count", count,
		"before", before.Format(time.RFC3339),
	)
	return count, nil
}

// archivePath builds the blob key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/charts/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ChartArchiver)(nil)
