// Package pipeline runs the background jobs of the chart service.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/astrohelm/natalchart/internal/domain"
	"github.com/astrohelm/natalchart/internal/notify"
)

// ChartPruner deletes chart records older than a cutoff. The Postgres store
// satisfies it.
type ChartPruner interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// Archiver periodically moves aged chart records from the database to blob
// cold storage, then prunes them from the primary store. Pruning only runs
// after the archive upload succeeded, so a failed upload never loses data.
type Archiver struct {
	blobArchiver domain.Archiver
	pruner       ChartPruner
	notifier     *notify.Notifier
	retention    time.Duration
	interval     time.Duration
	logger       *slog.Logger
}

// NewArchiver creates an Archiver. Records older than retention are archived
// on every tick of interval.
func NewArchiver(
	blobArchiver domain.Archiver,
	pruner ChartPruner,
	notifier *notify.Notifier,
	retention, interval time.Duration,
	logger *slog.Logger,
) *Archiver {
	return &Archiver{
		blobArchiver: blobArchiver,
		pruner:       pruner,
		notifier:     notifier,
		retention:    retention,
		interval:     interval,
		logger:       logger.With(slog.String("component", "archive_pipeline")),
	}
}

// Run executes a single archive-then-prune pass.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-a.retention)
	a.logger.Info("starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Duration("retention", a.retention),
	)

	archived, err := a.blobArchiver.ArchiveCharts(ctx, cutoff)
	if err != nil {
		a.notifyEvent(ctx, notify.EventArchiveFailed, "Chart archive failed", err.Error())
		return fmt.Errorf("archiving charts before %v: %w", cutoff, err)
	}
	if archived == 0 {
		a.logger.Info("archive run complete, nothing to archive")
		return nil
	}

	pruned, err := a.pruner.DeleteBefore(ctx, cutoff)
	if err != nil {
		// The archive is already in blob storage; the next run retries the
		// delete with the same cutoff semantics.
		a.notifyEvent(ctx, notify.EventArchiveFailed, "Chart prune failed", err.Error())
		return fmt.Errorf("pruning charts before %v: %w", cutoff, err)
	}

	a.logger.Info("archive run complete",
		slog.Int64("archived", archived),
		slog.Int64("pruned", pruned),
	)
	a.notifyEvent(ctx, notify.EventArchiveCompleted, "Chart archive completed",
		fmt.Sprintf("archived %d charts older than %s", archived, cutoff.Format(time.RFC3339)))
	return nil
}

// RunLoop runs archive passes on a fixed interval until the context is
// cancelled. Individual run failures are logged and do not stop the loop.
func (a *Archiver) RunLoop(ctx context.Context) error {
	a.logger.Info("archive loop started", slog.Duration("interval", a.interval))

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archive loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (a *Archiver) notifyEvent(ctx context.Context, event, title, message string) {
	if a.notifier == nil {
		return
	}
	if err := a.notifier.Notify(ctx, event, title, message); err != nil {
		a.logger.Warn("notify failed", slog.String("error", err.Error()))
	}
}
