package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/astrohelm/natalchart/internal/pipeline"
	"github.com/astrohelm/natalchart/internal/server"
	"github.com/astrohelm/natalchart/internal/server/handler"
	"github.com/astrohelm/natalchart/internal/server/ws"
	"github.com/astrohelm/natalchart/internal/service"
)

// ServerMode runs the HTTP API and websocket hub.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// ArchiveMode runs a single archive-then-prune pass and exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	if deps.Archiver == nil {
		return fmt.Errorf("archive mode: blob storage is not configured")
	}

	arch := a.newArchivePipeline(deps)
	return arch.Run(ctx)
}

// FullMode runs the HTTP API plus the periodic archive loop.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	a.startHTTPServer(ctx, g, deps)

	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		arch := a.newArchivePipeline(deps)
		g.Go(func() error {
			err := arch.RunLoop(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return err
		})
	}

	return g.Wait()
}

func (a *App) newArchivePipeline(deps *Dependencies) *pipeline.Archiver {
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour
	return pipeline.NewArchiver(
		deps.Archiver,
		deps.ChartStore,
		deps.Notifier,
		retention,
		a.cfg.Archive.Interval.Duration,
		a.logger,
	)
}

// startHTTPServer adds the HTTP server and websocket hub goroutines to the
// errgroup. The server shuts down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hub := ws.NewHub(a.logger)
	g.Go(func() error {
		err := hub.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	chartSvc := service.NewChartService(
		deps.Computer,
		deps.Geocoder,
		deps.ChartStore,
		deps.ChartCache,
		deps.BirthCache,
		deps.Notifier,
		hub,
		a.logger,
	)

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		},
		server.Handlers{
			Health: handler.NewHealthHandler(a.logger),
			Charts: handler.NewChartHandler(chartSvc, a.logger),
		},
		hub,
		a.logger,
	)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
