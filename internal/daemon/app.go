// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/tempy/internal/admission"
	"github.com/ManuGH/tempy/internal/config"
	"github.com/ManuGH/tempy/internal/library"
	"github.com/ManuGH/tempy/internal/log"
)

// Library is the background side of the video catalog.
// *library.Catalog implements it.
type Library interface {
	Scan(ctx context.Context) (*library.ScanResult, error)
	Watch(ctx context.Context) error
}

// App owns the long-lived runtime lifecycle (index scan, directory watcher,
// load sampler) and delegates server management to Manager.
type App struct {
	logger      zerolog.Logger
	manager     Manager
	library     Library
	libraryCfg  config.LibraryConfig
	admission   *admission.Controller
	cpuInterval time.Duration
}

// NewApp creates a new App orchestrator. lib and admit may be nil.
func NewApp(logger zerolog.Logger, manager Manager, lib Library, libraryCfg config.LibraryConfig, admit *admission.Controller) *App {
	return &App{
		logger:      logger,
		manager:     manager,
		library:     lib,
		libraryCfg:  libraryCfg,
		admission:   admit,
		cpuInterval: 2 * time.Second,
	}
}

// Run starts all owned background subsystems and blocks until ctx is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	// Index warm-up is best-effort: listing probes lazily without it.
	if a.library != nil && a.libraryCfg.ScanOnStart {
		g.Go(func() error {
			res, err := a.library.Scan(ctx)
			switch {
			case errors.Is(err, library.ErrScanRunning), ctx.Err() != nil:
			case err != nil:
				a.logger.Warn().Err(err).Str(log.FieldEvent, "library.scan.failed").Msg("initial library scan failed")
			case res.Errors > 0:
				a.logger.Warn().Str(log.FieldEvent, "library.scan.partial").Msg(res.Error())
			}
			return nil
		})
	}

	// Without the watcher, cached frames only expire through their TTL.
	if a.library != nil && a.libraryCfg.Watch {
		g.Go(func() error {
			if err := a.library.Watch(ctx); err != nil {
				a.logger.Warn().
					Err(err).
					Str(log.FieldEvent, "library.watch_failed").
					Msg("library watcher stopped; cache invalidation falls back to TTL")
			}
			return nil
		})
	}

	if a.admission != nil {
		g.Go(func() error {
			admission.RunCPUSampler(ctx, a.admission, a.cpuInterval, nil)
			return nil
		})
	}

	// Main server lifecycle.
	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}
