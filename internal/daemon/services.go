// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuGH/tempy/internal/admission"
	"github.com/ManuGH/tempy/internal/cache"
	"github.com/ManuGH/tempy/internal/config"
	"github.com/ManuGH/tempy/internal/frames"
	"github.com/ManuGH/tempy/internal/frames/ffmpeg"
	"github.com/ManuGH/tempy/internal/library"
	"github.com/ManuGH/tempy/internal/log"
	"github.com/ManuGH/tempy/internal/telemetry"
)

// Services is the extraction stack shared by the daemon and the one-shot
// CLI commands.
type Services struct {
	Config    config.AppConfig
	Telemetry *telemetry.Provider
	Admission *admission.Controller
	Pipeline  *frames.Pipeline
	Cache     cache.Cache
	// Extractor is the pipeline behind the result cache.
	Extractor *frames.CachedExtractor
	Store     *library.Store
	Catalog   *library.Catalog
}

// NewServices builds every component from cfg. On error, whatever was
// already opened is closed again.
func NewServices(ctx context.Context, cfg config.AppConfig, version string) (_ *Services, err error) {
	s := &Services{Config: cfg}
	defer func() {
		if err != nil {
			_ = s.Close(context.WithoutCancel(ctx))
		}
	}()

	s.Telemetry, err = telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "tempy",
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	s.Admission = admission.New(admission.Config{
		MaxConcurrent:     cfg.FFmpeg.MaxConcurrent,
		SpawnRate:         cfg.FFmpeg.SpawnRate,
		SpawnBurst:        cfg.FFmpeg.SpawnBurst,
		QueueTimeout:      cfg.FFmpeg.QueueTimeout,
		CPUThresholdScale: cfg.FFmpeg.CPUThresholdScale,
	})

	geometry := frames.Geometry{Width: cfg.Frames.Width, Height: cfg.Frames.Height, FPS: cfg.Frames.FPS}
	decoder := ffmpeg.NewDecoder(ffmpeg.Config{
		BinPath:     cfg.FFmpeg.Bin,
		KillTimeout: cfg.FFmpeg.KillTimeout,
	}, s.Admission)
	s.Pipeline, err = frames.NewPipeline(decoder, frames.Options{
		Geometry:     geometry,
		MaxCount:     cfg.Frames.MaxCount,
		StartTimeout: cfg.FFmpeg.StartTimeout,
		StallTimeout: cfg.FFmpeg.StallTimeout,
	})
	if err != nil {
		return nil, err
	}

	s.Cache, err = cache.New(cache.Config{
		Backend:         cfg.Cache.Backend,
		CleanupInterval: cfg.Cache.CleanupInterval,
		Redis: cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		},
		BadgerDir: cfg.Cache.BadgerDir,
	}, log.WithComponent("cache"))
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	s.Extractor = frames.NewCachedExtractor(s.Pipeline, s.Cache, geometry, cfg.Cache.TTL)

	s.Store, err = library.OpenStore(cfg.Library.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("library index: %w", err)
	}
	s.Catalog, err = library.NewCatalog(library.Config{
		Dir:      cfg.Library.Dir,
		MaxDepth: cfg.Library.MaxDepth,
	}, s.Store, library.NewFFprobe(cfg.FFmpeg.ProbeBin, cfg.FFmpeg.StartTimeout))
	if err != nil {
		return nil, fmt.Errorf("library: %w", err)
	}

	s.Catalog.OnInvalidate(func(ctx context.Context, path string) {
		s.Extractor.InvalidatePath(ctx, path)
	})

	return s, nil
}

// Geometry returns the fixed output geometry.
func (s *Services) Geometry() frames.Geometry {
	return s.Pipeline.Geometry()
}

// Close waits for running decoders, then releases the cache, the index and
// the tracer provider in that order.
func (s *Services) Close(ctx context.Context) error {
	var errs []error
	if s.Pipeline != nil {
		if err := s.Pipeline.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("pipeline: %w", err))
		}
	}
	if s.Cache != nil {
		if err := s.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache: %w", err))
		}
	}
	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("library index: %w", err))
		}
	}
	if s.Telemetry != nil {
		if err := s.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}
