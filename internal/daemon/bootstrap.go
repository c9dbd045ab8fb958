// SPDX-License-Identifier: MIT

// Package daemon wires the frame service together and runs it until shutdown.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManuGH/tempy/internal/api"
	"github.com/ManuGH/tempy/internal/cache"
	"github.com/ManuGH/tempy/internal/config"
	"github.com/ManuGH/tempy/internal/health"
	"github.com/ManuGH/tempy/internal/log"
)

// Bootstrap builds the services, the HTTP surface and the manager for cfg.
// Shutdown hooks release the services after the server has drained.
func Bootstrap(ctx context.Context, cfg config.AppConfig, version string) (*App, error) {
	logger := log.WithComponent("daemon")

	svc, err := NewServices(ctx, cfg, version)
	if err != nil {
		return nil, err
	}

	hm := health.NewManager(version)
	hm.RegisterChecker(health.NewBinaryChecker("ffmpeg", cfg.FFmpeg.Bin))
	hm.RegisterChecker(health.NewBinaryChecker("ffprobe", cfg.FFmpeg.ProbeBin))
	hm.RegisterChecker(health.NewDirChecker("videos", svc.Catalog.Root()))
	hm.RegisterChecker(health.NewSQLiteChecker("library_index", svc.Store.DB()))
	if rc, ok := svc.Cache.(*cache.RedisCache); ok {
		hm.RegisterChecker(health.NewPingChecker("redis", rc))
	}

	tracing := ""
	if cfg.Telemetry.Enabled {
		tracing = "tempy"
	}
	srv := api.New(api.Config{
		AllowedOrigins: cfg.API.AllowedOrigins,
		RateLimitRPM:   cfg.API.RateLimitRPM,
		TracingService: tracing,
		Geometry:       svc.Geometry(),
	}, svc.Extractor, svc.Catalog, hm)

	mgr, err := NewManager(cfg.API, Deps{
		Logger:        &logger,
		APIHandler:    srv.Handler(),
		ShutdownHooks: []Hook{{Name: "services", Fn: svc.Close}},
	})
	if err != nil {
		_ = svc.Close(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("daemon manager: %w", err)
	}

	logger.Info().
		Str("version", version).
		Str("listen", cfg.API.ListenAddr).
		Str("video_dir", svc.Catalog.Root()).
		Int("width", cfg.Frames.Width).
		Int("height", cfg.Frames.Height).
		Int("fps", cfg.Frames.FPS).
		Str("cache", cfg.Cache.Backend).
		Msg("daemon bootstrapped")

	return NewApp(logger, mgr, svc.Catalog, cfg.Library, svc.Admission), nil
}

// WaitForShutdown returns a context that is cancelled on SIGINT or SIGTERM.
func WaitForShutdown() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
