// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"github.com/ManuGH/tempy/internal/validate"
)

// CacheBackends are the accepted cache.backend values.
var CacheBackends = []string{"memory", "redis", "badger", "none"}

// Validate checks cfg and reports every problem at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.OneOf("logLevel", cfg.LogLevel, validate.LogLevels)

	v.ListenAddr("api.listenAddr", cfg.API.ListenAddr)
	v.NonNegative("api.rateLimitRPM", cfg.API.RateLimitRPM)
	v.NonNegativeDuration("api.readTimeout", cfg.API.ReadTimeout)
	v.NonNegativeDuration("api.writeTimeout", cfg.API.WriteTimeout)
	v.PositiveDuration("api.shutdownTimeout", cfg.API.ShutdownTimeout)

	v.Range("frames.width", cfg.Frames.Width, 1, 7680)
	v.Range("frames.height", cfg.Frames.Height, 1, 4320)
	v.Range("frames.fps", cfg.Frames.FPS, 1, 240)
	v.NonNegative("frames.maxCount", cfg.Frames.MaxCount)

	v.NotEmpty("ffmpeg.bin", cfg.FFmpeg.Bin)
	v.NotEmpty("ffmpeg.probeBin", cfg.FFmpeg.ProbeBin)
	v.PositiveDuration("ffmpeg.killTimeout", cfg.FFmpeg.KillTimeout)
	v.NonNegativeDuration("ffmpeg.startTimeout", cfg.FFmpeg.StartTimeout)
	v.NonNegativeDuration("ffmpeg.stallTimeout", cfg.FFmpeg.StallTimeout)
	v.Range("ffmpeg.maxConcurrent", cfg.FFmpeg.MaxConcurrent, 1, 256)
	v.FloatRange("ffmpeg.spawnRate", cfg.FFmpeg.SpawnRate, 0, 1000)
	v.NonNegative("ffmpeg.spawnBurst", cfg.FFmpeg.SpawnBurst)
	v.NonNegativeDuration("ffmpeg.queueTimeout", cfg.FFmpeg.QueueTimeout)
	v.FloatRange("ffmpeg.cpuThresholdScale", cfg.FFmpeg.CPUThresholdScale, 0, 64)

	v.Directory("library.dir", cfg.Library.Dir, true)
	v.NotEmpty("library.indexPath", cfg.Library.IndexPath)
	v.NonNegative("library.maxDepth", cfg.Library.MaxDepth)

	v.OneOf("cache.backend", cfg.Cache.Backend, CacheBackends)
	if cfg.Cache.Backend != "none" {
		v.PositiveDuration("cache.ttl", cfg.Cache.TTL)
	}
	v.NonNegativeDuration("cache.cleanupInterval", cfg.Cache.CleanupInterval)
	switch cfg.Cache.Backend {
	case "redis":
		v.NotEmpty("cache.redisAddr", cfg.Cache.RedisAddr)
		v.Range("cache.redisDB", cfg.Cache.RedisDB, 0, 15)
	case "badger":
		v.Directory("cache.badgerDir", cfg.Cache.BadgerDir, false)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("telemetry.samplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}
