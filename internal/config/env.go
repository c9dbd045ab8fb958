// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/tempy/internal/log"
)

// ParseString reads key from the environment or returns defaultValue.
// It logs which source won.
func ParseString(key, defaultValue string) string {
	logger := log.WithComponent("config")
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		logDefault(logger, key, exists).Str("default", defaultValue).Msg("using default value")
		return defaultValue
	}
	ev := logger.Debug().Str("key", key).Str("source", "environment")
	if isSensitive(key) {
		ev.Bool("sensitive", true).Msg("using environment variable")
	} else {
		ev.Str("value", value).Msg("using environment variable")
	}
	return value
}

// ParseInt reads an integer from key. Malformed values fall back to
// defaultValue with a warning.
func ParseInt(key string, defaultValue int) int {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logDefault(logger, key, ok).Int("default", defaultValue).Msg("using default value")
		return defaultValue
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Int("default", defaultValue).
			Msg("invalid integer in environment variable, using default")
		return defaultValue
	}
	logger.Debug().Str("key", key).Int("value", i).Str("source", "environment").Msg("using environment variable")
	return i
}

// ParseDuration reads a Go duration ("5s") from key.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logDefault(logger, key, ok).Dur("default", defaultValue).Msg("using default value")
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Dur("default", defaultValue).
			Msg("invalid duration in environment variable, using default")
		return defaultValue
	}
	logger.Debug().Str("key", key).Dur("value", d).Str("source", "environment").Msg("using environment variable")
	return d
}

// ParseBool reads a boolean from key. It accepts true/false, 1/0 and
// yes/no in any case.
func ParseBool(key string, defaultValue bool) bool {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logDefault(logger, key, ok).Bool("default", defaultValue).Msg("using default value")
		return defaultValue
	}
	var b bool
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		b = true
	case "false", "0", "no":
		b = false
	default:
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Bool("default", defaultValue).
			Msg("invalid boolean in environment variable, using default")
		return defaultValue
	}
	logger.Debug().Str("key", key).Bool("value", b).Str("source", "environment").Msg("using environment variable")
	return b
}

// ParseFloat reads a float64 from key.
func ParseFloat(key string, defaultValue float64) float64 {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logDefault(logger, key, ok).Float64("default", defaultValue).Msg("using default value")
		return defaultValue
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Float64("default", defaultValue).
			Msg("invalid float in environment variable, using default")
		return defaultValue
	}
	logger.Debug().Str("key", key).Float64("value", f).Str("source", "environment").Msg("using environment variable")
	return f
}

// ParseList reads a comma separated list from key. Blank items are dropped.
func ParseList(key string, defaultValue []string) []string {
	raw := ParseString(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func logDefault(logger zerolog.Logger, key string, present bool) *zerolog.Event {
	ev := logger.Debug().Str("key", key).Str("source", "default")
	if present {
		ev = ev.Bool("empty", true)
	}
	return ev
}

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "password") || strings.Contains(k, "token") || strings.Contains(k, "secret")
}

// applyEnv overrides cfg with TEMPY_* variables. Values already in cfg act
// as the defaults, so unset variables keep file or built-in settings.
func applyEnv(cfg *AppConfig) {
	cfg.LogLevel = ParseString("TEMPY_LOG_LEVEL", cfg.LogLevel)

	cfg.API.ListenAddr = ParseString("TEMPY_LISTEN", cfg.API.ListenAddr)
	cfg.API.RateLimitRPM = ParseInt("TEMPY_RATE_LIMIT_RPM", cfg.API.RateLimitRPM)
	cfg.API.AllowedOrigins = ParseList("TEMPY_ALLOWED_ORIGINS", cfg.API.AllowedOrigins)
	cfg.API.ReadTimeout = ParseDuration("TEMPY_READ_TIMEOUT", cfg.API.ReadTimeout)
	cfg.API.WriteTimeout = ParseDuration("TEMPY_WRITE_TIMEOUT", cfg.API.WriteTimeout)
	cfg.API.ShutdownTimeout = ParseDuration("TEMPY_SHUTDOWN_TIMEOUT", cfg.API.ShutdownTimeout)

	cfg.Frames.Width = ParseInt("TEMPY_FRAME_WIDTH", cfg.Frames.Width)
	cfg.Frames.Height = ParseInt("TEMPY_FRAME_HEIGHT", cfg.Frames.Height)
	cfg.Frames.FPS = ParseInt("TEMPY_FPS", cfg.Frames.FPS)
	cfg.Frames.MaxCount = ParseInt("TEMPY_MAX_COUNT", cfg.Frames.MaxCount)

	cfg.FFmpeg.Bin = ParseString("TEMPY_FFMPEG_BIN", cfg.FFmpeg.Bin)
	cfg.FFmpeg.ProbeBin = ParseString("TEMPY_FFPROBE_BIN", cfg.FFmpeg.ProbeBin)
	cfg.FFmpeg.KillTimeout = ParseDuration("TEMPY_FFMPEG_KILL_TIMEOUT", cfg.FFmpeg.KillTimeout)
	cfg.FFmpeg.StartTimeout = ParseDuration("TEMPY_FFMPEG_START_TIMEOUT", cfg.FFmpeg.StartTimeout)
	cfg.FFmpeg.StallTimeout = ParseDuration("TEMPY_FFMPEG_STALL_TIMEOUT", cfg.FFmpeg.StallTimeout)
	cfg.FFmpeg.MaxConcurrent = ParseInt("TEMPY_FFMPEG_MAX_CONCURRENT", cfg.FFmpeg.MaxConcurrent)
	cfg.FFmpeg.SpawnRate = ParseFloat("TEMPY_FFMPEG_SPAWN_RATE", cfg.FFmpeg.SpawnRate)
	cfg.FFmpeg.SpawnBurst = ParseInt("TEMPY_FFMPEG_SPAWN_BURST", cfg.FFmpeg.SpawnBurst)
	cfg.FFmpeg.QueueTimeout = ParseDuration("TEMPY_FFMPEG_QUEUE_TIMEOUT", cfg.FFmpeg.QueueTimeout)
	cfg.FFmpeg.CPUThresholdScale = ParseFloat("TEMPY_FFMPEG_CPU_THRESHOLD_SCALE", cfg.FFmpeg.CPUThresholdScale)

	cfg.Library.Dir = ParseString("TEMPY_VIDEO_DIR", cfg.Library.Dir)
	cfg.Library.IndexPath = ParseString("TEMPY_INDEX_PATH", cfg.Library.IndexPath)
	cfg.Library.MaxDepth = ParseInt("TEMPY_LIBRARY_MAX_DEPTH", cfg.Library.MaxDepth)
	cfg.Library.Watch = ParseBool("TEMPY_LIBRARY_WATCH", cfg.Library.Watch)
	cfg.Library.ScanOnStart = ParseBool("TEMPY_LIBRARY_SCAN_ON_START", cfg.Library.ScanOnStart)

	cfg.Cache.Backend = ParseString("TEMPY_CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.TTL = ParseDuration("TEMPY_CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.CleanupInterval = ParseDuration("TEMPY_CACHE_CLEANUP_INTERVAL", cfg.Cache.CleanupInterval)
	cfg.Cache.RedisAddr = ParseString("TEMPY_REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = ParseString("TEMPY_REDIS_PASSWORD", cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = ParseInt("TEMPY_REDIS_DB", cfg.Cache.RedisDB)
	cfg.Cache.BadgerDir = ParseString("TEMPY_BADGER_DIR", cfg.Cache.BadgerDir)

	cfg.Telemetry.Enabled = ParseBool("TEMPY_OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = ParseString("TEMPY_OTEL_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString("TEMPY_OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = ParseFloat("TEMPY_OTEL_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
	cfg.Telemetry.Environment = ParseString("TEMPY_OTEL_ENVIRONMENT", cfg.Telemetry.Environment)
}
