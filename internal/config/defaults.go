// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// IndexFileName is the metadata index created inside the video directory
// when library.indexPath is not set.
const IndexFileName = ".tempy-index.sqlite"

// Default returns the built-in configuration.
func Default() AppConfig {
	return AppConfig{
		LogLevel: "info",
		API: APIConfig{
			ListenAddr:      ":3069",
			RateLimitRPM:    600,
			AllowedOrigins:  []string{"*"},
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Frames: FramesConfig{
			Width:    640,
			Height:   360,
			FPS:      30,
			MaxCount: 300,
		},
		FFmpeg: FFmpegConfig{
			Bin:           "ffmpeg",
			ProbeBin:      "ffprobe",
			KillTimeout:   2 * time.Second,
			StartTimeout:  10 * time.Second,
			StallTimeout:  5 * time.Second,
			MaxConcurrent: 4,
			SpawnRate:     8,
			SpawnBurst:    8,
			QueueTimeout:  5 * time.Second,
		},
		Library: LibraryConfig{
			Dir:         "./movies",
			Watch:       true,
			ScanOnStart: true,
		},
		Cache: CacheConfig{
			Backend:         "memory",
			TTL:             10 * time.Minute,
			CleanupInterval: time.Minute,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "production",
		},
	}
}
