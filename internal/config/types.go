// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// AppConfig is the complete runtime configuration.
type AppConfig struct {
	LogLevel  string          `yaml:"logLevel"`
	API       APIConfig       `yaml:"api"`
	Frames    FramesConfig    `yaml:"frames"`
	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`
	Library   LibraryConfig   `yaml:"library"`
	Cache     CacheConfig     `yaml:"cache"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	ListenAddr      string        `yaml:"listenAddr"`
	RateLimitRPM    int           `yaml:"rateLimitRPM"` // per client IP; 0 disables
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// FramesConfig fixes the output geometry.
type FramesConfig struct {
	Width    int `yaml:"width"`
	Height   int `yaml:"height"`
	FPS      int `yaml:"fps"`
	MaxCount int `yaml:"maxCount"`
}

// FFmpegConfig configures the decoder processes and their admission.
type FFmpegConfig struct {
	Bin               string        `yaml:"bin"`
	ProbeBin          string        `yaml:"probeBin"`
	KillTimeout       time.Duration `yaml:"killTimeout"`
	StartTimeout      time.Duration `yaml:"startTimeout"`
	StallTimeout      time.Duration `yaml:"stallTimeout"`
	MaxConcurrent     int           `yaml:"maxConcurrent"`
	SpawnRate         float64       `yaml:"spawnRate"`
	SpawnBurst        int           `yaml:"spawnBurst"`
	QueueTimeout      time.Duration `yaml:"queueTimeout"`
	CPUThresholdScale float64       `yaml:"cpuThresholdScale"`
}

// LibraryConfig configures the video directory and its metadata index.
type LibraryConfig struct {
	Dir         string `yaml:"dir"`
	IndexPath   string `yaml:"indexPath"` // defaults to <dir>/.tempy-index.sqlite
	MaxDepth    int    `yaml:"maxDepth"`
	Watch       bool   `yaml:"watch"`
	ScanOnStart bool   `yaml:"scanOnStart"`
}

// CacheConfig selects and configures the result cache.
type CacheConfig struct {
	Backend         string        `yaml:"backend"` // memory, redis, badger, none
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
	RedisAddr       string        `yaml:"redisAddr"`
	RedisPassword   string        `yaml:"redisPassword"`
	RedisDB         int           `yaml:"redisDB"`
	BadgerDir       string        `yaml:"badgerDir"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // grpc or http
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}
