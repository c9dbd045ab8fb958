// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/tempy/internal/log"
)

// Load builds the effective configuration from defaults, the YAML file at
// path (skipped when path is empty) and the environment, then validates it.
func Load(path string) (AppConfig, error) {
	cfg := Default()

	if path != "" {
		if err := mergeFile(&cfg, path); err != nil {
			return AppConfig{}, err
		}
	}
	applyEnv(&cfg)
	resolveDerived(&cfg)

	if err := Validate(cfg); err != nil {
		return AppConfig{}, fmt.Errorf("validate config: %w", err)
	}

	logger := log.WithComponent("config")
	logger.Info().
		Str(log.FieldEvent, "config.loaded").
		Str("file", path).
		Str("listen", cfg.API.ListenAddr).
		Str("video_dir", cfg.Library.Dir).
		Str("cache_backend", cfg.Cache.Backend).
		Int("width", cfg.Frames.Width).
		Int("height", cfg.Frames.Height).
		Int("fps", cfg.Frames.FPS).
		Msg("configuration loaded")
	return cfg, nil
}

// mergeFile decodes the YAML file at path over cfg. Keys missing from the
// file keep their current values; unknown keys are an error.
func mergeFile(cfg *AppConfig, path string) error {
	// #nosec G304 -- the config path is chosen by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	return decodeStrict(data, cfg)
}

func decodeStrict(data []byte, cfg *AppConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("config file contains multiple documents or trailing content")
	}
	return nil
}

func resolveDerived(cfg *AppConfig) {
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(cfg.Cache.Backend))
	if cfg.Library.IndexPath == "" && cfg.Library.Dir != "" {
		cfg.Library.IndexPath = filepath.Join(cfg.Library.Dir, IndexFileName)
	}
}

// Marshal renders cfg as YAML with a short header.
func Marshal(cfg AppConfig) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# tempy configuration\n# Environment variables (TEMPY_*) override these values.\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}
