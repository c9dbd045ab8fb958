// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuGH/tempy/internal/config"
	"github.com/ManuGH/tempy/internal/log"
)

// PerformStartupChecks validates the environment and dependencies before starting the server.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkBinary(logger, "ffmpeg", cfg.FFmpeg.Bin); err != nil {
		return err
	}
	if err := checkBinary(logger, "ffprobe", cfg.FFmpeg.ProbeBin); err != nil {
		return err
	}

	info, err := os.Stat(cfg.Library.Dir)
	if err != nil {
		return fmt.Errorf("video directory check failed: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("video directory check failed: not a directory: %s", cfg.Library.Dir)
	}
	logger.Info().Str(log.FieldPath, cfg.Library.Dir).Msg("video directory is present")

	if err := checkWritableDir(logger, filepath.Dir(cfg.Library.IndexPath)); err != nil {
		return fmt.Errorf("index directory check failed: %w", err)
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkBinary(logger zerolog.Logger, name, bin string) error {
	bin = strings.TrimSpace(bin)
	if bin == "" {
		bin = name
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return fmt.Errorf("%s binary not found (%s): %w", name, bin, err)
	}
	logger.Info().Str(name, path).Msg("binary available")
	return nil
}

func checkWritableDir(logger zerolog.Logger, path string) error {
	if err := os.MkdirAll(path, 0750); err != nil {
		return err
	}

	// Check write permissions by creating a temp file
	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str(log.FieldPath, path).Msg("index directory is writable")
	return nil
}
