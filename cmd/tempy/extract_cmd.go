// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/tempy/internal/api"
	"github.com/ManuGH/tempy/internal/config"
	"github.com/ManuGH/tempy/internal/daemon"
	"github.com/ManuGH/tempy/internal/frames"
	"github.com/ManuGH/tempy/internal/version"
)

// runExtract performs one extraction through the same catalog and pipeline
// the daemon uses and prints the API response body.
func runExtract(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tempy extract", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file (YAML)")
	envFile := fs.String("env-file", "", "dotenv file with TEMPY_* overrides")
	file := fs.String("file", "", "video path relative to the video directory")
	start := fs.Int("start", 0, "first frame")
	count := fs.Int("count", 1, "number of frames")
	out := fs.String("out", "", "write JSON to this file atomically instead of stdout")
	logLevel := fs.String("log-level", "warn", "log level for stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(*file) == "" {
		fmt.Fprintln(stderr, "Error: --file is required")
		return 2
	}

	configureCLILogging(*logLevel, stderr)

	if _, err := config.LoadEnvFile(strings.TrimSpace(*envFile)); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	cfg, err := config.Load(strings.TrimSpace(*configPath))
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return 1
	}

	svc, err := daemon.NewServices(ctx, cfg, version.Version)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer func() { _ = svc.Close(context.WithoutCancel(ctx)) }()

	path, err := svc.Catalog.Resolve(*file)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}

	res, err := svc.Extractor.Extract(ctx, frames.Request{Path: path, StartFrame: *start, Count: *count})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	if res.Short {
		fmt.Fprintf(stderr, "Warning: only got %d frames (expected %d)\n", len(res.Frames), res.Requested)
	}

	body := api.FramesResponse{
		Frames:    res.Frames,
		Count:     len(res.Frames),
		Requested: res.Requested,
		Short:     res.Short,
	}
	if err := writeJSON(*out, stdout, body); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// exitCode keeps argument problems (2) apart from processing failures (1).
func exitCode(err error) int {
	switch frames.KindOf(err) {
	case frames.KindInvalidArgument, frames.KindSourceNotFound:
		return 2
	default:
		return 1
	}
}

// writeJSON streams v to path through a pending file that only replaces
// path once fully written. An empty path writes to stdout.
func writeJSON(path string, stdout io.Writer, v any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return json.NewEncoder(stdout).Encode(v)
	}

	pf, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = pf.Cleanup() }()

	if err := json.NewEncoder(pf).Encode(v); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
