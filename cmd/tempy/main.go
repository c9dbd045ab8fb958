// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command tempy serves raw video frames over HTTP.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ManuGH/tempy/internal/config"
	"github.com/ManuGH/tempy/internal/daemon"
	"github.com/ManuGH/tempy/internal/health"
	"github.com/ManuGH/tempy/internal/log"
	"github.com/ManuGH/tempy/internal/version"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:], os.Stdout, os.Stderr))
		case "extract":
			ctx, stop := daemon.WaitForShutdown()
			code := runExtract(ctx, os.Args[2:], os.Stdout, os.Stderr)
			stop()
			os.Exit(code)
		}
	}
	os.Exit(runDaemon(os.Args[1:], os.Stdout, os.Stderr))
}

func runDaemon(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tempy", flag.ContinueOnError)
	fs.SetOutput(stderr)
	showVersion := fs.Bool("version", false, "print version and exit")
	configPath := fs.String("config", "", "path to config file (YAML)")
	envFile := fs.String("env-file", "", "dotenv file with TEMPY_* overrides (default .env if present)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintln(stdout, version.String())
		return 0
	}

	// Safe defaults until the configuration is loaded.
	log.Configure(log.Config{
		Level:   "info",
		Service: "tempy",
		Version: version.Version,
	})
	logger := log.WithComponent("daemon")

	read, err := config.LoadEnvFile(strings.TrimSpace(*envFile))
	if err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "config.env_file_failed").Msg("failed to read env file")
		return 1
	}
	if read {
		logger.Info().Str(log.FieldEvent, "config.env_file_loaded").Msg("environment overrides loaded from file")
	}

	cfg, err := config.Load(strings.TrimSpace(*configPath))
	if err != nil {
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
		return 1
	}

	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: "tempy",
		Version: version.Version,
	})
	logger = log.WithComponent("daemon")

	ctx, stop := daemon.WaitForShutdown()
	defer stop()

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "startup.check_failed").Msg("startup checks failed")
		return 1
	}

	app, err := daemon.Bootstrap(ctx, cfg, version.Version)
	if err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "startup.failed").Msg("failed to start")
		return 1
	}

	if err := app.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Str(log.FieldEvent, "daemon.failed").Msg("daemon stopped with error")
		return 1
	}
	logger.Info().Str(log.FieldEvent, "daemon.stopped").Msg("daemon stopped")
	return 0
}

// configureCLILogging sends logs to stderr so stdout stays machine readable.
func configureCLILogging(level string, stderr io.Writer) {
	log.Configure(log.Config{
		Level:   level,
		Output:  stderr,
		Service: "tempy",
		Version: version.Version,
	})
}

