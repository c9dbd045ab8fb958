// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is read when no env file is named explicitly.
const DefaultEnvFile = ".env"

// LoadEnvFile exports the KEY=VALUE pairs of a dotenv file into the process
// environment so the TEMPY_* overrides can pick them up. Variables that are
// already set are left alone. An empty path means DefaultEnvFile, which may
// be absent; an explicit path must exist. It reports whether a file was read.
func LoadEnvFile(path string) (bool, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}
	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return false, fmt.Errorf("env file %s: %w", path, err)
	}
	return true, nil
}
