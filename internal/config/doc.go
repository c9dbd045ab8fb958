// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads tempy's configuration.
//
// Precedence, lowest first: built-in defaults, the YAML file (strict, unknown
// keys are rejected), TEMPY_* environment variables. The result is validated
// once; frame geometry is fixed for the lifetime of the process.
package config
