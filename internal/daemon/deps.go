// SPDX-License-Identifier: MIT

package daemon

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
)

// Hook is a shutdown hook handed to the manager at construction.
type Hook struct {
	Name string
	Fn   ShutdownHook
}

// Deps is what the Manager needs to serve and to tear down.
type Deps struct {
	// Logger is required. A Nop logger is a valid choice.
	Logger *zerolog.Logger

	// APIHandler serves the frame API, probes and metrics.
	APIHandler http.Handler

	// ShutdownHooks run after the HTTP server drained, last one first.
	ShutdownHooks []Hook
}

// Validate checks that every required dependency is present.
func (d *Deps) Validate() error {
	if d.Logger == nil {
		return ErrMissingLogger
	}
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	for i, h := range d.ShutdownHooks {
		if h.Name == "" || h.Fn == nil {
			return fmt.Errorf("%w: hook %d", ErrInvalidShutdownHook, i)
		}
	}
	return nil
}
