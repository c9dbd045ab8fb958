// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/ManuGH/tempy/internal/api/problem"
)

// CORS allows browser clients from origins to call the API. A "*" entry
// allows every origin; credentials are never allowed.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", problem.HeaderRequestID},
		ExposedHeaders:   []string{problem.HeaderRequestID, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
