// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package problem writes RFC 7807 problem details responses.
package problem

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ManuGH/tempy/internal/log"
)

const (
	// HeaderRequestID carries the request correlation id in both directions.
	HeaderRequestID = "X-Request-ID"
	// ContentType is the media type of every problem response.
	ContentType = "application/problem+json"
)

// Problem is the response body. Error repeats Detail under the key older
// clients read.
type Problem struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Detail    string `json:"detail,omitempty"`
	Instance  string `json:"instance,omitempty"`
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
}

// Write sends a problem response. detail is also exposed as "error".
func Write(w http.ResponseWriter, r *http.Request, status int, problemType, title, code, detail string) {
	reqID := ""
	instance := ""
	if r != nil {
		reqID = log.RequestIDFromContext(r.Context())
		instance = r.URL.EscapedPath()
	}
	if reqID == "" {
		reqID = w.Header().Get(HeaderRequestID)
	}

	msg := detail
	if msg == "" {
		msg = title
	}
	p := Problem{
		Type:      problemType,
		Title:     title,
		Status:    status,
		Code:      code,
		Detail:    detail,
		Instance:  instance,
		RequestID: reqID,
		Error:     msg,
	}

	if reqID != "" {
		w.Header().Set(HeaderRequestID, reqID)
	}
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.L().Error().
			Err(err).
			Str("type", problemType).
			Int("status", status).
			Msg("failed to encode problem response")
	}
}

// SetRetryAfter sets Retry-After in whole seconds, rounding up. Non-positive
// durations are ignored.
func SetRetryAfter(w http.ResponseWriter, d time.Duration) {
	if d <= 0 {
		return
	}
	secs := int((d + time.Second - 1) / time.Second)
	w.Header().Set("Retry-After", strconv.Itoa(secs))
}
