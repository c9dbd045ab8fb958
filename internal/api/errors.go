// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ManuGH/tempy/internal/admission"
	"github.com/ManuGH/tempy/internal/api/problem"
	"github.com/ManuGH/tempy/internal/frames"
	"github.com/ManuGH/tempy/internal/log"
)

// Messages clients have always seen in the "error" field.
const (
	msgFilenameRequired = "filename query param required"
	msgVideoNotFound    = "video not found"
	msgProcessFailed    = "failed to process video"
	msgUnavailable      = "decoder capacity exhausted, retry later"
	msgCanceled         = "request canceled"
)

// defaultRetryAfter is sent with 503s that carry no better hint.
const defaultRetryAfter = time.Second

// writeError maps a domain error onto a problem response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	switch frames.KindOf(err) {
	case frames.KindInvalidArgument:
		problem.Write(w, r, http.StatusBadRequest, "frames/invalid_argument", "Bad Request", "INVALID_ARGUMENT", invalidDetail(err))

	case frames.KindSourceNotFound:
		problem.Write(w, r, http.StatusNotFound, "frames/source_not_found", "Not Found", "SOURCE_NOT_FOUND", msgVideoNotFound)

	case frames.KindUnavailable:
		var rej *admission.RejectionError
		if errors.As(err, &rej) {
			problem.SetRetryAfter(w, rej.RetryAfter)
		} else {
			problem.SetRetryAfter(w, defaultRetryAfter)
		}
		problem.Write(w, r, http.StatusServiceUnavailable, "frames/unavailable", "Service Unavailable", "UNAVAILABLE", msgUnavailable)

	case frames.KindCanceled:
		// The client is usually gone; the body is for proxies that still listen.
		logger.Info().
			Err(err).
			Str(log.FieldEvent, "request.canceled").
			Msg("request ended before the extraction settled")
		problem.Write(w, r, http.StatusServiceUnavailable, "frames/canceled", "Request Canceled", "CANCELED", msgCanceled)

	case frames.KindDecodeFailure:
		problem.Write(w, r, http.StatusInternalServerError, "frames/decode_failure", "Internal Server Error", "DECODE_FAILURE", msgProcessFailed)

	default:
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "request.internal_error").
			Msg("unexpected handler error")
		problem.Write(w, r, http.StatusInternalServerError, "system/internal", "Internal Server Error", "INTERNAL_ERROR", msgProcessFailed)
	}
}

// invalidDetail keeps the part after the sentinel prefix, which is the
// message meant for the client.
func invalidDetail(err error) string {
	msg := err.Error()
	prefix := frames.ErrInvalidArgument.Error() + ": "
	if i := strings.LastIndex(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return msg
}

func writeBindError(w http.ResponseWriter, r *http.Request, err error) {
	problem.Write(w, r, http.StatusBadRequest, "frames/invalid_argument", "Bad Request", "INVALID_ARGUMENT", err.Error())
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	problem.Write(w, r, http.StatusNotFound, "system/not_found", "Not Found", "NOT_FOUND", "no route for "+r.URL.Path)
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem.Write(w, r, http.StatusMethodNotAllowed, "system/method_not_allowed", "Method Not Allowed", "METHOD_NOT_ALLOWED", r.Method+" is not allowed")
}
