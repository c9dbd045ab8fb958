// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package frames

import (
	"context"
	"errors"
)

var (
	// ErrInvalidArgument marks request parameters that are missing, non-numeric
	// or out of range. No decoder is started for such requests.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrSourceNotFound marks a media path that does not resolve to a readable file.
	ErrSourceNotFound = errors.New("source not found")

	// ErrDecodeFailure marks a decoder that failed (spawn error, non-zero exit,
	// stall) before the requested frames were produced.
	ErrDecodeFailure = errors.New("decode failure")

	// ErrUnavailable marks a request that could not be admitted because the
	// decoder capacity is exhausted.
	ErrUnavailable = errors.New("decoder unavailable")
)

// Kind is the caller-facing classification of an extraction error.
type Kind string

const (
	KindNone            Kind = ""
	KindInvalidArgument Kind = "invalid_argument"
	KindSourceNotFound  Kind = "source_not_found"
	KindDecodeFailure   Kind = "decode_failure"
	KindCanceled        Kind = "canceled"
	KindUnavailable     Kind = "unavailable"
	KindInternal        Kind = "internal"
)

// KindOf classifies err. Context errors win over the sentinel they may be
// wrapped in, so a client disconnect is never reported as a decode failure.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrSourceNotFound):
		return KindSourceNotFound
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrDecodeFailure):
		return KindDecodeFailure
	default:
		return KindInternal
	}
}
