// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package frames

import "context"

// EventKind distinguishes decoder output from its two terminal signals.
type EventKind int

const (
	// EventData carries a chunk of raw RGBA bytes.
	EventData EventKind = iota
	// EventEnd reports that the decoder output ended normally.
	EventEnd
	// EventError reports a process-level decoder failure.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventData:
		return "data"
	case EventEnd:
		return "end"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one signal from a running decoder.
type Event struct {
	Kind EventKind
	Data []byte
	Err  error
}

// Stream is a running decoder owned by exactly one extraction.
//
// Events delivers chunks in emission order followed by at most one terminal
// event, and is closed once the decoder has fully exited. Implementations may
// still deliver signals after Stop; consumers must tolerate that.
type Stream interface {
	Events() <-chan Event
	// Stop requests best-effort termination. It never blocks on process exit
	// and is safe to call more than once.
	Stop() error
}

// Decoder starts external decode operations.
type Decoder interface {
	Start(ctx context.Context, path string, w Window, g Geometry) (Stream, error)
}

// Extractor is anything that turns a Request into a Result.
type Extractor interface {
	Extract(ctx context.Context, req Request) (Result, error)
}
