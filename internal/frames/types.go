// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package frames

import "time"

// Request identifies a frame range in an already resolved media file.
type Request struct {
	Path       string
	StartFrame int
	Count      int
}

// State is the lifecycle position of a single extraction.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the settled outcome of a successful extraction.
type Result struct {
	// Frames holds base64 encoded RGBA frames in capture order.
	Frames []string `json:"frames"`
	// Requested is the frame count the caller asked for.
	Requested int `json:"requested"`
	// Short is set when the source ended before Requested frames were produced.
	Short bool `json:"short"`

	State   State         `json:"-"`
	Elapsed time.Duration `json:"-"`
}
