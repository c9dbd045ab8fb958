// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"
	FieldTraceID   = "trace_id"
	FieldSpanID    = "span_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldState     = "state"
	FieldPID       = "pid"

	// Extraction fields
	FieldStartFrame = "start_frame"
	FieldCount      = "count"
	FieldFrames     = "frames"
	FieldFrameSize  = "frame_size"
	FieldResolution = "resolution"
	FieldFPS        = "fps"

	// Path fields
	FieldPath     = "path"
	FieldFilename = "filename"
)
