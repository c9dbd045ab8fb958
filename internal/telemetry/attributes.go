// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Span attribute keys. HTTP spans get theirs from otelhttp.
const (
	// Extraction attributes
	FramesStartKey      = "frames.start"
	FramesCountKey      = "frames.count"
	FramesProducedKey   = "frames.produced"
	FramesShortKey      = "frames.short"
	FramesStateKey      = "frames.state"
	FramesResolutionKey = "frames.resolution"
	FramesFPSKey        = "frames.fps"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// ExtractionAttributes describes the requested frame range.
func ExtractionAttributes(start, count int, resolution string, fps int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(FramesStartKey, start),
		attribute.Int(FramesCountKey, count),
		attribute.String(FramesResolutionKey, resolution),
		attribute.Int(FramesFPSKey, fps),
	}
}

// OutcomeAttributes describes how an extraction settled.
func OutcomeAttributes(produced int, short bool, state string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(FramesProducedKey, produced),
		attribute.Bool(FramesShortKey, short),
		attribute.String(FramesStateKey, state),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(err error, errorType string) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String(ErrorKey, err.Error()),
		attribute.String(ErrorTypeKey, errorType),
	}
}
