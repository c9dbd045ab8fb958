// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package frames

// Accumulator reassembles fixed-size frames from an arbitrarily chunked byte
// stream. It is owned by a single extraction and is not safe for concurrent use.
type Accumulator struct {
	frameSize int
	buf       []byte
	off       int
}

// NewAccumulator returns an empty accumulator for frames of frameSize bytes.
func NewAccumulator(frameSize int) *Accumulator {
	return &Accumulator{frameSize: frameSize}
}

// Len returns the number of pending bytes not yet carved into a frame.
func (a *Accumulator) Len() int {
	return len(a.buf) - a.off
}

// Write appends a chunk. It never fails.
func (a *Accumulator) Write(p []byte) (int, error) {
	if a.off > 0 && a.off >= len(a.buf)/2 {
		n := copy(a.buf, a.buf[a.off:])
		a.buf = a.buf[:n]
		a.off = 0
	}
	a.buf = append(a.buf, p...)
	return len(p), nil
}

// Carve removes up to max whole frames from the front and passes each to fn
// in order. The slice handed to fn is only valid for the duration of the call.
// A negative max carves every complete frame.
func (a *Accumulator) Carve(max int, fn func(frame []byte)) int {
	carved := 0
	for a.Len() >= a.frameSize && (max < 0 || carved < max) {
		fn(a.buf[a.off : a.off+a.frameSize])
		a.off += a.frameSize
		carved++
	}
	if a.off == len(a.buf) {
		a.buf = a.buf[:0]
		a.off = 0
	}
	return carved
}

// Reset drops all pending bytes.
func (a *Accumulator) Reset() {
	a.buf = nil
	a.off = 0
}
