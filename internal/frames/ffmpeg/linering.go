// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"bytes"
	"sync"
)

// maxLineLen truncates runaway lines so a single write cannot grow the ring.
const maxLineLen = 1024

// LineRing keeps the last N lines written to it. It is used as the decoder's
// stderr so failures can be reported with ffmpeg's own words.
type LineRing struct {
	mu      sync.Mutex
	lines   []string
	head    int
	count   int
	partial []byte
}

// NewLineRing creates a LineRing with the specified capacity.
func NewLineRing(capacity int) *LineRing {
	if capacity < 1 {
		capacity = 50
	}
	return &LineRing{lines: make([]string, capacity)}
}

// Write implements io.Writer. Lines may span several writes; an unterminated
// tail is kept until the next newline or LastN.
func (r *LineRing) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rest := p
	for {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			break
		}
		r.appendPartialLocked(rest[:i])
		r.pushLocked()
		rest = rest[i+1:]
	}
	r.appendPartialLocked(rest)
	return len(p), nil
}

// appendPartialLocked keeps the first maxLineLen bytes of the pending line
// and discards the rest of it.
func (r *LineRing) appendPartialLocked(b []byte) {
	if room := maxLineLen - len(r.partial); room < len(b) {
		b = b[:max(room, 0)]
	}
	r.partial = append(r.partial, b...)
}

func (r *LineRing) pushLocked() {
	line := string(bytes.TrimRight(r.partial, "\r"))
	r.partial = r.partial[:0]
	if len(line) > maxLineLen {
		line = line[:maxLineLen]
	}
	if line == "" {
		return
	}
	r.lines[r.head] = line
	r.head = (r.head + 1) % len(r.lines)
	if r.count < len(r.lines) {
		r.count++
	}
}

// LastN returns up to n most recent lines, oldest first. A pending
// unterminated line counts as the newest.
func (r *LineRing) LastN(n int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.partial) > 0 {
		r.pushLocked()
	}
	if n > r.count {
		n = r.count
	}
	out := make([]string, 0, n)
	for i := n; i > 0; i-- {
		idx := (r.head - i + len(r.lines)) % len(r.lines)
		out = append(out, r.lines[idx])
	}
	return out
}
