// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineRing(t *testing.T) {
	r := NewLineRing(3)

	_, _ = fmt.Fprintf(r, "line1\n")
	_, _ = fmt.Fprintf(r, "line2\n")
	assert.Equal(t, []string{"line1", "line2"}, r.LastN(10))

	_, _ = fmt.Fprintf(r, "line3\n")
	assert.Equal(t, []string{"line1", "line2", "line3"}, r.LastN(10))

	_, _ = fmt.Fprintf(r, "line4\n")
	assert.Equal(t, []string{"line2", "line3", "line4"}, r.LastN(10))
	assert.Equal(t, []string{"line3", "line4"}, r.LastN(2))
}

func TestLineRing_SplitWrites(t *testing.T) {
	r := NewLineRing(5)
	_, _ = r.Write([]byte("clip.mp4: moov ato"))
	_, _ = r.Write([]byte("m not found\r\nError opening input"))

	assert.Equal(t, []string{"clip.mp4: moov atom not found", "Error opening input"}, r.LastN(10))
}

func TestLineRing_TruncatesLongLines(t *testing.T) {
	r := NewLineRing(2)
	_, _ = r.Write([]byte(strings.Repeat("x", 4*maxLineLen) + "\n"))

	last := r.LastN(1)
	if assert.Len(t, last, 1) {
		assert.LessOrEqual(t, len(last[0]), maxLineLen)
	}
}

func TestLineRing_TruncatesUnterminatedLines(t *testing.T) {
	r := NewLineRing(4)
	_, _ = r.Write([]byte("Error while decoding stream #0:0: "))
	_, _ = r.Write([]byte(strings.Repeat("y", 2*maxLineLen)))
	_, _ = r.Write([]byte(strings.Repeat("z", 16)))

	last := r.LastN(4)
	if assert.Len(t, last, 1) {
		assert.Len(t, last[0], maxLineLen)
		assert.True(t, strings.HasPrefix(last[0], "Error while decoding stream #0:0: yyy"))
	}

	_, _ = r.Write([]byte("tail\nnext line\n"))
	assert.Equal(t, []string{"tail", "next line"}, r.LastN(4)[1:])
}
