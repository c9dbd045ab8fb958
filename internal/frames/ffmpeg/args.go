// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"fmt"
	"math"
	"strconv"
)

// InputSpec is the decode range within one media file.
type InputSpec struct {
	Path            string
	StartSeconds    float64 // input seek, applied before -i
	DurationSeconds float64
}

// OutputSpec is the fixed raw frame shape.
type OutputSpec struct {
	Width  int
	Height int
	FPS    int
}

// BuildRawVideoArgs constructs the ffmpeg arguments that decode the given
// range to packed RGBA on stdout. No shell is involved, so Path is passed
// through verbatim.
func BuildRawVideoArgs(in InputSpec, out OutputSpec) ([]string, error) {
	if in.Path == "" {
		return nil, fmt.Errorf("missing input path")
	}
	if in.StartSeconds < 0 {
		return nil, fmt.Errorf("negative start offset %v", in.StartSeconds)
	}
	if in.DurationSeconds <= 0 {
		return nil, fmt.Errorf("non-positive duration %v", in.DurationSeconds)
	}
	if out.Width <= 0 || out.Height <= 0 || out.FPS <= 0 {
		return nil, fmt.Errorf("invalid output geometry %dx%d@%d", out.Width, out.Height, out.FPS)
	}

	return []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error", // stderr is captured for failure reports
		"-ss", formatSeek(in.StartSeconds),
		"-i", in.Path,
		"-t", formatSeconds(in.DurationSeconds),
		"-vf", fmt.Sprintf("fps=%d,scale=%d:%d", out.FPS, out.Width, out.Height),
		"-pix_fmt", "rgba",
		"-f", "rawvideo",
		"pipe:1",
	}, nil
}

// formatSeek truncates to ffmpeg's microsecond time base. An accurate seek
// past the exact frame time drops the first requested frame, so the value
// never rounds up. The nanosecond slack absorbs binary representation error
// in values such as 0.3.
func formatSeek(s float64) string {
	us := math.Floor(s*1e6 + 1e-3)
	return strconv.FormatFloat(us/1e6, 'f', 6, 64)
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 6, 64)
}
