// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package frames

import (
	"fmt"
	"strconv"
)

// ChannelsPerPixel is fixed: every frame is emitted as packed RGBA.
const ChannelsPerPixel = 4

// Geometry is the process-wide output shape of every extracted frame.
type Geometry struct {
	Width  int
	Height int
	FPS    int
}

// Validate reports whether all dimensions are positive.
func (g Geometry) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("%w: frame dimensions must be positive (got %dx%d)", ErrInvalidArgument, g.Width, g.Height)
	}
	if g.FPS <= 0 {
		return fmt.Errorf("%w: frame rate must be positive (got %d)", ErrInvalidArgument, g.FPS)
	}
	return nil
}

// FrameSize is the byte length of one raw RGBA frame.
func (g Geometry) FrameSize() int {
	return g.Width * g.Height * ChannelsPerPixel
}

// Resolution renders the geometry as WxH for logs and ffmpeg's scale filter.
func (g Geometry) Resolution() string {
	return strconv.Itoa(g.Width) + "x" + strconv.Itoa(g.Height)
}

// Window is the decode range derived from a request.
type Window struct {
	StartFrame      int
	Count           int
	StartSeconds    float64
	DurationSeconds float64
	FrameSize       int
}

// ComputeWindow maps a frame range onto a decode time window. It is pure and
// safe for concurrent use.
func ComputeWindow(startFrame, count int, g Geometry) (Window, error) {
	if err := g.Validate(); err != nil {
		return Window{}, err
	}
	if startFrame < 0 {
		return Window{}, fmt.Errorf("%w: start must be >= 0 (got %d)", ErrInvalidArgument, startFrame)
	}
	if count < 1 {
		return Window{}, fmt.Errorf("%w: count must be >= 1 (got %d)", ErrInvalidArgument, count)
	}

	fps := float64(g.FPS)
	return Window{
		StartFrame:      startFrame,
		Count:           count,
		StartSeconds:    float64(startFrame) / fps,
		DurationSeconds: float64(count) / fps,
		FrameSize:       g.FrameSize(),
	}, nil
}
