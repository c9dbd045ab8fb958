// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package library

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const maxProbeStderr = 4096

// Prober reads video metadata from a file.
type Prober interface {
	Probe(ctx context.Context, path string) (Metadata, error)
}

// FFprobe implements Prober with the ffprobe binary.
type FFprobe struct {
	Bin     string
	Timeout time.Duration

	// command is exec.CommandContext outside of tests.
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewFFprobe returns a prober for bin, defaulting to "ffprobe" on PATH.
func NewFFprobe(bin string, timeout time.Duration) *FFprobe {
	if bin == "" {
		bin = "ffprobe"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FFprobe{Bin: bin, Timeout: timeout, command: exec.CommandContext}
}

// ProbeArgs returns the ffprobe arguments for path.
func ProbeArgs(path string) []string {
	return []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,avg_frame_rate:format=duration",
		"-of", "json",
		path,
	}
}

// Probe runs ffprobe on path.
func (p *FFprobe) Probe(ctx context.Context, path string) (Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	cmd := p.command(ctx, p.Bin, ProbeArgs(path)...) // #nosec G204 -- fixed binary, no shell
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > maxProbeStderr {
			msg = msg[:maxProbeStderr] + "..."
		}
		return Metadata{}, fmt.Errorf("ffprobe failed: %w (stderr: %s)", err, msg)
	}
	return parseProbeOutput(out)
}

type probeData struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbeOutput(out []byte) (Metadata, error) {
	var data probeData
	if err := json.Unmarshal(out, &data); err != nil {
		return Metadata{}, fmt.Errorf("json decode: %w", err)
	}
	if len(data.Streams) == 0 {
		return Metadata{}, fmt.Errorf("ffprobe found no video stream")
	}

	s := data.Streams[0]
	m := Metadata{
		Width:    s.Width,
		Height:   s.Height,
		FPS:      parseRate(s.AvgFrameRate),
		ProbedAt: time.Now(),
	}
	if data.Format.Duration != "" {
		if d, err := strconv.ParseFloat(data.Format.Duration, 64); err == nil {
			m.DurationSeconds = d
		}
	}
	return m, nil
}

// parseRate turns an ffprobe rational such as "30000/1001" into a float.
// "0/0" and malformed input yield 0.
func parseRate(r string) float64 {
	num, den, ok := strings.Cut(r, "/")
	if !ok {
		f, err := strconv.ParseFloat(r, 64)
		if err != nil {
			return 0
		}
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}
