// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ffmpeg runs ffmpeg as the raw frame decoder behind frames.Decoder.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/tempy/internal/frames"
	"github.com/ManuGH/tempy/internal/log"
	"github.com/ManuGH/tempy/internal/metrics"
	"github.com/ManuGH/tempy/internal/procgroup"
)

const (
	defaultReadSize    = 64 << 10
	defaultStderrLines = 64
	defaultKillTimeout = 2 * time.Second
)

// Config configures the ffmpeg decoder.
type Config struct {
	BinPath     string        // defaults to "ffmpeg"
	KillTimeout time.Duration // SIGTERM to SIGKILL escalation delay
	ReadSize    int           // stdout read size; one read is one data event
	StderrLines int           // stderr lines kept for error reports
}

// Admitter gates decoder spawns. *admission.Controller implements it.
type Admitter interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Decoder implements frames.Decoder by spawning one ffmpeg process per call.
type Decoder struct {
	cfg   Config
	admit Admitter

	// command is exec.CommandContext outside of tests.
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

var _ frames.Decoder = (*Decoder)(nil)

// NewDecoder creates a decoder. admit may be nil to spawn without limits.
func NewDecoder(cfg Config, admit Admitter) *Decoder {
	if cfg.BinPath == "" {
		cfg.BinPath = "ffmpeg"
	}
	if cfg.KillTimeout <= 0 {
		cfg.KillTimeout = defaultKillTimeout
	}
	if cfg.ReadSize <= 0 {
		cfg.ReadSize = defaultReadSize
	}
	if cfg.StderrLines <= 0 {
		cfg.StderrLines = defaultStderrLines
	}
	return &Decoder{cfg: cfg, admit: admit, command: exec.CommandContext}
}

// Start spawns ffmpeg for window w. The process is bound to ctx: cancelling
// it has the same effect as Stop.
func (d *Decoder) Start(ctx context.Context, path string, w frames.Window, g frames.Geometry) (frames.Stream, error) {
	args, err := BuildRawVideoArgs(
		InputSpec{Path: path, StartSeconds: w.StartSeconds, DurationSeconds: w.DurationSeconds},
		OutputSpec{Width: g.Width, Height: g.Height, FPS: g.FPS},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", frames.ErrInvalidArgument, err)
	}

	release := func() {}
	if d.admit != nil {
		rel, err := d.admit.Acquire(ctx)
		if err != nil {
			metrics.DecoderStartTotal.WithLabelValues("rejected").Inc()
			if ctx.Err() != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", frames.ErrUnavailable, err)
		}
		release = rel
	}

	logger := log.WithComponentFromContext(ctx, "ffmpeg")
	ring := NewLineRing(d.cfg.StderrLines)

	cmd := d.command(ctx, d.cfg.BinPath, args...) // #nosec G204 -- args are built without a shell
	procgroup.Set(cmd)
	cmd.Stderr = ring
	cmd.Cancel = func() error {
		return procgroup.Kill(cmd, syscall.SIGTERM)
	}
	cmd.WaitDelay = d.cfg.KillTimeout

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		release()
		metrics.DecoderStartTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: stdout pipe: %w", frames.ErrDecodeFailure, err)
	}

	if err := cmd.Start(); err != nil {
		release()
		metrics.DecoderStartTotal.WithLabelValues("error").Inc()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: start %s: %w", frames.ErrDecodeFailure, d.cfg.BinPath, err)
	}

	metrics.DecoderStartTotal.WithLabelValues("ok").Inc()
	metrics.DecodersRunning.Inc()
	logger.Debug().
		Str(log.FieldEvent, "ffmpeg.started").
		Int(log.FieldPID, cmd.Process.Pid).
		Str("command", cmd.String()).
		Msg("decoder process started")

	s := &stream{
		ctx:         ctx,
		cmd:         cmd,
		events:      make(chan frames.Event),
		exited:      make(chan struct{}),
		ring:        ring,
		release:     release,
		killTimeout: d.cfg.KillTimeout,
		logger:      logger,
		started:     time.Now(),
	}
	go s.run(stdout, d.cfg.ReadSize)
	return s, nil
}

// stream is one running ffmpeg process.
type stream struct {
	ctx         context.Context
	cmd         *exec.Cmd
	events      chan frames.Event
	exited      chan struct{}
	ring        *LineRing
	release     func()
	killTimeout time.Duration
	logger      zerolog.Logger
	started     time.Time

	stopOnce sync.Once
	stopping atomic.Bool
}

func (s *stream) Events() <-chan frames.Event {
	return s.events
}

// Stop sends SIGTERM to the process group and escalates to SIGKILL after
// the kill timeout. It returns immediately.
func (s *stream) Stop() error {
	s.stopOnce.Do(func() {
		s.stopping.Store(true)
		select {
		case <-s.exited:
			return
		default:
		}
		go func() {
			if err := procgroup.Terminate(s.cmd, s.exited, s.killTimeout); err != nil {
				s.logger.Warn().
					Err(err).
					Str(log.FieldEvent, "ffmpeg.terminate_failed").
					Int(log.FieldPID, s.cmd.Process.Pid).
					Msg("decoder process group did not exit")
			}
		}()
	})
	return nil
}

// run forwards stdout as data events, then reaps the process and emits the
// terminal event. It is the only sender on s.events.
func (s *stream) run(stdout io.Reader, readSize int) {
	defer close(s.events)

	var readErr error
	buf := make([]byte, readSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			metrics.DecoderBytesTotal.Add(float64(n))
			s.events <- frames.Event{Kind: frames.EventData, Data: chunk}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = err
			}
			break
		}
	}

	waitErr := s.cmd.Wait()
	close(s.exited)
	s.release()
	metrics.DecodersRunning.Dec()

	reason := s.exitReason(waitErr, readErr)
	metrics.DecoderExitTotal.WithLabelValues(reason).Inc()

	ev := s.logger.Debug()
	if reason == "error" {
		ev = s.logger.Warn().Strs("stderr", s.ring.LastN(20))
	}
	ev.Err(waitErr).
		Str(log.FieldEvent, "ffmpeg.exited").
		Str("reason", reason).
		Dur("uptime", time.Since(s.started)).
		Msg("decoder process exited")

	switch {
	case waitErr == nil && readErr == nil:
		s.events <- frames.Event{Kind: frames.EventEnd}
	case waitErr == nil:
		s.events <- frames.Event{Kind: frames.EventError, Err: fmt.Errorf("read decoder output: %w", readErr)}
	default:
		s.events <- frames.Event{Kind: frames.EventError, Err: s.describe(waitErr)}
	}
}

func (s *stream) exitReason(waitErr, readErr error) string {
	switch {
	case s.stopping.Load():
		return "stopped"
	case s.ctx.Err() != nil:
		return "ctx_cancel"
	case waitErr == nil && readErr == nil:
		return "clean"
	default:
		return "error"
	}
}

// describe attaches the tail of ffmpeg's stderr to its exit error.
func (s *stream) describe(waitErr error) error {
	lines := s.ring.LastN(5)
	if len(lines) == 0 {
		return fmt.Errorf("ffmpeg: %w", waitErr)
	}
	return fmt.Errorf("ffmpeg: %w: %s", waitErr, strings.Join(lines, "; "))
}
