// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package watchdog bounds how long a decoder may run without producing output.
package watchdog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/tempy/internal/log"
)

var (
	// ErrStartTimeout is returned when no output arrived within the start timeout.
	ErrStartTimeout = errors.New("watchdog: no decoder output before start timeout")
	// ErrStalled is returned when output stopped for longer than the stall timeout.
	ErrStalled = errors.New("watchdog: decoder output stalled")
)

type State int

const (
	StateStarting State = iota
	StateRunning
	StateStalled
	StateTimedOut
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStalled:
		return "stalled"
	case StateTimedOut:
		return "timed_out"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

type clock interface {
	Now() time.Time
	NewTicker(d time.Duration) ticker
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time                   { return time.Now() }
func (realClock) NewTicker(d time.Duration) ticker { return &realTicker{time.NewTicker(d)} }

type realTicker struct {
	*time.Ticker
}

func (rt *realTicker) C() <-chan time.Time { return rt.Ticker.C }

// Watchdog enforces start and stall timeouts on a stream of heartbeats.
// A zero timeout disables the corresponding check.
type Watchdog struct {
	mu sync.Mutex

	startTimeout time.Duration
	stallTimeout time.Duration

	lastHeartbeat time.Time
	bytes         int64
	state         State

	done     chan struct{}
	doneOnce sync.Once

	clock clock
}

// New creates a new watchdog with given timeouts.
func New(startTimeout, stallTimeout time.Duration) *Watchdog {
	return &Watchdog{
		startTimeout: startTimeout,
		stallTimeout: stallTimeout,
		done:         make(chan struct{}),
		clock:        realClock{},
	}
}

// Run blocks until ctx ends, Complete is called, or a timeout fires.
// It returns ErrStartTimeout or ErrStalled on timeout and nil otherwise.
func (w *Watchdog) Run(ctx context.Context) error {
	w.mu.Lock()
	w.lastHeartbeat = w.clock.Now()
	w.mu.Unlock()

	if w.startTimeout <= 0 && w.stallTimeout <= 0 {
		select {
		case <-ctx.Done():
		case <-w.done:
		}
		return nil
	}

	ticker := w.clock.NewTicker(w.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.done:
			return nil
		case <-ticker.C():
			if err := w.check(); err != nil {
				return err
			}
		}
	}
}

// interval picks a tick period well below the tightest timeout.
func (w *Watchdog) interval() time.Duration {
	tightest := w.startTimeout
	if tightest <= 0 || (w.stallTimeout > 0 && w.stallTimeout < tightest) {
		tightest = w.stallTimeout
	}
	d := tightest / 4
	if d < 10*time.Millisecond {
		d = 10 * time.Millisecond
	}
	if d > time.Second {
		d = time.Second
	}
	return d
}

// Heartbeat records n bytes of decoder output.
func (w *Watchdog) Heartbeat(n int) {
	if n <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.bytes += int64(n)
	w.lastHeartbeat = w.clock.Now()
	if w.state == StateStarting {
		w.state = StateRunning
		logger := log.WithComponent("watchdog")
		logger.Debug().Msg("watchdog: first decoder output observed")
	}
}

// Complete marks the watched operation as finished and releases Run.
func (w *Watchdog) Complete() {
	w.mu.Lock()
	if w.state == StateStarting || w.state == StateRunning {
		w.state = StateCompleted
	}
	w.mu.Unlock()
	w.doneOnce.Do(func() { close(w.done) })
}

func (w *Watchdog) check() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	elapsed := w.clock.Now().Sub(w.lastHeartbeat)

	switch w.state {
	case StateStarting:
		if w.startTimeout > 0 && elapsed > w.startTimeout {
			w.state = StateTimedOut
			return ErrStartTimeout
		}
	case StateRunning:
		if w.stallTimeout > 0 && elapsed > w.stallTimeout {
			w.state = StateStalled
			return ErrStalled
		}
	}
	return nil
}

// State returns current watchdog state.
func (w *Watchdog) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Bytes returns the total output recorded through Heartbeat.
func (w *Watchdog) Bytes() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bytes
}
