// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package frames

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/tempy/internal/log"
	"github.com/ManuGH/tempy/internal/media/ffmpeg/watchdog"
	"github.com/ManuGH/tempy/internal/metrics"
	"github.com/ManuGH/tempy/internal/telemetry"
)

// Options configures a Pipeline. Geometry is required; everything else has
// a usable zero value.
type Options struct {
	Geometry Geometry

	// MaxCount caps the frames a single request may ask for. Zero disables the cap.
	MaxCount int

	// StartTimeout bounds the wait for the first decoder output, StallTimeout
	// the gap between chunks afterwards. Zero disables the respective check.
	StartTimeout time.Duration
	StallTimeout time.Duration

	// Encoding defaults to standard base64.
	Encoding *base64.Encoding
}

// Pipeline drives one decoder per Extract call and reassembles its raw output
// into frames. A Pipeline holds no per-request state and is safe for
// concurrent use.
type Pipeline struct {
	decoder Decoder
	opts    Options
	tracer  trace.Tracer

	// drains tracks extractions whose decoder has not closed its event
	// channel yet. They outlive Extract when the result settles early.
	drains sync.WaitGroup
}

// NewPipeline validates opts and returns a ready pipeline.
func NewPipeline(decoder Decoder, opts Options) (*Pipeline, error) {
	if decoder == nil {
		return nil, fmt.Errorf("frames: decoder is required")
	}
	if err := opts.Geometry.Validate(); err != nil {
		return nil, fmt.Errorf("frames: %w", err)
	}
	if opts.Encoding == nil {
		opts.Encoding = base64.StdEncoding
	}
	return &Pipeline{
		decoder: decoder,
		opts:    opts,
		tracer:  telemetry.Tracer("tempy/frames"),
	}, nil
}

// Geometry returns the fixed output geometry.
func (p *Pipeline) Geometry() Geometry {
	return p.opts.Geometry
}

// Extract decodes req.Count frames starting at req.StartFrame. It returns
// as soon as the result is settled; the decoder may still be shutting down.
func (p *Pipeline) Extract(ctx context.Context, req Request) (Result, error) {
	if req.Path == "" {
		metrics.RecordExtraction(metrics.ResultInvalid, 0, 0)
		return Result{}, fmt.Errorf("%w: path is required", ErrInvalidArgument)
	}
	w, err := ComputeWindow(req.StartFrame, req.Count, p.opts.Geometry)
	if err != nil {
		metrics.RecordExtraction(metrics.ResultInvalid, 0, 0)
		return Result{}, err
	}
	if p.opts.MaxCount > 0 && req.Count > p.opts.MaxCount {
		metrics.RecordExtraction(metrics.ResultInvalid, 0, 0)
		return Result{}, fmt.Errorf("%w: count must be <= %d (got %d)", ErrInvalidArgument, p.opts.MaxCount, req.Count)
	}

	ctx = log.ContextWithJobID(ctx, uuid.NewString())
	ctx, span := p.tracer.Start(ctx, "frames.extract",
		trace.WithAttributes(telemetry.ExtractionAttributes(req.StartFrame, req.Count, p.opts.Geometry.Resolution(), p.opts.Geometry.FPS)...),
	)
	defer span.End()

	logger := log.WithComponentFromContext(ctx, "frames")
	logger.Info().
		Str(log.FieldEvent, "frames.extract.started").
		Str(log.FieldPath, req.Path).
		Int(log.FieldStartFrame, req.StartFrame).
		Int(log.FieldCount, req.Count).
		Float64("start_seconds", w.StartSeconds).
		Float64("duration_seconds", w.DurationSeconds).
		Int(log.FieldFrameSize, w.FrameSize).
		Msg("starting frame extraction")

	started := time.Now()
	stream, err := p.decoder.Start(ctx, req.Path, w, p.opts.Geometry)
	if err != nil {
		if KindOf(err) == KindInternal {
			err = fmt.Errorf("%w: start decoder: %w", ErrDecodeFailure, err)
		}
		p.observe(span, logger, Result{State: StateFailed}, err, time.Since(started))
		return Result{}, err
	}

	x := &extraction{
		stream:  stream,
		count:   req.Count,
		acc:     NewAccumulator(w.FrameSize),
		enc:     p.opts.Encoding,
		wd:      watchdog.New(p.opts.StartTimeout, p.opts.StallTimeout),
		stall:   make(chan error, 1),
		started: started,
		logger:  logger,
		settled: newSettlement(),
		state:   StateRunning,
	}

	metrics.ExtractionsInFlight.Inc()
	p.drains.Add(1)
	go func() {
		defer p.drains.Done()
		x.drive(ctx)
	}()

	<-x.settled.done
	metrics.ExtractionsInFlight.Dec()

	res, err := x.settled.result, x.settled.err
	p.observe(span, logger, res, err, res.Elapsed)
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// Close waits until every decoder started by this pipeline has delivered its
// last event, or ctx ends.
func (p *Pipeline) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.drains.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) observe(span trace.Span, logger zerolog.Logger, res Result, err error, elapsed time.Duration) {
	result := resultLabel(res, err)
	metrics.RecordExtraction(result, elapsed, len(res.Frames))
	span.SetAttributes(telemetry.OutcomeAttributes(len(res.Frames), res.Short, res.State.String())...)

	if err != nil {
		kind := KindOf(err)
		span.SetAttributes(telemetry.ErrorAttributes(err, string(kind))...)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))

		ev := logger.Error()
		if kind == KindCanceled || kind == KindUnavailable {
			ev = logger.Warn()
		}
		ev.Err(err).
			Str(log.FieldEvent, "frames.extract.failed").
			Str("kind", string(kind)).
			Dur("elapsed", elapsed).
			Msg("frame extraction failed")
		return
	}

	span.SetStatus(codes.Ok, "")
	logger.Info().
		Str(log.FieldEvent, "frames.extract.completed").
		Int(log.FieldFrames, len(res.Frames)).
		Int(log.FieldCount, res.Requested).
		Bool("short", res.Short).
		Dur("elapsed", elapsed).
		Msg("frame extraction completed")
}

func resultLabel(res Result, err error) string {
	switch KindOf(err) {
	case KindNone:
		if res.Short {
			return metrics.ResultShort
		}
		return metrics.ResultCompleted
	case KindCanceled:
		return metrics.ResultCanceled
	case KindInvalidArgument, KindSourceNotFound:
		return metrics.ResultInvalid
	case KindUnavailable:
		return metrics.ResultRejected
	default:
		return metrics.ResultFailed
	}
}

// settlement is the exactly-once result latch of an extraction.
type settlement struct {
	once   sync.Once
	done   chan struct{}
	result Result
	err    error
}

func newSettlement() *settlement {
	return &settlement{done: make(chan struct{})}
}

// settle records the outcome if none was recorded yet and reports whether
// this call won.
func (s *settlement) settle(res Result, err error) bool {
	won := false
	s.once.Do(func() {
		s.result, s.err = res, err
		close(s.done)
		won = true
	})
	return won
}

func (s *settlement) isSettled() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// extraction is the per-request state. Every field below is owned by the
// drive goroutine; Extract only reads the settlement after done is closed.
type extraction struct {
	stream Stream
	count  int
	acc    *Accumulator
	enc    *base64.Encoding
	wd     *watchdog.Watchdog
	stall  chan error

	started time.Time
	logger  zerolog.Logger

	settled *settlement
	state   State
	frames  []string

	stopOnce   sync.Once
	stragglers int
}

// drive consumes decoder events in emission order until the stream closes.
// Events that arrive after settlement are counted and dropped.
func (x *extraction) drive(ctx context.Context) {
	wdCtx, wdCancel := context.WithCancel(context.Background())
	go func() {
		x.stall <- x.wd.Run(wdCtx)
	}()
	defer func() {
		x.wd.Complete()
		wdCancel()
		if x.stragglers > 0 {
			x.logger.Debug().
				Str(log.FieldEvent, "frames.decoder.stragglers").
				Int("events", x.stragglers).
				Msg("ignored decoder events after settlement")
		}
	}()

	events := x.stream.Events()
	done := ctx.Done()
	stall := x.stall

	for events != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				if !x.settled.isSettled() {
					x.complete()
				}
				continue
			}
			x.handle(ev)

		case err := <-stall:
			stall = nil
			if err != nil && !x.settled.isSettled() {
				x.fail(fmt.Errorf("%w: %w", ErrDecodeFailure, err))
				x.stop()
			}

		case <-done:
			done = nil
			if !x.settled.isSettled() {
				x.fail(ctx.Err())
				x.stop()
			}
		}
	}
}

func (x *extraction) handle(ev Event) {
	if x.settled.isSettled() {
		x.stragglers++
		return
	}

	switch ev.Kind {
	case EventData:
		if len(ev.Data) == 0 {
			return
		}
		if x.state == StateRunning {
			x.state = StateDraining
		}
		x.wd.Heartbeat(len(ev.Data))
		_, _ = x.acc.Write(ev.Data)
		x.acc.Carve(x.count-len(x.frames), func(frame []byte) {
			x.frames = append(x.frames, x.enc.EncodeToString(frame))
		})
		if len(x.frames) == x.count {
			x.complete()
			x.stop()
		}

	case EventEnd:
		x.complete()

	case EventError:
		err := ev.Err
		if err == nil {
			err = fmt.Errorf("decoder reported an error without detail")
		}
		x.fail(fmt.Errorf("%w: %w", ErrDecodeFailure, err))
	}
}

// complete settles successfully with whatever frames were collected.
func (x *extraction) complete() {
	res := Result{
		Frames:    x.frames,
		Requested: x.count,
		Short:     len(x.frames) < x.count,
		State:     StateCompleted,
		Elapsed:   time.Since(x.started),
	}
	if res.Frames == nil {
		res.Frames = []string{}
	}
	if res.Short {
		x.logger.Warn().
			Str(log.FieldEvent, "frames.under_delivery").
			Int(log.FieldFrames, len(x.frames)).
			Int(log.FieldCount, x.count).
			Msgf("only got %d frames (expected %d)", len(x.frames), x.count)
	}
	x.state = StateCompleted
	x.acc.Reset()
	x.settled.settle(res, nil)
}

// fail settles with err and discards any partial frames.
func (x *extraction) fail(err error) {
	x.state = StateFailed
	x.frames = nil
	x.acc.Reset()
	x.settled.settle(Result{State: StateFailed, Requested: x.count, Elapsed: time.Since(x.started)}, err)
}

// stop issues the soft close at most once. Failure is logged, never returned:
// the result is already committed.
func (x *extraction) stop() {
	x.stopOnce.Do(func() {
		err := x.stream.Stop()
		metrics.RecordSoftClose(err)
		if err != nil {
			x.logger.Warn().
				Err(err).
				Str(log.FieldEvent, "frames.soft_close_failed").
				Msg("failed to stop decoder gracefully")
		}
	})
}
