// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package frames

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/tempy/internal/log"
	"github.com/ManuGH/tempy/internal/media/ffmpeg/watchdog"
	"github.com/ManuGH/tempy/internal/metrics"
)

// tiny is a 2x2 geometry: 16 bytes per frame keeps the chunk math readable.
var tiny = Geometry{Width: 2, Height: 2, FPS: 30}

type script func(emit func(Event), stopped <-chan struct{})

type fakeStream struct {
	events   chan Event
	stopped  chan struct{}
	stopOnce sync.Once
	stops    atomic.Int32
	stopErr  error
}

func (s *fakeStream) Events() <-chan Event { return s.events }

func (s *fakeStream) Stop() error {
	s.stops.Add(1)
	s.stopOnce.Do(func() { close(s.stopped) })
	return s.stopErr
}

type fakeDecoder struct {
	run      script
	startErr error
	stopErr  error

	mu      sync.Mutex
	streams []*fakeStream
	windows []Window
}

func (d *fakeDecoder) Start(_ context.Context, _ string, w Window, _ Geometry) (Stream, error) {
	if d.startErr != nil {
		return nil, d.startErr
	}
	s := &fakeStream{
		events:  make(chan Event),
		stopped: make(chan struct{}),
		stopErr: d.stopErr,
	}
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.windows = append(d.windows, w)
	d.mu.Unlock()

	go func() {
		defer close(s.events)
		d.run(func(ev Event) { s.events <- ev }, s.stopped)
	}()
	return s, nil
}

func (d *fakeDecoder) stream(t *testing.T) *fakeStream {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.Len(t, d.streams, 1)
	return d.streams[0]
}

func data(b []byte) Event { return Event{Kind: EventData, Data: b} }

// patterned returns n frames where every byte of frame i equals i+1.
func patterned(g Geometry, n int) []byte {
	size := g.FrameSize()
	out := make([]byte, 0, size*n)
	for i := 0; i < n; i++ {
		out = append(out, bytes.Repeat([]byte{byte(i + 1)}, size)...)
	}
	return out
}

func newTestPipeline(t *testing.T, dec Decoder, opts Options) *Pipeline {
	t.Helper()
	if opts.Geometry == (Geometry{}) {
		opts.Geometry = tiny
	}
	p, err := NewPipeline(dec, opts)
	require.NoError(t, err)
	return p
}

func closePipeline(t *testing.T, p *Pipeline) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Close(ctx))
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.Configure(log.Config{Level: "debug", Output: &buf})
	t.Cleanup(func() { log.Configure(log.Config{}) })
	return &buf
}

func TestPipeline_SingleExactChunk(t *testing.T) {
	g := Geometry{Width: 640, Height: 360, FPS: 30}
	frame := bytes.Repeat([]byte{0x7f}, g.FrameSize())
	dec := &fakeDecoder{run: func(emit func(Event), stopped <-chan struct{}) {
		emit(data(frame))
		<-stopped
	}}
	p := newTestPipeline(t, dec, Options{Geometry: g})

	res, err := p.Extract(context.Background(), Request{Path: "clip.mp4", StartFrame: 0, Count: 1})
	require.NoError(t, err)
	require.Len(t, res.Frames, 1)
	assert.Equal(t, base64.StdEncoding.EncodeToString(frame), res.Frames[0])
	assert.False(t, res.Short)
	assert.Equal(t, StateCompleted, res.State)

	closePipeline(t, p)
	assert.Equal(t, int32(1), dec.stream(t).stops.Load(), "reaching count must soft close the decoder once")
	assert.Equal(t, 921600, dec.windows[0].FrameSize)
}

func TestPipeline_IrregularChunks(t *testing.T) {
	size := tiny.FrameSize()
	raw := patterned(tiny, 4)

	tests := []struct {
		name   string
		chunks [][]byte
	}{
		{name: "one and a half then two", chunks: [][]byte{raw[:size*3/2], raw[size*3/2 : size*7/2]}},
		{name: "one and a half twice", chunks: [][]byte{raw[:size*3/2], raw[size*3/2 : size*3]}},
		{name: "byte at a time", chunks: splitEvery(raw[:size*3], 1)},
		{name: "more than requested in one chunk", chunks: [][]byte{raw}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := &fakeDecoder{run: func(emit func(Event), stopped <-chan struct{}) {
				for _, c := range tt.chunks {
					select {
					case <-stopped:
						return
					default:
					}
					emit(data(c))
				}
				<-stopped
			}}
			p := newTestPipeline(t, dec, Options{})

			res, err := p.Extract(context.Background(), Request{Path: "clip.mp4", Count: 3})
			require.NoError(t, err)
			require.Len(t, res.Frames, 3)
			for i, f := range res.Frames {
				decoded, err := base64.StdEncoding.DecodeString(f)
				require.NoError(t, err)
				assert.Equal(t, bytes.Repeat([]byte{byte(i + 1)}, size), decoded, "frame %d out of order", i)
			}
			closePipeline(t, p)
		})
	}
}

func splitEvery(b []byte, n int) [][]byte {
	var out [][]byte
	for len(b) > 0 {
		k := n
		if k > len(b) {
			k = len(b)
		}
		out = append(out, b[:k])
		b = b[k:]
	}
	return out
}

func TestPipeline_NaturalEndBeforeCount(t *testing.T) {
	logs := captureLogs(t)
	before := testutil.ToFloat64(metrics.UnderDeliveryTotal)

	dec := &fakeDecoder{run: func(emit func(Event), _ <-chan struct{}) {
		emit(data(patterned(tiny, 2)))
		emit(Event{Kind: EventEnd})
	}}
	p := newTestPipeline(t, dec, Options{})

	res, err := p.Extract(context.Background(), Request{Path: "short.mp4", StartFrame: 10, Count: 3})
	require.NoError(t, err)
	assert.Len(t, res.Frames, 2)
	assert.True(t, res.Short)
	assert.Equal(t, 3, res.Requested)

	closePipeline(t, p)
	assert.Contains(t, logs.String(), `"event":"frames.under_delivery"`)
	assert.Contains(t, logs.String(), "only got 2 frames (expected 3)")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.UnderDeliveryTotal))
	assert.Zero(t, dec.stream(t).stops.Load(), "natural end needs no soft close")
}

func TestPipeline_EndWithoutOutput(t *testing.T) {
	dec := &fakeDecoder{run: func(emit func(Event), _ <-chan struct{}) {
		emit(Event{Kind: EventEnd})
	}}
	p := newTestPipeline(t, dec, Options{})

	res, err := p.Extract(context.Background(), Request{Path: "past-the-end.mp4", StartFrame: 1 << 20, Count: 2})
	require.NoError(t, err)
	assert.NotNil(t, res.Frames)
	assert.Empty(t, res.Frames)
	assert.True(t, res.Short)
	closePipeline(t, p)
}

func TestPipeline_DecoderErrorDiscardsPartialFrames(t *testing.T) {
	boom := errors.New("exit status 1: moov atom not found")

	tests := []struct {
		name string
		run  script
	}{
		{name: "error with zero frames", run: func(emit func(Event), _ <-chan struct{}) {
			emit(Event{Kind: EventError, Err: boom})
		}},
		{name: "error after partial frames", run: func(emit func(Event), _ <-chan struct{}) {
			emit(data(patterned(tiny, 1)))
			emit(data(patterned(tiny, 1)[:5]))
			emit(Event{Kind: EventError, Err: boom})
		}},
		{name: "error then end", run: func(emit func(Event), _ <-chan struct{}) {
			emit(Event{Kind: EventError, Err: boom})
			emit(Event{Kind: EventEnd})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(t, &fakeDecoder{run: tt.run}, Options{})

			res, err := p.Extract(context.Background(), Request{Path: "broken.mp4", Count: 3})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDecodeFailure)
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, KindDecodeFailure, KindOf(err))
			assert.Empty(t, res.Frames)
			closePipeline(t, p)
		})
	}
}

func TestPipeline_EndThenErrorKeepsSuccess(t *testing.T) {
	dec := &fakeDecoder{run: func(emit func(Event), _ <-chan struct{}) {
		emit(data(patterned(tiny, 1)))
		emit(Event{Kind: EventEnd})
		emit(Event{Kind: EventError, Err: errors.New("late failure")})
	}}
	p := newTestPipeline(t, dec, Options{})

	res, err := p.Extract(context.Background(), Request{Path: "clip.mp4", Count: 2})
	require.NoError(t, err)
	assert.Len(t, res.Frames, 1)
	assert.True(t, res.Short)
	closePipeline(t, p)
}

func TestPipeline_SignalsAfterSoftCloseAreIgnored(t *testing.T) {
	defer goleak.VerifyNone(t)

	dec := &fakeDecoder{
		stopErr: errors.New("process already exited"),
		run: func(emit func(Event), stopped <-chan struct{}) {
			emit(data(patterned(tiny, 2)))
			<-stopped
			// SIGTERM surfaces as a failed exit after the result settled.
			emit(data(patterned(tiny, 1)))
			emit(Event{Kind: EventError, Err: errors.New("signal: terminated")})
		},
	}
	p := newTestPipeline(t, dec, Options{})

	res, err := p.Extract(context.Background(), Request{Path: "clip.mp4", Count: 2})
	require.NoError(t, err)
	assert.Len(t, res.Frames, 2)
	assert.False(t, res.Short)

	closePipeline(t, p)
	s := dec.stream(t)
	assert.Equal(t, int32(1), s.stops.Load())

	// A second stop from outside must not disturb anything either.
	_ = s.Stop()
	assert.Len(t, res.Frames, 2)
}

func TestPipeline_ContextCanceled(t *testing.T) {
	defer goleak.VerifyNone(t)

	dec := &fakeDecoder{run: func(emit func(Event), stopped <-chan struct{}) {
		emit(data(patterned(tiny, 1)))
		<-stopped
		emit(Event{Kind: EventError, Err: errors.New("signal: terminated")})
	}}
	p := newTestPipeline(t, dec, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := p.Extract(ctx, Request{Path: "clip.mp4", Count: 5})
	require.Error(t, err)
	assert.Equal(t, KindCanceled, KindOf(err))

	closePipeline(t, p)
	assert.Equal(t, int32(1), dec.stream(t).stops.Load())
}

func TestPipeline_WatchdogStartTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	dec := &fakeDecoder{run: func(_ func(Event), stopped <-chan struct{}) {
		<-stopped
	}}
	p := newTestPipeline(t, dec, Options{StartTimeout: 40 * time.Millisecond})

	_, err := p.Extract(context.Background(), Request{Path: "hung.mp4", Count: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecodeFailure)
	assert.ErrorIs(t, err, watchdog.ErrStartTimeout)

	closePipeline(t, p)
	assert.Equal(t, int32(1), dec.stream(t).stops.Load())
}

func TestPipeline_WatchdogStall(t *testing.T) {
	dec := &fakeDecoder{run: func(emit func(Event), stopped <-chan struct{}) {
		emit(data(patterned(tiny, 1)))
		<-stopped
	}}
	p := newTestPipeline(t, dec, Options{StartTimeout: time.Second, StallTimeout: 40 * time.Millisecond})

	res, err := p.Extract(context.Background(), Request{Path: "stuck.mp4", Count: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, watchdog.ErrStalled)
	assert.Empty(t, res.Frames)
	closePipeline(t, p)
}

func TestPipeline_StartErrors(t *testing.T) {
	t.Run("spawn failure is a decode failure", func(t *testing.T) {
		p := newTestPipeline(t, &fakeDecoder{startErr: errors.New("exec: \"ffmpeg\": executable file not found in $PATH")}, Options{})
		_, err := p.Extract(context.Background(), Request{Path: "clip.mp4", Count: 1})
		assert.Equal(t, KindDecodeFailure, KindOf(err))
	})

	t.Run("admission rejection stays unavailable", func(t *testing.T) {
		p := newTestPipeline(t, &fakeDecoder{startErr: ErrUnavailable}, Options{})
		_, err := p.Extract(context.Background(), Request{Path: "clip.mp4", Count: 1})
		assert.Equal(t, KindUnavailable, KindOf(err))
	})
}

func TestPipeline_RejectsInvalidRequests(t *testing.T) {
	dec := &fakeDecoder{run: func(func(Event), <-chan struct{}) {
		t.Error("decoder must not start for invalid requests")
	}}
	p := newTestPipeline(t, dec, Options{MaxCount: 10})

	for _, req := range []Request{
		{Path: "", Count: 1},
		{Path: "clip.mp4", StartFrame: -1, Count: 1},
		{Path: "clip.mp4", Count: 0},
		{Path: "clip.mp4", Count: 11},
	} {
		_, err := p.Extract(context.Background(), req)
		assert.Equal(t, KindInvalidArgument, KindOf(err), "%+v", req)
	}
	assert.Empty(t, dec.streams)
}

func TestPipeline_ConcurrentExtractionsAreIndependent(t *testing.T) {
	dec := &fakeDecoder{run: func(emit func(Event), stopped <-chan struct{}) {
		emit(data(patterned(tiny, 3)))
		<-stopped
	}}
	p := newTestPipeline(t, dec, Options{})

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(count int) {
			defer wg.Done()
			res, err := p.Extract(context.Background(), Request{Path: "clip.mp4", Count: count%3 + 1})
			assert.NoError(t, err)
			assert.Len(t, res.Frames, count%3+1)
		}(i)
	}
	wg.Wait()
	closePipeline(t, p)
}

func TestNewPipeline_Validation(t *testing.T) {
	_, err := NewPipeline(nil, Options{Geometry: tiny})
	assert.Error(t, err)

	_, err = NewPipeline(&fakeDecoder{}, Options{Geometry: Geometry{Width: 0, Height: 2, FPS: 30}})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
