// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package frames

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/tempy/internal/cache"
)

type countingExtractor struct {
	calls atomic.Int32
	gate  chan struct{}
	short bool
	err   error
}

func (e *countingExtractor) Extract(ctx context.Context, req Request) (Result, error) {
	e.calls.Add(1)
	if e.gate != nil {
		<-e.gate
	}
	if e.err != nil {
		return Result{}, e.err
	}
	frames := make([]string, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		frames = append(frames, "AAAA")
	}
	if e.short {
		frames = frames[:len(frames)-1]
	}
	return Result{Frames: frames, Requested: req.Count, Short: e.short, State: StateCompleted}, nil
}

func tempClip(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("not really a movie"), 0o600))
	return path
}

func TestCachedExtractor_HitsCacheOnRepeat(t *testing.T) {
	ctx := context.Background()
	next := &countingExtractor{}
	c := NewCachedExtractor(next, cache.NewMemoryCache(0), tiny, time.Minute)
	path := tempClip(t)

	first, err := c.Extract(ctx, Request{Path: path, StartFrame: 3, Count: 2})
	require.NoError(t, err)
	second, err := c.Extract(ctx, Request{Path: path, StartFrame: 3, Count: 2})
	require.NoError(t, err)

	assert.Equal(t, int32(1), next.calls.Load())
	assert.Equal(t, first.Frames, second.Frames)
	assert.Equal(t, StateCompleted, second.State)

	_, err = c.Extract(ctx, Request{Path: path, StartFrame: 4, Count: 2})
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load(), "different window is a different key")
}

func TestCachedExtractor_ModifiedFileMisses(t *testing.T) {
	ctx := context.Background()
	next := &countingExtractor{}
	c := NewCachedExtractor(next, cache.NewMemoryCache(0), tiny, time.Minute)
	path := tempClip(t)

	_, err := c.Extract(ctx, Request{Path: path, Count: 1})
	require.NoError(t, err)

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))

	_, err = c.Extract(ctx, Request{Path: path, Count: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCachedExtractor_ShortAndFailedResultsAreNotCached(t *testing.T) {
	ctx := context.Background()
	path := tempClip(t)

	short := &countingExtractor{short: true}
	c := NewCachedExtractor(short, cache.NewMemoryCache(0), tiny, time.Minute)
	for i := 0; i < 2; i++ {
		res, err := c.Extract(ctx, Request{Path: path, Count: 3})
		require.NoError(t, err)
		assert.True(t, res.Short)
	}
	assert.Equal(t, int32(2), short.calls.Load())

	failing := &countingExtractor{err: ErrDecodeFailure}
	c = NewCachedExtractor(failing, cache.NewMemoryCache(0), tiny, time.Minute)
	for i := 0; i < 2; i++ {
		_, err := c.Extract(ctx, Request{Path: path, Count: 1})
		assert.ErrorIs(t, err, ErrDecodeFailure)
	}
	assert.Equal(t, int32(2), failing.calls.Load())
}

func TestCachedExtractor_CoalescesConcurrentRequests(t *testing.T) {
	next := &countingExtractor{gate: make(chan struct{})}
	c := NewCachedExtractor(next, cache.NewNoOpCache(), tiny, time.Minute)
	path := tempClip(t)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.Extract(context.Background(), Request{Path: path, Count: 2})
			assert.NoError(t, err)
			assert.Len(t, res.Frames, 2)
		}()
	}

	assert.Eventually(t, func() bool { return next.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond) // let the others join the flight
	close(next.gate)
	wg.Wait()
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestCachedExtractor_CallerCancelDoesNotAbortSharedDecode(t *testing.T) {
	next := &countingExtractor{gate: make(chan struct{})}
	mem := cache.NewMemoryCache(0)
	c := NewCachedExtractor(next, mem, tiny, time.Minute)
	path := tempClip(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Extract(ctx, Request{Path: path, Count: 1})
		done <- err
	}()

	assert.Eventually(t, func() bool { return next.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(next.gate)
	assert.Eventually(t, func() bool { return mem.Stats().Sets == 1 }, time.Second, time.Millisecond)
}

func TestCachedExtractor_InvalidatePath(t *testing.T) {
	ctx := context.Background()
	next := &countingExtractor{}
	c := NewCachedExtractor(next, cache.NewMemoryCache(0), tiny, time.Minute)
	path := tempClip(t)

	for _, start := range []int{0, 10, 20} {
		_, err := c.Extract(ctx, Request{Path: path, StartFrame: start, Count: 1})
		require.NoError(t, err)
	}

	assert.Equal(t, 3, c.InvalidatePath(ctx, path))
	assert.Zero(t, c.InvalidatePath(ctx, path))

	_, err := c.Extract(ctx, Request{Path: path, StartFrame: 0, Count: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(4), next.calls.Load())
}

func TestCachedExtractor_MissingFileBypassesCache(t *testing.T) {
	next := &countingExtractor{err: ErrSourceNotFound}
	c := NewCachedExtractor(next, cache.NewMemoryCache(0), tiny, time.Minute)

	_, err := c.Extract(context.Background(), Request{Path: "/does/not/exist.mp4", Count: 1})
	assert.ErrorIs(t, err, ErrSourceNotFound)
	assert.Equal(t, int32(1), next.calls.Load())
}
