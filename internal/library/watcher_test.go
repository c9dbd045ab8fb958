// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package library

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type hookRecorder struct {
	mu    sync.Mutex
	paths map[string]int
}

func (h *hookRecorder) record(_ context.Context, p string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paths[p]++
}

func (h *hookRecorder) count(p string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paths[p]
}

func startWatch(t *testing.T, c *Catalog) (*hookRecorder, func()) {
	t.Helper()
	rec := &hookRecorder{paths: make(map[string]int)}
	c.OnInvalidate(rec.record)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx) }()

	// Watch registers its directories before logging; give it a moment.
	time.Sleep(100 * time.Millisecond)
	return rec, func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func TestWatch_InvalidatesChangedVideos(t *testing.T) {
	// Registered first so it runs after the store cleanup closes the database.
	t.Cleanup(func() { goleak.VerifyNone(t) })

	c, _ := newTestCatalog(t, &fakeProber{})
	c.cfg.Debounce = 200 * time.Millisecond
	rec, stop := startWatch(t, c)
	defer stop()

	clip := filepath.Join(c.Root(), "clip.mp4")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(clip, []byte("rewritten"), 0o600))
	}
	nested := filepath.Join(c.Root(), "sub", "nested.mkv")
	require.NoError(t, os.Remove(nested))

	assert.Eventually(t, func() bool {
		return rec.count(clip) == 1 && rec.count(nested) == 1
	}, 2*time.Second, 10*time.Millisecond, "bursts are debounced into one invalidation")

	require.NoError(t, os.WriteFile(filepath.Join(c.Root(), "notes.txt"), []byte("x"), 0o600))
	time.Sleep(400 * time.Millisecond)
	assert.Zero(t, rec.count(filepath.Join(c.Root(), "notes.txt")), "non-video files are ignored")
}

func TestWatch_FollowsNewDirectories(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	c, _ := newTestCatalog(t, &fakeProber{})
	rec, stop := startWatch(t, c)
	defer stop()

	dir := filepath.Join(c.Root(), "later")
	require.NoError(t, os.Mkdir(dir, 0o755))
	time.Sleep(100 * time.Millisecond)

	clip := filepath.Join(dir, "new.mp4")
	require.NoError(t, os.WriteFile(clip, []byte("x"), 0o600))

	assert.Eventually(t, func() bool {
		return rec.count(clip) >= 1
	}, 2*time.Second, 10*time.Millisecond)
}
