// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan_ProbesOnceAndPrunes(t *testing.T) {
	prober := &fakeProber{meta: Metadata{Width: 640, Height: 360, FPS: 30, DurationSeconds: 1}}
	c, store := newTestCatalog(t, prober)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, filepath.Join(c.Root(), "deleted.mp4"), 1, time.Now(), Metadata{}))

	res, err := c.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Videos)
	assert.Equal(t, 3, res.Probed)
	assert.Equal(t, 1, res.Pruned)
	assert.Zero(t, res.Errors)
	assert.Empty(t, res.Error())

	res, err = c.Scan(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Probed, "unchanged files come from the index")
	assert.Equal(t, int32(3), prober.calls.Load())

	require.NoError(t, os.Remove(filepath.Join(c.Root(), "clip.mp4")))
	res, err = c.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Videos)
	assert.Equal(t, 1, res.Pruned)
}

func TestScan_CountsProbeFailures(t *testing.T) {
	c, _ := newTestCatalog(t, &fakeProber{err: errors.New("invalid data")})

	res, err := c.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Errors)
	assert.Contains(t, res.Error(), "invalid data")
}

func TestScan_RejectsConcurrentScan(t *testing.T) {
	c, _ := newTestCatalog(t, &fakeProber{})

	c.scanMu.Lock()
	_, err := c.Scan(context.Background())
	c.scanMu.Unlock()
	assert.ErrorIs(t, err, ErrScanRunning)
}

func TestScan_Canceled(t *testing.T) {
	c, _ := newTestCatalog(t, &fakeProber{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
