// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/tempy/internal/frames"
)

type fakeProber struct {
	calls atomic.Int32
	err   error
	meta  Metadata
}

func (p *fakeProber) Probe(_ context.Context, _ string) (Metadata, error) {
	p.calls.Add(1)
	if p.err != nil {
		return Metadata{}, p.err
	}
	m := p.meta
	m.ProbedAt = time.Now()
	return m, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// newTestCatalog creates a video dir with clip.mp4, my..clip.mp4,
// sub/nested.mkv, notes.txt and a hidden .secret.mp4.
func newTestCatalog(t *testing.T, prober Prober) (*Catalog, *Store) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "clip.mp4"), "clip")
	writeFile(t, filepath.Join(dir, "my..clip.mp4"), "dots")
	writeFile(t, filepath.Join(dir, "sub", "nested.mkv"), "nested")
	writeFile(t, filepath.Join(dir, "notes.txt"), "not a video")
	writeFile(t, filepath.Join(dir, ".secret.mp4"), "hidden")

	store, err := OpenStore(filepath.Join(t.TempDir(), "index.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	c, err := NewCatalog(Config{Dir: dir, Debounce: 20 * time.Millisecond}, store, prober)
	require.NoError(t, err)
	return c, store
}

func TestResolve(t *testing.T) {
	c, _ := newTestCatalog(t, nil)

	outside := filepath.Join(t.TempDir(), "outside.mp4")
	writeFile(t, outside, "outside")
	require.NoError(t, os.Symlink(outside, filepath.Join(c.Root(), "escape.mp4")))
	require.NoError(t, os.Symlink(filepath.Join(c.Root(), "clip.mp4"), filepath.Join(c.Root(), "alias.mp4")))

	tests := []struct {
		name     string
		filename string
		want     string
		kind     frames.Kind
	}{
		{name: "plain file", filename: "clip.mp4", want: "clip.mp4"},
		{name: "nested file", filename: "sub/nested.mkv", want: "sub/nested.mkv"},
		{name: "dots inside a name", filename: "my..clip.mp4", want: "my..clip.mp4"},
		{name: "symlink inside", filename: "alias.mp4", want: "clip.mp4"},
		{name: "empty", filename: "", kind: frames.KindInvalidArgument},
		{name: "blank", filename: "   ", kind: frames.KindInvalidArgument},
		{name: "parent", filename: "../etc/passwd", kind: frames.KindInvalidArgument},
		{name: "nested parent", filename: "sub/../../x.mp4", kind: frames.KindInvalidArgument},
		{name: "encoded parent", filename: "%2e%2e/secret.mp4", kind: frames.KindInvalidArgument},
		{name: "double encoded parent", filename: "%252e%252e/secret.mp4", kind: frames.KindInvalidArgument},
		{name: "backslash parent", filename: `sub\..\..\x.mp4`, kind: frames.KindInvalidArgument},
		{name: "overlong dot", filename: "%c0%ae%c0%ae/x.mp4", kind: frames.KindInvalidArgument},
		{name: "nul byte", filename: "clip.mp4\x00.txt", kind: frames.KindInvalidArgument},
		{name: "encoded nul", filename: "clip.mp4%00.txt", kind: frames.KindInvalidArgument},
		{name: "symlink escape", filename: "escape.mp4", kind: frames.KindInvalidArgument},
		{name: "missing", filename: "missing.mp4", kind: frames.KindSourceNotFound},
		{name: "directory", filename: "sub", kind: frames.KindSourceNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Resolve(tt.filename)
			if tt.kind != frames.KindNone {
				require.Error(t, err)
				assert.Equal(t, tt.kind, frames.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(c.Root(), filepath.FromSlash(tt.want)), got)
			assert.True(t, filepath.IsAbs(got))
		})
	}
}

func TestNewCatalog_Errors(t *testing.T) {
	_, err := NewCatalog(Config{}, nil, nil)
	assert.Error(t, err)

	_, err = NewCatalog(Config{Dir: filepath.Join(t.TempDir(), "missing")}, nil, nil)
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file")
	writeFile(t, file, "x")
	_, err = NewCatalog(Config{Dir: file}, nil, nil)
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	prober := &fakeProber{meta: Metadata{Width: 1920, Height: 1080, FPS: 25, DurationSeconds: 12}}
	c, _ := newTestCatalog(t, prober)
	ctx := context.Background()

	videos, err := c.List(ctx)
	require.NoError(t, err)

	var names []string
	for _, v := range videos {
		names = append(names, v.Name)
		assert.Nil(t, v.Metadata, "nothing probed yet")
	}
	assert.Equal(t, []string{"clip.mp4", "my..clip.mp4", "sub/nested.mkv"}, names)
	assert.Zero(t, prober.calls.Load(), "List never probes")

	path, err := c.Resolve("clip.mp4")
	require.NoError(t, err)
	_, err = c.Probe(ctx, path)
	require.NoError(t, err)

	videos, err = c.List(ctx)
	require.NoError(t, err)
	require.NotNil(t, videos[0].Metadata)
	assert.Equal(t, 1920, videos[0].Metadata.Width)
	assert.Equal(t, int64(4), videos[0].SizeBytes)
}

func TestList_EmptyDirectory(t *testing.T) {
	c, err := NewCatalog(Config{Dir: t.TempDir()}, nil, nil)
	require.NoError(t, err)

	videos, err := c.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, videos)
	assert.Empty(t, videos)
}

func TestList_MaxDepth(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "top.mp4"), "x")
	writeFile(t, filepath.Join(dir, "a", "b", "deep.mp4"), "x")

	c, err := NewCatalog(Config{Dir: dir, MaxDepth: 1}, nil, nil)
	require.NoError(t, err)

	videos, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "top.mp4", videos[0].Name)
}

func TestProbe_UsesIndexUntilFileChanges(t *testing.T) {
	prober := &fakeProber{meta: Metadata{Width: 640, Height: 360, FPS: 30, DurationSeconds: 2}}
	c, _ := newTestCatalog(t, prober)
	ctx := context.Background()

	path, err := c.Resolve("clip.mp4")
	require.NoError(t, err)

	m, err := c.Probe(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 60, m.FrameCount(30))

	_, err = c.Probe(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, int32(1), prober.calls.Load(), "second probe served from index")

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))
	_, err = c.Probe(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, int32(2), prober.calls.Load(), "modified file is probed again")
}

func TestProbe_Errors(t *testing.T) {
	prober := &fakeProber{err: errors.New("moov atom not found")}
	c, _ := newTestCatalog(t, prober)

	path, err := c.Resolve("clip.mp4")
	require.NoError(t, err)
	_, err = c.Probe(context.Background(), path)
	assert.ErrorContains(t, err, "moov atom not found")

	_, err = c.Probe(context.Background(), filepath.Join(c.Root(), "gone.mp4"))
	assert.Equal(t, frames.KindSourceNotFound, frames.KindOf(err))

	noProber, _ := newTestCatalog(t, nil)
	path, err = noProber.Resolve("clip.mp4")
	require.NoError(t, err)
	_, err = noProber.Probe(context.Background(), path)
	assert.Error(t, err)
}

func TestInvalidate_DropsIndexAndRunsHooks(t *testing.T) {
	prober := &fakeProber{meta: Metadata{Width: 640, Height: 360}}
	c, store := newTestCatalog(t, prober)
	ctx := context.Background()

	path, err := c.Resolve("clip.mp4")
	require.NoError(t, err)
	_, err = c.Probe(ctx, path)
	require.NoError(t, err)

	var mu sync.Mutex
	var got []string
	c.OnInvalidate(func(_ context.Context, p string) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, p)
	})

	c.Invalidate(ctx, path)

	paths, err := store.Paths(ctx)
	require.NoError(t, err)
	assert.Empty(t, paths)
	assert.Equal(t, []string{path}, got)
}

func TestIsPathTraversal(t *testing.T) {
	assert.False(t, isPathTraversal("clip.mp4"))
	assert.False(t, isPathTraversal("a..b/c.mp4"))
	assert.False(t, isPathTraversal("100%25 real.mp4"))
	assert.True(t, isPathTraversal(".."))
	assert.True(t, isPathTraversal("a/%2E%2E/b"))
	assert.True(t, isPathTraversal("%25252e%25252e/b"))
}
