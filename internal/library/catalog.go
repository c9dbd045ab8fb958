// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package library

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"github.com/ManuGH/tempy/internal/frames"
	"github.com/ManuGH/tempy/internal/log"
	"github.com/ManuGH/tempy/internal/metrics"
)

// InvalidateFunc is called with the absolute path of a file that changed.
type InvalidateFunc func(ctx context.Context, path string)

// Catalog resolves client filenames inside the video directory and serves
// video metadata from the index.
type Catalog struct {
	root   string
	cfg    Config
	store  *Store
	prober Prober
	logger zerolog.Logger

	hooksMu sync.RWMutex
	hooks   []InvalidateFunc

	scanMu sync.Mutex
}

// NewCatalog resolves cfg.Dir. store and prober may be nil, in which case
// List returns no metadata and Probe fails.
func NewCatalog(cfg Config, store *Store, prober Prober) (*Catalog, error) {
	if cfg.Dir == "" {
		return nil, errors.New("library: video directory is required")
	}
	abs, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("library: resolve %s: %w", cfg.Dir, err)
	}
	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("library: resolve %s: %w", cfg.Dir, err)
	}
	fi, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("library: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("library: %s is not a directory", root)
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	return &Catalog{
		root:   root,
		cfg:    cfg,
		store:  store,
		prober: prober,
		logger: log.WithComponent("library"),
	}, nil
}

// Root returns the resolved video directory.
func (c *Catalog) Root() string {
	return c.root
}

// OnInvalidate registers fn to run whenever a file is invalidated.
func (c *Catalog) OnInvalidate(fn InvalidateFunc) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// Resolve maps a client supplied filename to an absolute path of a regular
// file inside the video directory.
func (c *Catalog) Resolve(filename string) (string, error) {
	if strings.TrimSpace(filename) == "" {
		metrics.LibraryResolveRejectedTotal.WithLabelValues("invalid").Inc()
		return "", fmt.Errorf("%w: filename query param required", frames.ErrInvalidArgument)
	}
	if isPathTraversal(filename) {
		metrics.LibraryResolveRejectedTotal.WithLabelValues("invalid").Inc()
		return "", fmt.Errorf("%w: filename must stay inside the video directory", frames.ErrInvalidArgument)
	}

	candidate := filepath.Join(c.root, filepath.FromSlash(filename))
	resolved, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		metrics.LibraryResolveRejectedTotal.WithLabelValues("not_found").Inc()
		return "", fmt.Errorf("%w: video not found", frames.ErrSourceNotFound)
	}
	if !c.contains(resolved) {
		metrics.LibraryResolveRejectedTotal.WithLabelValues("invalid").Inc()
		c.logger.Warn().
			Str(log.FieldEvent, "library.resolve.escape").
			Str("name_hash", hashPath(filename)).
			Msg("symlink points outside the video directory")
		return "", fmt.Errorf("%w: filename must stay inside the video directory", frames.ErrInvalidArgument)
	}

	fi, err := os.Stat(resolved)
	if err != nil || !fi.Mode().IsRegular() {
		metrics.LibraryResolveRejectedTotal.WithLabelValues("not_found").Inc()
		return "", fmt.Errorf("%w: video not found", frames.ErrSourceNotFound)
	}
	return resolved, nil
}

func (c *Catalog) contains(path string) bool {
	rel, err := filepath.Rel(c.root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// List returns every video in the directory, with metadata where the index
// has a current entry. It never probes.
func (c *Catalog) List(ctx context.Context) ([]Video, error) {
	var videos []Video
	err := c.walk(ctx, func(abs, rel string, info fs.FileInfo) error {
		v := Video{
			Name:      filepath.ToSlash(rel),
			SizeBytes: info.Size(),
			ModTime:   info.ModTime(),
		}
		if c.store != nil {
			m, ok, err := c.store.Lookup(ctx, abs, info.Size(), info.ModTime())
			if err != nil {
				c.logger.Warn().Err(err).Str(log.FieldEvent, "library.index.lookup_failed").Msg("index lookup failed")
			} else if ok {
				v.Metadata = &m
			}
		}
		videos = append(videos, v)
		return nil
	}, nil)
	if err != nil {
		return nil, err
	}
	if videos == nil {
		videos = []Video{}
	}
	return videos, nil
}

// Probe returns metadata for an already resolved path, from the index when
// the file is unchanged since it was last probed.
func (c *Catalog) Probe(ctx context.Context, path string) (Metadata, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %w", frames.ErrSourceNotFound, err)
	}
	m, _, err := c.probe(ctx, path, fi)
	return m, err
}

// probe reports whether ffprobe actually ran.
func (c *Catalog) probe(ctx context.Context, path string, fi fs.FileInfo) (Metadata, bool, error) {
	if c.store != nil {
		m, ok, err := c.store.Lookup(ctx, path, fi.Size(), fi.ModTime())
		if err != nil {
			c.logger.Warn().Err(err).Str(log.FieldEvent, "library.index.lookup_failed").Msg("index lookup failed")
		} else if ok {
			metrics.LibraryProbeTotal.WithLabelValues("indexed").Inc()
			return m, false, nil
		}
	}
	if c.prober == nil {
		return Metadata{}, false, errors.New("library: no prober configured")
	}

	m, err := c.prober.Probe(ctx, path)
	if err != nil {
		metrics.LibraryProbeTotal.WithLabelValues("error").Inc()
		return Metadata{}, true, fmt.Errorf("probe %s: %w", filepath.Base(path), err)
	}
	metrics.LibraryProbeTotal.WithLabelValues("probed").Inc()

	if c.store != nil {
		if err := c.store.Put(ctx, path, fi.Size(), fi.ModTime(), m); err != nil {
			c.logger.Warn().Err(err).Str(log.FieldEvent, "library.index.put_failed").Msg("failed to index metadata")
		}
	}
	return m, true, nil
}

// Invalidate drops the index row for path and runs the registered hooks.
func (c *Catalog) Invalidate(ctx context.Context, path string) {
	if c.store != nil {
		if err := c.store.Delete(ctx, path); err != nil {
			c.logger.Warn().Err(err).Str(log.FieldEvent, "library.index.delete_failed").Msg("failed to drop index row")
		}
	}
	metrics.LibraryInvalidationsTotal.Inc()

	c.hooksMu.RLock()
	hooks := append([]InvalidateFunc(nil), c.hooks...)
	c.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(ctx, path)
	}

	c.logger.Debug().
		Str(log.FieldEvent, "library.invalidated").
		Str("name_hash", hashPath(path)).
		Msg("video invalidated")
}

// walk visits every video file below root in lexical order. Hidden entries
// are skipped. onDir, when set, is called for every directory visited.
func (c *Catalog) walk(ctx context.Context, fn func(abs, rel string, info fs.FileInfo) error, onDir func(abs string)) error {
	return filepath.WalkDir(c.root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			logScanError("walk", walkErr, path)
			if d != nil && d.IsDir() && path != c.root {
				return fs.SkipDir
			}
			if path == c.root {
				return walkErr
			}
			return nil
		}

		if path != c.root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(c.root, path)
		if err != nil {
			return nil
		}

		if d.IsDir() {
			if c.cfg.MaxDepth > 0 && path != c.root && strings.Count(rel, string(filepath.Separator)) >= c.cfg.MaxDepth {
				return fs.SkipDir
			}
			if onDir != nil {
				onDir(path)
			}
			return nil
		}

		if !c.isVideo(d.Name()) {
			return nil
		}

		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			logScanError("symlink", err, path)
			return nil
		}
		if !c.contains(resolved) {
			logScanError("confinement", fmt.Errorf("path escape: %s", rel), path)
			return nil
		}
		info, err := os.Stat(resolved)
		if err != nil {
			logScanError("stat", err, path)
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return fn(resolved, rel, info)
	})
}

func (c *Catalog) isVideo(name string) bool {
	ext := filepath.Ext(name)
	for _, a := range c.cfg.Extensions {
		if strings.EqualFold(ext, a) {
			return true
		}
	}
	return false
}

// isPathTraversal reports whether name, after up to three rounds of URL
// decoding and NFC normalisation, contains a parent segment, a NUL byte or
// an overlong encoding of '.'.
func isPathTraversal(name string) bool {
	decoded := name
	for i := 0; i < 3; i++ {
		prev := decoded
		if d, err := url.PathUnescape(decoded); err == nil {
			decoded = d
		}
		if decoded == prev {
			break
		}
	}

	raw := strings.ToLower(name)
	for _, pat := range []string{"%00", "%c0%ae", "%e0%80%ae"} {
		if strings.Contains(raw, pat) {
			return true
		}
	}
	for _, pat := range []string{"\x00", "\xc0\xae", "\xe0\x80\xae"} {
		if strings.Contains(decoded, pat) {
			return true
		}
	}

	normalized := norm.NFC.String(decoded)
	normalized = strings.ReplaceAll(normalized, "\\", "/")
	for _, seg := range strings.Split(normalized, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

func hashPath(p string) string {
	sum := sha256.Sum256([]byte(p))
	return fmt.Sprintf("%x", sum[:5])
}

// logScanError logs without the full path.
func logScanError(event string, err error, path string) {
	logger := log.WithComponent("library")
	logger.Warn().
		Str(log.FieldEvent, "library.scan."+event).
		Str("path_hash", hashPath(path)).
		Err(err).
		Msg("library scan error")
}
