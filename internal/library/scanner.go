// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package library

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"github.com/ManuGH/tempy/internal/log"
	"github.com/ManuGH/tempy/internal/metrics"
)

// Scan probes every video the index has no current entry for and prunes
// rows for files that are gone. Probe failures are counted, not fatal.
// Only one scan runs at a time; a concurrent call gets ErrScanRunning.
func (c *Catalog) Scan(ctx context.Context) (*ScanResult, error) {
	if !c.scanMu.TryLock() {
		return nil, ErrScanRunning
	}
	defer c.scanMu.Unlock()

	result := &ScanResult{Started: time.Now()}
	seen := make(map[string]struct{})

	err := c.walk(ctx, func(abs, _ string, info fs.FileInfo) error {
		result.Videos++
		seen[abs] = struct{}{}

		_, probed, err := c.probe(ctx, abs, info)
		if probed {
			result.Probed++
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			result.Errors++
			result.LastErr = err.Error()
			logScanError("probe", err, abs)
		}
		return nil
	}, nil)
	if err != nil {
		result.Finished = time.Now()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return result, err
		}
		result.Errors++
		result.LastErr = err.Error()
		return result, err
	}

	if c.store != nil {
		pruned, err := c.store.Prune(ctx, seen)
		if err != nil {
			result.Errors++
			result.LastErr = err.Error()
		}
		result.Pruned = pruned
	}

	result.Finished = time.Now()
	metrics.LibraryVideos.Set(float64(result.Videos))

	ev := c.logger.Info()
	if result.Errors > 0 {
		ev = c.logger.Warn().Str("last_error", result.LastErr)
	}
	ev.Str(log.FieldEvent, "library.scan.completed").
		Int("videos", result.Videos).
		Int("probed", result.Probed).
		Int("pruned", result.Pruned).
		Int("errors", result.Errors).
		Dur("duration", result.Finished.Sub(result.Started)).
		Msg("library scan complete")
	return result, nil
}
