// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package library maps request filenames onto the video directory and keeps
// a SQLite index of probed video metadata.
package library

import (
	"errors"
	"fmt"
	"time"
)

// DefaultExtensions are the file extensions listed as videos.
var DefaultExtensions = []string{".mp4", ".mkv", ".mov", ".webm", ".avi", ".m4v", ".ts"}

// ErrScanRunning is returned by Scan while another scan is in progress.
var ErrScanRunning = errors.New("scan already running")

// Config configures a Catalog.
type Config struct {
	// Dir is the video directory. Every resolved path lies inside it.
	Dir string
	// Extensions filters List and Scan. Empty means DefaultExtensions.
	Extensions []string
	// MaxDepth limits directory recursion; 0 means unlimited.
	MaxDepth int
	// Debounce delays invalidation after the last change event for a file.
	Debounce time.Duration
}

// Metadata is what ffprobe reports about the first video stream.
type Metadata struct {
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	FPS             float64   `json:"fps"`
	DurationSeconds float64   `json:"duration_seconds"`
	ProbedAt        time.Time `json:"probed_at"`
}

// FrameCount estimates the number of frames at fps.
func (m Metadata) FrameCount(fps int) int {
	if m.DurationSeconds <= 0 || fps <= 0 {
		return 0
	}
	return int(m.DurationSeconds * float64(fps))
}

// Video is one listed file. Name is relative to the video directory and is
// what clients pass as filename.
type Video struct {
	Name      string    `json:"name"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
	Metadata  *Metadata `json:"metadata,omitempty"`
}

// ScanResult summarises one pass over the video directory.
type ScanResult struct {
	Started  time.Time
	Finished time.Time
	Videos   int // files with a video extension
	Probed   int // files probed because the index had no current entry
	Pruned   int // index rows removed for files that are gone
	Errors   int
	LastErr  string
}

// Error returns a summary if the scan had issues.
func (s *ScanResult) Error() string {
	if s.Errors == 0 {
		return ""
	}
	return fmt.Sprintf("scan completed with %d errors, last: %s", s.Errors, s.LastErr)
}
