// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/tempy/internal/admission"
	"github.com/ManuGH/tempy/internal/api/problem"
	"github.com/ManuGH/tempy/internal/frames"
	"github.com/ManuGH/tempy/internal/library"
)

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, req frames.Request) (frames.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(frames.Result), args.Error(1)
}

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) Resolve(filename string) (string, error) {
	args := m.Called(filename)
	return args.String(0), args.Error(1)
}

func (m *mockCatalog) List(ctx context.Context) ([]library.Video, error) {
	args := m.Called(ctx)
	videos, _ := args.Get(0).([]library.Video)
	return videos, args.Error(1)
}

var testGeometry = frames.Geometry{Width: 640, Height: 360, FPS: 30}

func newTestServer(t *testing.T) (*mockExtractor, *mockCatalog, http.Handler) {
	t.Helper()
	ex := &mockExtractor{}
	cat := &mockCatalog{}
	t.Cleanup(func() {
		ex.AssertExpectations(t)
		cat.AssertExpectations(t)
	})
	srv := New(Config{
		AllowedOrigins: []string{"*"},
		RateLimitRPM:   1000,
		Geometry:       testGeometry,
	}, ex, cat, nil)
	return ex, cat, srv.Handler()
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) problem.Problem {
	t.Helper()
	require.Equal(t, problem.ContentType, w.Header().Get("Content-Type"))
	var p problem.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	return p
}

func TestFrames_OK(t *testing.T) {
	ex, cat, h := newTestServer(t)
	cat.On("Resolve", "clip.mp4").Return("/videos/clip.mp4", nil)
	ex.On("Extract", mock.Anything, frames.Request{Path: "/videos/clip.mp4", StartFrame: 10, Count: 2}).
		Return(frames.Result{Frames: []string{"AAAA", "BBBB"}, Requested: 2}, nil)

	w := get(h, "/api/frames?filename=clip.mp4&start=10&count=2")

	require.Equal(t, http.StatusOK, w.Code)
	var body FramesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, FramesResponse{Frames: []string{"AAAA", "BBBB"}, Count: 2, Requested: 2}, body)
	assert.NotEmpty(t, w.Header().Get(problem.HeaderRequestID))
}

func TestFrames_Defaults(t *testing.T) {
	ex, cat, h := newTestServer(t)
	cat.On("Resolve", "clip.mp4").Return("/videos/clip.mp4", nil)
	ex.On("Extract", mock.Anything, frames.Request{Path: "/videos/clip.mp4", StartFrame: 0, Count: 1}).
		Return(frames.Result{Frames: []string{"AAAA"}, Requested: 1}, nil)

	w := get(h, "/api/frames?filename=clip.mp4")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFrames_ShortResult(t *testing.T) {
	ex, cat, h := newTestServer(t)
	cat.On("Resolve", "clip.mp4").Return("/videos/clip.mp4", nil)
	ex.On("Extract", mock.Anything, mock.Anything).
		Return(frames.Result{Frames: []string{"AAAA", "BBBB"}, Requested: 3, Short: true}, nil)

	w := get(h, "/api/frames?filename=clip.mp4&count=3")

	require.Equal(t, http.StatusOK, w.Code)
	var body FramesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Short)
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, 3, body.Requested)
}

func TestFrames_BindErrors(t *testing.T) {
	for _, target := range []string{
		"/api/frames?filename=clip.mp4&start=abc",
		"/api/frames?filename=clip.mp4&count=1.5",
	} {
		t.Run(target, func(t *testing.T) {
			_, _, h := newTestServer(t)
			w := get(h, target)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "INVALID_ARGUMENT", decodeProblem(t, w).Code)
		})
	}
}

func TestFrames_MissingFilename(t *testing.T) {
	for _, target := range []string{
		"/api/frames",
		"/api/frames?filename=",
		"/api/frames?start=3&count=2",
	} {
		t.Run(target, func(t *testing.T) {
			_, _, h := newTestServer(t)
			w := get(h, target)

			require.Equal(t, http.StatusBadRequest, w.Code)
			p := decodeProblem(t, w)
			assert.Equal(t, "INVALID_ARGUMENT", p.Code)
			assert.Equal(t, msgFilenameRequired, p.Error)
		})
	}
}

func TestFrames_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		resolveErr error
		extractErr error
		wantStatus int
		wantCode   string
		wantError  string
		wantRetry  string
	}{
		{
			name:       "path escapes the library",
			resolveErr: fmt.Errorf("%w: filename must stay inside the video directory", frames.ErrInvalidArgument),
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_ARGUMENT",
			wantError:  "filename must stay inside the video directory",
		},
		{
			name:       "unknown video",
			resolveErr: fmt.Errorf("%w: video not found", frames.ErrSourceNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   "SOURCE_NOT_FOUND",
			wantError:  "video not found",
		},
		{
			name:       "count out of range",
			extractErr: fmt.Errorf("%w: count must be >= 1 (got 0)", frames.ErrInvalidArgument),
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_ARGUMENT",
			wantError:  "count must be >= 1 (got 0)",
		},
		{
			name:       "decoder failure",
			extractErr: fmt.Errorf("%w: ffmpeg: exit status 1", frames.ErrDecodeFailure),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "DECODE_FAILURE",
			wantError:  "failed to process video",
		},
		{
			name: "admission rejected",
			extractErr: fmt.Errorf("%w: %w", frames.ErrUnavailable,
				&admission.RejectionError{Reason: admission.ReasonPoolFull, RetryAfter: 2500 * time.Millisecond}),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "UNAVAILABLE",
			wantRetry:  "3",
		},
		{
			name:       "unavailable without hint",
			extractErr: fmt.Errorf("%w: busy", frames.ErrUnavailable),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "UNAVAILABLE",
			wantRetry:  "1",
		},
		{
			name:       "canceled",
			extractErr: context.Canceled,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "CANCELED",
		},
		{
			name:       "unclassified",
			extractErr: fmt.Errorf("something odd"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
			wantError:  "failed to process video",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, cat, h := newTestServer(t)
			if tt.resolveErr != nil {
				cat.On("Resolve", "clip.mp4").Return("", tt.resolveErr)
			} else {
				cat.On("Resolve", "clip.mp4").Return("/videos/clip.mp4", nil)
				ex.On("Extract", mock.Anything, mock.Anything).Return(frames.Result{}, tt.extractErr)
			}

			w := get(h, "/api/frames?filename=clip.mp4")

			assert.Equal(t, tt.wantStatus, w.Code)
			p := decodeProblem(t, w)
			assert.Equal(t, tt.wantCode, p.Code)
			assert.Equal(t, tt.wantStatus, p.Status)
			assert.NotEmpty(t, p.RequestID)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, p.Error)
			}
			assert.Equal(t, tt.wantRetry, w.Header().Get("Retry-After"))
		})
	}
}

func TestVideos(t *testing.T) {
	_, cat, h := newTestServer(t)
	mod := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cat.On("List", mock.Anything).Return([]library.Video{
		{Name: "clip.mp4", SizeBytes: 1024, ModTime: mod, Metadata: &library.Metadata{Width: 1920, Height: 1080, FPS: 25, DurationSeconds: 12.5, ProbedAt: mod}},
		{Name: "sub/new.mkv", SizeBytes: 2048, ModTime: mod},
	}, nil)

	w := get(h, "/api/videos")

	require.Equal(t, http.StatusOK, w.Code)
	var body VideosResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, 640, body.Width)
	assert.Equal(t, 30, body.FPS)
	assert.Equal(t, "clip.mp4", body.Videos[0].Name)
	require.NotNil(t, body.Videos[0].Metadata)
	assert.Equal(t, 1920, body.Videos[0].Metadata.Width)
	assert.Nil(t, body.Videos[1].Metadata)
}

func TestVideos_ListFailure(t *testing.T) {
	_, cat, h := newTestServer(t)
	cat.On("List", mock.Anything).Return(nil, fmt.Errorf("index unavailable"))

	w := get(h, "/api/videos")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestProbesAndMetrics(t *testing.T) {
	_, _, h := newTestServer(t)

	assert.Equal(t, http.StatusOK, get(h, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(h, "/readyz").Code)

	w := get(h, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestProbes_DelegateToHealth(t *testing.T) {
	hh := &stubHealth{ready: http.StatusServiceUnavailable}
	h := New(Config{}, &mockExtractor{}, &mockCatalog{}, hh).Handler()

	assert.Equal(t, http.StatusOK, get(h, "/healthz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(h, "/readyz").Code)
}

type stubHealth struct {
	ready int
}

func (s *stubHealth) ServeHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *stubHealth) ServeReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(s.ready)
}

func TestUnknownRouteAndMethod(t *testing.T) {
	_, _, h := newTestServer(t)

	w := get(h, "/api/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeProblem(t, w).Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/frames", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestOpenAPIServed(t *testing.T) {
	_, _, h := newTestServer(t)
	w := get(h, "/api/openapi.yaml")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, OpenAPISpec(), w.Body.Bytes())
}
