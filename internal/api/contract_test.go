// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/tempy/internal/frames"
	"github.com/ManuGH/tempy/internal/library"
)

var (
	openapiOnce sync.Once
	openapiDoc  *openapi3.T
	openapiErr  error
)

func loadOpenAPIDoc(t *testing.T) *openapi3.T {
	t.Helper()
	openapiOnce.Do(func() {
		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromData(OpenAPISpec())
		if err != nil {
			openapiErr = err
			return
		}
		if err := doc.Validate(context.Background()); err != nil {
			openapiErr = err
			return
		}
		openapiDoc = doc
	})
	if openapiErr != nil {
		t.Fatalf("openapi load failed: %v", openapiErr)
	}
	return openapiDoc
}

func validateOpenAPIResponse(t *testing.T, doc *openapi3.T, req *http.Request, rr *httptest.ResponseRecorder) {
	t.Helper()
	router, err := legacy.NewRouter(doc)
	require.NoError(t, err, "openapi router init")

	route, pathParams, err := router.FindRoute(req)
	require.NoError(t, err, "openapi route lookup")

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: pathParams,
			Route:      route,
		},
		Status: rr.Code,
		Header: rr.Header(),
	}
	input.SetBodyBytes(rr.Body.Bytes())

	require.NoError(t, openapi3filter.ValidateResponse(context.Background(), input), "openapi response validation")
}

func TestContract_Frames(t *testing.T) {
	doc := loadOpenAPIDoc(t)

	cases := []struct {
		name   string
		target string
		setup  func(ex *mockExtractor, cat *mockCatalog)
	}{
		{
			name:   "ok",
			target: "/api/frames?filename=clip.mp4&start=0&count=2",
			setup: func(ex *mockExtractor, cat *mockCatalog) {
				cat.On("Resolve", "clip.mp4").Return("/videos/clip.mp4", nil)
				ex.On("Extract", mock.Anything, mock.Anything).
					Return(frames.Result{Frames: []string{"AAAAAA==", "AQEBAQ=="}, Requested: 2}, nil)
			},
		},
		{
			name:   "not found",
			target: "/api/frames?filename=missing.mp4",
			setup: func(_ *mockExtractor, cat *mockCatalog) {
				cat.On("Resolve", "missing.mp4").Return("", fmt.Errorf("%w: video not found", frames.ErrSourceNotFound))
			},
		},
		{
			name:   "decode failure",
			target: "/api/frames?filename=clip.mp4",
			setup: func(ex *mockExtractor, cat *mockCatalog) {
				cat.On("Resolve", "clip.mp4").Return("/videos/clip.mp4", nil)
				ex.On("Extract", mock.Anything, mock.Anything).Return(frames.Result{}, frames.ErrDecodeFailure)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ex, cat, h := newTestServer(t)
			tc.setup(ex, cat)

			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			validateOpenAPIResponse(t, doc, req, rr)
		})
	}
}

func TestContract_Videos(t *testing.T) {
	doc := loadOpenAPIDoc(t)
	_, cat, h := newTestServer(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cat.On("List", mock.Anything).Return([]library.Video{
		{Name: "clip.mp4", SizeBytes: 10, ModTime: now, Metadata: &library.Metadata{Width: 64, Height: 36, FPS: 30, DurationSeconds: 1, ProbedAt: now}},
		{Name: "raw.mkv", SizeBytes: 20, ModTime: now},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	validateOpenAPIResponse(t, doc, req, rr)
}
