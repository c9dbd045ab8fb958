// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/oapi-codegen/runtime"

	"github.com/ManuGH/tempy/internal/api/problem"
	"github.com/ManuGH/tempy/internal/frames"
	"github.com/ManuGH/tempy/internal/library"
	"github.com/ManuGH/tempy/internal/log"
)

// FramesParams are the query parameters of GET /api/frames.
type FramesParams struct {
	Filename *string
	Start    *int
	Count    *int
}

// FramesResponse is the body of a successful GET /api/frames.
type FramesResponse struct {
	Frames    []string `json:"frames"`
	Count     int      `json:"count"`
	Requested int      `json:"requested"`
	Short     bool     `json:"short"`
}

// VideosResponse is the body of GET /api/videos.
type VideosResponse struct {
	Videos []library.Video `json:"videos"`
	Count  int             `json:"count"`
	Width  int             `json:"width"`
	Height int             `json:"height"`
	FPS    int             `json:"fps"`
}

// bindFramesParams reads the query with the same binder generated servers use.
func bindFramesParams(r *http.Request) (FramesParams, error) {
	var p FramesParams
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "filename", q, &p.Filename); err != nil {
		return p, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "start", q, &p.Start); err != nil {
		return p, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "count", q, &p.Count); err != nil {
		return p, err
	}
	return p, nil
}

// toRequest applies the defaults start=0 and count=1.
func (p FramesParams) toRequest(path string) frames.Request {
	req := frames.Request{Path: path, StartFrame: 0, Count: 1}
	if p.Start != nil {
		req.StartFrame = *p.Start
	}
	if p.Count != nil {
		req.Count = *p.Count
	}
	return req
}

func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	params, err := bindFramesParams(r)
	if err != nil {
		writeBindError(w, r, err)
		return
	}

	if params.Filename == nil || *params.Filename == "" {
		problem.Write(w, r, http.StatusBadRequest, "frames/invalid_argument", "Bad Request", "INVALID_ARGUMENT", msgFilenameRequired)
		return
	}
	path, err := s.catalog.Resolve(*params.Filename)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.extractor.Extract(r.Context(), params.toRequest(path))
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, FramesResponse{
		Frames:    res.Frames,
		Count:     len(res.Frames),
		Requested: res.Requested,
		Short:     res.Short,
	})
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := s.catalog.List(r.Context())
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "library.list.failed").
			Msg("failed to list videos")
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, VideosResponse{
		Videos: videos,
		Count:  len(videos),
		Width:  s.cfg.Geometry.Width,
		Height: s.cfg.Geometry.Height,
		FPS:    s.cfg.Geometry.FPS,
	})
}
