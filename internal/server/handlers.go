package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TedTes/genres-sub000/internal/db"
	"github.com/TedTes/genres-sub000/internal/ingestion"
	"github.com/TedTes/genres-sub000/internal/pipeline"
	"github.com/TedTes/genres-sub000/internal/server/middleware"
	"github.com/TedTes/genres-sub000/internal/types"
)

// maxRequestBytes caps request bodies; resumes arrive as text or URLs.
const maxRequestBytes = 2 << 20

// OptimizeRequest is the body of /optimize and /optimize/stream. Omitted
// option fields keep their defaults.
type OptimizeRequest struct {
	Resume         types.ResumeInput         `json:"resume"`
	JobDescription types.JobDescriptionInput `json:"job_description"`
	Options        types.OptimizationOptions `json:"options"`
}

// RunsResponse lists a requester's runs.
type RunsResponse struct {
	RequesterID string   `json:"requester_id"`
	Runs        []db.Run `json:"runs"`
}

// decodeOptimizeRequest parses and checks a request body. File references
// must be URLs: the server never reads its own filesystem for a client.
func decodeOptimizeRequest(w http.ResponseWriter, r *http.Request) (*OptimizeRequest, error) {
	req := &OptimizeRequest{Options: types.DefaultOptions()}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		return nil, &types.InputValidationError{Field: "body", Message: "invalid request body: " + err.Error()}
	}

	if err := req.Resume.Validate(); err != nil {
		return nil, err
	}
	if ref := req.Resume.Reference(); ref != "" && !ingestion.IsRemote(ref) {
		return nil, &types.InputValidationError{Field: "resume", Message: "document references must be http(s) URLs"}
	}
	return req, nil
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.cfg.RequestTimeout > 0 {
		return context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	}
	return context.WithCancel(r.Context())
}

// requesterID is empty for anonymous requests.
func requesterID(r *http.Request) string {
	id, _ := middleware.GetRequesterID(r)
	return id
}

// handleOptimize runs the pipeline and returns the result.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	req, err := decodeOptimizeRequest(w, r)
	if err != nil {
		s.failure(w, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	res, err := s.optimizer.OptimizeWithProgress(ctx, req.Resume, req.JobDescription, req.Options, requesterID(r), nil)
	if err != nil {
		s.logger.Warn("optimization failed", zap.String("requester_id", requesterID(r)), zap.Error(err))
		s.failure(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

// handleOptimizeStream runs the pipeline and streams progress via SSE.
// Events: "progress" per stage, then one "result" or "error".
func (s *Server) handleOptimizeStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeOptimizeRequest(w, r)
	if err != nil {
		s.failure(w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer sse.Close()

	ctx, cancel := s.requestContext(r)
	defer cancel()

	progress := func(event pipeline.ProgressEvent) {
		if err := sse.WriteEvent("progress", event); err != nil {
			s.logger.Debug("dropped progress event", zap.String("stage", event.Stage), zap.Error(err))
		}
	}

	res, err := s.optimizer.OptimizeWithProgress(ctx, req.Resume, req.JobDescription, req.Options, requesterID(r), progress)
	if err != nil {
		s.logger.Warn("streamed optimization failed", zap.Error(err))
		sse.WriteError(NewErrorResponse(err))
		return
	}
	if err := sse.WriteEvent("result", res); err != nil {
		s.logger.Warn("failed to write result event", zap.Error(err))
	}
}

// handleCacheStats reports cache counters.
func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.optimizer.CacheStats())
}

// handleGetRun returns one persisted run. With auth enabled, runs of other
// requesters are reported as missing.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.errorResponse(w, http.StatusNotImplemented, "run persistence is not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid run ID format")
		return
	}

	run, err := s.runs.GetRun(r.Context(), id)
	switch {
	case errors.Is(err, db.ErrNotFound):
		s.errorResponse(w, http.StatusNotFound, "run not found")
		return
	case err != nil:
		s.logger.Error("failed to load run", zap.String("run_id", id.String()), zap.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "failed to load run")
		return
	}

	if s.cfg.AuthEnabled && run.RequesterID != requesterID(r) {
		s.errorResponse(w, http.StatusNotFound, "run not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

// handleListRuns lists a requester's most recent runs.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.errorResponse(w, http.StatusNotImplemented, "run persistence is not configured")
		return
	}

	owner := r.PathValue("id")
	if s.cfg.AuthEnabled && owner != requesterID(r) {
		s.errorResponse(w, http.StatusForbidden, "cannot list another requester's runs")
		return
	}

	limit := db.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.errorResponse(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.runs.ListRunsByRequester(r.Context(), owner, limit)
	if err != nil {
		s.logger.Error("failed to list runs", zap.String("requester_id", owner), zap.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	s.jsonResponse(w, http.StatusOK, RunsResponse{RequesterID: owner, Runs: runs})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status": "ok",
		"cache":  s.optimizer.CacheStats().Backend,
	})
}
