package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/TedTes/genres-sub000/internal/llm"
	"github.com/TedTes/genres-sub000/internal/pipeline"
	"github.com/TedTes/genres-sub000/internal/repair"
	"github.com/TedTes/genres-sub000/internal/types"
)

// StatusClientClosedRequest is the non-standard code for requests the
// client abandoned.
const StatusClientClosedRequest = 499

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Stage     string `json:"stage,omitempty"`
	Retryable bool   `json:"retryable"`
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusInternalServerError
	case types.IsInputValidation(err):
		return http.StatusBadRequest
	case pipeline.IsAborted(err):
		return StatusClientClosedRequest
	case llm.IsServiceUnavailable(err):
		return http.StatusServiceUnavailable
	case repair.IsSchemaValidation(err):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// NewErrorResponse describes err for clients.
func NewErrorResponse(err error) ErrorResponse {
	if err == nil {
		return ErrorResponse{Error: "unknown error"}
	}
	resp := ErrorResponse{Error: err.Error()}
	if se, ok := pipeline.AsStageError(err); ok {
		resp.Stage = se.Stage
		resp.Retryable = se.Retryable
	}
	return resp
}
