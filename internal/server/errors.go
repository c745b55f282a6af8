package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/julianshen/commitpro/internal/analysis"
	"github.com/julianshen/commitpro/internal/commitsummary"
	"github.com/julianshen/commitpro/internal/config"
	"github.com/julianshen/commitpro/internal/credentials"
	"github.com/julianshen/commitpro/internal/procrun"
	"github.com/julianshen/commitpro/internal/query"
	"github.com/julianshen/commitpro/internal/scrape"
	"github.com/julianshen/commitpro/internal/summarizer"
	"github.com/julianshen/commitpro/internal/workspace"
)

// ErrorResponse is the body of every JSON error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var statusCodes = map[int]string{
	http.StatusBadRequest:          "bad_request",
	http.StatusUnauthorized:        "unauthorized",
	http.StatusForbidden:           "forbidden",
	http.StatusNotFound:            "not_found",
	http.StatusTooManyRequests:     "rate_limited",
	http.StatusInternalServerError: "internal_error",
	http.StatusBadGateway:          "bad_gateway",
	http.StatusServiceUnavailable:  "unavailable",
	http.StatusGatewayTimeout:      "timeout",
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	code, ok := statusCodes[status]
	if !ok {
		code = "error"
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, procrun.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, credentials.ErrUnknownApp),
		errors.Is(err, commitsummary.ErrCommitNotFound),
		errors.Is(err, workspace.ErrPathNotFound),
		errors.Is(err, analysis.ErrResultNotFound),
		errors.Is(err, scrape.ErrContentNotFound):
		return http.StatusNotFound
	case errors.Is(err, query.ErrMissingToken), errors.Is(err, config.ErrNoAPIKey):
		return http.StatusUnauthorized
	case errors.Is(err, analysis.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, commitsummary.ErrMissingCommit),
		errors.Is(err, query.ErrEmptyQuery),
		errors.Is(err, analysis.ErrNotGitURL),
		errors.Is(err, analysis.ErrInvalidResultName):
		return http.StatusBadRequest
	case errors.Is(err, analysis.ErrQueueFull), errors.Is(err, analysis.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, summarizer.ErrNoSummary):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
