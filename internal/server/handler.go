package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/coingraph/server/internal/agent/model"
	errx "github.com/coingraph/server/internal/core/error"
	logx "github.com/coingraph/server/pkg/logger"
)

const maxRequestBodySize = 64 * 1024

// Config describes the HTTP boundary, sourced from environment variables.
type Config struct {
	Port            int    `split_words:"true" default:"8000"`
	QueryRateLimit  int    `split_words:"true" default:"5"`
	HealthRateLimit int    `split_words:"true" default:"10"`
	RateWindow      string `split_words:"true" default:"1m"`
}

// Workflow is the single-query entry point the boundary drives.
type Workflow interface {
	Invoke(ctx context.Context, in model.QueryInput) (*model.QueryOutput, error)
}

// Handler serves the query and health endpoints with per-client rate limits.
type Handler struct {
	workflow      Workflow
	queryLimiter  *RateLimiter
	healthLimiter *RateLimiter
}

// NewHandler wires the workflow behind per-endpoint rate limiters.
func NewHandler(workflow Workflow, cfg Config) *Handler {
	window, err := time.ParseDuration(cfg.RateWindow)
	if err != nil || window <= 0 {
		window = time.Minute
	}
	return &Handler{
		workflow:      workflow,
		queryLimiter:  NewRateLimiter(cfg.QueryRateLimit, window),
		healthLimiter: NewRateLimiter(cfg.HealthRateLimit, window),
	}
}

type queryRequest struct {
	Query string `json:"query"`
}

// Query handles POST /query: validates input, runs the workflow, and maps
// failures to the stable error envelope.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	if !h.queryLimiter.Allow(clientAddr(r)) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req queryRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, errx.EmptyQueryMessage)
		return
	}

	logx.Info().Str("query", req.Query).Msg("received query")

	out, err := h.workflow.Invoke(r.Context(), model.QueryInput{Query: req.Query})
	if err != nil {
		var appErr *errx.AppError
		if errors.As(err, &appErr) {
			logx.Warn().Err(err).Msg("workflow rejected query")
			writeError(w, appErr.Status, appErr.Message)
			return
		}
		logx.Error().Err(err).Str("query", req.Query).Msg("workflow failed")
		writeError(w, http.StatusInternalServerError, errx.SystemErrorMessage)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if !h.healthLimiter.Allow(clientAddr(r)) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// clientAddr extracts the client address used as the rate-limit key,
// honoring X-Forwarded-For when the service runs behind a proxy.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
