// Package server provides the HTTP boundary: one query endpoint, a health
// endpoint, per-client rate limits and a stable JSON error envelope.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	errx "github.com/coingraph/server/internal/core/error"
	logx "github.com/coingraph/server/pkg/logger"
)

// NewRouter assembles the service routes around the handler.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(recoverJSON)

	r.Post("/query", h.Query)
	r.Get("/health", h.Health)

	return r
}

// recoverJSON converts panics into the generic JSON 500 envelope; detail is
// logged server-side only.
func recoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logx.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("panic recovered in handler")
				writeError(w, http.StatusInternalServerError, errx.SystemErrorMessage)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
