// Package server exposes the collection and analysis pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/naka-gawa/pr-stats/internal/domain"
	"github.com/naka-gawa/pr-stats/internal/usecase"
	"go.uber.org/zap"
)

const defaultDaysBack = 30

// Runner runs the pipeline for one provider.
type Runner interface {
	Run(ctx context.Context, repoURL string, daysBack int, keywords []string, summarize bool) (*usecase.Report, error)
}

// Handler serves the analysis API.
type Handler struct {
	runners map[domain.Provider]Runner
	logger  *zap.SugaredLogger
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewRouter builds the chi router with logging and recovery middleware.
func NewRouter(runners map[domain.Provider]Runner, logger *zap.SugaredLogger) http.Handler {
	h := &Handler{runners: runners, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/api/v1/analysis", h.GetAnalysis)
	return r
}

// GetAnalysis handles GET /api/v1/analysis?provider=&repo=&days=&keyword=&summary=
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	provider, err := domain.ParseProvider(q.Get("provider"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		return
	}
	runner, ok := h.runners[provider]
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_CONFIGURED", "provider "+string(provider)+" is not configured")
		return
	}
	repoURL := q.Get("repo")
	if repoURL == "" {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "repo is required")
		return
	}
	days := defaultDaysBack
	if raw := q.Get("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "days must be a non-negative integer")
			return
		}
	}
	summarize, _ := strconv.ParseBool(q.Get("summary"))

	report, err := runner.Run(r.Context(), repoURL, days, q["keyword"], summarize)
	if err != nil {
		status, code := classify(err)
		h.logger.Warnw("analysis failed", "provider", provider, "repo", repoURL, "error", err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func classify(err error) (int, string) {
	var (
		urlErr       *domain.RepoURLError
		authErr      *domain.AuthError
		reqErr       *domain.ProviderRequestError
		malformedErr *domain.MalformedRecordError
	)
	switch {
	case errors.As(err, &urlErr):
		return http.StatusBadRequest, "INVALID_REPO_URL"
	case errors.As(err, &authErr):
		return http.StatusUnauthorized, "UNAUTHENTICATED"
	case errors.As(err, &reqErr):
		return http.StatusBadGateway, "PROVIDER_ERROR"
	case errors.As(err, &malformedErr):
		return http.StatusBadGateway, "MALFORMED_RECORD"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

// RequestLogger logs HTTP requests with method, path, status and duration.
func RequestLogger(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Infow("http",
				"method", r.Method,
				"path", r.URL.RequestURI(),
				"status", ww.Status(),
				"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
