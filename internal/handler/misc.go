// Package handler contains the HTTP request handlers of the API.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming HTTP request (query params, body, headers)
// 2. Call the service layer
// 3. Write the HTTP response (status code, headers, body)
//
// Handlers hold no business rules: they are the glue between HTTP and the
// services in internal/service.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type rootResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	HealthCheck string `json:"health_check"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HandleRoot
//
// HTTP: GET /
func HandleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{
		Status:      "success",
		Message:     "API is running",
		HealthCheck: "/health",
	})
}

// HandleHealth answers liveness probes with a plain OK.
//
// HTTP: GET /health
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Pinger is satisfied by every repository.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandleReady reports whether the store answers within two seconds.
//
// HTTP: GET /ready
func HandleReady(store Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			logger.WarnContext(r.Context(), "readiness check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "fail", Message: "database unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "ready"})
	}
}

// HandleNotFound is the router's fallback for unknown paths.
func HandleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, statusResponse{
		Status:  "fail",
		Message: fmt.Sprintf("Can't find %s on this server", r.URL.Path),
	})
}

// HandleMethodNotAllowed answers a known path hit with the wrong method.
func HandleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, statusResponse{
		Status:  "fail",
		Message: fmt.Sprintf("%s is not allowed on %s", r.Method, r.URL.Path),
	})
}
