package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrorResponse is the body of every API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// NewMux wires the browser, API and event stream routes.
// events may be nil when no SSE hub is running.
func NewMux(browser *Browser, api *APIHandler, events http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", browser.Index)
	mux.HandleFunc("GET /list/{folder}", browser.List)
	mux.HandleFunc("GET /download/{folder}/{file}", browser.Download)
	mux.HandleFunc("GET /download_all/{folder}", browser.DownloadAll)
	mux.HandleFunc("GET /view/{folder}/{file}", browser.View)
	mux.HandleFunc("GET /edit/{folder}/{file}", browser.Edit)
	mux.HandleFunc("POST /edit/{folder}/{file}", browser.Save)

	if api != nil {
		mux.HandleFunc("GET /api/status", api.GetStatus)
		mux.HandleFunc("GET /api/sessions", api.ListSessions)
		mux.HandleFunc("GET /api/sessions/{id}", api.GetSession)
	}

	if events != nil {
		mux.Handle("GET /events", events)
	}

	return rejectTraversal(mux)
}

// rejectTraversal answers 404 for any path holding ".." or a backslash,
// before the mux can clean it into a redirect.
func rejectTraversal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "..") || strings.Contains(r.URL.Path, `\`) {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, log logrus.FieldLogger, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Warn("HTTP: failed to encode JSON")
	}
}

func writeError(w http.ResponseWriter, log logrus.FieldLogger, error, details string, statusCode int) {
	writeJSON(w, log, ErrorResponse{Error: error, Details: details}, statusCode)
}
