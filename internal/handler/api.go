package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"wifiscout/internal/codec"
	"wifiscout/internal/domain"
	"wifiscout/internal/netif"
	"wifiscout/internal/orchestrator"
	"wifiscout/internal/repository"
)

// SnapshotSource reports the orchestrator state
type SnapshotSource interface {
	Snapshot() orchestrator.Snapshot
}

// HistorySource reads recorded sessions
type HistorySource interface {
	List(ctx context.Context, limit int) ([]domain.ScanSession, error)
	Get(ctx context.Context, id string) (*domain.ScanSession, error)
	Stats(ctx context.Context) (*repository.Stats, error)
}

// CountersFunc reads traffic counters for the scanning interface
type CountersFunc func(ctx context.Context, iface string) (*netif.Counters, error)

// APIHandler serves status and history as JSON
type APIHandler struct {
	iface    string
	status   StatusText
	snapshot SnapshotSource
	history  HistorySource
	counters CountersFunc
	log      logrus.FieldLogger
}

// NewAPIHandler creates the API handler
func NewAPIHandler(iface string, status StatusText, snapshot SnapshotSource, history HistorySource, log logrus.FieldLogger) *APIHandler {
	return &APIHandler{
		iface:    iface,
		status:   status,
		snapshot: snapshot,
		history:  history,
		counters: netif.CountersOf,
		log:      log,
	}
}

// SetCounters replaces the interface counter source
func (h *APIHandler) SetCounters(fn CountersFunc) {
	h.counters = fn
}

// StatusResponse is the body of GET /api/status
type StatusResponse struct {
	Status    string                `json:"status"`
	Interface string                `json:"interface"`
	Snapshot  orchestrator.Snapshot `json:"snapshot"`
	Counters  *netif.Counters       `json:"counters,omitempty"`
	History   *repository.Stats     `json:"history,omitempty"`
}

// GetStatus returns the status line, orchestrator snapshot and counters
func (h *APIHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:    h.status.Get(),
		Interface: h.iface,
		Snapshot:  h.snapshot.Snapshot(),
	}

	if h.counters != nil && resp.Snapshot.AdapterPresent {
		counters, err := h.counters(r.Context(), h.iface)
		if err != nil {
			h.log.WithError(err).Debug("API: interface counters unavailable")
		} else {
			resp.Counters = counters
		}
	}

	if h.history != nil {
		stats, err := h.history.Stats(r.Context())
		if err != nil {
			h.log.WithError(err).Warn("API: history stats failed")
		} else {
			resp.History = stats
		}
	}

	writeJSON(w, h.log, resp, http.StatusOK)
}

// ListSessions exports history; ?format=json|yaml, ?limit=N
func (h *APIHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, h.log, "History disabled", "", http.StatusNotFound)
		return
	}

	exporter, err := codec.ForFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, h.log, "Invalid format", err.Error(), http.StatusBadRequest)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, h.log, "Invalid limit", raw, http.StatusBadRequest)
			return
		}
	}

	sessions, err := h.history.List(r.Context(), limit)
	if err != nil {
		h.log.WithError(err).Error("API: list sessions failed")
		writeError(w, h.log, "Failed to list sessions", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", exporter.ContentType())
	if err := exporter.Export(sessions, w); err != nil {
		// headers already sent
		h.log.WithError(err).Error("API: export sessions failed")
	}
}

// GetSession returns one recorded session with its hosts
func (h *APIHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, h.log, "History disabled", "", http.StatusNotFound)
		return
	}

	id := r.PathValue("id")
	session, err := h.history.Get(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, h.log, "Session not found", id, http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.WithError(err).WithField("id", id).Error("API: get session failed")
		writeError(w, h.log, "Failed to load session", err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.log, session, http.StatusOK)
}
