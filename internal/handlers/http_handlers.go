package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	gocache "github.com/patrickmn/go-cache"

	"github.com/halcyonops/intel-console/internal/alert"
	"github.com/halcyonops/intel-console/internal/command"
	"github.com/halcyonops/intel-console/internal/config"
	"github.com/halcyonops/intel-console/internal/database"
	"github.com/halcyonops/intel-console/internal/session"
)

const sessionHeader = "X-Session-Token"

const statsCacheKey = "alert-stats"

// StatsSource provides aggregate alert counts for the stats endpoint.
type StatsSource interface {
	Stats(ctx context.Context) (*database.AlertStats, error)
}

// HTTPHandler exposes the alert command set over REST. Every route goes
// through the dispatcher; there is no direct handler-to-repository coupling.
type HTTPHandler struct {
	config     *config.Config
	logger     *slog.Logger
	dispatcher *command.Dispatcher
	sessions   session.Resolver
	stats      StatsSource
	statsCache *gocache.Cache
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(
	cfg *config.Config,
	logger *slog.Logger,
	dispatcher *command.Dispatcher,
	sessions session.Resolver,
	stats StatsSource,
) *HTTPHandler {
	ttl := cfg.Console.StatsCacheTTL
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &HTTPHandler{
		config:     cfg,
		logger:     logger,
		dispatcher: dispatcher,
		sessions:   sessions,
		stats:      stats,
		statsCache: gocache.New(ttl, 2*ttl),
	}
}

// RegisterRoutes registers HTTP routes
func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.handleHealth).Methods("GET")

	alertRouter := router.PathPrefix("/alerts").Subrouter()
	alertRouter.HandleFunc("/stats", h.handleAlertStats).Methods("GET")
	alertRouter.HandleFunc("", h.handleCreateAlert).Methods("POST")
	alertRouter.HandleFunc("", h.handleListAlerts).Methods("GET")
	alertRouter.HandleFunc("/{id}", h.handleGetAlert).Methods("GET")
	alertRouter.HandleFunc("/{id}", h.handleUpdateAlert).Methods("PUT")
	alertRouter.HandleFunc("/{id}", h.handleDeleteAlert).Methods("DELETE")
	alertRouter.HandleFunc("/{id}/acknowledge", h.handleAcknowledgeAlert).Methods("POST")
	alertRouter.HandleFunc("/{id}/resolve", h.handleResolveAlert).Methods("POST")
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "intel-console",
		"timestamp": time.Now().UTC(),
	})
}

func (h *HTTPHandler) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Severity    string `json:"severity"`
		Source      string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	severity, err := alert.ParseSeverity(req.Severity)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.dispatcher.Send(r.Context(), command.CreateAlert{
		Name:        req.Name,
		Description: req.Description,
		Severity:    severity,
		Source:      req.Source,
		Actor:       actor,
	})
	if err != nil {
		h.writeCommandError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, res)
}

func (h *HTTPHandler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	req := command.ListAlerts{Search: r.URL.Query().Get("search")}

	if s := r.URL.Query().Get("severity"); s != "" {
		severity, err := alert.ParseSeverity(s)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Severity = &severity
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status, err := alert.ParseStatus(s)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Status = &status
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		req.Limit = limit
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		offset, err := strconv.Atoi(s)
		if err != nil || offset < 0 {
			h.writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		req.Offset = offset
	}

	res, err := h.dispatcher.Send(r.Context(), req)
	if err != nil {
		h.writeCommandError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": res})
}

func (h *HTTPHandler) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	res, err := h.dispatcher.Send(r.Context(), command.GetAlert{ID: id})
	if err != nil {
		h.writeCommandError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

func (h *HTTPHandler) handleUpdateAlert(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	var req struct {
		Status          *string `json:"status,omitempty"`
		Name            *string `json:"name,omitempty"`
		Description     *string `json:"description,omitempty"`
		Source          *string `json:"source,omitempty"`
		Severity        *string `json:"severity,omitempty"`
		Resolution      string  `json:"resolution,omitempty"`
		ExpectedVersion int64   `json:"expected_version,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cmd := command.UpdateAlert{
		ID:              mux.Vars(r)["id"],
		Name:            req.Name,
		Description:     req.Description,
		Source:          req.Source,
		Resolution:      req.Resolution,
		ExpectedVersion: req.ExpectedVersion,
		Actor:           actor,
	}
	if req.Status != nil {
		status, err := alert.ParseStatus(*req.Status)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		cmd.Status = &status
	}
	if req.Severity != nil {
		severity, err := alert.ParseSeverity(*req.Severity)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		cmd.Severity = &severity
	}

	res, err := h.dispatcher.Send(r.Context(), cmd)
	if err != nil {
		h.writeCommandError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

func (h *HTTPHandler) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	_, err := h.dispatcher.Send(r.Context(), command.DeleteAlert{
		ID:    mux.Vars(r)["id"],
		Actor: actor,
	})
	if err != nil {
		h.writeCommandError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	res, err := h.dispatcher.Send(r.Context(), command.AcknowledgeAlert{
		ID:    mux.Vars(r)["id"],
		Actor: actor,
	})
	if err != nil {
		h.writeCommandError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

func (h *HTTPHandler) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	var req struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.dispatcher.Send(r.Context(), command.ResolveAlert{
		ID:    mux.Vars(r)["id"],
		Actor: actor,
		Notes: req.Notes,
	})
	if err != nil {
		h.writeCommandError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

func (h *HTTPHandler) handleAlertStats(w http.ResponseWriter, r *http.Request) {
	if cached, ok := h.statsCache.Get(statsCacheKey); ok {
		h.writeJSON(w, http.StatusOK, cached)
		return
	}

	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		h.logger.Error("Failed to get alert stats", "error", err)
		h.writeError(w, http.StatusInternalServerError, "operation failed")
		return
	}

	h.statsCache.SetDefault(statsCacheKey, stats)
	h.writeJSON(w, http.StatusOK, stats)
}

// requireActor resolves the acting user from the session header. Mutating
// routes refuse to run without one; the actor string travels with the
// command for auditing.
func (h *HTTPHandler) requireActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := r.Header.Get(sessionHeader)
	if token == "" {
		h.writeError(w, http.StatusUnauthorized, "missing session token")
		return "", false
	}

	actor, err := h.sessions.Resolve(r.Context(), token)
	if errors.Is(err, session.ErrNoSession) {
		h.writeError(w, http.StatusUnauthorized, "invalid or expired session")
		return "", false
	}
	if err != nil {
		h.logger.Error("Failed to resolve session", "error", err)
		h.writeError(w, http.StatusInternalServerError, "operation failed")
		return "", false
	}
	return actor, true
}

// writeCommandError maps the command error taxonomy onto HTTP statuses.
// Expected failures carry their message; unexpected ones are logged and
// reported generically.
func (h *HTTPHandler) writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case command.IsValidation(err):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case command.IsNotFound(err):
		h.writeError(w, http.StatusNotFound, err.Error())
	case command.IsConflict(err):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("Alert operation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "operation failed")
	}
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
