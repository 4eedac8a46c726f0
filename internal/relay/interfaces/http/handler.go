// Package http exposes the relay dashboard API.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"relaycloud/internal/auth"
	"relaycloud/internal/observability/metrics"
	"relaycloud/internal/relay/application"
	relay "relaycloud/internal/relay/domain"
	"relaycloud/internal/relay/infrastructure/docstore"
	"relaycloud/internal/store"
)

// Handler provides the relay registry and control endpoints. Repositories
// are constructed per request from the authenticated identity; a request
// without one never reaches a repository.
type Handler struct {
	docs        store.Store
	notifierFor NotifierFactory
	suggestions []string
}

// NotifierFactory builds the notification sink for one user's actions.
type NotifierFactory func(userID string) application.Notifier

// NewHandler constructs a handler.
func NewHandler(docs store.Store, notifierFor NotifierFactory, suggestions []string) (*Handler, error) {
	if docs == nil {
		return nil, errors.New("relay handler: nil store")
	}
	if len(suggestions) == 0 {
		suggestions = relay.SuggestedDevices()
	}
	return &Handler{docs: docs, notifierFor: notifierFor, suggestions: suggestions}, nil
}

// ServeHTTP routes /api/v1/relays and its subpaths.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/api/v1/relays" && r.Method == http.MethodGet:
		h.handleList(w, r)
	case path == "/api/v1/relays" && r.Method == http.MethodPost:
		h.handleAdd(w, r)
	case path == "/api/v1/relays/suggestions" && r.Method == http.MethodGet:
		h.handleSuggestions(w, r)
	case strings.HasSuffix(path, "/toggle") && r.Method == http.MethodPost:
		h.handleToggle(w, r)
	case strings.HasPrefix(path, "/api/v1/relays/") && r.Method == http.MethodDelete:
		h.handleDelete(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) notifier(userID string) application.Notifier {
	if h.notifierFor == nil {
		return nil
	}
	return h.notifierFor(userID)
}

func (h *Handler) registration(r *http.Request) (*application.Registration, error) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil, auth.ErrUnauthenticated
	}
	repo, err := docstore.New(h.docs, identity.UserID)
	if err != nil {
		return nil, err
	}
	return application.NewRegistration(repo, h.notifier(identity.UserID))
}

func (h *Handler) control(r *http.Request) (*application.Control, error) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil, auth.ErrUnauthenticated
	}
	repo, err := docstore.New(h.docs, identity.UserID)
	if err != nil {
		return nil, err
	}
	return application.NewControl(repo, h.notifier(identity.UserID))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	workflow, err := h.registration(r)
	if err != nil {
		respondError(w, err)
		return
	}
	// A failed initial read degrades to an empty view instead of blocking
	// the screen; the client retries by reloading.
	_ = workflow.Activate(r.Context())
	respondJSON(w, http.StatusOK, workflow.View())
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	workflow, err := h.registration(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req struct {
		Device string `json:"device"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if err := workflow.Activate(r.Context()); err != nil {
		respondError(w, err)
		return
	}
	created, err := workflow.Add(r.Context(), req.Device)
	metrics.ObserveRelayOp("create", err, time.Since(start))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.IdentityFromContext(r.Context()); !ok {
		respondError(w, auth.ErrUnauthenticated)
		return
	}
	respondJSON(w, http.StatusOK, map[string][]string{"suggestions": h.suggestions})
}

func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, ok := relayIDFromPath(r.URL.Path, "/toggle")
	if !ok {
		http.Error(w, "invalid relay id", http.StatusBadRequest)
		return
	}
	workflow, err := h.control(r)
	if err != nil {
		respondError(w, err)
		return
	}

	updated, err := workflow.Toggle(r.Context(), id)
	metrics.ObserveRelayOp("toggle", err, time.Since(start))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, ok := relayIDFromPath(r.URL.Path, "")
	if !ok {
		http.Error(w, "invalid relay id", http.StatusBadRequest)
		return
	}
	confirmed := r.URL.Query().Get("confirm") == "true"

	workflow, err := h.registration(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := workflow.Activate(r.Context()); err != nil {
		respondError(w, err)
		return
	}

	err = workflow.Delete(r.Context(), id, confirmed)
	metrics.ObserveRelayOp("delete", err, time.Since(start))
	if err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func relayIDFromPath(path, suffix string) (int, bool) {
	path = strings.TrimSuffix(strings.TrimSuffix(path, "/"), suffix)
	path = strings.TrimSuffix(path, "/")
	segment := path[strings.LastIndex(path, "/")+1:]
	id, err := strconv.Atoi(segment)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, relay.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, relay.ErrEmptyDeviceName):
		http.Error(w, "device name required", http.StatusBadRequest)
	case errors.Is(err, relay.ErrNotConfirmed):
		http.Error(w, "confirmation required", http.StatusBadRequest)
	case errors.Is(err, relay.ErrInvalidID):
		http.Error(w, "invalid relay id", http.StatusBadRequest)
	default:
		http.Error(w, "store error", http.StatusInternalServerError)
	}
}
