package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/fvnks/konecte-chatbridge/internal/bridge"
	"github.com/fvnks/konecte-chatbridge/internal/fanout"
	"github.com/fvnks/konecte-chatbridge/internal/identity"
	"github.com/fvnks/konecte-chatbridge/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	bridge       *bridge.Service
	db           store.DataStore
	hub          *fanout.Hub
	bus          *fanout.RedisBus // nil when redis is not configured
	claimKeyHash string           // bcrypt hash; empty disables the check
	logger       zerolog.Logger
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(svc *bridge.Service, db store.DataStore, hub *fanout.Hub, bus *fanout.RedisBus, claimKeyHash string, logger zerolog.Logger) *Handler {
	return &Handler{
		bridge:       svc,
		db:           db,
		hub:          hub,
		bus:          bus,
		claimKeyHash: claimKeyHash,
		logger:       logger,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// fail maps bridge and store errors onto HTTP statuses.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bridge.ErrValidation):
		h.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, identity.ErrNotFound):
		h.Error(w, http.StatusNotFound, "recipient not found")
	case errors.Is(err, store.ErrNotFound):
		h.Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrAlreadyClaimed):
		h.Error(w, http.StatusConflict, "already claimed")
	case errors.Is(err, store.ErrConflict):
		h.Error(w, http.StatusConflict, "conflicting update")
	default:
		h.logger.Error().Err(err).Msg("request failed")
		h.Error(w, http.StatusInternalServerError, "internal error")
	}
}
