package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/fvnks/konecte-chatbridge/internal/models"
)

// NotifyRequest is the internal control-plane notify call. It exists so
// a process that ingested a message can reach sessions held by another
// process without assuming same-process dispatch.
type NotifyRequest struct {
	UserID  string          `json:"user_id"`
	Message *models.Message `json:"message"`
}

// NotifyResponse reports how many local sessions the push reached.
type NotifyResponse struct {
	Sessions int `json:"sessions"`
}

// Notify pushes a message to the user's sessions on this process. Zero
// reached sessions is still a 202: delivery is best-effort by contract.
func (h *Handler) Notify(w http.ResponseWriter, r *http.Request) {
	var req NotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" || req.Message == nil {
		h.Error(w, http.StatusBadRequest, "user_id and message are required")
		return
	}

	delivered := h.hub.Notify(req.UserID, req.Message)
	h.JSON(w, http.StatusAccepted, NotifyResponse{Sessions: delivered})
}
