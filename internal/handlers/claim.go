package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fvnks/konecte-chatbridge/internal/models"
)

// ClaimRequest is the channel agent's batch claim body.
type ClaimRequest struct {
	TargetAddress string `json:"target_address"`
}

// ClaimResponse carries the entries claimed by this call, in send order.
type ClaimResponse struct {
	Messages []models.PendingOutboundMessage `json:"messages"`
}

// TransitionRequest reports the agent's forwarding outcome for a message.
type TransitionRequest struct {
	Status models.MessageStatus `json:"status"`
}

// checkClaimKey verifies the agent's pre-shared key header.
func (h *Handler) checkClaimKey(w http.ResponseWriter, r *http.Request) bool {
	if h.claimKeyHash == "" {
		return true
	}
	key := r.Header.Get("X-Claim-Key")
	if key == "" {
		h.Error(w, http.StatusUnauthorized, "claim key required")
		return false
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.claimKeyHash), []byte(key)); err != nil {
		h.Error(w, http.StatusUnauthorized, "invalid claim key")
		return false
	}
	return true
}

// Claim hands the polling agent every unclaimed entry for its address and
// marks them claimed in the same atomic step.
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	if !h.checkClaimKey(w, r) {
		return
	}

	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	claimed, err := h.bridge.ClaimOutboundFor(r.Context(), req.TargetAddress)
	if err != nil {
		h.fail(w, err)
		return
	}
	if claimed == nil {
		claimed = []models.PendingOutboundMessage{}
	}

	h.JSON(w, http.StatusOK, ClaimResponse{Messages: claimed})
}

// ClaimOne claims a single queue entry by id. A second concurrent claim
// on the same id gets a 409.
func (h *Handler) ClaimOne(w http.ResponseWriter, r *http.Request) {
	if !h.checkClaimKey(w, r) {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid outbound message ID format")
		return
	}

	claimed, err := h.bridge.ClaimOutboundByID(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}

	h.JSON(w, http.StatusOK, claimed)
}

// Transition lets the agent report a forwarding outcome: delivered_to_user
// on success, failed on permanent failure. Backwards or repeated moves
// are rejected with a 409.
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	if !h.checkClaimKey(w, r) {
		return
	}

	messageID := chi.URLParam(r, "id")

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.bridge.Transition(r.Context(), messageID, req.Status)
	if err != nil {
		h.fail(w, err)
		return
	}

	h.JSON(w, http.StatusOK, msg)
}
