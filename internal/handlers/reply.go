package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/fvnks/konecte-chatbridge/internal/models"
)

// ReplyRequest is the bot-reply ingestion body.
type ReplyRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// ReplyResponse carries the appended message.
type ReplyResponse struct {
	Message *models.Message `json:"message"`
}

// Reply ingests a bot reply addressed to a platform user. The user id is
// resolved to a phone; an unresolvable user is a 404 with no log mutation.
func (h *Handler) Reply(w http.ResponseWriter, r *http.Request) {
	var req ReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.bridge.IngestBotReply(r.Context(), req.UserID, req.Text)
	if err != nil {
		h.fail(w, err)
		return
	}

	h.JSON(w, http.StatusCreated, ReplyResponse{Message: msg})
}
