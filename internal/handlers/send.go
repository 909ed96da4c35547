package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/fvnks/konecte-chatbridge/internal/bridge"
	"github.com/fvnks/konecte-chatbridge/internal/models"
)

// SendRequest is the web-send request body.
type SendRequest struct {
	TargetChannelAddress string `json:"target_channel_address"`
	OriginUserID         string `json:"origin_user_id"`
	OriginPhone          string `json:"origin_phone"`
	Text                 string `json:"text"`
}

// SendResponse carries the authoritative message and its queued twin.
type SendResponse struct {
	Message  *models.Message                `json:"message"`
	Outbound *models.PendingOutboundMessage `json:"outbound"`
}

// Send handles a web user's message to the channel bot.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, out, err := h.bridge.SendFromWeb(r.Context(), bridge.SendInput{
		TargetChannelAddress: req.TargetChannelAddress,
		OriginUserID:         req.OriginUserID,
		OriginPhone:          req.OriginPhone,
		Text:                 req.Text,
	})
	if err != nil {
		h.fail(w, err)
		return
	}

	h.JSON(w, http.StatusCreated, SendResponse{Message: msg, Outbound: out})
}
