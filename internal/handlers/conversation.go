package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fvnks/konecte-chatbridge/internal/models"
)

// ConversationResponse is the ordered thread for one conversation key.
type ConversationResponse struct {
	ConversationKey string           `json:"conversation_key"`
	Messages        []models.Message `json:"messages"`
}

// Conversation returns the full ordered message list for a thread. This
// is the pull path clients use on page load and to recover from missed
// real-time events; it is restartable at any time.
func (h *Handler) Conversation(w http.ResponseWriter, r *http.Request) {
	// chi hands back the raw path segment; phone keys arrive
	// percent-encoded ("+" becomes %2B).
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid conversation key")
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l < 0 {
			h.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = l
	}

	messages, err := h.bridge.Conversation(r.Context(), key, limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	h.JSON(w, http.StatusOK, ConversationResponse{
		ConversationKey: key,
		Messages:        messages,
	})
}
