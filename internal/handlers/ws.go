package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fvnks/konecte-chatbridge/internal/fanout"
)

const (
	readDeadline = 90 * time.Second
	readLimit    = int64(4 << 10)
)

var upgrader = websocket.Upgrader{
	// TODO: restrict Origin to the platform's domains once they are final.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocket upgrades a web session and joins it to its user's room. The
// read loop only services pings; all data flows server to client.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		h.Error(w, http.StatusBadRequest, "user_id is required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", userID).Msg("websocket upgrade failed")
		return
	}

	session := fanout.NewSession(conn)
	h.hub.Join(userID, session)
	h.logger.Info().
		Str("user_id", userID).
		Int("sessions", h.hub.Sessions(userID)).
		Msg("session joined")

	go h.readLoop(userID, session, conn)
}

// readLoop keeps the connection alive until the client goes away, then
// removes the session from its room.
func (h *Handler) readLoop(userID string, session *fanout.Session, conn *websocket.Conn) {
	defer func() {
		h.hub.Leave(userID, session)
		_ = session.Close()
		h.logger.Info().Str("user_id", userID).Msg("session left")
	}()

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	}
}
