package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fvnks/konecte-chatbridge/internal/fanout"
	"github.com/fvnks/konecte-chatbridge/internal/handlers"
	"github.com/fvnks/konecte-chatbridge/internal/models"
)

func dialSession(t *testing.T, srv *httptest.Server, hub *fanout.Hub, userID string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?user_id=" + userID
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("websocket dial failed (status %d): %v", status, err)
	}
	t.Cleanup(func() { conn.Close() })

	// The handler joins the room after the handshake response; wait for
	// the registration before pushing anything at it.
	deadline := time.Now().Add(2 * time.Second)
	for hub.Sessions(userID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("session never joined its room")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) fanout.Event {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	var ev fanout.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("reading pushed event: %v", err)
	}
	return ev
}

func TestWebSocketUpgradeThroughRouter(t *testing.T) {
	srv, hub := newTestServer(t, "")

	conn := dialSession(t, srv, hub, "u1")
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Sessions("u1") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("session never left its room after close")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketReceivesNotifyPush(t *testing.T) {
	srv, hub := newTestServer(t, "")

	conn := dialSession(t, srv, hub, "u1")

	resp, body := postJSON(t, srv.URL+"/internal/notify", handlers.NotifyRequest{
		UserID: "u1",
		Message: &models.Message{
			ID:              "01TEST",
			ConversationKey: "+560000001",
			SenderRole:      models.SenderBot,
			SenderID:        models.BotSenderID,
			Text:            "Gracias",
			Status:          models.StatusDeliveredToUser,
		},
	}, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.StatusCode, body)
	}

	ev := readEvent(t, conn)
	if ev.Type != "message" || ev.Message == nil {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Message.ID != "01TEST" || ev.Message.Text != "Gracias" {
		t.Fatalf("unexpected message: %+v", ev.Message)
	}
}

func TestWebSocketReceivesBotReply(t *testing.T) {
	srv, hub := newTestServer(t, "")

	conn := dialSession(t, srv, hub, "u1")

	resp, body := postJSON(t, srv.URL+"/replies", map[string]string{
		"user_id": "u1",
		"text":    "Gracias",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}

	ev := readEvent(t, conn)
	if ev.Message == nil || ev.Message.SenderID != models.BotSenderID {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Message.Status != models.StatusDeliveredToUser {
		t.Fatalf("expected delivered_to_user, got %s", ev.Message.Status)
	}
}
