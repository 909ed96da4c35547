package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/fvnks/konecte-chatbridge/internal/api"
	"github.com/fvnks/konecte-chatbridge/internal/bridge"
	"github.com/fvnks/konecte-chatbridge/internal/fanout"
	"github.com/fvnks/konecte-chatbridge/internal/handlers"
	"github.com/fvnks/konecte-chatbridge/internal/identity"
	"github.com/fvnks/konecte-chatbridge/internal/models"
	"github.com/fvnks/konecte-chatbridge/internal/store"
)

func newTestServer(t *testing.T, claimKeyHash string) (*httptest.Server, *fanout.Hub) {
	t.Helper()
	logger := zerolog.Nop()
	db := store.NewMemoryStore()
	ids := identity.NewStaticResolver(map[string]string{"u1": "+560000001"})
	hub := fanout.NewHub(logger)
	svc := bridge.New(db, ids, fanout.NewLocalNotifier(hub), 0, logger)
	h := handlers.NewHandler(svc, db, hub, nil, claimKeyHash, logger)
	srv := httptest.NewServer(api.NewRouter(logger, h, nil))
	t.Cleanup(srv.Close)
	return srv, hub
}

func postJSON(t *testing.T, url string, body interface{}, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	return resp, buf.Bytes()
}

func sendHola(t *testing.T, srv *httptest.Server) handlers.SendResponse {
	t.Helper()
	resp, body := postJSON(t, srv.URL+"/messages", map[string]string{
		"target_channel_address": "+569999999",
		"origin_user_id":         "u1",
		"origin_phone":           "+560000001",
		"text":                   "Hola",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}
	var result handlers.SendResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatal(err)
	}
	return result
}

func TestSendEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "")

	result := sendHola(t, srv)
	if result.Message.Status != models.StatusPendingToChannel {
		t.Fatalf("expected pending_to_channel, got %s", result.Message.Status)
	}
	if result.Outbound.OriginPhone != "+560000001" {
		t.Fatalf("unexpected outbound: %+v", result.Outbound)
	}
}

func TestSendEndpointValidation(t *testing.T) {
	srv, _ := newTestServer(t, "")

	resp, _ := postJSON(t, srv.URL+"/messages", map[string]string{
		"origin_user_id": "u1",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestReplyEndpointUnknownUser(t *testing.T) {
	srv, _ := newTestServer(t, "")

	resp, body := postJSON(t, srv.URL+"/replies", map[string]string{
		"user_id": "ghost",
		"text":    "hola?",
	}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", resp.StatusCode, body)
	}
}

func TestReplyThenConversationFetch(t *testing.T) {
	srv, _ := newTestServer(t, "")

	sendHola(t, srv)

	resp, _ := postJSON(t, srv.URL+"/replies", map[string]string{
		"user_id": "u1",
		"text":    "Gracias",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	getResp, err := http.Get(srv.URL + "/conversations/%2B560000001")
	if err != nil {
		t.Fatal(err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", getResp.StatusCode)
	}

	var conv handlers.ConversationResponse
	if err := json.NewDecoder(getResp.Body).Decode(&conv); err != nil {
		t.Fatal(err)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(conv.Messages))
	}
	if conv.Messages[0].SenderRole != models.SenderUser || conv.Messages[1].SenderRole != models.SenderBot {
		t.Fatalf("unexpected thread order: %+v", conv.Messages)
	}
}

func TestClaimEndpointRequiresKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("agent-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	srv, _ := newTestServer(t, string(hash))

	resp, _ := postJSON(t, srv.URL+"/outbound/claim", map[string]string{
		"target_address": "+569999999",
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", resp.StatusCode)
	}

	resp, body := postJSON(t, srv.URL+"/outbound/claim", map[string]string{
		"target_address": "+569999999",
	}, map[string]string{"X-Claim-Key": "agent-secret"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d: %s", resp.StatusCode, body)
	}
}

func TestClaimOneConflict(t *testing.T) {
	srv, _ := newTestServer(t, "")

	result := sendHola(t, srv)
	claimURL := fmt.Sprintf("%s/outbound/%s/claim", srv.URL, result.Outbound.ID)

	resp, _ := postJSON(t, claimURL, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on first claim, got %d", resp.StatusCode)
	}

	resp, _ = postJSON(t, claimURL, nil, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on second claim, got %d", resp.StatusCode)
	}
}

func TestTransitionEndpointRejectsBackwards(t *testing.T) {
	srv, _ := newTestServer(t, "")

	result := sendHola(t, srv)
	statusURL := fmt.Sprintf("%s/messages/%s/status", srv.URL, result.Message.ID)

	resp, _ := postJSON(t, statusURL, map[string]string{"status": "delivered_to_user"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp, _ = postJSON(t, statusURL, map[string]string{"status": "pending_to_channel"}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for backwards transition, got %d", resp.StatusCode)
	}
}

func TestNotifyEndpointDeliversToLocalRoom(t *testing.T) {
	srv, hub := newTestServer(t, "")

	session := &recordingPusher{}
	hub.Join("u1", session)

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

	var result handlers.NotifyResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatal(err)
	}
	if result.Sessions != 1 {
		t.Fatalf("expected 1 session reached, got %d", result.Sessions)
	}
	if len(session.pushes) != 1 {
		t.Fatal("session must receive the pushed event")
	}
}

type recordingPusher struct {
	pushes []interface{}
}

func (p *recordingPusher) Push(v interface{}) error {
	p.pushes = append(p.pushes, v)
	return nil
}
