package fanout

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/fvnks/konecte-chatbridge/internal/models"
)

type stubPusher struct {
	pushes []interface{}
	err    error
}

func (s *stubPusher) Push(v interface{}) error {
	s.pushes = append(s.pushes, v)
	return s.err
}

func testMessage() *models.Message {
	return &models.Message{
		ID:              "01TEST",
		ConversationKey: "+560000001",
		SenderRole:      models.SenderBot,
		SenderID:        models.BotSenderID,
		Text:            "Gracias",
		Status:          models.StatusDeliveredToUser,
	}
}

func TestNotifyReachesAllSessionsInRoom(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a, b := &stubPusher{}, &stubPusher{}
	hub.Join("u1", a)
	hub.Join("u1", b)
	other := &stubPusher{}
	hub.Join("u2", other)

	delivered := hub.Notify("u1", testMessage())
	if delivered != 2 {
		t.Fatalf("expected 2 deliveries, got %d", delivered)
	}
	if len(a.pushes) != 1 || len(b.pushes) != 1 {
		t.Fatal("both u1 sessions must receive the event")
	}
	if len(other.pushes) != 0 {
		t.Fatal("u2 must not receive u1's event")
	}

	event, ok := a.pushes[0].(Event)
	if !ok {
		t.Fatalf("expected Event payload, got %T", a.pushes[0])
	}
	if event.Type != "message" || event.Message.ID != "01TEST" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestNotifyEmptyRoomDrops(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	if delivered := hub.Notify("nobody", testMessage()); delivered != 0 {
		t.Fatalf("expected drop, got %d deliveries", delivered)
	}
}

func TestNotifyContinuesPastFailedSession(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ok, bad := &stubPusher{}, &stubPusher{err: errors.New("write failed")}
	hub.Join("u1", ok)
	hub.Join("u1", bad)

	delivered := hub.Notify("u1", testMessage())
	if delivered != 1 {
		t.Fatalf("expected 1 delivery, got %d", delivered)
	}
	if len(ok.pushes) != 1 || len(bad.pushes) != 1 {
		t.Fatal("both sessions must be attempted")
	}
}

func TestLeaveRemovesSession(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	s := &stubPusher{}
	hub.Join("u1", s)
	hub.Leave("u1", s)

	if hub.Sessions("u1") != 0 {
		t.Fatal("expected empty room after leave")
	}
	if delivered := hub.Notify("u1", testMessage()); delivered != 0 {
		t.Fatalf("expected no delivery after leave, got %d", delivered)
	}
}
