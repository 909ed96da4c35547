package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/fvnks/konecte-chatbridge/internal/identity"
	"github.com/fvnks/konecte-chatbridge/internal/models"
	"github.com/fvnks/konecte-chatbridge/internal/store"
)

type stubNotifier struct {
	calls []string // user ids notified
	msgs  []*models.Message
	err   error
}

func (n *stubNotifier) Notify(_ context.Context, userID string, msg *models.Message) error {
	n.calls = append(n.calls, userID)
	n.msgs = append(n.msgs, msg)
	return n.err
}

func newTestService(t *testing.T, notifier *stubNotifier) (*Service, *store.MemoryStore) {
	t.Helper()
	db := store.NewMemoryStore()
	ids := identity.NewStaticResolver(map[string]string{
		"u1": "+560000001",
	})
	svc := New(db, ids, notifier, 0, zerolog.Nop())
	return svc, db
}

func TestSendFromWebCreatesMessageAndOutbound(t *testing.T) {
	notifier := &stubNotifier{}
	svc, db := newTestService(t, notifier)
	ctx := context.Background()

	msg, out, err := svc.SendFromWeb(ctx, SendInput{
		TargetChannelAddress: "+569999999",
		OriginUserID:         "u1",
		OriginPhone:          "+560000001",
		Text:                 "Hola",
	})
	if err != nil {
		t.Fatal(err)
	}

	if msg.ConversationKey != "+560000001" {
		t.Fatalf("expected conversation keyed by origin phone, got %q", msg.ConversationKey)
	}
	if msg.SenderRole != models.SenderUser || msg.Text != "Hola" || msg.Status != models.StatusPendingToChannel {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if out.OriginPhone != "+560000001" || out.Text != "Hola" {
		t.Fatalf("unexpected outbound entry: %+v", out)
	}

	// Web sends are not fanned out; the send response is the echo's source.
	if len(notifier.calls) != 0 {
		t.Fatalf("expected no notify for web send, got %d", len(notifier.calls))
	}

	thread, err := db.ListMessages(ctx, "+560000001", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(thread) != 1 {
		t.Fatalf("expected 1 logged message, got %d", len(thread))
	}
}

func TestSendFromWebRejectsEmptyFields(t *testing.T) {
	svc, db := newTestService(t, &stubNotifier{})
	ctx := context.Background()

	inputs := []SendInput{
		{OriginUserID: "u1", OriginPhone: "+560000001", Text: "hi"},
		{TargetChannelAddress: "+569999999", OriginPhone: "+560000001", Text: "hi"},
		{TargetChannelAddress: "+569999999", OriginUserID: "u1", Text: "hi"},
		{TargetChannelAddress: "+569999999", OriginUserID: "u1", OriginPhone: "+560000001"},
	}
	for _, in := range inputs {
		if _, _, err := svc.SendFromWeb(ctx, in); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", in, err)
		}
	}

	thread, err := db.ListMessages(ctx, "+560000001", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(thread) != 0 {
		t.Fatalf("rejected sends must not write, found %d messages", len(thread))
	}
}

func TestSendFromWebRejectsUnknownUser(t *testing.T) {
	svc, _ := newTestService(t, &stubNotifier{})

	_, _, err := svc.SendFromWeb(context.Background(), SendInput{
		TargetChannelAddress: "+569999999",
		OriginUserID:         "ghost",
		OriginPhone:          "+560000009",
		Text:                 "hi",
	})
	if !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected identity.ErrNotFound, got %v", err)
	}
}

func TestSendFromWebRejectsPhoneMismatch(t *testing.T) {
	svc, _ := newTestService(t, &stubNotifier{})

	_, _, err := svc.SendFromWeb(context.Background(), SendInput{
		TargetChannelAddress: "+569999999",
		OriginUserID:         "u1",
		OriginPhone:          "+560000002", // directory says +560000001
		Text:                 "hi",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestIngestBotReplyAppendsAndNotifies(t *testing.T) {
	notifier := &stubNotifier{}
	svc, db := newTestService(t, notifier)
	ctx := context.Background()

	// A prior web send anchors the thread.
	if _, _, err := svc.SendFromWeb(ctx, SendInput{
		TargetChannelAddress: "+569999999",
		OriginUserID:         "u1",
		OriginPhone:          "+560000001",
		Text:                 "Hola",
	}); err != nil {
		t.Fatal(err)
	}

	msg, err := svc.IngestBotReply(ctx, "u1", "Gracias")
	if err != nil {
		t.Fatal(err)
	}
	if msg.ConversationKey != "+560000001" {
		t.Fatalf("reply must land in the user's thread, got %q", msg.ConversationKey)
	}
	if msg.SenderRole != models.SenderBot || msg.SenderID != models.BotSenderID {
		t.Fatalf("unexpected sender: %+v", msg)
	}
	if msg.Status != models.StatusDeliveredToUser {
		t.Fatalf("replies arrive already delivered, got %s", msg.Status)
	}

	if len(notifier.calls) != 1 || notifier.calls[0] != "u1" {
		t.Fatalf("expected one notify for u1, got %v", notifier.calls)
	}
	if notifier.msgs[0].ID != msg.ID {
		t.Fatal("notify must carry the appended message")
	}

	thread, err := db.ListMessages(ctx, "+560000001", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(thread) != 2 || thread[1].ID != msg.ID {
		t.Fatalf("reply must append after the send, thread: %+v", thread)
	}
}

func TestIngestBotReplyUnknownUserLeavesLogUntouched(t *testing.T) {
	svc, db := newTestService(t, &stubNotifier{})
	ctx := context.Background()

	_, err := svc.IngestBotReply(ctx, "ghost", "hello?")
	if !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected identity.ErrNotFound, got %v", err)
	}

	thread, err := db.ListMessages(ctx, "+560000001", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(thread) != 0 {
		t.Fatalf("no log mutation expected, found %d messages", len(thread))
	}
}

func TestNotifyFailureDoesNotFailAppend(t *testing.T) {
	notifier := &stubNotifier{err: errors.New("no live session")}
	svc, db := newTestService(t, notifier)
	ctx := context.Background()

	msg, err := svc.IngestBotReply(ctx, "u1", "Gracias")
	if err != nil {
		t.Fatalf("append must survive notify failure, got %v", err)
	}

	thread, err := db.ListMessages(ctx, "+560000001", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(thread) != 1 || thread[0].ID != msg.ID {
		t.Fatal("message must be visible on the pull path")
	}
}

func TestClaimThenTransition(t *testing.T) {
	svc, _ := newTestService(t, &stubNotifier{})
	ctx := context.Background()

	msg, out, err := svc.SendFromWeb(ctx, SendInput{
		TargetChannelAddress: "+569999999",
		OriginUserID:         "u1",
		OriginPhone:          "+560000001",
		Text:                 "Hola",
	})
	if err != nil {
		t.Fatal(err)
	}

	claimed, err := svc.ClaimOutboundFor(ctx, "+569999999")
	if err != nil {
		t.Fatal(err)
	}
	if len(claimed) != 1 || claimed[0].ID != out.ID {
		t.Fatalf("expected the queued entry, got %+v", claimed)
	}

	// Second claim on the same id is rejected.
	if _, err := svc.ClaimOutboundByID(ctx, out.ID); !errors.Is(err, store.ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}

	updated, err := svc.Transition(ctx, msg.ID, models.StatusDeliveredToUser)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != models.StatusDeliveredToUser {
		t.Fatalf("expected delivered_to_user, got %s", updated.Status)
	}

	// Backwards move is rejected.
	if _, err := svc.Transition(ctx, msg.ID, models.StatusPendingToChannel); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	svc, _ := newTestService(t, &stubNotifier{})

	_, err := svc.Transition(context.Background(), "any", models.MessageStatus("shipped"))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
