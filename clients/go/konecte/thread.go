package konecte

import (
	"fmt"
	"sync"
)

// Entry is one rendered line of a thread: either an authoritative server
// message or a pending local echo awaiting reconciliation.
type Entry struct {
	LocalID string // set while the entry is a local echo
	Pending bool
	Message Message
}

// Thread is the client-side view of one conversation with optimistic
// echoes. A send is rendered immediately as a pending entry; when the
// authoritative message for that same logical send arrives (from the send
// response or a fan-out push), it replaces the echo. Matching is by send
// intent, not by id: the echo's temporary id and the server id are drawn
// from different spaces, so the earliest pending echo for this
// conversation and user is the one being confirmed.
type Thread struct {
	mu              sync.Mutex
	conversationKey string
	userID          string
	nextLocal       int64
	entries         []Entry
}

// NewThread creates a thread view for one conversation and viewing user.
func NewThread(conversationKey, userID string) *Thread {
	return &Thread{
		conversationKey: conversationKey,
		userID:          userID,
	}
}

// AppendLocal renders a locally-fabricated message before the server
// round-trip completes and returns the pending entry.
func (t *Thread) AppendLocal(text string) Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextLocal++
	entry := Entry{
		LocalID: fmt.Sprintf("local-%d", t.nextLocal),
		Pending: true,
		Message: Message{
			ConversationKey: t.conversationKey,
			SenderRole:      RoleUser,
			SenderID:        t.userID,
			Text:            text,
			Status:          StatusPendingToChannel,
		},
	}
	t.entries = append(t.entries, entry)
	return entry
}

// Reconcile merges an authoritative message into the thread. A user
// message from this thread's user replaces the earliest pending echo;
// anything else (bot replies, messages already merged) appends or is
// ignored. The result always holds exactly one entry per logical message.
func (t *Thread) Reconcile(msg Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Already merged, e.g. send response then fan-out echo of the same id.
	for _, e := range t.entries {
		if !e.Pending && e.Message.ID == msg.ID {
			return
		}
	}

	if msg.SenderRole == RoleUser && msg.SenderID == t.userID && msg.ConversationKey == t.conversationKey {
		// Sends are confirmed in order, so the earliest echo is the match.
		for i := range t.entries {
			if t.entries[i].Pending {
				t.entries[i] = Entry{Message: msg}
				return
			}
		}
	}

	t.entries = append(t.entries, Entry{Message: msg})
}

// Abort removes a pending echo after a failed send and returns its text
// so the caller can restore the user's input.
func (t *Thread) Abort(localID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.entries {
		if t.entries[i].Pending && t.entries[i].LocalID == localID {
			text := t.entries[i].Message.Text
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return text, true
		}
	}
	return "", false
}

// Reset replaces the thread's confirmed contents from an authoritative
// fetch, keeping any still-pending echoes at the tail. This is the
// recovery path after missed real-time events.
func (t *Thread) Reset(msgs []Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var pending []Entry
	for _, e := range t.entries {
		if e.Pending {
			pending = append(pending, e)
		}
	}

	t.entries = make([]Entry, 0, len(msgs)+len(pending))
	for _, m := range msgs {
		t.entries = append(t.entries, Entry{Message: m})
	}
	t.entries = append(t.entries, pending...)
}

// Entries returns a snapshot of the rendered thread in order.
func (t *Thread) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Send performs the full optimistic round trip: render a local echo,
// call the server, and either reconcile the authoritative message or
// drop the echo on failure. On error the echo is gone and the caller
// should restore the input from the text it already holds.
func (t *Thread) Send(c *Client, target, phone, text string) (*SendResult, error) {
	echo := t.AppendLocal(text)

	result, err := c.Send(target, t.userID, phone, text)
	if err != nil {
		t.Abort(echo.LocalID)
		return nil, err
	}

	t.Reconcile(result.Message)
	return result, nil
}
