package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/fvnks/konecte-chatbridge/internal/models"
)

// MemoryStore is an in-process DataStore used in development and tests.
// A single mutex serializes all mutations, which trivially satisfies the
// per-conversation single-writer discipline; nothing under the lock ever
// touches the network.
type MemoryStore struct {
	mu       sync.Mutex
	messages map[string]*models.Message
	byConv   map[string][]*models.Message
	seq      map[string]int64
	outbound map[uuid.UUID]*models.PendingOutboundMessage
	byTarget map[string][]uuid.UUID
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string]*models.Message),
		byConv:   make(map[string][]*models.Message),
		seq:      make(map[string]int64),
		outbound: make(map[uuid.UUID]*models.PendingOutboundMessage),
		byTarget: make(map[string][]uuid.UUID),
	}
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() {}

// Ping always succeeds.
func (s *MemoryStore) Ping(_ context.Context) error { return nil }

// appendLocked appends msg to its conversation. Caller holds s.mu.
func (s *MemoryStore) appendLocked(msg *models.Message) *models.Message {
	stored := *msg
	if stored.ID == "" {
		stored.ID = ulid.Make().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.seq[stored.ConversationKey]++
	stored.Seq = s.seq[stored.ConversationKey]

	s.messages[stored.ID] = &stored
	s.byConv[stored.ConversationKey] = append(s.byConv[stored.ConversationKey], &stored)
	return &stored
}

// AppendMessage appends a single message to its conversation log.
func (s *MemoryStore) AppendMessage(_ context.Context, msg *models.Message) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.appendLocked(msg)
	out := *stored
	return &out, nil
}

// AppendWithOutbound appends the message and enqueues its outbound twin
// under one lock acquisition, so readers never observe one without the other.
func (s *MemoryStore) AppendWithOutbound(_ context.Context, msg *models.Message, out *models.PendingOutboundMessage) (*models.Message, *models.PendingOutboundMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.appendLocked(msg)

	queued := *out
	if queued.ID == uuid.Nil {
		queued.ID = uuid.New()
	}
	if queued.CreatedAt.IsZero() {
		queued.CreatedAt = stored.CreatedAt
	}
	s.outbound[queued.ID] = &queued
	s.byTarget[queued.TargetChannelAddress] = append(s.byTarget[queued.TargetChannelAddress], queued.ID)

	msgCopy := *stored
	outCopy := queued
	return &msgCopy, &outCopy, nil
}

// GetMessage returns the message with the given id.
func (s *MemoryStore) GetMessage(_ context.Context, id string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *msg
	return &out, nil
}

// ListMessages returns the conversation ordered by created_at, then seq.
func (s *MemoryStore) ListMessages(_ context.Context, conversationKey string, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread := s.byConv[conversationKey]
	out := make([]models.Message, 0, len(thread))
	for _, msg := range thread {
		out = append(out, *msg)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateMessageStatus transitions the message's status with compare-and-set
// semantics.
func (s *MemoryStore) UpdateMessageStatus(_ context.Context, id string, from, to models.MessageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	if msg.Status != from {
		return ErrConflict
	}
	msg.Status = to
	return nil
}

// ClaimOutbound atomically marks one queue entry claimed.
func (s *MemoryStore) ClaimOutbound(_ context.Context, id uuid.UUID) (*models.PendingOutboundMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.outbound[id]
	if !ok {
		return nil, ErrNotFound
	}
	if entry.ClaimedAt != nil {
		return nil, ErrAlreadyClaimed
	}
	now := time.Now().UTC()
	entry.ClaimedAt = &now

	out := *entry
	return &out, nil
}

// ClaimOutboundFor claims every unclaimed entry for the target address.
func (s *MemoryStore) ClaimOutboundFor(_ context.Context, targetAddress string) ([]models.PendingOutboundMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var claimed []models.PendingOutboundMessage
	for _, id := range s.byTarget[targetAddress] {
		entry := s.outbound[id]
		if entry.ClaimedAt != nil {
			continue
		}
		ts := now
		entry.ClaimedAt = &ts
		claimed = append(claimed, *entry)
	}
	return claimed, nil
}

// GetOutbound returns the queue entry with the given id.
func (s *MemoryStore) GetOutbound(_ context.Context, id uuid.UUID) (*models.PendingOutboundMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.outbound[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *entry
	return &out, nil
}
