package store

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/fvnks/konecte-chatbridge/internal/models"
)

var (
	// ErrNotFound is returned when the referenced message or queue entry
	// does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a status transition loses a race or is
	// not a legal forward move.
	ErrConflict = errors.New("store: conflicting update")
	// ErrAlreadyClaimed is returned when a claim targets an entry another
	// claimant already took.
	ErrAlreadyClaimed = errors.New("store: outbound message already claimed")
)

// DataStore is the interface over the conversation log and the outbound
// dispatch queue. MemoryStore, SQLiteStore and PostgresStore implement it.
//
// Implementations must linearize appends per conversation key (so Seq and
// CreatedAt order never interleave inconsistently) and must perform
// AppendWithOutbound and the claim operations atomically.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Conversation log
	//
	// AppendMessage assigns ID, Seq and CreatedAt if unset and appends the
	// message to its conversation. AppendWithOutbound does the same and
	// additionally enqueues the outbound twin in the same atomic unit:
	// either both rows exist afterwards or neither does.
	AppendMessage(ctx context.Context, msg *models.Message) (*models.Message, error)
	AppendWithOutbound(ctx context.Context, msg *models.Message, out *models.PendingOutboundMessage) (*models.Message, *models.PendingOutboundMessage, error)
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	// ListMessages returns the conversation ordered by created_at, ties
	// broken by seq. limit <= 0 returns the full thread.
	ListMessages(ctx context.Context, conversationKey string, limit int) ([]models.Message, error)
	// UpdateMessageStatus transitions id from `from` to `to` atomically.
	// Returns ErrConflict if the message is no longer in `from`.
	UpdateMessageStatus(ctx context.Context, id string, from, to models.MessageStatus) error

	// Outbound dispatch queue
	//
	// ClaimOutbound marks one entry claimed; a second claim on the same id
	// returns ErrAlreadyClaimed. ClaimOutboundFor claims every unclaimed
	// entry for the target address in one atomic step and returns them in
	// enqueue order.
	ClaimOutbound(ctx context.Context, id uuid.UUID) (*models.PendingOutboundMessage, error)
	ClaimOutboundFor(ctx context.Context, targetAddress string) ([]models.PendingOutboundMessage, error)
	GetOutbound(ctx context.Context, id uuid.UUID) (*models.PendingOutboundMessage, error)
}

// sortOutboundByEnqueue orders claimed entries by enqueue time, id as
// tie-break, so agents see them in send order.
func sortOutboundByEnqueue(entries []models.PendingOutboundMessage) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID.String() < entries[j].ID.String()
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}
