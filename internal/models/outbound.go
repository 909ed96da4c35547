package models

import (
	"time"

	"github.com/google/uuid"
)

// PendingOutboundMessage is a queued user message awaiting pickup by the
// channel's polling agent. Each one is the atomic twin of a conversation
// log entry with status pending_to_channel. Claiming sets ClaimedAt; the
// row itself is never deleted, so the queue doubles as an audit log.
type PendingOutboundMessage struct {
	ID                   uuid.UUID  `json:"id"`
	TargetChannelAddress string     `json:"target_channel_address"` // the bot's own WhatsApp address
	OriginUserID         string     `json:"origin_user_id"`
	OriginPhone          string     `json:"origin_phone"` // routes the bot's eventual reply
	Text                 string     `json:"text"`
	CreatedAt            time.Time  `json:"created_at"`
	ClaimedAt            *time.Time `json:"claimed_at,omitempty"`
}

// Claimed reports whether the entry has already been taken by an agent.
func (p *PendingOutboundMessage) Claimed() bool {
	return p.ClaimedAt != nil
}
