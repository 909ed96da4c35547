package models

import "time"

// SenderRole identifies which side of the bridge authored a message.
type SenderRole string

const (
	SenderUser SenderRole = "user"
	SenderBot  SenderRole = "bot"
)

// BotSenderID is the fixed sender id recorded for channel-originated messages.
const BotSenderID = "konecte-bot"

// Valid reports whether the role is one of the known values.
func (r SenderRole) Valid() bool {
	return r == SenderUser || r == SenderBot
}

// Message is one entry in a conversation log. Messages are append-only:
// after creation only Status may change, and only through the forward
// transitions defined in status.go.
type Message struct {
	ID              string        `json:"id"` // ULID
	ConversationKey string        `json:"conversation_key"`
	SenderRole      SenderRole    `json:"sender_role"`
	SenderID        string        `json:"sender_id"`
	Text            string        `json:"text"`
	Status          MessageStatus `json:"status"`
	Seq             int64         `json:"seq"` // per-conversation insertion order, breaks created_at ties
	CreatedAt       time.Time     `json:"created_at"`
}
