package konecte

import "time"

// Message statuses as the server reports them.
const (
	StatusPendingToChannel = "pending_to_channel"
	StatusDeliveredToUser  = "delivered_to_user"
	StatusDeliveredToWeb   = "delivered_to_web"
	StatusFailed           = "failed"
)

// Sender roles.
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// Message is one conversation log entry as returned by the server.
type Message struct {
	ID              string    `json:"id"`
	ConversationKey string    `json:"conversation_key"`
	SenderRole      string    `json:"sender_role"`
	SenderID        string    `json:"sender_id"`
	Text            string    `json:"text"`
	Status          string    `json:"status"`
	Seq             int64     `json:"seq"`
	CreatedAt       time.Time `json:"created_at"`
}

// PendingOutbound is a queued entry awaiting the channel agent.
type PendingOutbound struct {
	ID                   string     `json:"id"`
	TargetChannelAddress string     `json:"target_channel_address"`
	OriginUserID         string     `json:"origin_user_id"`
	OriginPhone          string     `json:"origin_phone"`
	Text                 string     `json:"text"`
	CreatedAt            time.Time  `json:"created_at"`
	ClaimedAt            *time.Time `json:"claimed_at,omitempty"`
}

// SendResult is the server's response to a web send.
type SendResult struct {
	Message  Message         `json:"message"`
	Outbound PendingOutbound `json:"outbound"`
}
