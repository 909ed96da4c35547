package models

// MessageStatus tracks how far a message has travelled across the bridge.
type MessageStatus string

const (
	// StatusPendingToChannel: user-authored, logged and queued, not yet
	// picked up by the channel agent.
	StatusPendingToChannel MessageStatus = "pending_to_channel"
	// StatusDeliveredToUser: reached the WhatsApp side. Also the initial
	// status of bot replies, which arrive already delivered.
	StatusDeliveredToUser MessageStatus = "delivered_to_user"
	// StatusDeliveredToWeb: bot-authored and pushed to the web side.
	StatusDeliveredToWeb MessageStatus = "delivered_to_web"
	// StatusFailed: the agent gave up forwarding permanently.
	StatusFailed MessageStatus = "failed"
)

// Valid reports whether the status is one of the known values.
func (s MessageStatus) Valid() bool {
	switch s {
	case StatusPendingToChannel, StatusDeliveredToUser, StatusDeliveredToWeb, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s MessageStatus) Terminal() bool {
	return s == StatusDeliveredToUser || s == StatusDeliveredToWeb || s == StatusFailed
}

// transitions holds every legal forward edge of the status state machine.
var transitions = map[MessageStatus][]MessageStatus{
	StatusPendingToChannel: {StatusDeliveredToUser, StatusFailed},
}

// CanTransition reports whether from -> to is a legal status transition.
// Anything not listed (backwards moves, self moves, moves out of a
// terminal state) is illegal and must be rejected by the caller.
func CanTransition(from, to MessageStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
