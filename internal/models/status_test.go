package models

import "testing"

func TestCanTransitionForwardOnly(t *testing.T) {
	legal := []struct{ from, to MessageStatus }{
		{StatusPendingToChannel, StatusDeliveredToUser},
		{StatusPendingToChannel, StatusFailed},
	}
	for _, tc := range legal {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be legal", tc.from, tc.to)
		}
	}

	illegal := []struct{ from, to MessageStatus }{
		{StatusDeliveredToUser, StatusPendingToChannel}, // backwards
		{StatusFailed, StatusDeliveredToUser},           // out of terminal
		{StatusDeliveredToWeb, StatusFailed},            // out of terminal
		{StatusPendingToChannel, StatusPendingToChannel}, // self
		{StatusPendingToChannel, StatusDeliveredToWeb},   // not an edge: replies are new messages
	}
	for _, tc := range illegal {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []MessageStatus{StatusDeliveredToUser, StatusDeliveredToWeb, StatusFailed} {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	if StatusPendingToChannel.Terminal() {
		t.Error("pending_to_channel must not be terminal")
	}
}

func TestStatusValid(t *testing.T) {
	if MessageStatus("shipped").Valid() {
		t.Error("unknown status must not validate")
	}
	if !StatusPendingToChannel.Valid() {
		t.Error("pending_to_channel must validate")
	}
}
