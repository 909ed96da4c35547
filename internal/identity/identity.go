// Package identity resolves between the platform's user ids and the
// messaging channel's phone numbers. The bridge treats resolution as a
// hard precondition: ErrNotFound terminates the operation in progress.
package identity

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no mapping exists for the given id or phone.
var ErrNotFound = errors.New("identity: no mapping found")

// Resolver is the consumed interface over the platform's user directory.
type Resolver interface {
	// ResolveUserPhone returns the phone number associated with userID.
	ResolveUserPhone(ctx context.Context, userID string) (string, error)
	// ResolveUserByPhone returns the user id associated with phone.
	ResolveUserByPhone(ctx context.Context, phone string) (string, error)
}
