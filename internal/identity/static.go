package identity

import (
	"context"
	"strings"
	"sync"
)

// StaticResolver resolves from a fixed user-id -> phone map. Used in
// development and tests where no directory service is running.
type StaticResolver struct {
	mu      sync.RWMutex
	byUser  map[string]string
	byPhone map[string]string
}

// NewStaticResolver builds a resolver from a user-id -> phone map.
func NewStaticResolver(userPhones map[string]string) *StaticResolver {
	r := &StaticResolver{
		byUser:  make(map[string]string, len(userPhones)),
		byPhone: make(map[string]string, len(userPhones)),
	}
	for userID, phone := range userPhones {
		r.byUser[userID] = phone
		r.byPhone[phone] = userID
	}
	return r
}

// ParseStaticMap parses "user1=+56911111111,user2=+56922222222" into the
// map form NewStaticResolver expects. Malformed entries are skipped.
func ParseStaticMap(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		userID, phone, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || userID == "" || phone == "" {
			continue
		}
		out[userID] = phone
	}
	return out
}

// Add registers or replaces a mapping.
func (r *StaticResolver) Add(userID, phone string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[userID] = phone
	r.byPhone[phone] = userID
}

// ResolveUserPhone returns the phone for userID or ErrNotFound.
func (r *StaticResolver) ResolveUserPhone(_ context.Context, userID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	phone, ok := r.byUser[userID]
	if !ok {
		return "", ErrNotFound
	}
	return phone, nil
}

// ResolveUserByPhone returns the user id for phone or ErrNotFound.
func (r *StaticResolver) ResolveUserByPhone(_ context.Context, phone string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.byPhone[phone]
	if !ok {
		return "", ErrNotFound
	}
	return userID, nil
}
