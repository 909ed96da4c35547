package identity

import (
	"context"
	"errors"
	"testing"
)

func TestStaticResolverBothDirections(t *testing.T) {
	r := NewStaticResolver(map[string]string{"u1": "+560000001"})
	ctx := context.Background()

	phone, err := r.ResolveUserPhone(ctx, "u1")
	if err != nil || phone != "+560000001" {
		t.Fatalf("got %q, %v", phone, err)
	}

	userID, err := r.ResolveUserByPhone(ctx, "+560000001")
	if err != nil || userID != "u1" {
		t.Fatalf("got %q, %v", userID, err)
	}

	if _, err := r.ResolveUserPhone(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := r.ResolveUserByPhone(ctx, "+560000099"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestParseStaticMap(t *testing.T) {
	m := ParseStaticMap("u1=+560000001, u2=+560000002,broken,=+560000003")
	if len(m) != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", len(m), m)
	}
	if m["u1"] != "+560000001" || m["u2"] != "+560000002" {
		t.Fatalf("unexpected map: %v", m)
	}
}
