package session

import (
	"context"
	"testing"
	"time"

	"github.com/dropDatabas3/guildgate/internal/cache"
)

func TestRevokerMarksSession(t *testing.T) {
	r := NewRevoker(cache.NewMemory(0))
	ctx := context.Background()

	tok, err := Issue(secret, RoleAdmin, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := Parse(secret, tok)
	if err != nil {
		t.Fatal(err)
	}
	if claims.ID == "" {
		t.Fatal("issued session must carry a jti")
	}

	if r.IsRevoked(ctx, claims.ID) {
		t.Fatal("fresh session reported revoked")
	}
	if err := r.Revoke(ctx, claims); err != nil {
		t.Fatal(err)
	}
	if !r.IsRevoked(ctx, claims.ID) {
		t.Fatal("revoked session not detected")
	}
}

func TestRevokerNilSafe(t *testing.T) {
	var r *Revoker
	if err := r.Revoke(context.Background(), &Claims{}); err != nil {
		t.Fatal(err)
	}
	if r.IsRevoked(context.Background(), "x") {
		t.Fatal("nil revoker must never report revoked")
	}
}
