package session

import (
	"context"
	"time"

	"github.com/dropDatabas3/guildgate/internal/cache"
)

const revokedPrefix = "session:revoked:"

// Revoker marca sesiones como revocadas en el cache. Como los tokens son de
// vida corta, alcanza con recordar el jti hasta su exp; no hace falta estado
// durable.
type Revoker struct {
	c cache.Client
}

func NewRevoker(c cache.Client) *Revoker {
	return &Revoker{c: c}
}

// Revoke invalida la sesión de las claims dadas hasta que expire sola.
func (r *Revoker) Revoke(ctx context.Context, claims *Claims) error {
	if r == nil || r.c == nil || claims == nil || claims.ID == "" {
		return nil
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		if rem := time.Until(claims.ExpiresAt.Time); rem > ttl {
			ttl = rem
		}
	}
	return r.c.Set(ctx, revokedPrefix+claims.ID, "1", ttl)
}

// IsRevoked responde si el jti fue revocado. Ante error de cache se asume no
// revocado: la sesión sigue acotada por su exp.
func (r *Revoker) IsRevoked(ctx context.Context, jti string) bool {
	if r == nil || r.c == nil || jti == "" {
		return false
	}
	_, err := r.c.Get(ctx, revokedPrefix+jti)
	return err == nil
}
