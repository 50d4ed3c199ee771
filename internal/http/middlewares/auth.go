package middlewares

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dropDatabas3/guildgate/internal/security/session"
)

const (
	roleKey ctxKey = iota + 100
	claimsKey
)

// GetRole devuelve el rol de la sesión autenticada ("" si no hay).
func GetRole(ctx context.Context) session.Role {
	role, _ := ctx.Value(roleKey).(session.Role)
	return role
}

// GetClaims devuelve las claims de la sesión autenticada (nil si no hay).
func GetClaims(ctx context.Context) *session.Claims {
	claims, _ := ctx.Value(claimsKey).(*session.Claims)
	return claims
}

// SessionRevocations consulta si un jti fue revocado (logout).
type SessionRevocations interface {
	IsRevoked(ctx context.Context, jti string) bool
}

// RequireRole valida el Bearer token de sesión y exige al menos el rol dado.
// 401 sin token, con token inválido o revocado; 403 con rol insuficiente.
func RequireRole(secret []byte, required session.Role, revoked SessionRevocations) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			claims, err := session.Parse(secret, raw)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "invalid session")
				return
			}
			if revoked != nil && revoked.IsRevoked(r.Context(), claims.ID) {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "session revoked")
				return
			}
			if !claims.Role.AtLeast(required) {
				writeAuthError(w, http.StatusForbidden, "forbidden", "insufficient privileges")
				return
			}
			ctx := context.WithValue(r.Context(), roleKey, claims.Role)
			ctx = context.WithValue(ctx, claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, status int, code, desc string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":             code,
		"error_description": desc,
	})
}
