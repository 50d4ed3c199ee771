// Package session emite y valida los tokens de sesión admin (HS256, vida
// corta). No hay refresh: vencida la sesión se vuelve a presentar la clave.
package session

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleOwner Role = "owner"
)

// AtLeast indica si el rol cubre el privilegio requerido (owner ⊇ admin).
func (r Role) AtLeast(required Role) bool {
	if r == RoleOwner {
		return true
	}
	return r == required
}

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleOwner:
		return Role(s), true
	}
	return "", false
}

var (
	ErrInvalidToken = errors.New("invalid_session")
	ErrInvalidRole  = errors.New("invalid_role")
)

const issuer = "guildgate"

// Claims son las claims de la sesión admin.
type Claims struct {
	Role Role `json:"role"`
	jwtv5.RegisteredClaims
}

// Issue firma un token de sesión con el rol dado.
func Issue(secret []byte, role Role, ttl time.Duration) (string, error) {
	if _, ok := ParseRole(string(role)); !ok {
		return "", ErrInvalidRole
	}
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(secret)
}

// Parse valida firma HS256, iss y exp/nbf, y devuelve las claims.
func Parse(secret []byte, token string) (*Claims, error) {
	var claims Claims
	tok, err := jwtv5.ParseWithClaims(token, &claims, func(*jwtv5.Token) (any, error) {
		return secret, nil
	},
		jwtv5.WithValidMethods([]string{"HS256"}),
		jwtv5.WithIssuer(issuer),
		jwtv5.WithLeeway(30*time.Second),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if _, ok := ParseRole(string(claims.Role)); !ok {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
