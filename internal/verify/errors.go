package verify

import "fmt"

// TokenExchangeError: el provider rechazó el authorization code (expirado,
// reusado, redirect mismatch). No se reintenta: el code es single-use.
type TokenExchangeError struct {
	Cause error
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("verify: token exchange failed: %v", e.Cause)
}

func (e *TokenExchangeError) Unwrap() error { return e.Cause }

// IdentityFetchError: el bearer token recién emitido fue rechazado al
// resolver la identidad.
type IdentityFetchError struct {
	Cause error
}

func (e *IdentityFetchError) Error() string {
	return fmt.Sprintf("verify: identity fetch failed: %v", e.Cause)
}

func (e *IdentityFetchError) Unwrap() error { return e.Cause }
