package util

import "strings"

// MaskToken reduce un access/refresh token a un prefijo corto para logs.
// Nunca loguear el token completo.
func MaskToken(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "…" + s[len(s)-2:]
}

// MaskLoginKey oculta una login key dejando solo el último bloque visible.
func MaskLoginKey(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4 {
		return "***"
	}
	return "***" + s[len(s)-4:]
}
