package core

import "time"

// VerifiedUser es el registro durable de una verificación OAuth.
// A lo sumo un registro vivo por ExternalID: re-verificar pisa los campos
// mutables y renueva VerifiedAt, nunca crea una fila duplicada.
type VerifiedUser struct {
	ExternalID    string    // Discord user id, clave estable
	Username      string
	Discriminator string
	AvatarRef     string

	// AccessToken es secreto: requerido para la reconciliación, nunca debe
	// salir por la API sin el rol owner (ver export).
	AccessToken  string
	RefreshToken string

	VerifiedAt time.Time

	// Procedencia opcional: a través de qué guild se verificó el usuario.
	OriginGuildID   string
	OriginGuildName string
}

// HasAccessToken reporta si el registro sirve para un membership upsert.
func (u VerifiedUser) HasAccessToken() bool {
	return u.AccessToken != ""
}

// Sanitized devuelve una copia sin secretos, apta para respuestas admin.
func (u VerifiedUser) Sanitized() VerifiedUser {
	u.AccessToken = ""
	u.RefreshToken = ""
	return u
}

// Stats agrega conteos sobre la tabla de verificados.
type Stats struct {
	Total     int
	Last24h   int
	WithToken int
}
