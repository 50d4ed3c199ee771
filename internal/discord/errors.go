package discord

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError preserva status y cuerpo de una respuesta no exitosa del provider.
// El texto se guarda verbatim: el operador lo necesita para diagnosticar
// fallas por usuario en el reporte de reconciliación.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("discord: status %d", e.Status)
	}
	return fmt.Sprintf("discord: status %d: %s", e.Status, e.Body)
}

// IsConflict: la relación de membership ya existe y el provider rechazó el
// upsert. Dispara el fallback de asignación de rol con credenciales de bot.
func (e *APIError) IsConflict() bool {
	return e.Status == http.StatusConflict
}

// IsTransient: 5xx, candidato a re-ejecución manual (nunca retry automático).
func (e *APIError) IsTransient() bool {
	return e.Status >= 500
}

// AsAPIError extrae un *APIError de una cadena de errores.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
