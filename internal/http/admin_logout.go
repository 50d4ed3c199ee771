package http

import (
	"net/http"

	"github.com/dropDatabas3/guildgate/internal/audit"
	"github.com/dropDatabas3/guildgate/internal/http/middlewares"
	"github.com/dropDatabas3/guildgate/internal/observability/logger"
	"github.com/dropDatabas3/guildgate/internal/security/session"
)

// LogoutHandler revoca la sesión actual. El token queda inválido de inmediato
// aunque todavía no haya expirado.
type LogoutHandler struct {
	Sessions *session.Revoker
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims := middlewares.GetClaims(r.Context())
	if claims == nil {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "sesión no presente", 1204)
		return
	}
	if err := h.Sessions.Revoke(r.Context(), claims); err != nil {
		logger.From(r.Context()).Error("session revoke failed", logger.Err(err))
		WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo revocar la sesión", 1205)
		return
	}
	audit.Log(r.Context(), audit.EventAdminLogout, map[string]any{
		"role": claims.Role,
		"jti":  claims.ID,
	})
	WriteJSON(w, http.StatusOK, map[string]any{"revoked": true})
}
