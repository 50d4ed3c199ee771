package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/guildgate/internal/audit"
	"github.com/dropDatabas3/guildgate/internal/observability/logger"
	"github.com/dropDatabas3/guildgate/internal/security/loginkey"
	"github.com/dropDatabas3/guildgate/internal/security/session"
	"github.com/dropDatabas3/guildgate/internal/util"
)

// LoginKey es una clave admin configurada: hash argon2id + rol asociado.
type LoginKey struct {
	KeyHash string
	Role    session.Role
}

// LoginHandler cambia una login key por un token de sesión de vida corta.
type LoginHandler struct {
	Keys       []LoginKey
	JWTSecret  []byte
	SessionTTL time.Duration
}

type loginRequest struct {
	LoginKey string `json:"login_key"`
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	key := strings.TrimSpace(req.LoginKey)
	if key == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "login_key requerido", 1201)
		return
	}

	// Se verifica contra todos los hashes configurados; argon2id hace el
	// costo por intento, el rate limit hace el resto.
	for _, lk := range h.Keys {
		if !loginkey.Verify(key, lk.KeyHash) {
			continue
		}
		tok, err := session.Issue(h.JWTSecret, lk.Role, h.SessionTTL)
		if err != nil {
			logger.From(r.Context()).Error("session issue failed", logger.Err(err))
			WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo emitir la sesión", 1202)
			return
		}
		audit.Log(r.Context(), audit.EventAdminLogin, map[string]any{
			"role": lk.Role,
			"key":  util.MaskLoginKey(key),
		})
		WriteJSON(w, http.StatusOK, map[string]any{
			"token":      tok,
			"role":       lk.Role,
			"expires_in": int(h.SessionTTL.Seconds()),
		})
		return
	}

	logger.From(r.Context()).Warn("admin login rejected")
	WriteError(w, http.StatusUnauthorized, "invalid_login_key", "clave inválida", 1203)
}
