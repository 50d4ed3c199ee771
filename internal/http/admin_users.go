package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/guildgate/internal/audit"
	"github.com/dropDatabas3/guildgate/internal/observability/logger"
	"github.com/dropDatabas3/guildgate/internal/store/core"
)

// UsersHandler expone el registro de usuarios verificados a los admins.
type UsersHandler struct {
	Repo core.Repository
}

// List responde la lista sanitizada (sin tokens), orden verified_at desc.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.Repo.List(r.Context())
	if err != nil {
		logger.From(r.Context()).Error("list users failed", logger.Err(err))
		WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo listar", 1301)
		return
	}
	out := make([]core.VerifiedUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Sanitized())
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"users": out,
		"total": len(out),
	})
}

// Export responde la lista completa, tokens incluidos. Solo owner: es la
// única superficie que saca tokens del store.
func (h *UsersHandler) Export(w http.ResponseWriter, r *http.Request) {
	users, err := h.Repo.List(r.Context())
	if err != nil {
		logger.From(r.Context()).Error("export users failed", logger.Err(err))
		WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo exportar", 1302)
		return
	}
	audit.Log(r.Context(), audit.EventUserExport, map[string]any{"total": len(users)})
	WriteJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"total": len(users),
	})
}

// Delete borra un usuario verificado. No tiene efecto en cascada sobre
// membresías ya otorgadas.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	externalID := chi.URLParam(r, "externalID")
	if externalID == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "external id requerido", 1303)
		return
	}

	if err := h.Repo.DeleteByExternalID(r.Context(), externalID); err != nil {
		if core.IsNotFound(err) {
			WriteError(w, http.StatusNotFound, "not_found", "usuario no verificado", 1304)
			return
		}
		logger.From(r.Context()).Error("delete user failed",
			logger.ExternalID(externalID),
			logger.Err(err),
		)
		WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo borrar", 1305)
		return
	}

	audit.Log(r.Context(), audit.EventUserRemoved, map[string]any{"external_id": externalID})
	WriteJSON(w, http.StatusOK, map[string]any{"deleted": externalID})
}
