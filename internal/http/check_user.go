package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/guildgate/internal/observability/logger"
	"github.com/dropDatabas3/guildgate/internal/store/core"
)

// CheckUserHandler responde si un external id está verificado. Pensado para
// el bot: nunca expone tokens, solo identidad pública.
type CheckUserHandler struct {
	Repo core.Repository
}

type checkUserResponse struct {
	Verified   bool       `json:"verified"`
	ExternalID string     `json:"external_id"`
	Username   string     `json:"username,omitempty"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

func (h *CheckUserHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	externalID := chi.URLParam(r, "externalID")
	if externalID == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "external id requerido", 1601)
		return
	}

	u, err := h.Repo.GetByExternalID(r.Context(), externalID)
	if err != nil {
		if core.IsNotFound(err) {
			WriteJSON(w, http.StatusOK, checkUserResponse{Verified: false, ExternalID: externalID})
			return
		}
		logger.From(r.Context()).Error("check user failed",
			logger.ExternalID(externalID),
			logger.Err(err),
		)
		WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo consultar", 1602)
		return
	}

	WriteJSON(w, http.StatusOK, checkUserResponse{
		Verified:   true,
		ExternalID: u.ExternalID,
		Username:   u.Username,
		VerifiedAt: &u.VerifiedAt,
	})
}
