package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/guildgate/internal/email"
	"github.com/dropDatabas3/guildgate/internal/observability/logger"
	"github.com/dropDatabas3/guildgate/internal/reconcile"
	"github.com/dropDatabas3/guildgate/internal/store/core"
)

// PullHandler dispara una corrida de reconciliación y responde el reporte.
type PullHandler struct {
	Repo       core.Repository
	Reconciler *reconcile.Reconciler
	Mailer     *email.ReportMailer

	// DefaultRoleID se usa cuando el request no trae role_id.
	DefaultRoleID string
	// BatchTimeout acota la corrida completa; 0 = sin límite.
	BatchTimeout time.Duration
}

type pullRequest struct {
	TargetGuildID string   `json:"target_guild_id"`
	UserIDs       []string `json:"user_ids,omitempty"`
	RoleID        string   `json:"role_id,omitempty"`
}

func (h *PullHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req pullRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	guildID := strings.TrimSpace(req.TargetGuildID)
	if guildID == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "target_guild_id requerido", 1401)
		return
	}

	// user_ids omitido = todos los verificados, en orden verified_at desc.
	var (
		users []core.VerifiedUser
		err   error
	)
	if len(req.UserIDs) > 0 {
		users, err = h.Repo.ListByExternalIDs(r.Context(), req.UserIDs)
	} else {
		users, err = h.Repo.List(r.Context())
	}
	if err != nil {
		logger.From(r.Context()).Error("pull: load users failed", logger.Err(err))
		WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo cargar usuarios", 1402)
		return
	}

	roleID := strings.TrimSpace(req.RoleID)
	if roleID == "" {
		roleID = h.DefaultRoleID
	}

	ctx := r.Context()
	if h.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.BatchTimeout)
		defer cancel()
	}

	ObserveReconcileRun()
	rep, err := h.Reconciler.Run(ctx, guildID, users, roleID)
	if err != nil {
		switch {
		case errors.Is(err, reconcile.ErrEmptyGuildID):
			WriteError(w, http.StatusBadRequest, "invalid_request", "target_guild_id requerido", 1401)
		case errors.Is(err, reconcile.ErrNoBotAccess):
			WriteError(w, http.StatusServiceUnavailable, "bot_unavailable", "sin credenciales de bot", 1403)
		default:
			logger.From(r.Context()).Error("pull: run failed", logger.Err(err))
			WriteError(w, http.StatusInternalServerError, "server_error", "la corrida falló", 1404)
		}
		return
	}

	// El mail del reporte no bloquea la respuesta.
	if h.Mailer != nil {
		go h.Mailer.SendReport(rep)
	}

	WriteJSON(w, http.StatusOK, rep)
}
