// Package reconcile alinea la membresía de un guild con el registro de
// usuarios verificados: por cada usuario con token intenta el alta
// idempotente y, si el provider responde conflicto, cae al asignado de rol
// con credenciales de bot.
package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropDatabas3/guildgate/internal/audit"
	"github.com/dropDatabas3/guildgate/internal/discord"
	"github.com/dropDatabas3/guildgate/internal/events"
	"github.com/dropDatabas3/guildgate/internal/observability/logger"
	"github.com/dropDatabas3/guildgate/internal/store/core"
)

// MembershipAPI es lo que el reconciler necesita del provider.
// *discord.Client la satisface.
type MembershipAPI interface {
	AddGuildMember(ctx context.Context, guildID, userID, accessToken string, roleIDs []string) (discord.AddResult, error)
	AddMemberRole(ctx context.Context, guildID, userID, roleID string) error
}

var (
	ErrEmptyGuildID = errors.New("reconcile: empty target guild id")
	ErrNoBotAccess  = errors.New("reconcile: membership provider has no bot credentials")
)

// BotChecker lo implementan los providers que pueden anticipar si tienen
// credenciales de bot, para fallar la corrida antes del primer usuario.
type BotChecker interface {
	HasBotToken() bool
}

type Reconciler struct {
	api      MembershipAPI
	pacer    Pacer
	producer *events.Producer

	// onOutcome se invoca por cada outcome emitido (métricas); puede ser nil.
	onOutcome func(Status)

	now func() time.Time
}

func New(api MembershipAPI, pacer Pacer, producer *events.Producer, onOutcome func(Status)) *Reconciler {
	if pacer == nil {
		pacer = NewDelayPacer(time.Second)
	}
	return &Reconciler{
		api:       api,
		pacer:     pacer,
		producer:  producer,
		onOutcome: onOutcome,
		now:       time.Now,
	}
}

// Run procesa los usuarios en orden de entrada, en serie. Un fallo por
// usuario nunca aborta el batch; la cancelación del contexto entre usuarios
// devuelve el reporte parcial acumulado hasta ese punto.
func (r *Reconciler) Run(ctx context.Context, guildID string, users []core.VerifiedUser, roleID string) (*Report, error) {
	if guildID == "" {
		return nil, ErrEmptyGuildID
	}
	if bc, ok := r.api.(BotChecker); ok && !bc.HasBotToken() {
		return nil, ErrNoBotAccess
	}

	log := logger.Named("reconcile")
	rep := &Report{
		RunID:     uuid.NewString(),
		GuildID:   guildID,
		StartedAt: r.now().UTC(),
		Requested: len(users),
		Outcomes:  make([]Outcome, 0, len(users)),
	}
	log.Info("run started",
		logger.RunID(rep.RunID),
		logger.GuildID(guildID),
		logger.Int("requested", len(users)),
	)

	for i := range users {
		if i > 0 {
			if err := r.pacer.Wait(ctx); err != nil {
				rep.Partial = true
				break
			}
		}
		if ctx.Err() != nil {
			rep.Partial = true
			break
		}
		r.emit(rep, log, r.reconcileOne(ctx, guildID, &users[i], roleID))
	}

	rep.FinishedAt = r.now().UTC()
	log.Info("run finished",
		logger.RunID(rep.RunID),
		logger.GuildID(guildID),
		logger.Int("succeeded", rep.Succeeded),
		logger.Int("failed", rep.Failed),
		logger.Int("skipped", rep.Skipped),
	)
	audit.Log(ctx, audit.EventReconcileRun, map[string]any{
		"run_id":    rep.RunID,
		"guild_id":  guildID,
		"requested": rep.Requested,
		"succeeded": rep.Succeeded,
		"failed":    rep.Failed,
		"skipped":   rep.Skipped,
		"partial":   rep.Partial,
	})
	r.producer.ReconcileCompleted(ctx, guildID, rep.Requested, rep.Succeeded, rep.Failed, rep.Skipped)
	return rep, nil
}

func (r *Reconciler) emit(rep *Report, log *zap.Logger, o Outcome) {
	rep.append(o)
	if r.onOutcome != nil {
		r.onOutcome(o.Status)
	}
	log.Info("outcome",
		logger.ExternalID(o.ExternalID),
		logger.Outcome(string(o.Status)),
		logger.String("reason", o.Reason),
	)
}

// reconcileOne decide el status de un solo usuario. Nunca retorna error:
// todo fallo queda capturado en el Outcome.
func (r *Reconciler) reconcileOne(ctx context.Context, guildID string, u *core.VerifiedUser, roleID string) Outcome {
	o := Outcome{ExternalID: u.ExternalID, DisplayName: u.Username}

	if !u.HasAccessToken() {
		o.Status = StatusSkipped
		o.Reason = "no access token"
		return o
	}

	var roles []string
	if roleID != "" {
		roles = []string{roleID}
	}

	_, err := r.api.AddGuildMember(ctx, guildID, u.ExternalID, u.AccessToken, roles)
	switch {
	case err == nil:
		// 201 y 204 son éxito idempotente del upsert de membresía.
		o.Status = StatusAdded
		return o

	case isConflict(err):
		// Ya es miembro y el alta fue rechazada: asignado de rol con bot.
		if roleID == "" {
			o.Status = StatusAlreadyMember
			return o
		}
		if rerr := r.api.AddMemberRole(ctx, guildID, u.ExternalID, roleID); rerr != nil {
			o.Status = StatusFailed
			o.Reason = rerr.Error()
			return o
		}
		o.Status = StatusRoleAssigned
		return o

	default:
		// 4xx de permisos, 5xx o fallo de red: sin retry dentro de la
		// corrida, el reason alcanza para re-correr solo ese usuario.
		o.Status = StatusFailed
		o.Reason = err.Error()
		return o
	}
}

func isConflict(err error) bool {
	if ae, ok := discord.AsAPIError(err); ok {
		return ae.IsConflict()
	}
	return false
}
