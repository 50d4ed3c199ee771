// Package verify orquesta el flujo del OAuth callback: code → token →
// identidad → upsert del registro verificado.
package verify

import (
	"context"
	"time"

	"github.com/dropDatabas3/guildgate/internal/audit"
	"github.com/dropDatabas3/guildgate/internal/discord"
	"github.com/dropDatabas3/guildgate/internal/events"
	"github.com/dropDatabas3/guildgate/internal/observability/logger"
	"github.com/dropDatabas3/guildgate/internal/store/core"
)

// TokenExchanger intercambia un authorization code por tokens.
type TokenExchanger interface {
	ExchangeCode(ctx context.Context, code, redirectURI string) (*discord.TokenResponse, error)
}

// IdentityFetcher resuelve la identidad detrás de un bearer token.
type IdentityFetcher interface {
	CurrentUser(ctx context.Context, accessToken string) (*discord.User, error)
}

// OriginGuild es la procedencia opcional de la verificación.
type OriginGuild struct {
	ID   string
	Name string
}

// Recorder produce exactamente un evento de verificación por callback OK:
// una sola escritura al store en éxito, cero escrituras en cualquier fallo.
type Recorder struct {
	exchanger TokenExchanger
	fetcher   IdentityFetcher
	repo      core.Repository
	producer  *events.Producer // opcional, nil => no-op
	now       func() time.Time
}

func NewRecorder(ex TokenExchanger, f IdentityFetcher, repo core.Repository, producer *events.Producer) *Recorder {
	return &Recorder{
		exchanger: ex,
		fetcher:   f,
		repo:      repo,
		producer:  producer,
		now:       time.Now,
	}
}

// Record implementa recordVerification: secuencia lineal de pasos falibles.
// El VerifiedUser retornado incluye el access token; el handler HTTP no debe
// exponerlo al browser.
func (r *Recorder) Record(ctx context.Context, code, redirectURI string, origin *OriginGuild) (*core.VerifiedUser, error) {
	log := logger.From(ctx).Named("verify")

	tok, err := r.exchanger.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		log.Warn("token exchange rejected", logger.Err(err))
		return nil, &TokenExchangeError{Cause: err}
	}

	du, err := r.fetcher.CurrentUser(ctx, tok.AccessToken)
	if err != nil {
		log.Warn("identity fetch rejected", logger.Err(err))
		return nil, &IdentityFetchError{Cause: err}
	}

	u := &core.VerifiedUser{
		ExternalID:    du.ID,
		Username:      du.Username,
		Discriminator: discriminatorOrZero(du.Discriminator),
		AvatarRef:     du.AvatarURL(),
		AccessToken:   tok.AccessToken,
		RefreshToken:  tok.RefreshToken,
		VerifiedAt:    r.now().UTC(),
	}
	if origin != nil {
		u.OriginGuildID = origin.ID
		u.OriginGuildName = origin.Name
	}

	if err := r.repo.UpsertByExternalID(ctx, u); err != nil {
		log.Error("verified user upsert failed", logger.ExternalID(du.ID), logger.Err(err))
		return nil, err
	}

	log.Info("verification recorded",
		logger.ExternalID(u.ExternalID),
		logger.Username(u.Username),
	)
	audit.Log(ctx, audit.EventVerificationRecorded, map[string]any{
		"external_id": u.ExternalID,
		"username":    u.Username,
	})
	r.producer.UserVerified(ctx, u.ExternalID, u.Username)

	return u, nil
}

func discriminatorOrZero(d string) string {
	if d == "" {
		return "0"
	}
	return d
}
