// Package http arma la superficie HTTP del servicio: callback de
// verificación, endpoints admin y los endpoints de sistema.
package http

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/guildgate/internal/http/middlewares"
	"github.com/dropDatabas3/guildgate/internal/rate"
	"github.com/dropDatabas3/guildgate/internal/security/session"
)

// RouterDeps agrupa los handlers ya construidos y las piezas transversales.
type RouterDeps struct {
	Callback  *CallbackHandler
	Login     *LoginHandler
	Logout    *LogoutHandler
	Users     *UsersHandler
	Pull      *PullHandler
	Stats     *StatsHandler
	CheckUser *CheckUserHandler
	Readyz    *ReadyzHandler

	Metrics stdhttp.Handler

	JWTSecret []byte

	// Sessions permite invalidar sesiones antes de su exp; nil = sin logout.
	Sessions *session.Revoker

	// Limiters por superficie; nil = sin límite.
	CallbackLimiter rate.Limiter
	LoginLimiter    rate.Limiter

	CORSAllowedOrigins []string
}

// NewRouter arma el router completo con la cadena base:
// request-id -> metrics -> logging -> cors.
func NewRouter(d RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(
		middlewares.WithRequestID(),
		WithMetrics,
		middlewares.WithLogging(),
		middlewares.WithCORS(d.CORSAllowedOrigins),
	)

	r.Get("/healthz", Healthz)
	r.Method(stdhttp.MethodGet, "/readyz", d.Readyz)
	if d.Metrics != nil {
		r.Method(stdhttp.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.With(middlewares.WithRateLimit(d.CallbackLimiter, middlewares.IPRateKey)).
			Method(stdhttp.MethodGet, "/verify/callback", d.Callback)

		r.With(middlewares.WithRateLimit(d.CallbackLimiter, middlewares.IPPathRateKey)).
			Method(stdhttp.MethodGet, "/check-user/{externalID}", d.CheckUser)

		r.Route("/admin", func(r chi.Router) {
			r.With(middlewares.WithRateLimit(d.LoginLimiter, middlewares.IPPathRateKey)).
				Method(stdhttp.MethodPost, "/login", d.Login)

			// Operaciones que alcanzan con rol admin (owner las cubre).
			r.Group(func(r chi.Router) {
				r.Use(middlewares.RequireRole(d.JWTSecret, session.RoleAdmin, d.Sessions))
				r.Method(stdhttp.MethodPost, "/logout", d.Logout)
				r.Method(stdhttp.MethodGet, "/verified-users", stdhttp.HandlerFunc(d.Users.List))
				r.Method(stdhttp.MethodPost, "/pull", d.Pull)
				r.Method(stdhttp.MethodGet, "/stats", d.Stats)
			})

			// Operaciones exclusivas de owner: tocan o exponen tokens.
			r.Group(func(r chi.Router) {
				r.Use(middlewares.RequireRole(d.JWTSecret, session.RoleOwner, d.Sessions))
				r.Method(stdhttp.MethodGet, "/verified-users/export", stdhttp.HandlerFunc(d.Users.Export))
				r.Method(stdhttp.MethodDelete, "/verified-users/{externalID}", stdhttp.HandlerFunc(d.Users.Delete))
			})
		})
	})

	return r
}
