package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/dropDatabas3/guildgate/internal/observability/logger"
	"github.com/dropDatabas3/guildgate/internal/verify"
)

// Resultados del callback; también son el valor de ?error= en el redirect
// de fallo y la label de la métrica.
const (
	resultSuccess       = "success"
	resultMissingCode   = "missing_code"
	resultTokenExchange = "token_exchange"
	resultUserFetch     = "user_fetch"
	resultServerError   = "server_error"
)

// CallbackHandler atiende el redirect del provider OAuth. Nunca devuelve
// tokens al browser: siempre redirige al frontend con el resultado en la
// query.
type CallbackHandler struct {
	Recorder    *verify.Recorder
	FrontendURL string
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := strings.TrimSpace(q.Get("code"))
	if code == "" {
		h.fail(w, r, resultMissingCode)
		return
	}

	var origin *verify.OriginGuild
	if gid := strings.TrimSpace(q.Get("guild_id")); gid != "" {
		origin = &verify.OriginGuild{ID: gid, Name: strings.TrimSpace(q.Get("guild_name"))}
	}

	u, err := h.Recorder.Record(r.Context(), code, "", origin)
	if err != nil {
		var te *verify.TokenExchangeError
		var ie *verify.IdentityFetchError
		switch {
		case errors.As(err, &te):
			h.fail(w, r, resultTokenExchange)
		case errors.As(err, &ie):
			h.fail(w, r, resultUserFetch)
		default:
			logger.From(r.Context()).Error("verification failed", logger.Err(err))
			h.fail(w, r, resultServerError)
		}
		return
	}

	ObserveVerification(resultSuccess)
	h.redirect(w, r, "/verification-success?user="+url.QueryEscape(u.Username))
}

func (h *CallbackHandler) fail(w http.ResponseWriter, r *http.Request, kind string) {
	ObserveVerification(kind)
	logger.From(r.Context()).Warn("verification rejected", logger.String("reason", kind))
	h.redirect(w, r, "/verification-failed?error="+url.QueryEscape(kind))
}

func (h *CallbackHandler) redirect(w http.ResponseWriter, r *http.Request, path string) {
	base := strings.TrimRight(h.FrontendURL, "/")
	http.Redirect(w, r, base+path, http.StatusFound)
}
