package http

import (
	"net/http"

	"github.com/dropDatabas3/guildgate/internal/cache"
	"github.com/dropDatabas3/guildgate/internal/observability/logger"
	"github.com/dropDatabas3/guildgate/internal/store/core"
)

// Healthz responde 200 siempre que el proceso esté vivo.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ReadyzHandler chequea las dependencias (store y cache).
type ReadyzHandler struct {
	Repo  core.Repository
	Cache cache.Client
}

func (h *ReadyzHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.Repo.Ping(r.Context()); err != nil {
		logger.From(r.Context()).Warn("readyz: store down", logger.Err(err))
		WriteError(w, http.StatusServiceUnavailable, "not_ready", "store no disponible", 1701)
		return
	}
	if h.Cache != nil {
		if err := h.Cache.Ping(r.Context()); err != nil {
			logger.From(r.Context()).Warn("readyz: cache down", logger.Err(err))
			WriteError(w, http.StatusServiceUnavailable, "not_ready", "cache no disponible", 1702)
			return
		}
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
