package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dropDatabas3/guildgate/internal/cache"
	"github.com/dropDatabas3/guildgate/internal/observability/logger"
	"github.com/dropDatabas3/guildgate/internal/store/core"
)

const (
	statsCacheKey = "stats:verified_users"
	statsCacheTTL = 60 * time.Second
)

// StatsHandler responde agregados del registro, cacheados 60s.
type StatsHandler struct {
	Repo  core.Repository
	Cache cache.Client
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Cache != nil {
		if raw, err := h.Cache.Get(r.Context(), statsCacheKey); err == nil {
			var st core.Stats
			if json.Unmarshal([]byte(raw), &st) == nil {
				WriteJSON(w, http.StatusOK, st)
				return
			}
		}
	}

	st, err := h.Repo.Stats(r.Context(), time.Now().UTC())
	if err != nil {
		logger.From(r.Context()).Error("stats failed", logger.Err(err))
		WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo calcular stats", 1501)
		return
	}

	if h.Cache != nil {
		if b, err := json.Marshal(st); err == nil {
			_ = h.Cache.Set(r.Context(), statsCacheKey, string(b), statsCacheTTL)
		}
	}
	WriteJSON(w, http.StatusOK, st)
}
