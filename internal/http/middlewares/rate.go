package middlewares

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/dropDatabas3/guildgate/internal/observability/logger"
	"github.com/dropDatabas3/guildgate/internal/rate"
)

// clientIP extrae la IP del cliente, considerando proxies.
func clientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// RateKeyFunc define cómo generar la clave de rate limiting.
type RateKeyFunc func(r *http.Request) string

// IPRateKey genera la clave por IP sola.
func IPRateKey(r *http.Request) string { return clientIP(r) }

// IPPathRateKey genera la clave por IP + path, para separar límites por
// endpoint sin depender del body.
func IPPathRateKey(r *http.Request) string {
	return clientIP(r) + "|" + r.URL.Path
}

// WithRateLimit corta con 429 cuando el limiter agota la ventana para la
// clave. Si el limiter falla (p.ej. redis caído) deja pasar: rate limiting
// nunca tira el servicio.
func WithRateLimit(limiter rate.Limiter, key RateKeyFunc) Middleware {
	if key == nil {
		key = IPPathRateKey
	}
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := limiter.Allow(r.Context(), key(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter unavailable", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				retry := int(res.RetryAfter.Seconds())
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error":             "rate_limited",
					"error_description": "too many requests",
					"retry_after":       retry,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
