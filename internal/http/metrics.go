package http

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricsOnce sync.Once
	metricsErr  error

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInflight        *prometheus.GaugeVec

	// Domain metrics
	verificationsTotal     *prometheus.CounterVec
	reconcileRunsTotal     prometheus.Counter
	reconcileOutcomesTotal *prometheus.CounterVec
)

// RegisterMetrics inicializa las métricas y devuelve el handler para /metrics.
func RegisterMetrics(registry prometheus.Registerer) (http.Handler, error) {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	metricsOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Número total de requests procesadas",
		}, []string{"method", "path", "status"})

		httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latencia de los requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})

		httpInflight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Requests en vuelo por método y ruta",
		}, []string{"method", "path"})

		verificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verifications_total",
			Help: "Callbacks de verificación por resultado",
		}, []string{"result"}) // result: success|missing_code|token_exchange|user_fetch|server_error

		reconcileRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reconcile_runs_total",
			Help: "Corridas de reconciliación ejecutadas",
		})

		reconcileOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reconcile_outcomes_total",
			Help: "Outcomes de reconciliación por status",
		}, []string{"status"})

		for _, c := range []prometheus.Collector{
			httpRequestsTotal, httpRequestDuration, httpInflight,
			verificationsTotal, reconcileRunsTotal, reconcileOutcomesTotal,
		} {
			if err := registerCollector(registry, c); err != nil {
				metricsErr = err
				return
			}
		}
	})
	if metricsErr != nil {
		return nil, metricsErr
	}

	// Gatherer global por compatibilidad: las métricas se registran allí.
	return promhttp.Handler(), nil
}

// ObserveVerification registra el resultado de un callback de verificación.
func ObserveVerification(result string) {
	if verificationsTotal != nil {
		verificationsTotal.WithLabelValues(result).Inc()
	}
}

// ObserveReconcileRun registra el inicio de una corrida.
func ObserveReconcileRun() {
	if reconcileRunsTotal != nil {
		reconcileRunsTotal.Inc()
	}
}

// ObserveReconcileOutcome registra un outcome; se engancha al reconciler
// como hook por status.
func ObserveReconcileOutcome(status string) {
	if reconcileOutcomesTotal != nil {
		reconcileOutcomesTotal.WithLabelValues(status).Inc()
	}
}

// WithMetrics instrumenta requests HTTP (contadores, latencia, inflight).
func WithMetrics(next http.Handler) http.Handler {
	if next == nil {
		return nil
	}
	if httpRequestsTotal == nil || httpRequestDuration == nil || httpInflight == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := strings.ToUpper(r.Method)
		pathLabel := normalizePath(r.URL.Path)

		httpInflight.WithLabelValues(method, pathLabel).Inc()
		start := time.Now()

		rec := &metricsRecorder{ResponseWriter: w}
		defer func() {
			httpInflight.WithLabelValues(method, pathLabel).Dec()
			httpRequestDuration.WithLabelValues(method, pathLabel).Observe(time.Since(start).Seconds())

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			httpRequestsTotal.WithLabelValues(method, pathLabel, strconv.Itoa(status)).Inc()
		}()

		next.ServeHTTP(rec, r)
	})
}

type metricsRecorder struct {
	http.ResponseWriter
	status int
}

func (m *metricsRecorder) WriteHeader(code int) {
	if m.status == 0 {
		m.status = code
	}
	m.ResponseWriter.WriteHeader(code)
}

func (m *metricsRecorder) Write(b []byte) (int, error) {
	if m.status == 0 {
		m.status = http.StatusOK
	}
	return m.ResponseWriter.Write(b)
}

// normalizePath colapsa los segmentos variables para acotar la cardinalidad
// de las labels.
func normalizePath(p string) string {
	switch {
	case strings.HasPrefix(p, "/v1/admin/verified-users/") && p != "/v1/admin/verified-users/export":
		return "/v1/admin/verified-users/{externalID}"
	case strings.HasPrefix(p, "/v1/check-user/"):
		return "/v1/check-user/{externalID}"
	}
	return p
}

func registerCollector(reg prometheus.Registerer, collector prometheus.Collector) error {
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}
