// Package metrics agrupa los collectors Prometheus del servicio: HTTP y
// contadores de dominio (sesiones, scans, credenciales, alertas).
//
// Todos los métodos aceptan receptor nil para que los services funcionen sin
// métricas en tests.
package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInflight        *prometheus.GaugeVec

	sessionsOpened   prometheus.Counter
	sessionsClosed   *prometheus.CounterVec
	scansDenied      *prometheus.CounterVec
	tokensIssued     *prometheus.CounterVec
	verifyFailures   *prometheus.CounterVec
	alertsTotal      *prometheus.CounterVec
	revocationPruned prometheus.Counter
	openSessions     prometheus.Gauge
}

// New crea y registra los collectors. Con reg nil usa un registry propio
// (tests); el servicio pasa prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*Metrics, error) {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{
		gatherer: gatherer,
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Número total de requests procesadas",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latencia de los requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpInflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Requests en vuelo por método y ruta",
		}, []string{"method", "path"}),
		sessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kidplay_watch_sessions_opened_total",
			Help: "Sesiones de reproducción abiertas",
		}),
		sessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kidplay_watch_sessions_closed_total",
			Help: "Sesiones cerradas por motivo",
		}, []string{"reason"}),
		scansDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kidplay_scans_denied_total",
			Help: "Scans rechazados por motivo",
		}, []string{"reason"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kidplay_tokens_issued_total",
			Help: "Credenciales emitidas por tipo",
		}, []string{"kind"}),
		verifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kidplay_token_verify_failures_total",
			Help: "Verificaciones de credenciales fallidas por motivo",
		}, []string{"reason"}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kidplay_alerts_total",
			Help: "Alertas de operador levantadas",
		}, []string{"kind"}),
		revocationPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kidplay_revocation_pruned_total",
			Help: "Entradas del denylist eliminadas por expiración",
		}),
		openSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kidplay_watch_sessions_tracked",
			Help: "Sesiones con watchdog activo",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.httpRequestsTotal, m.httpRequestDuration, m.httpInflight,
		m.sessionsOpened, m.sessionsClosed, m.scansDenied, m.tokensIssued,
		m.verifyFailures, m.alertsTotal, m.revocationPruned, m.openSessions,
	} {
		if err := registerCollector(reg, c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler expone /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsOpened.Inc()
}

func (m *Metrics) SessionClosed(reason string) {
	if m == nil {
		return
	}
	m.sessionsClosed.WithLabelValues(reason).Inc()
}

func (m *Metrics) ScanDenied(reason string) {
	if m == nil {
		return
	}
	m.scansDenied.WithLabelValues(reason).Inc()
}

func (m *Metrics) TokenIssued(kind string) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(kind).Inc()
}

func (m *Metrics) VerifyFailed(reason string) {
	if m == nil {
		return
	}
	m.verifyFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) AlertRaised(kind string) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) RevocationsPruned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.revocationPruned.Add(float64(n))
}

func (m *Metrics) TrackedSessions(delta float64) {
	if m == nil {
		return
	}
	m.openSessions.Add(delta)
}

// WithMetrics instrumenta requests HTTP con métricas Prometheus (contadores, latencia, inflight).
func (m *Metrics) WithMetrics(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := strings.ToUpper(r.Method)
		pathLabel := normalizePath(r.URL.Path)

		m.httpInflight.WithLabelValues(method, pathLabel).Inc()
		start := time.Now()

		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			m.httpInflight.WithLabelValues(method, pathLabel).Dec()
			m.httpRequestDuration.WithLabelValues(method, pathLabel).Observe(time.Since(start).Seconds())

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			m.httpRequestsTotal.WithLabelValues(method, pathLabel, strconv.Itoa(status)).Inc()
		}()

		next.ServeHTTP(rec, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// registerCollector registra el collector en el registry indicado, ignorando duplicados.
func registerCollector(reg prometheus.Registerer, collector prometheus.Collector) error {
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

var uuidSegmentRE = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F-]{4}-[0-9a-fA-F-]{4,}$`)

// normalizePath reemplaza ids por placeholders para acotar la cardinalidad.
func normalizePath(p string) string {
	clean := strings.SplitN(p, "?", 2)[0]
	if clean == "" || clean == "/" {
		return "/"
	}
	segments := strings.Split(strings.TrimPrefix(clean, "/"), "/")
	for i, seg := range segments {
		if uuidSegmentRE.MatchString(seg) {
			segments[i] = ":id"
		}
	}
	return "/" + strings.Join(segments, "/")
}
