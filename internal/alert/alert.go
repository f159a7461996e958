// Package alert levanta alertas de operador: degradaciones que no deben
// bloquear al usuario pero que alguien tiene que mirar (por ejemplo, el
// denylist de credenciales inaccesible).
package alert

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/kidplay/internal/metrics"
	"github.com/dropDatabas3/kidplay/internal/observability/logger"
)

// Kinds conocidos.
const (
	KindRevocationUnavailable = "revocation_check_unavailable"
	KindLedgerCloseFailed     = "ledger_close_failed"
)

// Alert es una alerta de operador.
type Alert struct {
	Kind   string
	Detail string
	At     time.Time
}

// Sink recibe las alertas que pasan el throttle.
type Sink interface {
	Notify(ctx context.Context, a Alert) error
}

// Alerter loguea siempre a nivel Error y cuenta en métricas; los sinks
// reciben como máximo una alerta por kind cada Throttle.
type Alerter struct {
	Throttle time.Duration

	metrics *metrics.Metrics
	sinks   []Sink
	now     func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

func New(m *metrics.Metrics, throttle time.Duration, sinks ...Sink) *Alerter {
	if throttle <= 0 {
		throttle = 5 * time.Minute
	}
	return &Alerter{
		Throttle: throttle,
		metrics:  m,
		sinks:    sinks,
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
}

// Raise nunca falla: los errores de los sinks se loguean.
func (a *Alerter) Raise(ctx context.Context, al Alert) {
	if a == nil {
		return
	}
	if al.At.IsZero() {
		al.At = a.now()
	}
	log := logger.From(ctx).With(logger.Component("alert"), logger.Kind(al.Kind))
	log.Error("operator alert", logger.String("detail", al.Detail))
	a.metrics.AlertRaised(al.Kind)

	if !a.admit(al) {
		return
	}
	for _, s := range a.sinks {
		if err := s.Notify(ctx, al); err != nil {
			log.Warn("alert sink failed", logger.Err(err))
		}
	}
}

func (a *Alerter) admit(al Alert) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if prev, ok := a.last[al.Kind]; ok && al.At.Sub(prev) < a.Throttle {
		return false
	}
	a.last[al.Kind] = al.At
	return true
}

// Recorder guarda en memoria las alertas recibidas.
type Recorder struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *Recorder) Notify(_ context.Context, a Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

// Alerts devuelve una copia.
func (r *Recorder) Alerts() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Alert, len(r.alerts))
	copy(out, r.alerts)
	return out
}
