// Package heartbeat vigila las sesiones abiertas: un watchdog por sesión que
// se reprograma en cada heartbeat y la cierra por timeout si el cliente calla.
package heartbeat

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/kidplay/internal/metrics"
	"github.com/dropDatabas3/kidplay/internal/observability/logger"
)

// Closer cierra una sesión por timeout. Lo implementa el ledger, que vuelve
// a verificar el silencio contra storage antes de cerrar.
type Closer interface {
	CloseTimedOut(ctx context.Context, sessionID string, now time.Time) error
}

type Config struct {
	// Multiplier: ventana = Multiplier × intervalo declarado.
	Multiplier      float64
	MinInterval     time.Duration
	MaxInterval     time.Duration
	DefaultInterval time.Duration
	// Tick es el margen entre el fin de la ventana y el disparo del watchdog.
	Tick time.Duration
	// RetryDelay reprograma un cierre que falló (storage caído).
	RetryDelay   time.Duration
	CloseTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Multiplier <= 0 {
		c.Multiplier = 2.5
	}
	if c.MinInterval <= 0 {
		c.MinInterval = 30 * time.Second
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 120 * time.Second
	}
	if c.MaxInterval < c.MinInterval {
		c.MaxInterval = c.MinInterval
	}
	if c.DefaultInterval <= 0 {
		c.DefaultInterval = 60 * time.Second
	}
	if c.Tick <= 0 {
		c.Tick = time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = 10 * time.Second
	}
	return c
}

type watch struct {
	window time.Duration
	last   time.Time
	timer  Timer
	gen    uint64
}

// Supervisor mantiene un timer por sesión trackeada. Nunca acumula timers:
// cada Touch reemplaza el anterior.
type Supervisor struct {
	cfg     Config
	clock   Clock
	metrics *metrics.Metrics

	mu      sync.Mutex
	closer  Closer
	watches map[string]*watch
	gen     uint64
	stopped bool
}

func NewSupervisor(cfg Config, clock Clock, m *metrics.Metrics) *Supervisor {
	if clock == nil {
		clock = RealClock{}
	}
	return &Supervisor{
		cfg:     cfg.withDefaults(),
		clock:   clock,
		metrics: m,
		watches: make(map[string]*watch),
	}
}

// Bind conecta el closer (el ledger). Se llama una vez al armar el grafo.
func (s *Supervisor) Bind(c Closer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closer = c
}

// ClampInterval acota el intervalo declarado; 0 o negativo usa el default.
func (s *Supervisor) ClampInterval(d time.Duration) time.Duration {
	if d <= 0 {
		d = s.cfg.DefaultInterval
	}
	if d < s.cfg.MinInterval {
		return s.cfg.MinInterval
	}
	if d > s.cfg.MaxInterval {
		return s.cfg.MaxInterval
	}
	return d
}

// Window es el silencio máximo tolerado para un intervalo declarado.
func (s *Supervisor) Window(interval time.Duration) time.Duration {
	return time.Duration(float64(s.ClampInterval(interval)) * s.cfg.Multiplier)
}

// Track empieza (o reinicia) la vigilancia de una sesión.
func (s *Supervisor) Track(sessionID string, interval time.Duration, last time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	w, ok := s.watches[sessionID]
	if ok {
		w.timer.Stop()
	} else {
		w = &watch{}
		s.watches[sessionID] = w
		s.metrics.TrackedSessions(1)
	}
	w.window = s.Window(interval)
	w.last = last
	s.arm(sessionID, w, w.last.Add(w.window+s.cfg.Tick))
}

// Touch registra un heartbeat y reprograma el watchdog. Un at anterior al
// último heartbeat no mueve nada.
func (s *Supervisor) Touch(sessionID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.watches[sessionID]
	if !ok || s.stopped || at.Before(w.last) {
		return
	}
	w.timer.Stop()
	w.last = at
	s.arm(sessionID, w, w.last.Add(w.window+s.cfg.Tick))
}

// Untrack deja de vigilar la sesión. Idempotente.
func (s *Supervisor) Untrack(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.untrackLocked(sessionID)
}

func (s *Supervisor) untrackLocked(sessionID string) {
	w, ok := s.watches[sessionID]
	if !ok {
		return
	}
	w.timer.Stop()
	delete(s.watches, sessionID)
	s.metrics.TrackedSessions(-1)
}

// Tracked indica si la sesión tiene watchdog activo.
func (s *Supervisor) Tracked(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.watches[sessionID]
	return ok
}

// Len devuelve la cantidad de sesiones vigiladas.
func (s *Supervisor) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watches)
}

// Stop detiene todos los watchdogs. Las sesiones quedan abiertas en storage
// y el próximo proceso las recupera.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id := range s.watches {
		s.untrackLocked(id)
	}
}

// arm requiere s.mu.
func (s *Supervisor) arm(sessionID string, w *watch, deadline time.Time) {
	s.gen++
	gen := s.gen
	w.gen = gen
	w.timer = s.clock.AfterFunc(deadline.Sub(s.clock.Now()), func() { s.fire(sessionID, gen) })
}

func (s *Supervisor) fire(sessionID string, gen uint64) {
	s.mu.Lock()
	w, ok := s.watches[sessionID]
	if !ok || w.gen != gen || s.stopped {
		// timer viejo: hubo Touch/Untrack en el medio
		s.mu.Unlock()
		return
	}
	now := s.clock.Now()
	if now.Sub(w.last) <= w.window {
		s.arm(sessionID, w, w.last.Add(w.window+s.cfg.Tick))
		s.mu.Unlock()
		return
	}
	closer, last := s.closer, w.last
	s.mu.Unlock()

	log := logger.L().With(logger.Layer("supervisor"), logger.Component("heartbeat"), logger.SessionID(sessionID))
	if closer == nil {
		log.Error("watchdog fired without closer bound")
		return
	}

	ctx, cancel := context.WithTimeout(logger.ToContext(context.Background(), log), s.cfg.CloseTimeout)
	defer cancel()
	if err := closer.CloseTimedOut(ctx, sessionID, now); err != nil {
		log.Error("timeout close failed, retrying", logger.Err(err), logger.Duration(s.cfg.RetryDelay))
		s.mu.Lock()
		if w, ok := s.watches[sessionID]; ok && !s.stopped {
			s.arm(sessionID, w, s.clock.Now().Add(s.cfg.RetryDelay))
		}
		s.mu.Unlock()
		return
	}

	// el closer normalmente hace Untrack (o Track si hubo heartbeat); si no
	// tocó nada, el watch ya no tiene timer y se descarta.
	s.mu.Lock()
	if w, ok := s.watches[sessionID]; ok && w.gen == gen {
		s.untrackLocked(sessionID)
	}
	s.mu.Unlock()
	log.Debug("watchdog closed session", logger.Duration(now.Sub(last)))
}
