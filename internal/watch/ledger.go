// Package watch es el ledger de sesiones de reproducción: abre, extiende y
// cierra sesiones y contabiliza el tiempo diario de cada perfil contra su
// techo.
//
// Toda operación sobre un perfil corre bajo WatchRepository.WithProfileLock.
// Los instantes se normalizan a segundos enteros, así el tiempo cobrado entre
// heartbeats suma exacto sin arrastrar fracciones.
//
// El silencio se cobra hasta una ventana (multiplicador × intervalo): una
// sesión cerrada por timeout, o cerrada tras mucho tiempo sin heartbeats, suma
// como máximo una ventana desde el último heartbeat. Una sesión que nunca latió
// y vence por timeout cobra la ventana completa (75s con intervalo de 30s), y
// eso es lo que Usage reporta.
package watch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/kidplay/internal/domain/repository"
	"github.com/dropDatabas3/kidplay/internal/metrics"
	"github.com/dropDatabas3/kidplay/internal/observability/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const dayLayout = "2006-01-02"

type Config struct {
	// Location define dónde cae la medianoche que corta el acumulado diario.
	Location *time.Location
}

type Ledger struct {
	repo     repository.WatchRepository
	ceilings *CeilingResolver
	tracker  Tracker
	loc      *time.Location
	metrics  *metrics.Metrics
}

func NewLedger(cfg Config, repo repository.WatchRepository, ceilings *CeilingResolver, tracker Tracker, m *metrics.Metrics) *Ledger {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Ledger{repo: repo, ceilings: ceilings, tracker: tracker, loc: loc, metrics: m}
}

func normalize(t time.Time) time.Time { return t.UTC().Truncate(time.Second) }

func (l *Ledger) day(t time.Time) string { return t.In(l.loc).Format(dayLayout) }

func (l *Ledger) nextMidnight(t time.Time) time.Time {
	y, m, d := t.In(l.loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, l.loc).UTC()
}

func (l *Ledger) log(ctx context.Context, op string) *zap.Logger {
	return logger.From(ctx).With(logger.Layer("service"), logger.Component("watch.ledger"), logger.Op(op))
}

func remaining(ceiling, used int64) int64 {
	if used >= ceiling {
		return 0
	}
	return ceiling - used
}

// TryOpen abre una sesión para el perfil o devuelve la que ya está abierta.
// Deniega con ReasonLimitReached si el acumulado de hoy ya alcanzó el techo.
// Una sesión abierta que lleva más de su ventana en silencio se cierra por
// timeout y se abre una nueva.
func (l *Ledger) TryOpen(ctx context.Context, profileID string, interval time.Duration, now time.Time) (OpenResult, error) {
	now = normalize(now)
	log := l.log(ctx, "TryOpen").With(logger.ProfileID(profileID))

	ceiling, err := l.ceilings.Resolve(ctx, profileID)
	if err != nil {
		return OpenResult{}, err
	}
	interval = l.tracker.ClampInterval(interval)

	var (
		res   OpenResult
		stale *repository.WatchSession
	)
	err = l.repo.WithProfileLock(ctx, profileID, func(ctx context.Context, tx repository.WatchTx) error {
		res, stale = OpenResult{}, nil

		open, err := tx.OpenSession(ctx, profileID)
		switch {
		case err == nil:
			window := l.tracker.Window(open.Interval())
			if now.Sub(open.LastHeartbeat) <= window {
				used, err := tx.DailySeconds(ctx, profileID, l.day(now))
				if err != nil {
					return err
				}
				res = OpenResult{
					Allowed:          true,
					Session:          open,
					Existing:         true,
					Interval:         open.Interval(),
					Window:           window,
					RemainingSeconds: remaining(ceiling, used),
				}
				return nil
			}
			if _, err := l.closeLocked(ctx, tx, open, ReasonTimeout, now, ceiling); err != nil {
				return err
			}
			stale = open
		case repository.IsNotFound(err):
		default:
			return err
		}

		used, err := tx.DailySeconds(ctx, profileID, l.day(now))
		if err != nil {
			return err
		}
		if used >= ceiling {
			res = OpenResult{Allowed: false, Reason: ReasonLimitReached}
			return nil
		}

		s := &repository.WatchSession{
			ID:              uuid.NewString(),
			ProfileID:       profileID,
			State:           repository.SessionOpen,
			StartedAt:       now,
			LastHeartbeat:   now,
			IntervalSeconds: int(interval / time.Second),
		}
		if err := tx.InsertSession(ctx, s); err != nil {
			return err
		}
		res = OpenResult{
			Allowed:          true,
			Session:          s,
			Interval:         interval,
			Window:           l.tracker.Window(interval),
			RemainingSeconds: remaining(ceiling, used),
		}
		return nil
	})
	if err != nil {
		return OpenResult{}, fmt.Errorf("watch: open: %w", err)
	}

	if stale != nil {
		l.tracker.Untrack(stale.ID)
		l.metrics.SessionClosed(string(ReasonTimeout))
		log.Info("stale session closed on rescan", logger.SessionID(stale.ID))
	}
	switch {
	case !res.Allowed:
		log.Info("open denied", logger.Reason(string(res.Reason)))
	case res.Existing:
		l.tracker.Track(res.Session.ID, res.Interval, res.Session.LastHeartbeat)
		log.Debug("open session reused", logger.SessionID(res.Session.ID))
	default:
		l.tracker.Track(res.Session.ID, res.Interval, now)
		l.metrics.SessionOpened()
		log.Info("session opened", logger.SessionID(res.Session.ID), logger.Seconds(res.RemainingSeconds))
	}
	return res, nil
}

// Heartbeat extiende la sesión y cobra el tiempo desde el último heartbeat.
func (l *Ledger) Heartbeat(ctx context.Context, sessionID string, now time.Time) (HeartbeatResult, error) {
	now = normalize(now)
	log := l.log(ctx, "Heartbeat").With(logger.SessionID(sessionID))

	cur, err := l.repo.GetSession(ctx, sessionID)
	if repository.IsNotFound(err) {
		return HeartbeatResult{}, ErrSessionNotFound
	}
	if err != nil {
		return HeartbeatResult{}, fmt.Errorf("watch: heartbeat: %w", err)
	}
	ceiling, err := l.ceilings.Resolve(ctx, cur.ProfileID)
	if err != nil {
		return HeartbeatResult{}, err
	}

	var (
		res    HeartbeatResult
		closed bool
		last   time.Time
	)
	err = l.repo.WithProfileLock(ctx, cur.ProfileID, func(ctx context.Context, tx repository.WatchTx) error {
		res, closed = HeartbeatResult{}, false

		s, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		today := l.day(now)

		if s.State != repository.SessionOpen {
			used, err := tx.DailySeconds(ctx, s.ProfileID, today)
			if err != nil {
				return err
			}
			res = HeartbeatResult{Continue: false, Reason: reasonOf(s.State), RemainingSeconds: remaining(ceiling, used)}
			return nil
		}

		// fuera de orden: no cobra ni mueve el último heartbeat
		if now.Before(s.LastHeartbeat) {
			used, err := tx.DailySeconds(ctx, s.ProfileID, today)
			if err != nil {
				return err
			}
			res = HeartbeatResult{Continue: true, RemainingSeconds: remaining(ceiling, used)}
			last = s.LastHeartbeat
			return nil
		}

		window := l.tracker.Window(s.Interval())
		if now.Sub(s.LastHeartbeat) > window {
			used, err := l.closeLocked(ctx, tx, s, ReasonTimeout, now, ceiling)
			if err != nil {
				return err
			}
			res = HeartbeatResult{Continue: false, Reason: ReasonTimeout, RemainingSeconds: remaining(ceiling, used)}
			closed = true
			return nil
		}

		used, err := l.charge(ctx, tx, s, s.LastHeartbeat, now, ceiling)
		if err != nil {
			return err
		}
		s.LastHeartbeat = now
		if used >= ceiling {
			s.State = repository.SessionClosedLimitReached
			s.ClosedAt = &now
			res = HeartbeatResult{Continue: false, Reason: ReasonLimitReached}
			closed = true
		} else {
			res = HeartbeatResult{Continue: true, RemainingSeconds: remaining(ceiling, used)}
			last = now
		}
		return tx.UpdateSession(ctx, s)
	})
	if repository.IsNotFound(err) {
		return HeartbeatResult{}, ErrSessionNotFound
	}
	if err != nil {
		return HeartbeatResult{}, fmt.Errorf("watch: heartbeat: %w", err)
	}

	switch {
	case closed:
		l.tracker.Untrack(sessionID)
		l.metrics.SessionClosed(string(res.Reason))
		log.Info("session closed on heartbeat", logger.Reason(string(res.Reason)))
	case res.Continue:
		l.tracker.Touch(sessionID, last)
	default:
		l.tracker.Untrack(sessionID)
	}
	return res, nil
}

// Close cierra la sesión con el motivo dado y cobra el tiempo desde el último
// heartbeat, como máximo una ventana. Cerrar una sesión cerrada no hace nada.
func (l *Ledger) Close(ctx context.Context, sessionID string, reason Reason, now time.Time) error {
	if _, ok := reason.state(); !ok {
		return ErrInvalidReason
	}
	_, err := l.close(ctx, sessionID, reason, normalize(now), false)
	return err
}

// CloseTimedOut es el cierre que dispara el watchdog. Vuelve a verificar el
// silencio contra storage: si entró un heartbeat en el medio, re-arma.
func (l *Ledger) CloseTimedOut(ctx context.Context, sessionID string, now time.Time) error {
	_, err := l.close(ctx, sessionID, ReasonTimeout, normalize(now), true)
	return err
}

func (l *Ledger) close(ctx context.Context, sessionID string, reason Reason, now time.Time, onlyIfSilent bool) (bool, error) {
	log := l.log(ctx, "Close").With(logger.SessionID(sessionID), logger.Reason(string(reason)))

	cur, err := l.repo.GetSession(ctx, sessionID)
	if repository.IsNotFound(err) {
		l.tracker.Untrack(sessionID)
		return false, ErrSessionNotFound
	}
	if err != nil {
		return false, fmt.Errorf("watch: close: %w", err)
	}
	ceiling, err := l.ceilings.Resolve(ctx, cur.ProfileID)
	if err != nil {
		return false, err
	}

	var (
		closed   bool
		rearm    *repository.WatchSession
		chargedS int64
	)
	err = l.repo.WithProfileLock(ctx, cur.ProfileID, func(ctx context.Context, tx repository.WatchTx) error {
		closed, rearm, chargedS = false, nil, 0

		s, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if s.State != repository.SessionOpen {
			return nil
		}
		if onlyIfSilent && now.Sub(s.LastHeartbeat) <= l.tracker.Window(s.Interval()) {
			rearm = s
			return nil
		}
		before := s.AccumulatedSeconds
		if _, err := l.closeLocked(ctx, tx, s, reason, now, ceiling); err != nil {
			return err
		}
		chargedS = s.AccumulatedSeconds - before
		closed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("watch: close: %w", err)
	}

	switch {
	case rearm != nil:
		l.tracker.Track(rearm.ID, rearm.Interval(), rearm.LastHeartbeat)
		log.Debug("watchdog raced a heartbeat, re-armed")
	case closed:
		l.tracker.Untrack(sessionID)
		l.metrics.SessionClosed(string(reason))
		log.Info("session closed", logger.Seconds(chargedS))
	default:
		l.tracker.Untrack(sessionID)
	}
	return closed, nil
}

// closeLocked cobra min(now-last, ventana) y deja la sesión en el estado
// final. Retorna el acumulado del día de now.
func (l *Ledger) closeLocked(ctx context.Context, tx repository.WatchTx, s *repository.WatchSession, reason Reason, now time.Time, ceiling int64) (int64, error) {
	state, _ := reason.state()
	end := now
	if end.Before(s.LastHeartbeat) {
		end = s.LastHeartbeat
	}
	if limit := s.LastHeartbeat.Add(l.tracker.Window(s.Interval())); end.After(limit) {
		end = limit
	}
	if _, err := l.charge(ctx, tx, s, s.LastHeartbeat, end, ceiling); err != nil {
		return 0, err
	}
	s.LastHeartbeat = end
	s.State = state
	s.ClosedAt = &now
	if err := tx.UpdateSession(ctx, s); err != nil {
		return 0, err
	}
	return tx.DailySeconds(ctx, s.ProfileID, l.day(now))
}

// charge suma [from, to) al acumulado diario, partiendo en cada medianoche y
// saturando contra el techo. Retorna el acumulado del día de to.
func (l *Ledger) charge(ctx context.Context, tx repository.WatchTx, s *repository.WatchSession, from, to time.Time, ceiling int64) (int64, error) {
	var usedTo int64
	for {
		segEnd := to
		if mid := l.nextMidnight(from); mid.Before(to) {
			segEnd = mid
		}
		day := l.day(from)
		used, err := tx.DailySeconds(ctx, s.ProfileID, day)
		if err != nil {
			return 0, err
		}
		add := int64(segEnd.Sub(from) / time.Second)
		if room := remaining(ceiling, used); add > room {
			add = room
		}
		if add > 0 {
			if err := tx.AddDailySeconds(ctx, s.ProfileID, day, add); err != nil {
				return 0, err
			}
			s.AccumulatedSeconds += add
		}
		usedTo = used + add
		if !segEnd.Before(to) {
			return usedTo, nil
		}
		from = segEnd
	}
}

// Usage devuelve el consumo de hoy del perfil.
func (l *Ledger) Usage(ctx context.Context, profileID string, now time.Time) (Usage, error) {
	now = normalize(now)
	ceiling, err := l.ceilings.Resolve(ctx, profileID)
	if err != nil {
		return Usage{}, err
	}
	day := l.day(now)
	used, err := l.repo.DailySeconds(ctx, profileID, day)
	if err != nil {
		return Usage{}, fmt.Errorf("watch: usage: %w", err)
	}
	return Usage{
		ProfileID:        profileID,
		Date:             day,
		UsedSeconds:      used,
		CeilingSeconds:   ceiling,
		RemainingSeconds: remaining(ceiling, used),
	}, nil
}

// Recover re-arma los watchdogs de las sesiones que quedaron abiertas de un
// proceso anterior; las que ya superaron su ventana se cierran por timeout.
func (l *Ledger) Recover(ctx context.Context, now time.Time) (tracked, closed int, err error) {
	now = normalize(now)
	log := l.log(ctx, "Recover")

	open, err := l.repo.ListOpenSessions(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("watch: recover: %w", err)
	}
	for _, s := range open {
		if now.Sub(s.LastHeartbeat) <= l.tracker.Window(s.Interval()) {
			l.tracker.Track(s.ID, s.Interval(), s.LastHeartbeat)
			tracked++
			continue
		}
		ok, cerr := l.close(ctx, s.ID, ReasonTimeout, now, true)
		if cerr != nil && !errors.Is(cerr, ErrSessionNotFound) {
			log.Warn("recover close failed", logger.SessionID(s.ID), logger.Err(cerr))
			// el watchdog reintenta
			l.tracker.Track(s.ID, s.Interval(), s.LastHeartbeat)
			tracked++
			continue
		}
		if ok {
			closed++
		}
	}
	log.Info("open sessions recovered", logger.Int("tracked", tracked), logger.Int("closed", closed))
	return tracked, closed, nil
}
