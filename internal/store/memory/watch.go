package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/dropDatabas3/kidplay/internal/domain/repository"
)

type watchRepo struct{ c *Connection }

func dailyKey(profileID, day string) string { return profileID + "|" + day }

func (c *Connection) profileLock(profileID string) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	l, ok := c.locks[profileID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[profileID] = l
	}
	return l
}

// WithProfileLock serializa por perfil. Las escrituras hechas por fn se
// aplican recién cuando fn retorna nil.
func (r watchRepo) WithProfileLock(ctx context.Context, profileID string, fn func(ctx context.Context, tx repository.WatchTx) error) error {
	l := r.c.profileLock(profileID)
	l.Lock()
	defer l.Unlock()

	tx := &watchTx{c: r.c, sessions: map[string]repository.WatchSession{}, daily: map[string]int64{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit()
}

func (r watchRepo) GetSession(_ context.Context, id string) (*repository.WatchSession, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	s, ok := r.c.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r watchRepo) ListOpenSessions(_ context.Context) ([]repository.WatchSession, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	out := make([]repository.WatchSession, 0, len(r.c.openBy))
	for _, id := range r.c.openBy {
		out = append(out, r.c.sessions[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (r watchRepo) DailySeconds(_ context.Context, profileID, day string) (int64, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	return r.c.daily[dailyKey(profileID, day)], nil
}

// watchTx acumula escrituras en staging.
type watchTx struct {
	c        *Connection
	sessions map[string]repository.WatchSession
	daily    map[string]int64
}

func (t *watchTx) lookup(id string) (repository.WatchSession, bool) {
	if s, ok := t.sessions[id]; ok {
		return s, true
	}
	t.c.mu.RLock()
	defer t.c.mu.RUnlock()
	s, ok := t.c.sessions[id]
	return s, ok
}

func (t *watchTx) OpenSession(_ context.Context, profileID string) (*repository.WatchSession, error) {
	for _, s := range t.sessions {
		if s.ProfileID == profileID && s.State == repository.SessionOpen {
			s := s
			return &s, nil
		}
	}
	t.c.mu.RLock()
	id, ok := t.c.openBy[profileID]
	t.c.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	s, _ := t.lookup(id)
	if s.State != repository.SessionOpen {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (t *watchTx) GetSession(_ context.Context, id string) (*repository.WatchSession, error) {
	s, ok := t.lookup(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (t *watchTx) InsertSession(ctx context.Context, s *repository.WatchSession) error {
	if s.State == repository.SessionOpen {
		if _, err := t.OpenSession(ctx, s.ProfileID); err == nil {
			return repository.ErrConflict
		}
	}
	if _, exists := t.lookup(s.ID); exists {
		return repository.ErrConflict
	}
	t.sessions[s.ID] = *s
	return nil
}

func (t *watchTx) UpdateSession(_ context.Context, s *repository.WatchSession) error {
	if _, ok := t.lookup(s.ID); !ok {
		return repository.ErrNotFound
	}
	t.sessions[s.ID] = *s
	return nil
}

func (t *watchTx) DailySeconds(_ context.Context, profileID, day string) (int64, error) {
	k := dailyKey(profileID, day)
	t.c.mu.RLock()
	base := t.c.daily[k]
	t.c.mu.RUnlock()
	return base + t.daily[k], nil
}

func (t *watchTx) AddDailySeconds(_ context.Context, profileID, day string, seconds int64) error {
	if seconds < 0 {
		return repository.ErrInvalidInput
	}
	t.daily[dailyKey(profileID, day)] += seconds
	return nil
}

func (t *watchTx) commit() error {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	for id, s := range t.sessions {
		if s.State == repository.SessionOpen {
			cur, ok := t.c.openBy[s.ProfileID]
			if !ok || cur == id {
				continue
			}
			if staged, ok := t.sessions[cur]; !ok || staged.State == repository.SessionOpen {
				return repository.ErrConflict
			}
		}
	}
	for id, s := range t.sessions {
		t.c.sessions[id] = s
		if s.State == repository.SessionOpen {
			t.c.openBy[s.ProfileID] = id
		} else if t.c.openBy[s.ProfileID] == id {
			delete(t.c.openBy, s.ProfileID)
		}
	}
	for k, v := range t.daily {
		t.c.daily[k] += v
	}
	return nil
}
