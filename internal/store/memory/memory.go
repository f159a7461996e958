// Package memory implementa los repositorios en memoria (dev y tests).
// Toda la data muere con el proceso.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/kidplay/internal/domain/repository"
	"github.com/google/uuid"
)

// Connection agrupa los repositorios en memoria. Es segura para uso concurrente.
type Connection struct {
	mu sync.RWMutex

	identities map[string]repository.Identity // id -> identity
	byEmail    map[string]string              // email -> id
	profiles   map[string]repository.Profile
	chips      map[string]repository.ChipBinding // chipHash -> binding
	revoked    map[string]repository.RevocationEntry
	sessions   map[string]repository.WatchSession
	openBy     map[string]string // profileID -> sessionID abierto
	daily      map[string]int64  // profileID|day -> seconds

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	now func() time.Time
}

func New() *Connection {
	return &Connection{
		identities: make(map[string]repository.Identity),
		byEmail:    make(map[string]string),
		profiles:   make(map[string]repository.Profile),
		chips:      make(map[string]repository.ChipBinding),
		revoked:    make(map[string]repository.RevocationEntry),
		sessions:   make(map[string]repository.WatchSession),
		openBy:     make(map[string]string),
		daily:      make(map[string]int64),
		locks:      make(map[string]*sync.Mutex),
		now:        time.Now,
	}
}

func (c *Connection) Name() string { return "memory" }

func (c *Connection) Ping(context.Context) error { return nil }

func (c *Connection) Close() error { return nil }

func (c *Connection) Identities() repository.IdentityRepository { return identityRepo{c} }

func (c *Connection) Profiles() repository.ProfileRepository { return profileRepo{c} }

func (c *Connection) Revocations() repository.RevocationRepository { return revocationRepo{c} }

func (c *Connection) Watch() repository.WatchRepository { return watchRepo{c} }

// ─── Identities ───

type identityRepo struct{ c *Connection }

func (r identityRepo) Create(_ context.Context, in repository.CreateIdentityInput) (*repository.Identity, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.PasswordHash == "" {
		return nil, repository.ErrInvalidInput
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if _, exists := r.c.byEmail[email]; exists {
		return nil, repository.ErrConflict
	}
	id := repository.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: in.PasswordHash,
		CreatedAt:    r.c.now().UTC(),
	}
	r.c.identities[id.ID] = id
	r.c.byEmail[email] = id.ID
	return &id, nil
}

func (r identityRepo) GetByID(_ context.Context, id string) (*repository.Identity, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	ident, ok := r.c.identities[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ident, nil
}

func (r identityRepo) GetByEmail(_ context.Context, email string) (*repository.Identity, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	id, ok := r.c.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, repository.ErrNotFound
	}
	ident := r.c.identities[id]
	return &ident, nil
}

// DeleteIdentity borra la cuenta (tests: simula una cuenta eliminada).
func (c *Connection) DeleteIdentity(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ident, ok := c.identities[id]; ok {
		delete(c.byEmail, ident.Email)
		delete(c.identities, id)
	}
}

// ─── Profiles & chips ───

type profileRepo struct{ c *Connection }

func (r profileRepo) CreateProfile(_ context.Context, in repository.CreateProfileInput) (*repository.Profile, error) {
	if in.OwnerID == "" || in.DailyLimitMinutes < 0 {
		return nil, repository.ErrInvalidInput
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if _, ok := r.c.identities[in.OwnerID]; !ok {
		return nil, repository.ErrNotFound
	}
	p := repository.Profile{
		ID:                uuid.NewString(),
		OwnerID:           in.OwnerID,
		Name:              in.Name,
		DailyLimitMinutes: in.DailyLimitMinutes,
		CreatedAt:         r.c.now().UTC(),
	}
	r.c.profiles[p.ID] = p
	return &p, nil
}

func (r profileRepo) GetProfile(_ context.Context, id string) (*repository.Profile, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	p, ok := r.c.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r profileRepo) BindChip(_ context.Context, b repository.ChipBinding) error {
	if b.ChipHash == "" || b.ProfileID == "" {
		return repository.ErrInvalidInput
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if _, ok := r.c.profiles[b.ProfileID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := r.c.chips[b.ChipHash]; ok {
		return repository.ErrConflict
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = r.c.now().UTC()
	}
	r.c.chips[b.ChipHash] = b
	return nil
}

func (r profileRepo) ResolveChip(_ context.Context, chipHash string) (string, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	b, ok := r.c.chips[chipHash]
	if !ok {
		return "", repository.ErrNotFound
	}
	return b.ProfileID, nil
}

// ─── Revocations ───

type revocationRepo struct{ c *Connection }

func (r revocationRepo) Get(_ context.Context, jti string) (*repository.RevocationEntry, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	e, ok := r.c.revoked[jti]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (r revocationRepo) Add(_ context.Context, e repository.RevocationEntry) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if _, ok := r.c.revoked[e.JTI]; ok {
		return nil
	}
	r.c.revoked[e.JTI] = e
	return nil
}

func (r revocationRepo) Prune(_ context.Context, now time.Time) (int, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	n := 0
	for jti, e := range r.c.revoked {
		if !e.ExpiresAt.After(now) {
			delete(r.c.revoked, jti)
			n++
		}
	}
	return n, nil
}
