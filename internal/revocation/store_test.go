package revocation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dropDatabas3/kidplay/internal/cache"
	"github.com/dropDatabas3/kidplay/internal/domain/repository"
	"github.com/dropDatabas3/kidplay/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyRepo envuelve un repo y puede fallar en Get.
type flakyRepo struct {
	repository.RevocationRepository
	getErr error
	gets   int
}

func (f *flakyRepo) Get(ctx context.Context, jti string) (*repository.RevocationEntry, error) {
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.RevocationRepository.Get(ctx, jti)
}

type brokenCache struct{ cache.Client }

func (brokenCache) Get(context.Context, string) (string, error) { return "", errors.New("redis down") }
func (brokenCache) Set(context.Context, string, string, time.Duration) error {
	return errors.New("redis down")
}

func TestStore_IsRevoked(t *testing.T) {
	ctx := context.Background()
	repo := &flakyRepo{RevocationRepository: memory.New().Revocations()}
	s := NewStore(repo, cache.NewMemory("t"))

	revoked, err := s.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, s.Add(ctx, repository.RevocationEntry{JTI: "jti-1", IdentityID: "id", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, s.Add(ctx, repository.RevocationEntry{JTI: "jti-1", IdentityID: "id", ExpiresAt: time.Now().Add(time.Hour)}))

	before := repo.gets
	revoked, err = s.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.Equal(t, before, repo.gets, "positive hit served from cache")
}

func TestStore_StorageFailureIsAnError(t *testing.T) {
	ctx := context.Background()
	repo := &flakyRepo{RevocationRepository: memory.New().Revocations(), getErr: errors.New("relation does not exist")}
	s := NewStore(repo, nil)

	revoked, err := s.IsRevoked(ctx, "jti-x")
	require.Error(t, err)
	assert.False(t, revoked)
	assert.False(t, repository.IsNotFound(err))
}

func TestStore_CacheFailureFallsBackToStorage(t *testing.T) {
	ctx := context.Background()
	repo := &flakyRepo{RevocationRepository: memory.New().Revocations()}
	require.NoError(t, repo.Add(ctx, repository.RevocationEntry{JTI: "j", ExpiresAt: time.Now().Add(time.Hour)}))

	s := NewStore(repo, brokenCache{})
	revoked, err := s.IsRevoked(ctx, "j")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestStore_Prune(t *testing.T) {
	ctx := context.Background()
	s := NewStore(memory.New().Revocations(), nil)
	now := time.Now()
	require.NoError(t, s.Add(ctx, repository.RevocationEntry{JTI: "old", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, s.Add(ctx, repository.RevocationEntry{JTI: "new", ExpiresAt: now.Add(time.Minute)}))

	n, err := s.Prune(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	revoked, err := s.IsRevoked(ctx, "new")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestStore_AddRequiresJTI(t *testing.T) {
	s := NewStore(memory.New().Revocations(), nil)
	assert.ErrorIs(t, s.Add(context.Background(), repository.RevocationEntry{}), repository.ErrInvalidInput)
}

func TestPruner_RunsUntilCancelled(t *testing.T) {
	s := NewStore(memory.New().Revocations(), nil)
	require.NoError(t, s.Add(context.Background(), repository.RevocationEntry{JTI: "old", ExpiresAt: time.Now().Add(-time.Minute)}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- (&Pruner{Store: s, Interval: 10 * time.Millisecond}).Run(ctx) }()

	require.Eventually(t, func() bool {
		revoked, _ := s.IsRevoked(context.Background(), "old")
		return !revoked
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
