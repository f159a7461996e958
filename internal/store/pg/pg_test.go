package pg

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/kidplay/internal/domain/repository"
	migrations "github.com/dropDatabas3/kidplay/migrations/postgres"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tests de integración: necesitan KIDPLAY_TEST_DSN apuntando a una base descartable.
func connect(t *testing.T) *Connection {
	t.Helper()
	dsn := os.Getenv("KIDPLAY_TEST_DSN")
	if dsn == "" {
		t.Skip("KIDPLAY_TEST_DSN not set")
	}
	ctx := context.Background()
	conn, err := Connect(ctx, Config{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = NewMigrator(migrations.FS, migrations.Dir).Run(ctx, conn.Pool())
	require.NoError(t, err)
	return conn
}

func TestParseMigrations(t *testing.T) {
	migs, err := NewMigrator(migrations.FS, migrations.Dir).ParseMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migs)
	assert.Equal(t, 1, migs[0].Version)
	assert.Equal(t, "init", migs[0].Name)
}

func seedProfile(t *testing.T, conn *Connection) *repository.Profile {
	t.Helper()
	ctx := context.Background()
	owner, err := conn.Identities().Create(ctx, repository.CreateIdentityInput{
		Email: uuid.NewString() + "@kidplay.test", PasswordHash: "x",
	})
	require.NoError(t, err)
	p, err := conn.Profiles().CreateProfile(ctx, repository.CreateProfileInput{OwnerID: owner.ID, Name: "kid", DailyLimitMinutes: 30})
	require.NoError(t, err)
	return p
}

func TestPG_IdentityAndChips(t *testing.T) {
	conn := connect(t)
	ctx := context.Background()
	p := seedProfile(t, conn)

	_, err := conn.Identities().GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	hash := uuid.NewString()
	require.NoError(t, conn.Profiles().BindChip(ctx, repository.ChipBinding{ChipHash: hash, ProfileID: p.ID}))
	assert.ErrorIs(t, conn.Profiles().BindChip(ctx, repository.ChipBinding{ChipHash: hash, ProfileID: p.ID}), repository.ErrConflict)

	got, err := conn.Profiles().ResolveChip(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got)
}

func TestPG_Revocations(t *testing.T) {
	conn := connect(t)
	ctx := context.Background()
	jti := uuid.NewString()
	exp := time.Now().Add(-time.Minute).UTC()

	require.NoError(t, conn.Revocations().Add(ctx, repository.RevocationEntry{JTI: jti, IdentityID: uuid.NewString(), ExpiresAt: exp}))
	require.NoError(t, conn.Revocations().Add(ctx, repository.RevocationEntry{JTI: jti, IdentityID: uuid.NewString(), ExpiresAt: exp}))

	_, err := conn.Revocations().Get(ctx, jti)
	require.NoError(t, err)

	n, err := conn.Revocations().Prune(ctx, time.Now())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)

	_, err = conn.Revocations().Get(ctx, jti)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPG_WatchOneOpenAndDaily(t *testing.T) {
	conn := connect(t)
	ctx := context.Background()
	p := seedProfile(t, conn)
	now := time.Now().UTC().Truncate(time.Second)

	open := func() *repository.WatchSession {
		return &repository.WatchSession{
			ID: uuid.NewString(), ProfileID: p.ID, State: repository.SessionOpen,
			StartedAt: now, LastHeartbeat: now, IntervalSeconds: 60,
		}
	}

	require.NoError(t, conn.Watch().WithProfileLock(ctx, p.ID, func(ctx context.Context, tx repository.WatchTx) error {
		return tx.InsertSession(ctx, open())
	}))

	err := conn.Watch().WithProfileLock(ctx, p.ID, func(ctx context.Context, tx repository.WatchTx) error {
		return tx.InsertSession(ctx, open())
	})
	assert.ErrorIs(t, err, repository.ErrConflict)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = conn.Watch().WithProfileLock(ctx, p.ID, func(ctx context.Context, tx repository.WatchTx) error {
				return tx.AddDailySeconds(ctx, p.ID, "2026-02-01", 6)
			})
		}()
	}
	wg.Wait()

	secs, err := conn.Watch().DailySeconds(ctx, p.ID, "2026-02-01")
	require.NoError(t, err)
	assert.EqualValues(t, 60, secs)

	list, err := conn.Watch().ListOpenSessions(ctx)
	require.NoError(t, err)
	found := 0
	for _, s := range list {
		if s.ProfileID == p.ID {
			found++
		}
	}
	assert.Equal(t, 1, found)
}
