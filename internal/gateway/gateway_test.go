package gateway

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropDatabas3/kidplay/internal/alert"
	"github.com/dropDatabas3/kidplay/internal/cache"
	"github.com/dropDatabas3/kidplay/internal/domain/repository"
	"github.com/dropDatabas3/kidplay/internal/heartbeat"
	"github.com/dropDatabas3/kidplay/internal/jwt"
	"github.com/dropDatabas3/kidplay/internal/revocation"
	"github.com/dropDatabas3/kidplay/internal/security/password"
	"github.com/dropDatabas3/kidplay/internal/store/memory"
	"github.com/dropDatabas3/kidplay/internal/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 5, 4, 16, 0, 0, 0, time.UTC)

// flakyRevocations simula el denylist caído.
type flakyRevocations struct {
	inner jwt.RevocationStore
	down  atomic.Bool
}

var errDown = errors.New("connection refused")

func (f *flakyRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if f.down.Load() {
		return false, errDown
	}
	return f.inner.IsRevoked(ctx, jti)
}

func (f *flakyRevocations) Add(ctx context.Context, e repository.RevocationEntry) error {
	if f.down.Load() {
		return errDown
	}
	return f.inner.Add(ctx, e)
}

type env struct {
	gw     *Gateway
	conn   *memory.Connection
	revs   *flakyRevocations
	alerts *alert.Recorder
	clk    *heartbeat.FakeClock
}

func newEnv(t *testing.T) *env {
	t.Helper()
	conn := memory.New()
	revs := &flakyRevocations{inner: revocation.NewStore(conn.Revocations(), cache.NewMemory("test"))}

	keys, err := jwt.NewEphemeralEd25519()
	require.NoError(t, err)
	tokens := jwt.NewService(jwt.Config{Issuer: "kidplay-test"}, keys, revs, conn.Identities(), nil)

	clk := heartbeat.NewFakeClock(t0)
	sup := heartbeat.NewSupervisor(heartbeat.Config{}, clk, nil)
	ledger := watch.NewLedger(watch.Config{}, conn.Watch(), watch.NewCeilingResolver(conn.Profiles(), nil, 60, time.Minute), sup, nil)
	sup.Bind(ledger)

	rec := &alert.Recorder{}
	gw := New(Deps{
		Identities: conn.Identities(),
		Profiles:   conn.Profiles(),
		Tokens:     tokens,
		Ledger:     ledger,
		Alerts:     alert.New(nil, time.Minute, rec),
		Hash:       password.Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 32},
	})
	return &env{gw: gw, conn: conn, revs: revs, alerts: rec, clk: clk}
}

func (e *env) register(t *testing.T, email string) TokenPair {
	t.Helper()
	pair, err := e.gw.Register(context.Background(), email, "correct horse")
	require.NoError(t, err)
	return pair
}

func (e *env) principal(t *testing.T, pair TokenPair) Principal {
	t.Helper()
	p, err := e.gw.Authenticate(context.Background(), pair.Access.Token)
	require.NoError(t, err)
	return p
}

func TestRegisterLoginAuthenticate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	pair := e.register(t, "  Parent@Example.com ")
	assert.Equal(t, jwt.KindAccess, pair.Access.Kind)
	assert.Equal(t, jwt.KindRefresh, pair.Refresh.Kind)
	assert.Equal(t, pair.Access.IdentityID, pair.Refresh.IdentityID)

	login, err := e.gw.Login(ctx, "parent@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, pair.Access.IdentityID, login.Access.IdentityID)

	p, err := e.gw.Authenticate(ctx, login.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, pair.Access.IdentityID, p.IdentityID)
	assert.False(t, p.Degraded)

	_, err = e.gw.Authenticate(ctx, login.Refresh.Token)
	assert.ErrorIs(t, err, jwt.ErrWrongKind)

	_, err = e.gw.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestRegisterValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register(t, "taken@example.com")

	_, err := e.gw.Register(ctx, "TAKEN@example.com", "another password")
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = e.gw.Register(ctx, "no-at-sign", "long enough")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.gw.Register(ctx, "short@example.com", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)
	var pe *PolicyError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Reasons, "too_short")
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register(t, "p@example.com")

	_, err := e.gw.Login(ctx, "p@example.com", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = e.gw.Login(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = e.gw.Login(ctx, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutRevokesBothCredentials(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pair := e.register(t, "p@example.com")

	require.NoError(t, e.gw.Logout(ctx, pair.Access.Token, pair.Refresh.Token))

	_, err := e.gw.Authenticate(ctx, pair.Access.Token)
	assert.ErrorIs(t, err, jwt.ErrRevoked)
	_, err = e.gw.RefreshAccess(ctx, pair.Refresh.Token)
	assert.ErrorIs(t, err, jwt.ErrRevoked)

	// best-effort: basura, vacíos y repetidos no fallan
	assert.NoError(t, e.gw.Logout(ctx, "garbage", ""))
	assert.NoError(t, e.gw.Logout(ctx, pair.Access.Token, pair.Refresh.Token))
}

func TestLogoutSucceedsWithStoreDown(t *testing.T) {
	e := newEnv(t)
	pair := e.register(t, "p@example.com")
	e.revs.down.Store(true)
	assert.NoError(t, e.gw.Logout(context.Background(), pair.Access.Token, pair.Refresh.Token))
}

func TestRefreshAccess(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pair := e.register(t, "p@example.com")

	r, err := e.gw.RefreshAccess(ctx, pair.Refresh.Token)
	require.NoError(t, err)
	assert.False(t, r.Degraded)
	assert.Equal(t, jwt.KindAccess, r.Access.Kind)
	assert.NotEqual(t, pair.Access.JTI, r.Access.JTI)

	_, err = e.gw.RefreshAccess(ctx, pair.Access.Token)
	assert.ErrorIs(t, err, jwt.ErrWrongKind)

	_, err = e.gw.RefreshAccess(ctx, " ")
	assert.ErrorIs(t, err, ErrMissingCredential)

	e.conn.DeleteIdentity(pair.Access.IdentityID)
	_, err = e.gw.RefreshAccess(ctx, pair.Refresh.Token)
	assert.ErrorIs(t, err, jwt.ErrIdentityGone)
}

// Denylist caído: Authenticate deja pasar marcando Degraded y avisa al
// operador; nunca se confunde con revocado.
func TestAuthenticateDegradedWhenRevocationUnavailable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pair := e.register(t, "p@example.com")

	e.revs.down.Store(true)
	p, err := e.gw.Authenticate(ctx, pair.Access.Token)
	require.NoError(t, err)
	assert.True(t, p.Degraded)
	assert.Equal(t, pair.Access.IdentityID, p.IdentityID)

	r, err := e.gw.RefreshAccess(ctx, pair.Refresh.Token)
	require.NoError(t, err)
	assert.True(t, r.Degraded)

	alerts := e.alerts.Alerts()
	require.Len(t, alerts, 1, "second alert is throttled")
	assert.Equal(t, alert.KindRevocationUnavailable, alerts[0].Kind)

	// una credencial inválida sigue siendo inválida aunque el denylist esté caído
	_, err = e.gw.Authenticate(ctx, pair.Access.Token+"x")
	assert.ErrorIs(t, err, jwt.ErrMalformed)
}

func TestScanHeartbeatEnd(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.principal(t, e.register(t, "p@example.com"))

	prof, err := e.gw.CreateProfile(ctx, p, "Lola", 30)
	require.NoError(t, err)
	require.NoError(t, e.gw.BindChip(ctx, p, prof.ID, "chip-lola"))

	res, err := e.gw.Scan(ctx, "chip-lola", 60*time.Second, t0)
	require.NoError(t, err)
	require.True(t, res.Allowed)
	assert.Equal(t, 150*time.Second, res.Window)
	assert.EqualValues(t, 1800, res.RemainingSeconds)

	again, err := e.gw.Scan(ctx, "chip-lola", 60*time.Second, t0.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, again.Existing)
	assert.Equal(t, res.SessionID, again.SessionID)

	hb, err := e.gw.Heartbeat(ctx, res.SessionID, t0.Add(60*time.Second))
	require.NoError(t, err)
	assert.True(t, hb.Continue)
	assert.EqualValues(t, 1740, hb.RemainingSeconds)

	require.NoError(t, e.gw.EndPlayback(ctx, res.SessionID, t0.Add(90*time.Second)))

	u, err := e.gw.Usage(ctx, p, prof.ID, t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 90, u.UsedSeconds)
	assert.EqualValues(t, 1710, u.RemainingSeconds)

	hb, err = e.gw.Heartbeat(ctx, res.SessionID, t0.Add(100*time.Second))
	require.NoError(t, err)
	assert.False(t, hb.Continue)
	assert.Equal(t, watch.ReasonNormal, hb.Reason)

	_, err = e.gw.Heartbeat(ctx, "", t0)
	assert.ErrorIs(t, err, watch.ErrSessionNotFound)
	assert.ErrorIs(t, e.gw.EndPlayback(ctx, "missing", t0), watch.ErrSessionNotFound)
}

func TestScanUnknownChip(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.gw.Scan(ctx, "never-bound", 0, t0)
	assert.ErrorIs(t, err, ErrUnknownChip)
	_, err = e.gw.Scan(ctx, "", 0, t0)
	assert.ErrorIs(t, err, ErrUnknownChip)
}

func TestScanDeniedAfterLimit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.principal(t, e.register(t, "p@example.com"))

	prof, err := e.gw.CreateProfile(ctx, p, "Tomi", 1)
	require.NoError(t, err)
	require.NoError(t, e.gw.BindChip(ctx, p, prof.ID, "chip-tomi"))

	res, err := e.gw.Scan(ctx, "chip-tomi", 60*time.Second, t0)
	require.NoError(t, err)
	hb, err := e.gw.Heartbeat(ctx, res.SessionID, t0.Add(60*time.Second))
	require.NoError(t, err)
	assert.Equal(t, watch.ReasonLimitReached, hb.Reason)

	denied, err := e.gw.Scan(ctx, "chip-tomi", 60*time.Second, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, denied.Allowed)
	assert.Equal(t, watch.ReasonLimitReached, denied.Reason)
	assert.Empty(t, denied.SessionID)
}

func TestProfileOwnership(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.principal(t, e.register(t, "owner@example.com"))
	other := e.principal(t, e.register(t, "other@example.com"))

	prof, err := e.gw.CreateProfile(ctx, owner, "Lola", 0)
	require.NoError(t, err)

	assert.ErrorIs(t, e.gw.BindChip(ctx, other, prof.ID, "chip"), ErrForbidden)
	_, err = e.gw.Usage(ctx, other, prof.ID, t0)
	assert.ErrorIs(t, err, ErrForbidden)

	assert.ErrorIs(t, e.gw.BindChip(ctx, owner, "missing", "chip"), watch.ErrProfileNotFound)
	assert.ErrorIs(t, e.gw.BindChip(ctx, owner, prof.ID, " "), ErrInvalidInput)

	require.NoError(t, e.gw.BindChip(ctx, owner, prof.ID, "chip"))
	assert.ErrorIs(t, e.gw.BindChip(ctx, owner, prof.ID, "chip"), ErrChipTaken)

	u, err := e.gw.Usage(ctx, owner, prof.ID, t0)
	require.NoError(t, err)
	assert.EqualValues(t, 3600, u.CeilingSeconds)
}

func TestCreateProfileValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.principal(t, e.register(t, "p@example.com"))

	_, err := e.gw.CreateProfile(ctx, p, "", 30)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.gw.CreateProfile(ctx, p, "Lola", -1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.gw.CreateProfile(ctx, p, "Lola", 24*60+1)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.gw.CreateProfile(ctx, Principal{IdentityID: "gone"}, "Lola", 30)
	assert.ErrorIs(t, err, ErrForbidden)
}
