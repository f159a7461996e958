package jwt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/kidplay/internal/domain/repository"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRevocations struct {
	mu      sync.Mutex
	entries map[string]repository.RevocationEntry
	failGet error
}

func (f *fakeRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return false, f.failGet
	}
	_, ok := f.entries[jti]
	return ok, nil
}

func (f *fakeRevocations) Add(_ context.Context, e repository.RevocationEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.entries == nil {
		f.entries = map[string]repository.RevocationEntry{}
	}
	f.entries[e.JTI] = e
	return nil
}

type fakeIdentities map[string]bool

func (f fakeIdentities) GetByID(_ context.Context, id string) (*repository.Identity, error) {
	if !f[id] {
		return nil, repository.ErrNotFound
	}
	return &repository.Identity{ID: id}, nil
}

type fixture struct {
	svc  *Service
	rev  *fakeRevocations
	now  time.Time
	keys *KeySet
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	keys, err := NewEphemeralEd25519()
	require.NoError(t, err)
	f := &fixture{
		rev:  &fakeRevocations{},
		now:  time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC),
		keys: keys,
	}
	f.svc = NewService(Config{Issuer: "kidplay-test", AccessTTL: 15 * time.Minute, RefreshTTL: 7 * 24 * time.Hour},
		keys, f.rev, fakeIdentities{"id-1": true}, nil)
	f.svc.Now = func() time.Time { return f.now }
	return f
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cred, err := f.svc.Issue("id-1", KindAccess)
	require.NoError(t, err)
	assert.Equal(t, int64(15*60), cred.ExpiresIn())
	assert.NotEmpty(t, cred.JTI)

	claims, err := f.svc.Verify(ctx, cred.Token, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "id-1", claims.IdentityID)
	assert.Equal(t, cred.JTI, claims.JTI())
	assert.Equal(t, KindAccess, claims.Kind)

	_, err = f.svc.Verify(ctx, cred.Token, KindRefresh)
	assert.ErrorIs(t, err, ErrWrongKind)
}

func TestIssue_FreshJTIEachTime(t *testing.T) {
	f := newFixture(t)
	a, err := f.svc.Issue("id-1", KindRefresh)
	require.NoError(t, err)
	b, err := f.svc.Issue("id-1", KindRefresh)
	require.NoError(t, err)
	assert.NotEqual(t, a.JTI, b.JTI)
}

func TestIssue_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Issue("", KindAccess)
	assert.ErrorIs(t, err, repository.ErrInvalidInput)
	_, err = f.svc.Issue("id-1", Kind("admin"))
	assert.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestVerify_Expired(t *testing.T) {
	f := newFixture(t)
	cred, err := f.svc.Issue("id-1", KindAccess)
	require.NoError(t, err)

	f.now = f.now.Add(16 * time.Minute)
	_, err = f.svc.Verify(context.Background(), cred.Token, KindAccess)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerify_Malformed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cred, err := f.svc.Issue("id-1", KindAccess)
	require.NoError(t, err)

	// firma alterada
	parts := strings.Split(cred.Token, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	for _, raw := range []string{"", "not-a-jwt", tampered} {
		_, err := f.svc.Verify(ctx, raw, KindAccess)
		assert.ErrorIs(t, err, ErrMalformed, raw)
	}

	// firmado por otra clave
	other := newFixture(t)
	foreign, err := other.svc.Issue("id-1", KindAccess)
	require.NoError(t, err)
	_, err = f.svc.Verify(ctx, foreign.Token, KindAccess)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestVerify_MissingKindIsMalformed(t *testing.T) {
	f := newFixture(t)
	claims := jwtv5.MapClaims{
		"identityId": "id-1",
		"jti":        "x",
		"iss":        "kidplay-test",
		"iat":        f.now.Unix(),
		"exp":        f.now.Add(time.Minute).Unix(),
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	raw, err := tk.SignedString(f.keys.Priv)
	require.NoError(t, err)

	_, err = f.svc.Verify(context.Background(), raw, KindAccess)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestVerify_RevokedAfterRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	access, err := f.svc.Issue("id-1", KindAccess)
	require.NoError(t, err)
	refresh, err := f.svc.Issue("id-1", KindRefresh)
	require.NoError(t, err)

	require.NoError(t, f.svc.RevokeToken(ctx, access.Token, KindAccess))

	_, err = f.svc.Verify(ctx, access.Token, KindAccess)
	assert.ErrorIs(t, err, ErrRevoked)

	// el refresh de la misma cuenta sigue rotando
	rotated, err := f.svc.Rotate(ctx, refresh.Token)
	require.NoError(t, err)
	assert.Equal(t, KindAccess, rotated.Kind)

	entry := f.rev.entries[access.JTI]
	assert.Equal(t, access.ExpiresAt, entry.ExpiresAt)
	assert.Equal(t, time.UTC, entry.ExpiresAt.Location())
	assert.Equal(t, "id-1", entry.IdentityID)
}

func TestVerify_RevocationUnavailableIsDistinct(t *testing.T) {
	f := newFixture(t)
	cred, err := f.svc.Issue("id-1", KindAccess)
	require.NoError(t, err)

	f.rev.failGet = errors.New("relation revoked_token does not exist")
	claims, err := f.svc.Verify(context.Background(), cred.Token, KindAccess)
	require.ErrorIs(t, err, ErrRevocationCheckUnavailable)
	assert.False(t, errors.Is(err, ErrRevoked))
	require.NotNil(t, claims)
	assert.Equal(t, "id-1", claims.IdentityID)
}

func TestRotate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	refresh, err := f.svc.Issue("id-1", KindRefresh)
	require.NoError(t, err)

	t.Run("access not accepted", func(t *testing.T) {
		access, err := f.svc.Issue("id-1", KindAccess)
		require.NoError(t, err)
		_, err = f.svc.Rotate(ctx, access.Token)
		assert.ErrorIs(t, err, ErrWrongKind)
	})

	t.Run("refresh stays usable", func(t *testing.T) {
		a1, err := f.svc.Rotate(ctx, refresh.Token)
		require.NoError(t, err)
		a2, err := f.svc.Rotate(ctx, refresh.Token)
		require.NoError(t, err)
		assert.NotEqual(t, a1.JTI, a2.JTI)
	})

	t.Run("identity gone", func(t *testing.T) {
		orphan, err := f.svc.Issue("id-deleted", KindRefresh)
		require.NoError(t, err)
		_, err = f.svc.Rotate(ctx, orphan.Token)
		assert.ErrorIs(t, err, ErrIdentityGone)
	})

	t.Run("degraded still issues", func(t *testing.T) {
		f.rev.failGet = errors.New("timeout")
		defer func() { f.rev.failGet = nil }()
		access, err := f.svc.Rotate(ctx, refresh.Token)
		assert.ErrorIs(t, err, ErrRevocationCheckUnavailable)
		assert.NotEmpty(t, access.Token)
	})
}

func TestRevokeToken_ExpiredIsNoop(t *testing.T) {
	f := newFixture(t)
	cred, err := f.svc.Issue("id-1", KindAccess)
	require.NoError(t, err)
	f.now = f.now.Add(time.Hour)

	require.NoError(t, f.svc.RevokeToken(context.Background(), cred.Token, KindAccess))
	assert.Empty(t, f.rev.entries)
}

func TestRevokeToken_WrongKind(t *testing.T) {
	f := newFixture(t)
	cred, err := f.svc.Issue("id-1", KindAccess)
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.RevokeToken(context.Background(), cred.Token, KindRefresh), ErrWrongKind)
}

func TestKeySetFromSeed(t *testing.T) {
	seed := strings.Repeat("A", 43) // 32 bytes en base64url sin padding
	a, err := KeySetFromSeed(seed)
	require.NoError(t, err)
	b, err := KeySetFromSeed(seed)
	require.NoError(t, err)
	assert.Equal(t, a.KID, b.KID)
	assert.Contains(t, string(a.JWKSJSON()), `"kid":"`+a.KID+`"`)

	_, err = KeySetFromSeed("c2hvcnQ")
	assert.Error(t, err)
}

func TestClaimsExpiryIsUTC(t *testing.T) {
	f := newFixture(t)
	cred, err := f.svc.Issue("id-1", KindAccess)
	require.NoError(t, err)

	claims, err := f.svc.Verify(context.Background(), cred.Token, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, cred.ExpiresAt, claims.Expiry())
	assert.Equal(t, time.UTC, claims.Expiry().Location())

	assert.True(t, (&Claims{}).Expiry().IsZero())
}
