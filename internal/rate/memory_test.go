package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLimiter(2, time.Minute)
	base := time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC)
	l.now = func() time.Time { return base }

	r, err := l.Allow(ctx, "login:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, r.Allowed)
	assert.EqualValues(t, 1, r.Remaining)

	r, _ = l.Allow(ctx, "login:1.2.3.4")
	assert.True(t, r.Allowed)

	r, _ = l.Allow(ctx, "login:1.2.3.4")
	assert.False(t, r.Allowed)
	assert.Equal(t, 55*time.Second, r.RetryAfter)

	// otra key no comparte ventana
	r, _ = l.Allow(ctx, "login:5.6.7.8")
	assert.True(t, r.Allowed)

	// la ventana siguiente arranca de cero
	l.now = func() time.Time { return base.Add(time.Minute) }
	r, _ = l.Allow(ctx, "login:1.2.3.4")
	assert.True(t, r.Allowed)
	assert.EqualValues(t, 1, r.CurrentHits)
}
