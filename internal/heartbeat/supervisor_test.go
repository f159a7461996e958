package heartbeat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCloser struct {
	mu     sync.Mutex
	closed map[string]time.Time
	err    error
	sup    *Supervisor
}

func (r *recordingCloser) CloseTimedOut(_ context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.closed == nil {
		r.closed = map[string]time.Time{}
	}
	r.closed[id] = now
	r.sup.Untrack(id)
	return nil
}

func (r *recordingCloser) closedAt(id string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.closed[id]
	return at, ok
}

var t0 = time.Date(2026, 4, 1, 18, 0, 0, 0, time.UTC)

func newSup(t *testing.T) (*Supervisor, *FakeClock, *recordingCloser) {
	t.Helper()
	clk := NewFakeClock(t0)
	sup := NewSupervisor(Config{}, clk, nil)
	rc := &recordingCloser{sup: sup}
	sup.Bind(rc)
	return sup, clk, rc
}

func TestClampAndWindow(t *testing.T) {
	sup, _, _ := newSup(t)
	assert.Equal(t, 30*time.Second, sup.ClampInterval(5*time.Second))
	assert.Equal(t, 120*time.Second, sup.ClampInterval(10*time.Minute))
	assert.Equal(t, 60*time.Second, sup.ClampInterval(0))
	assert.Equal(t, 45*time.Second, sup.ClampInterval(45*time.Second))

	assert.Equal(t, 75*time.Second, sup.Window(30*time.Second))
	assert.Equal(t, 150*time.Second, sup.Window(60*time.Second))
	assert.Equal(t, 300*time.Second, sup.Window(time.Hour))
}

// Cliente que deja de mandar heartbeats: con intervalo 30s la ventana es 75s
// y el cierre ocurre al segundo siguiente.
func TestSilentClientClosedAfterWindow(t *testing.T) {
	sup, clk, rc := newSup(t)
	sup.Track("s1", 30*time.Second, t0)

	clk.Advance(75 * time.Second)
	_, closed := rc.closedAt("s1")
	assert.False(t, closed, "exactly at the window is still on time")

	clk.Advance(time.Second)
	at, closed := rc.closedAt("s1")
	require.True(t, closed)
	assert.Equal(t, t0.Add(76*time.Second), at)
	assert.False(t, sup.Tracked("s1"))
	assert.Zero(t, clk.Pending())
}

func TestTouchReschedulesInsteadOfAccumulating(t *testing.T) {
	sup, clk, rc := newSup(t)
	sup.Track("s1", 30*time.Second, t0)

	for i := 1; i <= 10; i++ {
		clk.Advance(30 * time.Second)
		sup.Touch("s1", clk.Now())
		assert.Equal(t, 1, clk.Pending())
	}
	_, closed := rc.closedAt("s1")
	assert.False(t, closed)

	last := clk.Now()
	clk.Advance(76 * time.Second)
	at, closed := rc.closedAt("s1")
	require.True(t, closed)
	assert.Equal(t, last.Add(76*time.Second), at)
}

func TestTouchIgnoresOlderHeartbeat(t *testing.T) {
	sup, clk, rc := newSup(t)
	sup.Track("s1", 30*time.Second, t0.Add(50*time.Second))
	sup.Touch("s1", t0) // fuera de orden

	clk.Advance(50*time.Second + 76*time.Second)
	at, closed := rc.closedAt("s1")
	require.True(t, closed)
	assert.Equal(t, t0.Add(126*time.Second), at)
}

func TestUntrackStopsWatchdog(t *testing.T) {
	sup, clk, rc := newSup(t)
	sup.Track("s1", 30*time.Second, t0)
	sup.Untrack("s1")
	sup.Untrack("s1")
	clk.Advance(10 * time.Minute)
	_, closed := rc.closedAt("s1")
	assert.False(t, closed)
	assert.Zero(t, sup.Len())
}

func TestCloseFailureIsRetried(t *testing.T) {
	sup, clk, rc := newSup(t)
	rc.err = errors.New("db down")
	sup.Track("s1", 30*time.Second, t0)

	clk.Advance(76 * time.Second)
	assert.True(t, sup.Tracked("s1"))

	rc.mu.Lock()
	rc.err = nil
	rc.mu.Unlock()
	clk.Advance(5 * time.Second)
	at, closed := rc.closedAt("s1")
	require.True(t, closed)
	assert.Equal(t, t0.Add(81*time.Second), at)
}

func TestStopDisarmsEverything(t *testing.T) {
	sup, clk, rc := newSup(t)
	sup.Track("a", 30*time.Second, t0)
	sup.Track("b", 60*time.Second, t0)
	sup.Stop()
	sup.Track("c", 30*time.Second, t0)

	clk.Advance(time.Hour)
	assert.Empty(t, rc.closed)
	assert.Zero(t, sup.Len())
}

func TestBackoff(t *testing.T) {
	b := DefaultBackoff
	assert.Equal(t, time.Second, b.Delay(0))
	assert.Equal(t, 1500*time.Millisecond, b.Delay(1))
	assert.Equal(t, 2250*time.Millisecond, b.Delay(2))
	assert.Equal(t, 2*time.Minute, b.Delay(50))
}
