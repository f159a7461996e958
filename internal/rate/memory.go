package rate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter es el fixed window in-process (una sola instancia o dev).
type MemoryLimiter struct {
	Max    int64
	Window time.Duration

	mu  sync.Mutex
	c   *gocache.Cache
	now func() time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		Max:    int64(max),
		Window: window,
		c:      gocache.New(window, 2*window),
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now().UTC()
	winStart := now.Truncate(l.Window)
	k := fmt.Sprintf("%s:%d", strings.ReplaceAll(key, " ", "_"), winStart.Unix())
	ttl := winStart.Add(l.Window).Sub(now)

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.c.Get(k); !ok {
		l.c.Set(k, int64(0), ttl)
	}
	hits, err := l.c.IncrementInt64(k, 1)
	if err != nil {
		return Result{}, fmt.Errorf("rate: memory: %w", err)
	}
	return fixedWindowResult(hits, l.Max, ttl, l.Window), nil
}
