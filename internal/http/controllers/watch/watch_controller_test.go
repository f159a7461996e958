package watch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dropDatabas3/kidplay/internal/gateway"
	domain "github.com/dropDatabas3/kidplay/internal/watch"
	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)

type fakeService struct {
	scan     gateway.ScanResult
	err      error
	interval time.Duration
	at       time.Time
	ended    string
}

func (f *fakeService) Scan(_ context.Context, _ string, interval time.Duration, at time.Time) (gateway.ScanResult, error) {
	f.interval, f.at = interval, at
	return f.scan, f.err
}

func (f *fakeService) Heartbeat(context.Context, string, time.Time) (domain.HeartbeatResult, error) {
	return domain.HeartbeatResult{}, f.err
}

func (f *fakeService) EndPlayback(_ context.Context, id string, _ time.Time) error {
	f.ended = id
	return f.err
}

func post(h http.HandlerFunc, target, ctype, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	if ctype != "" {
		r.Header.Set("Content-Type", ctype)
	}
	rec := httptest.NewRecorder()
	h(rec, r)
	return rec
}

func TestScanPassesIntervalAndClock(t *testing.T) {
	svc := &fakeService{scan: gateway.ScanResult{Allowed: true, SessionID: "s", Interval: 45 * time.Second, Window: 112 * time.Second, RemainingSeconds: 10}}
	c := NewController(svc, func() time.Time { return now })

	rec := post(c.Scan, "/", "application/json", `{"chip_token":"c","heartbeat_interval_seconds":45}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 45*time.Second, svc.interval)
	assert.Equal(t, now, svc.at)
	assert.JSONEq(t, `{"session_id":"s","allowed":true,"heartbeat_interval_seconds":45,"timeout_seconds":112,"remaining_seconds":10}`, rec.Body.String())
}

func TestScanRejectsNegativeInterval(t *testing.T) {
	c := NewController(&fakeService{}, nil)
	rec := post(c.Scan, "/", "application/json", `{"chip_token":"c","heartbeat_interval_seconds":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanInternalError(t *testing.T) {
	c := NewController(&fakeService{err: errors.New("db down")}, nil)
	rec := post(c.Scan, "/", "application/json", `{"chip_token":"c"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestEndBodyOrQuery(t *testing.T) {
	svc := &fakeService{}
	c := NewController(svc, nil)

	rec := post(c.End, "/", "text/plain;charset=UTF-8", `{"session_id":"from-body"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "from-body", svc.ended)

	rec = post(c.End, "/?session_id=from-query", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "from-query", svc.ended)

	svc.err = domain.ErrSessionNotFound
	rec = post(c.End, "/", "application/x-www-form-urlencoded", "session_id=gone")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "gone", svc.ended)
}

func TestHeartbeatRequiresJSON(t *testing.T) {
	c := NewController(&fakeService{}, nil)
	rec := post(c.Heartbeat, "/", "text/plain", `{"session_id":"x"}`)
	assert.GreaterOrEqual(t, rec.Code, 400)
}
