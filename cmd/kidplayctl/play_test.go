package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func immediate(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func testPlayer(t *testing.T, h http.Handler) *player {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	p := newPlayer(&client{BaseURL: srv.URL, HTTP: srv.Client(), Out: &bytes.Buffer{}})
	p.after = immediate
	return p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestPlayerRunsUntilLimit(t *testing.T) {
	var beats atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/watch/scan", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "chip", req["chip_token"])
		writeJSON(w, 200, map[string]any{"session_id": "s1", "allowed": true, "heartbeat_interval_seconds": 30, "timeout_seconds": 75, "remaining_seconds": 90})
	})
	mux.HandleFunc("/v1/watch/heartbeat", func(w http.ResponseWriter, _ *http.Request) {
		n := beats.Add(1)
		if n == 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, 200, map[string]any{"continue": n < 4, "reason": map[bool]string{true: "", false: "limit_reached"}[n < 4]})
	})

	reason, err := testPlayer(t, mux).Run(context.Background(), "chip", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "limit_reached", reason)
	assert.EqualValues(t, 4, beats.Load())
}

func TestPlayerDeniedScans(t *testing.T) {
	p := testPlayer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]any{"allowed": false, "reason": "unknown_chip"})
	}))
	reason, err := p.Run(context.Background(), "x", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "unknown_chip", reason)

	p = testPlayer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"allowed": false, "reason": "limit_reached"})
	}))
	reason, err = p.Run(context.Background(), "x", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "limit_reached", reason)
}

func TestPlayerEndsOnCancel(t *testing.T) {
	ended := make(chan string, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/watch/scan", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]any{"session_id": "s9", "allowed": true, "heartbeat_interval_seconds": 60})
	})
	mux.HandleFunc("/v1/watch/end", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		ended <- req["session_id"]
		w.WriteHeader(http.StatusNoContent)
	})

	p := testPlayer(t, mux)
	p.after = func(time.Duration) <-chan time.Time { return nil } // nunca dispara

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan string, 1)
	go func() {
		reason, _ := p.Run(ctx, "chip", time.Minute)
		done <- reason
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	assert.Equal(t, "normal", <-done)
	assert.Equal(t, "s9", <-ended)
}

func TestPlayerStopsOnClientError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/watch/scan", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]any{"session_id": "s1", "allowed": true, "heartbeat_interval_seconds": 30})
	})
	mux.HandleFunc("/v1/watch/heartbeat", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"code": "SESSION_NOT_FOUND", "message": "sesión no encontrada"})
	})

	_, err := testPlayer(t, mux).Run(context.Background(), "chip", 30*time.Second)
	var ae *apiError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "SESSION_NOT_FOUND", ae.Code)
}

func TestKeygenProducesSeed(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"keygen"})
	require.NoError(t, cmd.Execute())
	assert.Len(t, bytes.TrimSpace(out.Bytes()), 43)
}
