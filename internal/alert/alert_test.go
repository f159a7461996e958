package alert

import (
	"context"
	"errors"
	"testing"
	"time"

	mail "github.com/go-mail/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlerter_ThrottlesPerKind(t *testing.T) {
	rec := &Recorder{}
	a := New(nil, time.Minute, rec)
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	ctx := context.Background()
	a.Raise(ctx, Alert{Kind: KindRevocationUnavailable, Detail: "redis down"})
	a.Raise(ctx, Alert{Kind: KindRevocationUnavailable, Detail: "still down"})
	a.Raise(ctx, Alert{Kind: KindLedgerCloseFailed})
	require.Len(t, rec.Alerts(), 2)

	now = now.Add(time.Minute)
	a.Raise(ctx, Alert{Kind: KindRevocationUnavailable})
	assert.Len(t, rec.Alerts(), 3)
}

type failingSink struct{}

func (failingSink) Notify(context.Context, Alert) error { return errors.New("boom") }

func TestAlerter_SinkErrorDoesNotStopOthers(t *testing.T) {
	rec := &Recorder{}
	a := New(nil, 0, failingSink{}, rec)
	a.Raise(context.Background(), Alert{Kind: "x"})
	assert.Len(t, rec.Alerts(), 1)
}

func TestNilAlerter(t *testing.T) {
	var a *Alerter
	a.Raise(context.Background(), Alert{Kind: "x"})
}

func TestSMTPSink_BuildsMessage(t *testing.T) {
	cfg := SMTPConfig{Host: "smtp.local", From: "ops@kidplay.test", To: []string{"oncall@kidplay.test"}}
	require.True(t, cfg.Enabled())

	var sent []*mail.Message
	s := NewSMTPSink(cfg)
	s.send = func(m ...*mail.Message) error {
		sent = append(sent, m...)
		return nil
	}

	err := s.Notify(context.Background(), Alert{Kind: KindRevocationUnavailable, Detail: "pg timeout", At: time.Unix(0, 0)})
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"[kidplay] revocation_check_unavailable"}, sent[0].GetHeader("Subject"))
	assert.Equal(t, []string{"oncall@kidplay.test"}, sent[0].GetHeader("To"))
}
