package alert

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/kidplay/internal/observability/logger"
	mail "github.com/go-mail/mail"
)

// SMTPConfig configura el envío de alertas por mail.
type SMTPConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	TLSMode  string   `yaml:"tls_mode"` // "auto" | "starttls" | "ssl" | "none"
}

// Enabled indica si hay lo mínimo para mandar mails.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != "" && len(c.To) > 0
}

// SMTPSink manda cada alerta admitida como un mail de texto plano.
type SMTPSink struct {
	cfg  SMTPConfig
	send func(m ...*mail.Message) error
}

func NewSMTPSink(cfg SMTPConfig) *SMTPSink {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	d.Timeout = 10 * time.Second
	switch cfg.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.StartTLSPolicy = mail.NoStartTLS
	default:
		// "auto"/"starttls": go-mail negocia STARTTLS si corresponde
	}
	return &SMTPSink{cfg: cfg, send: d.DialAndSend}
}

func (s *SMTPSink) Notify(ctx context.Context, a Alert) error {
	m := s.message(a)
	if err := s.send(m); err != nil {
		return fmt.Errorf("alert: smtp send: %w", err)
	}
	logger.From(ctx).Debug("alert mailed",
		logger.Component("alert.smtp"),
		logger.Kind(a.Kind),
		logger.String("to", strings.Join(s.cfg.To, ",")),
	)
	return nil
}

func (s *SMTPSink) message(a Alert) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", s.cfg.To...)
	m.SetHeader("Subject", "[kidplay] "+a.Kind)
	m.SetBody("text/plain", fmt.Sprintf("kind: %s\nat: %s\n\n%s\n", a.Kind, a.At.UTC().Format(time.RFC3339), a.Detail))
	return m
}
