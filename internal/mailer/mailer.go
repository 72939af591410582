// Package mailer delivers collected emails over SMTP.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/m3rciful/mailbot/core/logger"
	"github.com/m3rciful/mailbot/core/netutil"
	"github.com/m3rciful/mailbot/internal/conversation"
)

const (
	// DefaultHost is used when no SMTP server is configured.
	DefaultHost = "smtp.gmail.com"
	// DefaultPort is the implicit-TLS submission port.
	DefaultPort = 465

	defaultTimeout = 30 * time.Second
)

// Config holds SMTP settings.
type Config struct {
	Host     string        `yaml:"host" envconfig:"SMTP_SERVER"`
	Port     int           `yaml:"port" envconfig:"SMTP_PORT"`
	Username string        `yaml:"username" envconfig:"EMAIL_ADDRESS"`
	Password string        `yaml:"password" envconfig:"EMAIL_PASSWORD"`
	From     string        `yaml:"from" envconfig:"EMAIL_FROM"`
	SSL      *bool         `yaml:"ssl" envconfig:"SMTP_SSL"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"SMTP_TIMEOUT"`

	BodyTemplate string `yaml:"body_template" envconfig:"EMAIL_BODY_TEMPLATE"`
	Signature    string `yaml:"signature" envconfig:"EMAIL_SIGNATURE"`
}

// Normalize validates cfg and fills defaults. From falls back to Username,
// and SSL defaults to on for port 465.
func (c *Config) Normalize() error {
	c.Host = strings.TrimSpace(c.Host)
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("mail.port %d out of range", c.Port)
	}
	if strings.TrimSpace(c.From) == "" {
		c.From = c.Username
	}
	if strings.TrimSpace(c.From) == "" {
		return errors.New("mail.from or mail.username is required")
	}
	if c.SSL == nil {
		ssl := c.Port == DefaultPort
		c.SSL = &ssl
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return nil
}

func (c Config) ssl() bool {
	return c.SSL != nil && *c.SSL
}

// Mailer sends conversation messages through an SMTP server. A new
// connection is opened per message.
type Mailer struct {
	cfg  Config
	send func(ctx context.Context, msg *mail.Msg) error
}

// New validates cfg and returns a Mailer.
func New(cfg Config) (*Mailer, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	m := &Mailer{cfg: cfg}
	m.send = m.dialAndSend
	return m, nil
}

// Deliver implements conversation.Deliverer.
func (m *Mailer) Deliver(ctx context.Context, msg conversation.Message) error {
	start := time.Now()
	built, err := m.Build(msg)
	if err != nil {
		return err
	}
	if err := m.send(ctx, built); err != nil {
		logger.Warn(ctx, "mail", "mail.send",
			slog.String("status", "fail"),
			slog.String("host", m.cfg.Host),
			slog.Int("port", m.cfg.Port),
			slog.String("recipient", msg.To),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err_kind", netutil.Classify(err)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("mailer: send: %w", err)
	}
	logger.Info(ctx, "mail", "mail.sent",
		slog.String("recipient", msg.To),
		slog.String("subject", logger.SanitizeLimit(msg.Subject, 128)),
		slog.Bool("attachment", msg.Attachment != nil),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// Build renders msg as a MIME message: a plain text body plus the optional
// attachment, base64 encoded.
func (m *Mailer) Build(msg conversation.Message) (*mail.Msg, error) {
	out := mail.NewMsg()
	if err := out.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("mailer: from address: %w", err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("mailer: recipient address: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetDate()
	out.SetMessageID()
	out.SetBodyString(mail.TypeTextPlain, msg.Body)

	if a := msg.Attachment; a != nil {
		if err := out.AttachReader(a.FileName, bytes.NewReader(a.Data)); err != nil {
			return nil, fmt.Errorf("mailer: attach %s: %w", a.FileName, err)
		}
	}
	return out, nil
}

func (m *Mailer) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTimeout(m.cfg.Timeout),
	}
	if m.cfg.ssl() {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}
