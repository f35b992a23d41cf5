package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"

	"leadgen-agent/internal/logging"
	"leadgen-agent/internal/notify"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	FromName string
}

// SMTPSender delivers through a plain SMTP relay via go-mail.
type SMTPSender struct {
	cfg     SMTPConfig
	timeout time.Duration
	log     *slog.Logger
	send    func(ctx context.Context, msg *gomail.Msg) error
}

func NewSMTPSender(cfg SMTPConfig, log *slog.Logger) (*SMTPSender, error) {
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Host == "" {
		return nil, errors.New("email: smtp host is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	s := &SMTPSender{cfg: cfg, timeout: 15 * time.Second, log: logging.OrDefault(log)}
	s.send = s.dialAndSend
	return s, nil
}

func (s *SMTPSender) SendEmail(ctx context.Context, msg notify.EmailMessage) bool {
	m, err := s.buildMessage(msg)
	if err == nil {
		err = s.send(ctx, m)
	}
	if err != nil {
		logging.FromContext(ctx, s.log).Warn("email not sent", "provider", "smtp", "err", err)
		return false
	}
	return true
}

func (s *SMTPSender) buildMessage(msg notify.EmailMessage) (*gomail.Msg, error) {
	if err := validate(msg); err != nil {
		return nil, err
	}
	m := gomail.NewMsg()
	if s.cfg.FromName != "" {
		if err := m.FromFormat(s.cfg.FromName, msg.From); err != nil {
			return nil, fmt.Errorf("email: smtp from: %w", err)
		}
	} else if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("email: smtp from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("email: smtp to: %w", err)
	}
	m.Subject(msg.Subject)
	switch {
	case msg.HTML != "" && msg.Text != "":
		m.SetBodyString(gomail.TypeTextPlain, msg.Text)
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	case msg.HTML != "":
		m.SetBodyString(gomail.TypeTextHTML, msg.HTML)
	default:
		m.SetBodyString(gomail.TypeTextPlain, msg.Text)
	}
	return m, nil
}

func (s *SMTPSender) dialAndSend(ctx context.Context, m *gomail.Msg) error {
	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(s.timeout),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}
	client, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("email: smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("email: smtp send: %w", err)
	}
	return nil
}
