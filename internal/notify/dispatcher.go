// Package notify turns queued lead payloads into owner notifications.
//
// Email is attempted for every payload when an email sink is configured; SMS
// is reserved for high-priority payloads. Each channel fails on its own: a
// channel error is logged and never aborts the other channel or the
// message's acknowledgement.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"leadgen-agent/internal/domain"
	"leadgen-agent/internal/logging"
)

type SMSMessage struct {
	From string
	To   string
	Body string
}

type EmailMessage struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// SMSSender delivers one text message and reports success from the provider status.
type SMSSender interface {
	SendSMS(ctx context.Context, msg SMSMessage) bool
}

// EmailSender delivers one email and reports success from the provider status.
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage) bool
}

type Recipients struct {
	SMSFrom   string
	SMSTo     string
	EmailFrom string
	EmailTo   string
}

// Report records what a dispatch attempted and what the sinks accepted.
type Report struct {
	Kind           domain.PayloadKind
	Priority       Priority
	SMSAttempted   bool
	SMSSent        bool
	EmailAttempted bool
	EmailSent      bool
}

type Dispatcher struct {
	sms          SMSSender
	email        EmailSender
	to           Recipients
	businessName string
	log          *slog.Logger
}

type Option func(*Dispatcher)

// WithSMS enables the SMS channel. A nil sender leaves it disabled.
func WithSMS(s SMSSender) Option {
	return func(d *Dispatcher) { d.sms = s }
}

// WithEmail enables the email channel. A nil sender leaves it disabled.
func WithEmail(s EmailSender) Option {
	return func(d *Dispatcher) { d.email = s }
}

func WithBusinessName(name string) Option {
	return func(d *Dispatcher) { d.businessName = strings.TrimSpace(name) }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

func NewDispatcher(to Recipients, opts ...Option) *Dispatcher {
	d := &Dispatcher{to: to}
	for _, opt := range opts {
		opt(d)
	}
	d.log = logging.OrDefault(d.log)
	if d.sms != nil && strings.TrimSpace(d.to.SMSTo) == "" {
		d.log.Warn("sms channel disabled: no recipient configured")
		d.sms = nil
	}
	if d.email != nil && strings.TrimSpace(d.to.EmailTo) == "" {
		d.log.Warn("email channel disabled: no recipient configured")
		d.email = nil
	}
	return d
}

// Dispatch classifies and renders p, then calls the configured channels.
// An error means nothing was sent and the message should be retried; channel
// failures are reported in the Report only.
func (d *Dispatcher) Dispatch(ctx context.Context, p domain.Payload) (Report, error) {
	if p == nil {
		return Report{}, fmt.Errorf("notify: dispatch: %w", domain.ErrMalformedPayload)
	}
	priority := PriorityFor(p)
	report := Report{Kind: p.Kind(), Priority: priority}
	log := logging.FromContext(ctx, d.log).With("kind", p.Kind(), "priority", priority)

	sendSMS := d.sms != nil && priority == PriorityHigh
	var (
		smsBody string
		mail    Email
	)
	if sendSMS {
		body, err := RenderSMS(p)
		if err != nil {
			return report, err
		}
		smsBody = body
	}
	if d.email != nil {
		rendered, err := RenderEmail(p, priority, d.businessName)
		if err != nil {
			return report, err
		}
		mail = rendered
	}

	if sendSMS {
		report.SMSAttempted = true
		report.SMSSent = d.deliver(ctx, log, "sms", func(ctx context.Context) bool {
			return d.sms.SendSMS(ctx, SMSMessage{From: d.to.SMSFrom, To: d.to.SMSTo, Body: smsBody})
		})
	}
	if d.email != nil {
		report.EmailAttempted = true
		report.EmailSent = d.deliver(ctx, log, "email", func(ctx context.Context) bool {
			return d.email.SendEmail(ctx, EmailMessage{
				From:    d.to.EmailFrom,
				To:      d.to.EmailTo,
				Subject: mail.Subject,
				HTML:    mail.HTML,
				Text:    mail.Text,
			})
		})
	}

	log.Info("notification dispatched",
		"sms_attempted", report.SMSAttempted, "sms_sent", report.SMSSent,
		"email_attempted", report.EmailAttempted, "email_sent", report.EmailSent,
	)
	return report, nil
}

// deliver runs one channel call, turning a panic into a failed send.
func (d *Dispatcher) deliver(ctx context.Context, log *slog.Logger, channel string, send func(context.Context) bool) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("notification channel panicked", "channel", channel, "panic", rec)
			ok = false
		}
	}()
	ok = send(ctx)
	if !ok {
		log.Warn("notification channel failed", "channel", channel)
	}
	return ok
}
