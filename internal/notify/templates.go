package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"leadgen-agent/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	smsMaxQuote = 120
	timeLayout  = "Mon Jan 2 2006, 3:04 PM MST"
)

// Email is a rendered owner notification.
type Email struct {
	Subject string
	HTML    string
	Text    string
}

type emailData struct {
	Title        string
	Heading      string
	HighPriority bool
	NextSteps    []string
	ReceivedAt   string
	BusinessName string

	Estimate domain.EstimateRequest
	ChatLead domain.HighValueChatLead
	Call     domain.CallConversion
}

var emailTemplates = map[domain.PayloadKind]*template.Template{}

func init() {
	for _, kind := range []domain.PayloadKind{domain.KindEstimateRequest, domain.KindHighValueChatLead, domain.KindCallConversion} {
		emailTemplates[kind] = template.Must(template.New("base.html").ParseFS(templateFS, "templates/base.html", "templates/"+string(kind)+".html"))
	}
}

// RenderEmail renders the owner email for p.
func RenderEmail(p domain.Payload, priority Priority, businessName string) (Email, error) {
	if p == nil {
		return Email{}, fmt.Errorf("notify: render email: %w", domain.ErrMalformedPayload)
	}
	tmpl, ok := emailTemplates[p.Kind()]
	if !ok {
		return Email{}, fmt.Errorf("notify: no email template for %q", p.Kind())
	}

	data := emailData{
		HighPriority: priority == PriorityHigh,
		ReceivedAt:   formatTime(p.OccurredAt()),
		BusinessName: strings.TrimSpace(businessName),
	}

	var subject, text string
	switch v := p.(type) {
	case domain.EstimateRequest:
		data.Estimate = v
		data.Heading = "New estimate request"
		data.NextSteps = []string{
			"Reply to " + v.Email + " to confirm receipt.",
			"Schedule a walkthrough or ask for photos.",
		}
		if v.Phone != "" {
			data.NextSteps = append([]string{"Call " + v.Name + " at " + v.Phone + "."}, data.NextSteps...)
		}
		subject = fmt.Sprintf("New estimate request: %s from %s", v.Service, v.Name)
		text = fmt.Sprintf("New estimate request\nName: %s\nEmail: %s\nPhone: %s\nService: %s\n\n%s\n", v.Name, v.Email, orNone(v.Phone), v.Service, v.Message)
	case domain.HighValueChatLead:
		data.ChatLead = v
		data.Heading = "High-value chat lead"
		data.NextSteps = []string{
			"Review the conversation and follow up if the visitor left contact details.",
			"Check whether an estimate request arrives from the same visitor.",
		}
		subject = "High-value chat lead on " + orNone(v.Page)
		text = fmt.Sprintf("High-value chat lead on %s\n\nVisitor: %s\n\nAssistant: %s\n", orNone(v.Page), v.Message, v.Reply)
	case domain.CallConversion:
		data.Call = v
		data.Heading = "Click-to-call conversion"
		data.NextSteps = []string{
			"Answer or return the call promptly.",
			"Log the call outcome.",
		}
		subject = "Phone call conversion from " + orNone(v.Page)
		text = fmt.Sprintf("A visitor tapped click-to-call on %s.\n", orNone(v.Page))
	default:
		return Email{}, fmt.Errorf("notify: unsupported payload %T", p)
	}
	if data.HighPriority {
		subject = "[HIGH VALUE] " + subject
	}
	data.Title = subject

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return Email{}, fmt.Errorf("notify: execute email template %s: %w", p.Kind(), err)
	}
	return Email{Subject: subject, HTML: buf.String(), Text: text}, nil
}

// RenderSMS renders the short owner text for p. Call conversions have no SMS form.
func RenderSMS(p domain.Payload) (string, error) {
	switch v := p.(type) {
	case domain.EstimateRequest:
		return fmt.Sprintf("New HIGH-VALUE estimate: %s, %s, %s. Call back now.", v.Name, orNone(v.Phone), v.Service), nil
	case domain.HighValueChatLead:
		return fmt.Sprintf("Hot chat lead on %s: %q. Check email for the full exchange.", orNone(v.Page), truncate(v.Message, smsMaxQuote)), nil
	default:
		return "", fmt.Errorf("notify: no sms template for %T", p)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "at an unknown time"
	}
	return t.UTC().Format(timeLayout)
}

func truncate(s string, max int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max-3]) + "..."
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "n/a"
	}
	return s
}
