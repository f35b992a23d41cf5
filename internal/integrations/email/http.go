// Package email delivers owner notifications, either through a
// Resend-compatible HTTP API or directly over SMTP.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"leadgen-agent/internal/logging"
	"leadgen-agent/internal/notify"
)

const defaultAPIBaseURL = "https://api.resend.com"

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// HTTPSender posts to a Resend-compatible /emails endpoint with a bearer key.
type HTTPSender struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
}

type HTTPOption func(*HTTPSender)

func WithBaseURL(baseURL string) HTTPOption {
	return func(s *HTTPSender) { s.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/") }
}

func WithHTTPClient(h *http.Client) HTTPOption {
	return func(s *HTTPSender) { s.httpClient = h }
}

func WithHTTPLogger(l *slog.Logger) HTTPOption {
	return func(s *HTTPSender) { s.log = l }
}

func NewHTTPSender(apiKey string, opts ...HTTPOption) (*HTTPSender, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("email: api key is required")
	}
	s := &HTTPSender{
		baseURL:    defaultAPIBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.OrDefault(s.log)
	return s, nil
}

func (s *HTTPSender) SendEmail(ctx context.Context, msg notify.EmailMessage) bool {
	if err := s.send(ctx, msg); err != nil {
		logging.FromContext(ctx, s.log).Warn("email not sent", "provider", "http", "err", err)
		return false
	}
	return true
}

func (s *HTTPSender) send(ctx context.Context, msg notify.EmailMessage) error {
	if err := validate(msg); err != nil {
		return err
	}
	body, err := json.Marshal(sendRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("email: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("email: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	res, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return fmt.Errorf("email: unexpected status %d: %s", res.StatusCode, strings.TrimSpace(string(buf)))
	}
	return nil
}

func validate(msg notify.EmailMessage) error {
	if strings.TrimSpace(msg.From) == "" || strings.TrimSpace(msg.To) == "" {
		return errors.New("email: from and to are required")
	}
	if msg.HTML == "" && msg.Text == "" {
		return errors.New("email: body is empty")
	}
	return nil
}
