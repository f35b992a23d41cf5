// Package sms sends owner alerts through a Twilio-compatible Messages API.
package sms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"

	"leadgen-agent/internal/logging"
	"leadgen-agent/internal/notify"
)

const defaultBaseURL = "https://api.twilio.com"

type Client struct {
	baseURL    string
	accountSID string
	authToken  string
	region     string
	httpClient *http.Client
	log        *slog.Logger
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithDefaultRegion sets the region used to parse numbers without a country code.
func WithDefaultRegion(region string) Option {
	return func(c *Client) { c.region = strings.ToUpper(strings.TrimSpace(region)) }
}

func NewClient(accountSID, authToken string, opts ...Option) (*Client, error) {
	accountSID = strings.TrimSpace(accountSID)
	authToken = strings.TrimSpace(authToken)
	if accountSID == "" || authToken == "" {
		return nil, errors.New("sms: account sid and auth token are required")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		accountSID: accountSID,
		authToken:  authToken,
		region:     "US",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.OrDefault(c.log)
	return c, nil
}

// SendSMS posts one message and reports whether the provider accepted it.
func (c *Client) SendSMS(ctx context.Context, msg notify.SMSMessage) bool {
	if err := c.send(ctx, msg); err != nil {
		logging.FromContext(ctx, c.log).Warn("sms not sent", "err", err)
		return false
	}
	return true
}

func (c *Client) send(ctx context.Context, msg notify.SMSMessage) error {
	from, err := toE164(msg.From, c.region)
	if err != nil {
		return fmt.Errorf("sms: from: %w", err)
	}
	to, err := toE164(msg.To, c.region)
	if err != nil {
		return fmt.Errorf("sms: to: %w", err)
	}
	if strings.TrimSpace(msg.Body) == "" {
		return errors.New("sms: body is empty")
	}

	form := url.Values{}
	form.Set("From", from)
	form.Set("To", to)
	form.Set("Body", msg.Body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, url.PathEscape(c.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("sms: create request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return fmt.Errorf("sms: unexpected status %d: %s", res.StatusCode, strings.TrimSpace(string(buf)))
	}
	return nil
}

func toE164(raw, region string) (string, error) {
	num, err := phonenumbers.Parse(strings.TrimSpace(raw), region)
	if err != nil {
		return "", err
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("invalid number %q", raw)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
