// Package ga4 records analytics events through the GA4 Measurement Protocol.
package ga4

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"leadgen-agent/internal/analytics"
)

const defaultBaseURL = "https://www.google-analytics.com"

type mpEvent struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
}

type mpRequest struct {
	ClientID string    `json:"client_id"`
	Events   []mpEvent `json:"events"`
}

type Client struct {
	baseURL       string
	measurementID string
	apiSecret     string
	clientID      string
	httpClient    *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithClientID pins the Measurement Protocol client_id. By default each
// server process reports under one random id.
func WithClientID(id string) Option {
	return func(c *Client) {
		if id = strings.TrimSpace(id); id != "" {
			c.clientID = id
		}
	}
}

func NewClient(measurementID, apiSecret string, opts ...Option) (*Client, error) {
	measurementID = strings.TrimSpace(measurementID)
	apiSecret = strings.TrimSpace(apiSecret)
	if measurementID == "" || apiSecret == "" {
		return nil, errors.New("ga4: measurement id and api secret are required")
	}
	c := &Client{
		baseURL:       defaultBaseURL,
		measurementID: measurementID,
		apiSecret:     apiSecret,
		clientID:      "server." + uuid.NewString(),
		httpClient:    &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Track sends e. The collect endpoint answers 2xx for anything it can parse.
func (c *Client) Track(ctx context.Context, e analytics.Event) error {
	params := map[string]any{
		"event_category": e.Category,
		"event_label":    e.Label,
		"value":          e.Value,
	}
	for k, v := range e.Params {
		if _, taken := params[k]; !taken {
			params[k] = v
		}
	}
	body, err := json.Marshal(mpRequest{
		ClientID: c.clientID,
		Events:   []mpEvent{{Name: e.Name, Params: params}},
	})
	if err != nil {
		return fmt.Errorf("ga4: marshal event: %w", err)
	}

	q := url.Values{}
	q.Set("measurement_id", c.measurementID)
	q.Set("api_secret", c.apiSecret)
	endpoint := c.baseURL + "/mp/collect?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ga4: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		// *url.Error prints the full URL, which carries api_secret.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("ga4: request failed: POST %s/mp/collect: %w", c.baseURL, err)
	}
	defer func() { _ = res.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("ga4: unexpected status %d", res.StatusCode)
	}
	return nil
}
