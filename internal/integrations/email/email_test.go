package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	gomail "github.com/wneessen/go-mail"

	"leadgen-agent/internal/notify"
)

var testMsg = notify.EmailMessage{
	From:    "leads@example.com",
	To:      "owner@example.com",
	Subject: "New estimate request",
	HTML:    "<p>hi</p>",
	Text:    "hi",
}

func TestHTTPSender_PostsJSON(t *testing.T) {
	var (
		gotAuth string
		gotBody sendRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/emails", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"id":"e1"}`))
	}))
	defer srv.Close()

	s, err := NewHTTPSender("re_key", WithBaseURL(srv.URL))
	require.NoError(t, err)
	require.True(t, s.SendEmail(context.Background(), testMsg))
	require.Equal(t, "Bearer re_key", gotAuth)
	require.Equal(t, sendRequest{
		From:    "leads@example.com",
		To:      []string{"owner@example.com"},
		Subject: "New estimate request",
		HTML:    "<p>hi</p>",
		Text:    "hi",
	}, gotBody)
}

func TestHTTPSender_FailuresReturnFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid from", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	s, err := NewHTTPSender("re_key", WithBaseURL(srv.URL))
	require.NoError(t, err)
	require.False(t, s.SendEmail(context.Background(), testMsg))

	empty := testMsg
	empty.HTML, empty.Text = "", ""
	require.False(t, s.SendEmail(context.Background(), empty))

	_, err = NewHTTPSender(" ")
	require.Error(t, err)
}

func TestSMTPSender_BuildsMultipartMessage(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", FromName: "Acme Leads"}, nil)
	require.NoError(t, err)
	require.Equal(t, 587, s.cfg.Port)

	var sent *gomail.Msg
	s.send = func(_ context.Context, m *gomail.Msg) error {
		sent = m
		return nil
	}
	require.True(t, s.SendEmail(context.Background(), testMsg))
	require.NotNil(t, sent)

	var buf bytes.Buffer
	_, err = sent.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	require.Contains(t, raw, "Subject: New estimate request")
	require.Contains(t, raw, `"Acme Leads" <leads@example.com>`)
	require.Contains(t, raw, "<owner@example.com>")
	require.Contains(t, raw, "text/html")
	require.Contains(t, raw, "text/plain")
}

func TestSMTPSender_FailuresReturnFalse(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com"}, nil)
	require.NoError(t, err)
	s.send = func(context.Context, *gomail.Msg) error { return errors.New("connection refused") }
	require.False(t, s.SendEmail(context.Background(), testMsg))

	bad := testMsg
	bad.To = "not an address"
	s.send = func(context.Context, *gomail.Msg) error { return nil }
	require.False(t, s.SendEmail(context.Background(), bad))

	_, err = NewSMTPSender(SMTPConfig{}, nil)
	require.Error(t, err)
}
