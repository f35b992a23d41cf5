package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"leadgen-agent/internal/notify"
)

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient("", "token")
	require.Error(t, err)
	_, err = NewClient("AC123", " ")
	require.Error(t, err)
}

func TestSendSMS_PostsFormWithBasicAuth(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = r
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1"}`))
	}))
	defer srv.Close()

	c, err := NewClient("AC123", "secret", WithBaseURL(srv.URL))
	require.NoError(t, err)

	ok := c.SendSMS(context.Background(), notify.SMSMessage{From: "(415) 555-2671", To: "+1 212 555 0187", Body: "hello"})
	require.True(t, ok)
	require.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", got.URL.Path)
	user, pass, hasAuth := got.BasicAuth()
	require.True(t, hasAuth)
	require.Equal(t, "AC123", user)
	require.Equal(t, "secret", pass)
	require.Equal(t, "+14155552671", got.PostForm.Get("From"))
	require.Equal(t, "+12125550187", got.PostForm.Get("To"))
	require.Equal(t, "hello", got.PostForm.Get("Body"))
}

func TestSendSMS_FailuresReturnFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"code":21211}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c, err := NewClient("AC123", "secret", WithBaseURL(srv.URL))
	require.NoError(t, err)

	require.False(t, c.SendSMS(context.Background(), notify.SMSMessage{From: "+14155552671", To: "+12125550187", Body: "x"}))
	require.False(t, c.SendSMS(context.Background(), notify.SMSMessage{From: "nope", To: "+12125550187", Body: "x"}))
	require.False(t, c.SendSMS(context.Background(), notify.SMSMessage{From: "+14155552671", To: "+12125550187", Body: " "}))
}

func TestSendSMS_NetworkErrorReturnsFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	c, err := NewClient("AC123", "secret", WithBaseURL(srv.URL))
	require.NoError(t, err)
	require.False(t, c.SendSMS(context.Background(), notify.SMSMessage{From: "+14155552671", To: "+12125550187", Body: "x"}))
}
