package ga4

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"leadgen-agent/internal/analytics"
)

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient("", "secret")
	require.Error(t, err)
	_, err = NewClient("G-TEST", "")
	require.Error(t, err)
}

func TestTrack_PostsMeasurementProtocolPayload(t *testing.T) {
	var (
		gotQuery map[string]string
		gotBody  mpRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/mp/collect", r.URL.Path)
		gotQuery = map[string]string{
			"measurement_id": r.URL.Query().Get("measurement_id"),
			"api_secret":     r.URL.Query().Get("api_secret"),
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := NewClient("G-TEST", "s3cret", WithBaseURL(srv.URL), WithClientID("cid-1"))
	require.NoError(t, err)

	err = c.Track(context.Background(), analytics.Event{
		Name:     analytics.EventPhoneCall,
		Category: "conversion",
		Label:    "/contact",
		Value:    100,
		Params:   map[string]string{"page": "/contact", "value": "ignored"},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"measurement_id": "G-TEST", "api_secret": "s3cret"}, gotQuery)
	require.Equal(t, "cid-1", gotBody.ClientID)
	require.Len(t, gotBody.Events, 1)
	ev := gotBody.Events[0]
	require.Equal(t, "phone_call_conversion", ev.Name)
	require.Equal(t, "conversion", ev.Params["event_category"])
	require.Equal(t, "/contact", ev.Params["event_label"])
	require.Equal(t, float64(100), ev.Params["value"])
	require.Equal(t, "/contact", ev.Params["page"])
}

func TestTrack_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewClient("G-TEST", "s3cret", WithBaseURL(srv.URL))
	require.NoError(t, err)
	require.ErrorContains(t, c.Track(context.Background(), analytics.Event{Name: "x"}), "status 500")
}

func TestTrack_TransportErrorOmitsAPISecret(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c, err := NewClient("G-TEST", "s3cret-value", WithBaseURL(addr))
	require.NoError(t, err)

	err = c.Track(context.Background(), analytics.Event{Name: analytics.EventPhoneCall})
	require.Error(t, err)
	require.ErrorContains(t, err, "ga4: request failed")
	require.NotContains(t, err.Error(), "s3cret-value")
	require.NotContains(t, err.Error(), "api_secret")
}
