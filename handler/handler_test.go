package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"leadgen-agent/internal/logging"
	"leadgen-agent/internal/usecase"
)

type stubChat struct {
	out   usecase.ChatOutput
	err   error
	in    usecase.ChatInput
	corrs []string
}

func (s *stubChat) Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error) {
	s.in = in
	s.corrs = append(s.corrs, logging.CorrelationID(ctx))
	return s.out, s.err
}

type stubLeads struct {
	out      usecase.EstimateOutput
	err      error
	in       usecase.EstimateInput
	calls    []string
	estimate int
}

func (s *stubLeads) SubmitEstimate(_ context.Context, in usecase.EstimateInput) (usecase.EstimateOutput, error) {
	s.in = in
	s.estimate++
	return s.out, s.err
}

func (s *stubLeads) RecordCall(_ context.Context, page string) {
	s.calls = append(s.calls, page)
}

func makeEvent(p, body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       p,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func newTestHandler(t *testing.T, chat *stubChat, leads *stubLeads, opts ...Option) *Handler {
	t.Helper()
	h, err := NewHandler(chat, leads, opts...)
	require.NoError(t, err)
	return h
}

func TestNewHandler_ValidatesDependencies(t *testing.T) {
	_, err := NewHandler(nil, &stubLeads{})
	require.Error(t, err)
	_, err = NewHandler(&stubChat{}, nil)
	require.Error(t, err)
}

func TestHandle_Chat(t *testing.T) {
	chat := &stubChat{out: usecase.ChatOutput{Reply: "Yes we do.", SessionID: "s-1", IsHighValue: true}}
	drained := 0
	h := newTestHandler(t, chat, &stubLeads{}, WithDrain(func(context.Context) error { drained++; return nil }))

	resp, err := h.Handle(context.Background(), makeEvent("/chat", `{"message":"Do you do commercial office painting?","sessionId":"s-1","page":"/services","imageRef":"chat/a.jpg"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, usecase.ChatInput{SessionID: "s-1", Message: "Do you do commercial office painting?", Page: "/services", ImageRef: "chat/a.jpg"}, chat.in)

	out := parseBody[ChatResponse](t, resp.Body)
	require.Equal(t, ChatResponse{Reply: "Yes we do.", SessionID: "s-1", IsHighValue: true}, out)
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
	require.Equal(t, resp.Headers["X-Correlation-Id"], chat.corrs[0])
	require.Equal(t, 1, drained)
}

func TestHandle_Estimate(t *testing.T) {
	leads := &stubLeads{out: usecase.EstimateOutput{LeadID: "lead-1"}}
	h := newTestHandler(t, &stubChat{}, leads)

	resp, err := h.Handle(context.Background(), makeEvent("/prod/estimate/", `{"name":"Jane","email":"jane@example.com","service":"Interior Painting","message":"just curious"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, "Jane", leads.in.Name)
	require.Equal(t, EstimateResponse{Status: "received", LeadID: "lead-1"}, parseBody[EstimateResponse](t, resp.Body))
}

func TestHandle_CallConversion(t *testing.T) {
	leads := &stubLeads{}
	h := newTestHandler(t, &stubChat{}, leads)

	resp, err := h.Handle(context.Background(), makeEvent("/call-conversion", `{"page":"/contact"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err = h.Handle(context.Background(), makeEvent("/call-conversion", ``))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, []string{"/contact", ""}, leads.calls)
}

func TestHandle_Base64Body(t *testing.T) {
	chat := &stubChat{out: usecase.ChatOutput{Reply: "ok", SessionID: "s"}}
	h := newTestHandler(t, chat, &stubLeads{})

	event := makeEvent("/chat", base64.StdEncoding.EncodeToString([]byte(`{"message":"hello"}`)))
	event.IsBase64Encoded = true
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "hello", chat.in.Message)
}

func TestHandle_InvalidBody(t *testing.T) {
	chat := &stubChat{}
	h := newTestHandler(t, chat, &stubLeads{})

	resp, err := h.Handle(context.Background(), makeEvent("/chat", `not-json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	out := parseBody[ErrorResponse](t, resp.Body)
	require.Equal(t, string(usecase.ErrorInvalidInput), out.Error)
	require.Empty(t, chat.corrs)
}

func TestHandle_RoutingErrors(t *testing.T) {
	h := newTestHandler(t, &stubChat{}, &stubLeads{})

	resp, err := h.Handle(context.Background(), makeEvent("/quote", `{}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	event := makeEvent("/chat", "")
	event.HTTPMethod = http.MethodGet
	resp, err = h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandle_MapsUseCaseErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid input", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_message"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidInput)},
		{name: "completion unavailable", err: &usecase.Error{Code: usecase.ErrorCompletionUnavailable, Reason: "completion_rate_limited"}, status: http.StatusBadGateway, code: string(usecase.ErrorCompletionUnavailable)},
		{name: "rate limited", err: &usecase.Error{Code: usecase.ErrorRateLimited, Reason: "too_many_requests"}, status: http.StatusTooManyRequests, code: string(usecase.ErrorRateLimited)},
		{name: "internal", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "estimate_not_accepted"}, status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(t, &stubChat{err: tc.err}, &stubLeads{})

			resp, err := h.Handle(context.Background(), makeEvent("/chat", `{"message":"hi"}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[ErrorResponse](t, resp.Body)
			require.Equal(t, tc.code, out.Error)
		})
	}
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	chat := &stubChat{out: usecase.ChatOutput{Reply: "ok", SessionID: "s"}}
	h := newTestHandler(t, chat, &stubLeads{})

	event := makeEvent("/chat", `{"message":"hi"}`)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
	require.Equal(t, []string{"corr-123"}, chat.corrs)
}
