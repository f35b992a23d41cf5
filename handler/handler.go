package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"leadgen-agent/internal/logging"
	"leadgen-agent/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type ChatUseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
}

type LeadUseCase interface {
	SubmitEstimate(ctx context.Context, in usecase.EstimateInput) (usecase.EstimateOutput, error)
	RecordCall(ctx context.Context, page string)
}

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
	Page      string `json:"page,omitempty"`
	ImageRef  string `json:"imageRef,omitempty"`
}

type ChatResponse struct {
	Reply       string `json:"reply"`
	SessionID   string `json:"sessionId"`
	IsHighValue bool   `json:"isHighValue"`
}

type EstimateRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Service string `json:"service"`
	Message string `json:"message,omitempty"`
	Page    string `json:"page,omitempty"`
}

type EstimateResponse struct {
	Status string `json:"status"`
	LeadID string `json:"leadId"`
}

type CallRequest struct {
	Page string `json:"page,omitempty"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// Handler serves the API Gateway proxy routes POST /chat, /estimate and /call-conversion.
type Handler struct {
	chat  ChatUseCase
	leads LeadUseCase
	drain func(context.Context) error
	log   *slog.Logger
}

type Option func(*Handler)

// WithDrain runs fn after every request so background work finishes
// before the Lambda invocation returns.
func WithDrain(fn func(context.Context) error) Option {
	return func(h *Handler) { h.drain = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.log = l }
}

func NewHandler(chat ChatUseCase, leads LeadUseCase, opts ...Option) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	if leads == nil {
		return nil, errors.New("handler: lead use case must not be nil")
	}
	h := &Handler{chat: chat, leads: leads}
	for _, opt := range opts {
		opt(h)
	}
	h.log = logging.OrDefault(h.log)
	return h, nil
}

func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(event.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	ctx = logging.WithCorrelationID(ctx, correlationID)
	log := logging.FromContext(ctx, h.log)

	resp := h.route(ctx, event)
	resp.Headers[correlationHeader] = correlationID

	if h.drain != nil {
		if err := h.drain(ctx); err != nil {
			log.Warn("background tasks still running at invocation end", "err", err)
		}
	}
	log.Info("request handled", "path", event.Path, "status", resp.StatusCode)
	return resp, nil
}

func (h *Handler) route(ctx context.Context, event events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	route := path.Base(strings.TrimRight(event.Path, "/"))
	switch route {
	case "chat", "estimate", "call-conversion":
	default:
		return jsonResponse(http.StatusNotFound, ErrorResponse{Error: "NOT_FOUND"})
	}
	if event.HTTPMethod != http.MethodPost {
		return jsonResponse(http.StatusMethodNotAllowed, ErrorResponse{Error: "METHOD_NOT_ALLOWED"})
	}

	body, err := requestBody(event)
	if err != nil {
		return jsonResponse(http.StatusBadRequest, ErrorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_body"})
	}

	switch route {
	case "chat":
		var req ChatRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return jsonResponse(http.StatusBadRequest, ErrorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_json"})
		}
		out, err := h.chat.Chat(ctx, ChatInputFrom(req))
		if err != nil {
			return h.errorResponse(ctx, err)
		}
		return jsonResponse(http.StatusOK, ChatResponse{Reply: out.Reply, SessionID: out.SessionID, IsHighValue: out.IsHighValue})
	case "estimate":
		var req EstimateRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return jsonResponse(http.StatusBadRequest, ErrorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_json"})
		}
		out, err := h.leads.SubmitEstimate(ctx, EstimateInputFrom(req))
		if err != nil {
			return h.errorResponse(ctx, err)
		}
		return jsonResponse(http.StatusAccepted, EstimateResponse{Status: "received", LeadID: out.LeadID})
	default:
		var req CallRequest
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				return jsonResponse(http.StatusBadRequest, ErrorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_json"})
			}
		}
		h.leads.RecordCall(ctx, req.Page)
		return jsonResponse(http.StatusAccepted, StatusResponse{Status: "recorded"})
	}
}

func (h *Handler) errorResponse(ctx context.Context, err error) events.APIGatewayProxyResponse {
	status, body := ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(ctx, h.log).Error("request failed", "err", err)
	}
	return jsonResponse(status, body)
}

// ChatInputFrom and EstimateInputFrom map wire requests to use-case inputs.
func ChatInputFrom(req ChatRequest) usecase.ChatInput {
	return usecase.ChatInput{SessionID: req.SessionID, Message: req.Message, Page: req.Page, ImageRef: req.ImageRef}
}

func EstimateInputFrom(req EstimateRequest) usecase.EstimateInput {
	return usecase.EstimateInput{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Service: req.Service,
		Message: req.Message,
		Page:    req.Page,
	}
}

// ErrorStatus maps a use-case error to its HTTP status and body.
func ErrorStatus(err error) (int, ErrorResponse) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return http.StatusInternalServerError, ErrorResponse{Error: string(usecase.ErrorInternal)}
	}
	body := ErrorResponse{Error: string(ucErr.Code), Reason: ucErr.Reason}
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, body
	case usecase.ErrorCompletionUnavailable:
		return http.StatusBadGateway, body
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests, body
	default:
		return http.StatusInternalServerError, body
	}
}

func requestBody(event events.APIGatewayProxyRequest) ([]byte, error) {
	if !event.IsBase64Encoded {
		return []byte(event.Body), nil
	}
	return base64.StdEncoding.DecodeString(event.Body)
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}
