package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"leadgen-agent/internal/domain"
	"leadgen-agent/internal/logging"
)

const (
	defaultMaxContextTurns = 20
	defaultMaxMessageLen   = 2000
	defaultMaxTokens       = 500
	defaultTemperature     = 0.7
)

type Completer interface {
	Complete(ctx context.Context, in domain.CompletionRequest) (string, error)
}

// ConversationStore holds one history snapshot per session id.
type ConversationStore interface {
	GetHistory(ctx context.Context, sessionID string) ([]domain.Turn, error)
	PutHistory(ctx context.Context, sessionID string, turns []domain.Turn) error
}

type Enqueuer interface {
	Enqueue(ctx context.Context, p domain.Payload) error
}

// ImageResolver turns a stored image reference into a URL the completion
// service can fetch.
type ImageResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// BackgroundRunner runs best-effort work detached from the request.
type BackgroundRunner interface {
	Go(ctx context.Context, name string, fn func(context.Context) error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type ChatConfig struct {
	Model           string
	MaxTokens       int
	Temperature     float64
	MaxContextTurns int
	MaxMessageLen   int
	Profile         BusinessProfile
}

type ChatInput struct {
	SessionID string `validate:"omitempty,max=128"`
	Message   string
	Page      string `validate:"omitempty,max=512"`
	ImageRef  string `validate:"omitempty,max=1024"`
}

type ChatOutput struct {
	Reply       string
	SessionID   string
	IsHighValue bool
}

// ChatService orchestrates one chat turn of a session.
type ChatService struct {
	completer Completer
	store     ConversationStore
	queue     Enqueuer
	images    ImageResolver
	runner    BackgroundRunner
	cfg       ChatConfig
	validate  *validator.Validate
	log       *slog.Logger
	now       func() time.Time
}

type ChatOption func(*ChatService)

func WithImageResolver(r ImageResolver) ChatOption {
	return func(s *ChatService) { s.images = r }
}

func WithChatLogger(l *slog.Logger) ChatOption {
	return func(s *ChatService) { s.log = l }
}

func NewChatService(c Completer, store ConversationStore, queue Enqueuer, runner BackgroundRunner, cfg ChatConfig, opts ...ChatOption) (*ChatService, error) {
	if c == nil {
		return nil, errors.New("usecase: completion client must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	if queue == nil {
		return nil, errors.New("usecase: queue must not be nil")
	}
	if runner == nil {
		return nil, errors.New("usecase: background runner must not be nil")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("usecase: model must not be empty")
	}
	if cfg.MaxContextTurns <= 0 {
		cfg.MaxContextTurns = defaultMaxContextTurns
	}
	if cfg.MaxMessageLen <= 0 {
		cfg.MaxMessageLen = defaultMaxMessageLen
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Temperature < 0 {
		cfg.Temperature = defaultTemperature
	}
	s := &ChatService{
		completer: c,
		store:     store,
		queue:     queue,
		runner:    runner,
		cfg:       cfg,
		validate:  validator.New(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.OrDefault(s.log)
	return s, nil
}

// Chat runs one turn: load history, complete, qualify, persist, and flag
// high-value leads to the notification queue. History is written only after
// a successful completion, so a failed call never mutates the session.
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	log := logging.FromContext(ctx, s.log)

	in.Message = strings.TrimSpace(in.Message)
	in.SessionID = strings.TrimSpace(in.SessionID)
	in.Page = strings.TrimSpace(in.Page)
	in.ImageRef = strings.TrimSpace(in.ImageRef)
	if in.Message == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if err := s.validate.Var(in.Message, fmt.Sprintf("max=%d", s.cfg.MaxMessageLen)); err != nil {
		return ChatOutput{}, newError(ErrorInvalidInput, "message_too_long", err)
	}
	if err := s.validate.Struct(in); err != nil {
		return ChatOutput{}, newError(ErrorInvalidInput, "invalid_chat_request", err)
	}

	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = newUUID()
	}
	log = log.With("session_id", sessionID)

	persist := true
	history, err := s.store.GetHistory(ctx, sessionID)
	if err != nil {
		// Answer without context, but never overwrite history we could not read.
		// This turn then appends nothing; a blind write could truncate the session.
		log.Warn("conversation history unavailable", "err", err)
		history = nil
		persist = false
	}

	reply, err := s.completer.Complete(ctx, domain.CompletionRequest{
		Model:       s.cfg.Model,
		Messages:    buildPromptMessages(s.cfg.Profile, contextWindow(history, s.cfg.MaxContextTurns), s.userMessage(ctx, log, in)),
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return ChatOutput{}, completionError(ctx, err)
	}

	qualification := QualifyChatLead(in.Message, reply)

	if persist {
		updated := domain.AppendExchange(history, domain.UserTurn(in.Message, in.ImageRef), domain.AssistantTurn(reply))
		if err := s.store.PutHistory(ctx, sessionID, updated); err != nil {
			log.Warn("conversation history not persisted", "err", err)
		}
	}

	if qualification.HighValue {
		log.Info("high value chat lead detected", "keywords", qualification.Matched, "page", in.Page)
		payload := domain.HighValueChatLead{
			Message:   in.Message,
			Reply:     reply,
			Page:      in.Page,
			Timestamp: s.now().UTC(),
		}
		s.runner.Go(ctx, "enqueue_high_value_chat_lead", func(ctx context.Context) error {
			return s.queue.Enqueue(ctx, payload)
		})
	}

	return ChatOutput{
		Reply:       reply,
		SessionID:   sessionID,
		IsHighValue: qualification.HighValue,
	}, nil
}

func (s *ChatService) userMessage(ctx context.Context, log *slog.Logger, in ChatInput) domain.ChatMessage {
	if in.ImageRef == "" {
		return domain.ChatMessage{Role: domain.RoleUser, Content: in.Message}
	}
	textOnly := domain.ChatMessage{Role: domain.RoleUser, Content: in.Message}
	if s.images == nil {
		if !isAbsoluteHTTPURL(in.ImageRef) {
			log.Warn("image reference needs a resolver, sending text only", "image_ref", in.ImageRef)
			return textOnly
		}
		return domain.TextAndImage(domain.RoleUser, in.Message, in.ImageRef)
	}
	resolved, err := s.images.Resolve(ctx, in.ImageRef)
	if err != nil {
		log.Warn("image reference not resolved, sending text only", "image_ref", in.ImageRef, "err", err)
		return textOnly
	}
	return domain.TextAndImage(domain.RoleUser, in.Message, resolved)
}

func isAbsoluteHTTPURL(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// contextWindow keeps the most recent max turns for prompt replay.
func contextWindow(history []domain.Turn, max int) []domain.Turn {
	if len(history) <= max {
		return history
	}
	return history[len(history)-max:]
}

func completionError(ctx context.Context, err error) *Error {
	if status, ok := upstreamStatusCode(err); ok && status == http.StatusTooManyRequests {
		return newError(ErrorCompletionUnavailable, "completion_rate_limited", err)
	}
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return newError(ErrorCompletionUnavailable, "completion_timeout", err)
	}
	if _, ok := upstreamStatusCode(err); ok {
		return newError(ErrorCompletionUnavailable, "completion_error", err)
	}
	return newError(ErrorCompletionUnavailable, "completion_failed", err)
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

var newUUID = func() string {
	return uuid.NewString()
}
