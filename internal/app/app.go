// Package app assembles use cases and the notification consumer from
// Config. Each binary under cmd/ supplies its own transport and storage.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"leadgen-agent/internal/analytics"
	"leadgen-agent/internal/async"
	"leadgen-agent/internal/config"
	"leadgen-agent/internal/consumer"
	"leadgen-agent/internal/integrations/email"
	"leadgen-agent/internal/integrations/ga4"
	"leadgen-agent/internal/integrations/openai"
	"leadgen-agent/internal/integrations/paramstore"
	"leadgen-agent/internal/integrations/sms"
	"leadgen-agent/internal/leadlog"
	"leadgen-agent/internal/logging"
	"leadgen-agent/internal/notify"
	"leadgen-agent/internal/usecase"
)

// APIDeps are the storage and transport pieces chosen by the binary.
type APIDeps struct {
	Secrets paramstore.Getter
	Store   usecase.ConversationStore
	Queue   usecase.Enqueuer
	Images  usecase.ImageResolver
	Runner  *async.Runner
	Log     *slog.Logger
}

type Services struct {
	Chat  *usecase.ChatService
	Leads *usecase.LeadService
	close func()
}

// Close releases the lead log pool, if one was opened.
func (s *Services) Close() {
	if s.close != nil {
		s.close()
	}
}

func NewServices(ctx context.Context, cfg config.Config, deps APIDeps) (*Services, error) {
	if deps.Runner == nil {
		return nil, errors.New("app: runner must not be nil")
	}
	var openaiOpts []openai.Option
	if cfg.OpenAI.BaseURL != "" {
		openaiOpts = append(openaiOpts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	completer, err := openai.NewClient(deps.Secrets, cfg.ParamPrefix, openaiOpts...)
	if err != nil {
		return nil, fmt.Errorf("app: completion client: %w", err)
	}

	chatOpts := []usecase.ChatOption{usecase.WithChatLogger(deps.Log)}
	if deps.Images != nil {
		chatOpts = append(chatOpts, usecase.WithImageResolver(deps.Images))
	}
	chat, err := usecase.NewChatService(completer, deps.Store, deps.Queue, deps.Runner, usecase.ChatConfig{
		Model:           cfg.OpenAI.Model,
		MaxTokens:       cfg.OpenAI.MaxTokens,
		Temperature:     cfg.OpenAI.Temperature,
		MaxContextTurns: cfg.Chat.MaxContextTurns,
		MaxMessageLen:   cfg.Chat.MaxMessageLen,
		Profile: usecase.BusinessProfile{
			Name:        cfg.Business.Name,
			Phone:       cfg.Business.Phone,
			ServiceArea: cfg.Business.ServiceArea,
		},
	}, chatOpts...)
	if err != nil {
		return nil, fmt.Errorf("app: chat service: %w", err)
	}

	s := &Services{Chat: chat}
	leadOpts := []usecase.LeadOption{
		usecase.WithLeadLogger(deps.Log),
		usecase.WithPhoneRegion(cfg.Business.PhoneRegion),
	}
	if cfg.LeadLogDatabaseURL != "" {
		pool, err := leadlog.NewPool(ctx, cfg.LeadLogDatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("app: lead log: %w", err)
		}
		store, err := leadlog.New(pool)
		if err == nil {
			err = store.EnsureSchema(ctx)
		}
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("app: lead log: %w", err)
		}
		s.close = pool.Close
		leadOpts = append(leadOpts, usecase.WithLeadLog(store))
	}

	s.Leads, err = usecase.NewLeadService(deps.Queue, leadOpts...)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("app: lead service: %w", err)
	}
	return s, nil
}

// NewProcessor builds the notification consumer. Sinks whose credentials
// are missing stay disabled.
func NewProcessor(ctx context.Context, cfg config.Config, secrets paramstore.Getter, runner *async.Runner, log *slog.Logger) (*consumer.Processor, error) {
	if runner == nil {
		return nil, errors.New("app: runner must not be nil")
	}
	log = logging.OrDefault(log)
	secret := func(name string) string {
		return paramstore.Optional(ctx, secrets, cfg.ParamPrefix+name)
	}

	dispatchOpts := []notify.Option{
		notify.WithBusinessName(cfg.Business.Name),
		notify.WithLogger(log),
	}
	if s, err := newSMSSender(cfg, secret(config.SecretSMSAuthToken), log); err != nil {
		log.Warn("sms channel disabled", "err", err)
	} else if s != nil {
		dispatchOpts = append(dispatchOpts, notify.WithSMS(s))
	}
	if s, err := newEmailSender(cfg, secret, log); err != nil {
		log.Warn("email channel disabled", "err", err)
	} else if s != nil {
		dispatchOpts = append(dispatchOpts, notify.WithEmail(s))
	}
	dispatcher := notify.NewDispatcher(notify.Recipients{
		SMSFrom:   cfg.SMS.From,
		SMSTo:     cfg.SMS.To,
		EmailFrom: cfg.Email.From,
		EmailTo:   cfg.Email.To,
	}, dispatchOpts...)

	var sink analytics.Sink
	if cfg.GA4MeasurementID != "" {
		c, err := ga4.NewClient(cfg.GA4MeasurementID, secret(config.SecretGA4APISecret))
		if err != nil {
			log.Warn("analytics sink disabled", "err", err)
		} else {
			sink = c
		}
	}

	return consumer.NewProcessor(dispatcher,
		consumer.WithAnalytics(analytics.NewRecorder(sink, log), runner),
		consumer.WithConcurrency(cfg.ConsumerConcurrency),
		consumer.WithLogger(log),
	)
}

func newSMSSender(cfg config.Config, authToken string, log *slog.Logger) (notify.SMSSender, error) {
	if cfg.SMS.AccountSID == "" {
		return nil, nil
	}
	opts := []sms.Option{sms.WithLogger(log), sms.WithDefaultRegion(cfg.Business.PhoneRegion)}
	if cfg.SMS.BaseURL != "" {
		opts = append(opts, sms.WithBaseURL(cfg.SMS.BaseURL))
	}
	c, err := sms.NewClient(cfg.SMS.AccountSID, authToken, opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func newEmailSender(cfg config.Config, secret func(string) string, log *slog.Logger) (notify.EmailSender, error) {
	switch cfg.Email.Provider {
	case "smtp":
		if cfg.Email.SMTPHost == "" {
			return nil, nil
		}
		s, err := email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUsername,
			Password: secret(config.SecretSMTPPassword),
			FromName: cfg.Email.FromName,
		}, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		key := secret(config.SecretEmailAPIKey)
		if key == "" {
			return nil, nil
		}
		opts := []email.HTTPOption{email.WithHTTPLogger(log)}
		if cfg.Email.APIBaseURL != "" {
			opts = append(opts, email.WithBaseURL(cfg.Email.APIBaseURL))
		}
		s, err := email.NewHTTPSender(key, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
