// Package config reads process configuration from the environment. A .env
// file, when present, is loaded first for local runs.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"leadgen-agent/internal/integrations/paramstore"
)

// Parameter names under PARAM_PREFIX. The OpenAI token lives at
// <prefix>/open-ai-token, owned by the openai client.
const (
	SecretOpenAIToken  = "/open-ai-token"
	SecretSMSAuthToken = "/sms-auth-token"
	SecretEmailAPIKey  = "/email-api-key"
	SecretSMTPPassword = "/smtp-password"
	SecretGA4APISecret = "/ga4-api-secret"
)

type OpenAIConfig struct {
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
}

type ChatConfig struct {
	MaxContextTurns int
	MaxMessageLen   int
}

type BusinessConfig struct {
	Name        string
	Phone       string
	ServiceArea string
	PhoneRegion string
}

type SMSConfig struct {
	AccountSID string
	From       string
	To         string
	BaseURL    string
}

type EmailConfig struct {
	Provider     string
	From         string
	FromName     string
	To           string
	APIBaseURL   string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
}

type ServerConfig struct {
	HTTPAddr         string
	CORSOrigins      []string
	RateLimitRPS     float64
	RateLimitBurst   int
	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueue       string
}

type Config struct {
	Env                 string
	StateTable          string
	ParamPrefix         string
	QueueURL            string
	ImageBucket         string
	ImageKeyPrefix      string
	LeadLogDatabaseURL  string
	GA4MeasurementID    string
	ConsumerConcurrency int

	OpenAI   OpenAIConfig
	Chat     ChatConfig
	Business BusinessConfig
	SMS      SMSConfig
	Email    EmailConfig
	Server   ServerConfig
}

// Load reads the optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return fromEnv(os.Getenv)
}

func fromEnv(getenv func(string) string) (Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	var errs []error
	envInt := func(key string, def int) int {
		v := env(key, "")
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
			return def
		}
		return n
	}
	envFloat := func(key string, def float64) float64 {
		v := env(key, "")
		if v == "" {
			return def
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
			return def
		}
		return f
	}

	cfg := Config{
		Env:                 env("APP_ENV", "production"),
		StateTable:          env("STATE_TABLE", ""),
		ParamPrefix:         strings.TrimRight(env("PARAM_PREFIX", ""), "/"),
		QueueURL:            env("QUEUE_URL", ""),
		ImageBucket:         env("IMAGE_BUCKET", ""),
		ImageKeyPrefix:      env("IMAGE_KEY_PREFIX", ""),
		LeadLogDatabaseURL:  env("LEAD_LOG_DATABASE_URL", ""),
		GA4MeasurementID:    env("GA4_MEASUREMENT_ID", ""),
		ConsumerConcurrency: envInt("CONSUMER_CONCURRENCY", 4),
		OpenAI: OpenAIConfig{
			Model:       env("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL:     env("OPENAI_BASE_URL", ""),
			MaxTokens:   envInt("OPENAI_MAX_TOKENS", 500),
			Temperature: envFloat("OPENAI_TEMPERATURE", 0.7),
		},
		Chat: ChatConfig{
			MaxContextTurns: envInt("MAX_CONTEXT_TURNS", 20),
			MaxMessageLen:   envInt("MAX_MESSAGE_LENGTH", 2000),
		},
		Business: BusinessConfig{
			Name:        env("BUSINESS_NAME", ""),
			Phone:       env("BUSINESS_PHONE", ""),
			ServiceArea: env("SERVICE_AREA", ""),
			PhoneRegion: env("PHONE_REGION", "US"),
		},
		SMS: SMSConfig{
			AccountSID: env("SMS_ACCOUNT_SID", ""),
			From:       env("SMS_FROM", ""),
			To:         env("SMS_TO", ""),
			BaseURL:    env("SMS_BASE_URL", ""),
		},
		Email: EmailConfig{
			Provider:     strings.ToLower(env("EMAIL_PROVIDER", "http")),
			From:         env("EMAIL_FROM", ""),
			FromName:     env("EMAIL_FROM_NAME", ""),
			To:           env("EMAIL_TO", ""),
			APIBaseURL:   env("EMAIL_API_BASE_URL", ""),
			SMTPHost:     env("SMTP_HOST", ""),
			SMTPPort:     envInt("SMTP_PORT", 587),
			SMTPUsername: env("SMTP_USERNAME", ""),
		},
		Server: ServerConfig{
			HTTPAddr:         env("HTTP_ADDR", ":8080"),
			CORSOrigins:      splitCSV(env("CORS_ORIGINS", "")),
			RateLimitRPS:     envFloat("RATE_LIMIT_RPS", 1),
			RateLimitBurst:   envInt("RATE_LIMIT_BURST", 10),
			RedisURL:         env("REDIS_URL", ""),
			RedisTLSInsecure: strings.EqualFold(env("REDIS_TLS_INSECURE", "false"), "true"),
			AsynqQueue:       env("ASYNQ_QUEUE", "notifications"),
		},
	}

	switch cfg.Email.Provider {
	case "http", "smtp":
	default:
		errs = append(errs, fmt.Errorf("config: EMAIL_PROVIDER must be http or smtp, got %q", cfg.Email.Provider))
	}
	return cfg, errors.Join(errs...)
}

// ValidateAPI checks what the Lambda chat/lead API needs.
func (c Config) ValidateAPI() error {
	return required(map[string]string{
		"STATE_TABLE":  c.StateTable,
		"PARAM_PREFIX": c.ParamPrefix,
		"QUEUE_URL":    c.QueueURL,
	})
}

// ValidateNotifier checks what the Lambda queue consumer needs.
func (c Config) ValidateNotifier() error {
	return required(map[string]string{"PARAM_PREFIX": c.ParamPrefix})
}

// ValidateServer checks what the long-running gin + asynq server needs.
func (c Config) ValidateServer() error {
	return required(map[string]string{
		"STATE_TABLE":  c.StateTable,
		"PARAM_PREFIX": c.ParamPrefix,
		"REDIS_URL":    c.Server.RedisURL,
	})
}

func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// StaticSecrets builds a parameter getter from environment variables for
// deployments without SSM. prefix must match ParamPrefix.
func StaticSecrets(prefix string, getenv func(string) string) paramstore.StaticGetter {
	g := paramstore.StaticGetter{}
	if v := strings.TrimSpace(getenv("OPENAI_API_KEY")); v != "" {
		token, _ := json.Marshal(struct {
			Token string `json:"token"`
		}{Token: v})
		g[prefix+SecretOpenAIToken] = string(token)
	}
	for name, key := range map[string]string{
		SecretSMSAuthToken: "SMS_AUTH_TOKEN",
		SecretEmailAPIKey:  "EMAIL_API_KEY",
		SecretSMTPPassword: "SMTP_PASSWORD",
		SecretGA4APISecret: "GA4_API_SECRET",
	} {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			g[prefix+name] = v
		}
	}
	return g
}

func required(vals map[string]string) error {
	var missing []string
	for k, v := range vals {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return fmt.Errorf("config: required environment variables not set: %s", strings.Join(missing, ", "))
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
