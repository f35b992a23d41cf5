package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func mapEnv(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := fromEnv(mapEnv(nil))
	require.NoError(t, err)
	require.Equal(t, "production", cfg.Env)
	require.Equal(t, 500, cfg.OpenAI.MaxTokens)
	require.Equal(t, 0.7, cfg.OpenAI.Temperature)
	require.Equal(t, 20, cfg.Chat.MaxContextTurns)
	require.Equal(t, 2000, cfg.Chat.MaxMessageLen)
	require.Equal(t, 4, cfg.ConsumerConcurrency)
	require.Equal(t, "http", cfg.Email.Provider)
	require.Equal(t, 587, cfg.Email.SMTPPort)
	require.Equal(t, ":8080", cfg.Server.HTTPAddr)
	require.Equal(t, "US", cfg.Business.PhoneRegion)
	require.False(t, cfg.IsDevelopment())
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := fromEnv(mapEnv(map[string]string{
		"APP_ENV":            "Development",
		"PARAM_PREFIX":       "/leadgen/prod/",
		"MAX_CONTEXT_TURNS":  "8",
		"OPENAI_TEMPERATURE": "0.2",
		"EMAIL_PROVIDER":     "SMTP",
		"CORS_ORIGINS":       "https://a.example.com, https://b.example.com,",
		"REDIS_TLS_INSECURE": "TRUE",
	}))
	require.NoError(t, err)
	require.True(t, cfg.IsDevelopment())
	require.Equal(t, "/leadgen/prod", cfg.ParamPrefix)
	require.Equal(t, 8, cfg.Chat.MaxContextTurns)
	require.Equal(t, 0.2, cfg.OpenAI.Temperature)
	require.Equal(t, "smtp", cfg.Email.Provider)
	require.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSOrigins)
	require.True(t, cfg.Server.RedisTLSInsecure)
}

func TestFromEnv_InvalidValues(t *testing.T) {
	_, err := fromEnv(mapEnv(map[string]string{
		"MAX_CONTEXT_TURNS": "many",
		"EMAIL_PROVIDER":    "pigeon",
	}))
	require.ErrorContains(t, err, "MAX_CONTEXT_TURNS")
	require.ErrorContains(t, err, "EMAIL_PROVIDER")
}

func TestValidate(t *testing.T) {
	cfg, err := fromEnv(mapEnv(nil))
	require.NoError(t, err)
	require.EqualError(t, cfg.ValidateAPI(), "config: required environment variables not set: PARAM_PREFIX, QUEUE_URL, STATE_TABLE")
	require.ErrorContains(t, cfg.ValidateNotifier(), "PARAM_PREFIX")
	require.ErrorContains(t, cfg.ValidateServer(), "REDIS_URL")

	cfg.StateTable, cfg.ParamPrefix, cfg.QueueURL = "t", "/p", "q"
	require.NoError(t, cfg.ValidateAPI())
	require.NoError(t, cfg.ValidateNotifier())
}

func TestStaticSecrets(t *testing.T) {
	g := StaticSecrets("/leadgen", mapEnv(map[string]string{
		"OPENAI_API_KEY": "sk-test",
		"SMS_AUTH_TOKEN": "tw-token",
	}))
	v, err := g.GetParameter(context.Background(), "/leadgen/open-ai-token")
	require.NoError(t, err)
	require.JSONEq(t, `{"token":"sk-test"}`, v)
	v, err = g.GetParameter(context.Background(), "/leadgen/sms-auth-token")
	require.NoError(t, err)
	require.Equal(t, "tw-token", v)
	_, err = g.GetParameter(context.Background(), "/leadgen/email-api-key")
	require.Error(t, err)
}
