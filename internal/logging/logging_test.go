package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter("production", &buf)
	log.Debug("hidden")
	log.Info("visible", "k", "v")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "visible", line["msg"])
	require.Equal(t, "v", line["k"])
}

func TestNew_DevelopmentLogsDebug(t *testing.T) {
	var buf bytes.Buffer
	newWithWriter("Development", &buf).Debug("debug line")
	require.Contains(t, buf.String(), "debug line")
}

func TestFromContext_AddsCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	base := newWithWriter("production", &buf)
	ctx := WithCorrelationID(context.Background(), "corr-1")

	require.Equal(t, "corr-1", CorrelationID(ctx))
	FromContext(ctx, base).Info("hello")
	require.Contains(t, buf.String(), `"correlation_id":"corr-1"`)
}

func TestFromContext_NilFallbacks(t *testing.T) {
	require.NotNil(t, FromContext(context.Background(), nil))
	require.NotNil(t, OrDefault(nil))
	require.Empty(t, CorrelationID(context.Background()))
}
