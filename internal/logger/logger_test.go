package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestNewWithWriter_LevelAndServiceField(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "fulfillment", "warn")

	l.Info().Msg("dropped")
	l.Warn().Msg("kept")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["message"])
	assert.Equal(t, "fulfillment", line["service"])
}

func TestNewWithWriter_UnknownLevelIsInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "svc", "loud")

	l.Debug().Msg("debug")
	assert.Empty(t, buf.String())

	l.Info().Msg("info")
	assert.Contains(t, buf.String(), `"message":"info"`)
}

func TestWithTrace(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(&buf, "svc", "info")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	traced := WithTrace(ctx, base)
	traced.Info().Msg("traced")
	assert.Contains(t, buf.String(), `"trace_id":"4bf92f3577b34da6a3ce929d0e0e4736"`)
	assert.Contains(t, buf.String(), `"span_id":"00f067aa0ba902b7"`)

	buf.Reset()
	plain := WithTrace(context.Background(), base)
	plain.Info().Msg("plain")
	assert.NotContains(t, buf.String(), "trace_id")
}
