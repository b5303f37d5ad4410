package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	base := zap.NewExample()
	ctx := WithContext(context.Background(), base)
	assert.Same(t, base, FromContext(ctx))
}

func TestRequestAndDocumentFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	ctx, _ := WithRequestID(context.Background(), zap.New(core), "req-42")
	ctx = WithDocumentNumber(ctx, "INV-20240301-7")

	assert.Equal(t, "req-42", GetRequestID(ctx))
	assert.Equal(t, "INV-20240301-7", GetDocumentNumber(ctx))
	assert.Empty(t, GetRequestID(context.Background()))
	assert.Empty(t, GetDocumentNumber(context.Background()))

	L(ctx).Info("Order submitted")

	require.Len(t, logs.All(), 1)
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "INV-20240301-7", fields["document_number"])
	assert.NotContains(t, fields, "trace_id")
}

func TestWithTraceContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "submit")
	defer span.End()

	ctx = WithContext(ctx, zap.New(core))
	L(ctx).Info("traced")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
}
