package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/orderdesk/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTestTracer installs a TracerProvider recording spans in memory and
// restores the previous global provider when the test ends.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attributesOf(s sdktrace.ReadOnlySpan) map[string]string {
	out := map[string]string{}
	for _, kv := range s.Attributes() {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, span := telemetry.StartServiceSpan(context.Background(), "submission_gateway", "submit",
		telemetry.WithAttribute(telemetry.SpanAttrDirection, "sales"),
		telemetry.WithAttribute(telemetry.SpanAttrItemsCount, 3),
		telemetry.WithSpanKind(trace.SpanKindClient),
	)
	assert.True(t, trace.SpanFromContext(ctx).SpanContext().IsValid())
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "submission_gateway.submit", spans[0].Name())
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind())
	attrs := attributesOf(spans[0])
	assert.Equal(t, "sales", attrs["direction"])
	assert.Equal(t, "3", attrs["items_count"])
}

func TestStartSpan_DefaultsToInternal(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "order_form.submit")
	span.End()

	require.Len(t, sr.Ended(), 1)
	assert.Equal(t, trace.SpanKindInternal, sr.Ended()[0].SpanKind())
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, failed := telemetry.StartSpan(context.Background(), "failed")
	telemetry.RecordError(failed, errors.New("remote order service unreachable"))
	failed.End()

	_, ok := telemetry.StartSpan(context.Background(), "ok")
	telemetry.RecordError(ok, nil)
	ok.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "remote order service unreachable", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)

	assert.Equal(t, codes.Unset, spans[1].Status().Code)
	assert.Empty(t, spans[1].Events())
}

type documentNumber string

func (d documentNumber) String() string { return "doc:" + string(d) }

func TestSetAttributes(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "attrs")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrderNumber, "INV-1",
		42, "ignored because the key is not a string",
		telemetry.SpanAttrAmount, 1218.5,
		"dangling",
	)
	telemetry.SetAttribute(span, telemetry.SpanAttrPartyID, documentNumber("c-7"))
	telemetry.AddEvent(span, "printed", "format", "pdf")
	span.End()

	attrs := attributesOf(sr.Ended()[0])
	assert.Equal(t, "INV-1", attrs["order_number"])
	assert.Equal(t, "1218.5", attrs["amount"])
	assert.Equal(t, "doc:c-7", attrs["party_id"])
	assert.NotContains(t, attrs, "dangling")
	assert.Len(t, attrs, 3)

	events := sr.Ended()[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "printed", events[0].Name)
}

func TestNilSpanHelpers(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.SetAttributes(nil, "k", "v")
		telemetry.SetAttribute(nil, "k", "v")
		telemetry.RecordError(nil, errors.New("x"))
		telemetry.AddEvent(nil, "e")
	})
}
