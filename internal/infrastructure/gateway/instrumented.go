package gateway

import (
	"context"
	"time"

	"github.com/erp/orderdesk/internal/domain/shared"
	"github.com/erp/orderdesk/internal/domain/trade"
	"github.com/erp/orderdesk/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// Outcome labels passed to a Recorder
const (
	OutcomeSuccess        = "success"
	OutcomeTransportError = "transport_error"
	OutcomeStorageError   = "storage_error"
	OutcomeError          = "error"
)

// Recorder observes gateway submissions
type Recorder interface {
	ObserveSubmission(direction, mode, outcome string, elapsed time.Duration)
}

// Clearer is implemented by gateways whose records can be wiped
type Clearer interface {
	Clear(ctx context.Context) error
}

// Instrumented wraps a gateway with tracing spans and submission metrics
type Instrumented struct {
	inner    trade.SubmissionGateway
	recorder Recorder
}

// Instrument wraps gw. recorder may be nil.
func Instrument(gw trade.SubmissionGateway, recorder Recorder) *Instrumented {
	return &Instrumented{inner: gw, recorder: recorder}
}

// Unwrap returns the wrapped gateway
func (g *Instrumented) Unwrap() trade.SubmissionGateway {
	return g.inner
}

// Mode returns the mode of the wrapped gateway
func (g *Instrumented) Mode() trade.GatewayMode {
	return g.inner.Mode()
}

// Direction returns the direction of the wrapped gateway
func (g *Instrumented) Direction() trade.Direction {
	return g.inner.Direction()
}

// Submit traces and counts the submission
func (g *Instrumented) Submit(ctx context.Context, record trade.SubmissionRecord) (*trade.SubmitResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "submission_gateway", "submit",
		telemetry.WithSpanKind(spanKind(g.Mode())),
		telemetry.WithAttribute(telemetry.SpanAttrDirection, g.Direction().String()),
		telemetry.WithAttribute(telemetry.SpanAttrGatewayMode, string(g.Mode())),
		telemetry.WithAttribute(telemetry.SpanAttrOrderNumber, record.DocumentNumber),
		telemetry.WithAttribute(telemetry.SpanAttrOrderStatus, string(record.Status)),
		telemetry.WithAttribute(telemetry.SpanAttrPartyID, record.PartyID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrItemsCount, len(record.Items)),
	)
	defer span.End()

	start := time.Now()
	result, err := g.inner.Submit(ctx, record)
	if g.recorder != nil {
		g.recorder.ObserveSubmission(g.Direction().String(), string(g.Mode()), outcomeOf(err), time.Since(start))
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrAmount, record.Totals.GrandTotal.String())
	telemetry.AddEvent(span, "order_submitted", "source", result.Source)
	return result, nil
}

// GetByID traces the lookup
func (g *Instrumented) GetByID(ctx context.Context, id string) (*trade.SubmissionRecord, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "submission_gateway", "get",
		telemetry.WithAttribute(telemetry.SpanAttrDirection, g.Direction().String()),
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, id),
	)
	defer span.End()

	rec, err := g.inner.GetByID(ctx, id)
	telemetry.RecordError(span, err)
	return rec, err
}

// List traces the listing
func (g *Instrumented) List(ctx context.Context, query trade.ListQuery) ([]trade.SubmissionRecord, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "submission_gateway", "list",
		telemetry.WithAttribute(telemetry.SpanAttrDirection, g.Direction().String()),
	)
	defer span.End()

	records, err := g.inner.List(ctx, query)
	telemetry.RecordError(span, err)
	return records, err
}

// Clear wipes local records. Remote gateways return shared.ErrNotSupported.
func (g *Instrumented) Clear(ctx context.Context) error {
	c, ok := g.inner.(Clearer)
	if !ok {
		return shared.ErrNotSupported
	}
	return c.Clear(ctx)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case shared.IsTransportError(err):
		return OutcomeTransportError
	case shared.IsStorageError(err):
		return OutcomeStorageError
	default:
		return OutcomeError
	}
}

// spanKind marks remote submissions as client calls
func spanKind(mode trade.GatewayMode) trace.SpanKind {
	if mode == trade.GatewayModeRemote {
		return trace.SpanKindClient
	}
	return trace.SpanKindInternal
}
