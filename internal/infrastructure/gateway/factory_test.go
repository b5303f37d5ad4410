package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/erp/orderdesk/internal/domain/shared"
	"github.com/erp/orderdesk/internal/domain/trade"
	"github.com/erp/orderdesk/internal/infrastructure/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

type observation struct {
	direction, mode, outcome string
}

type fakeRecorder struct {
	mu  sync.Mutex
	obs []observation
}

func (r *fakeRecorder) ObserveSubmission(direction, mode, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, observation{direction, mode, outcome})
}

func TestResolveMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want trade.GatewayMode
	}{
		{"explicit local wins over base url", Config{Mode: trade.GatewayModeLocal, Remote: RemoteConfig{BaseURL: "http://x"}}, trade.GatewayModeLocal},
		{"explicit remote", Config{Mode: trade.GatewayModeRemote, Remote: RemoteConfig{BaseURL: "http://x"}}, trade.GatewayModeRemote},
		{"base url selects remote", Config{Remote: RemoteConfig{BaseURL: "http://x"}}, trade.GatewayModeRemote},
		{"nothing configured selects local", Config{}, trade.GatewayModeLocal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveMode(tt.cfg))
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		gw, err := New(trade.DirectionPurchase, Config{PurchaseLatency: 5 * time.Millisecond}, Dependencies{
			Store: kvstore.NewMemoryStore(0),
		})
		require.NoError(t, err)
		assert.Equal(t, trade.GatewayModeLocal, gw.Mode())
		assert.Equal(t, trade.DirectionPurchase, gw.Direction())

		inst, ok := gw.(*Instrumented)
		require.True(t, ok)
		local, ok := inst.Unwrap().(*LocalGateway)
		require.True(t, ok)
		assert.Equal(t, 5*time.Millisecond, local.latency)
	})

	t.Run("local without store fails", func(t *testing.T) {
		_, err := New(trade.DirectionSales, Config{Mode: trade.GatewayModeLocal}, Dependencies{})
		assert.Error(t, err)
	})

	t.Run("remote", func(t *testing.T) {
		gw, err := New(trade.DirectionSales, Config{Remote: RemoteConfig{BaseURL: "http://orders.internal"}}, Dependencies{})
		require.NoError(t, err)
		assert.Equal(t, trade.GatewayModeRemote, gw.Mode())
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := New(trade.DirectionSales, Config{Mode: "hybrid"}, Dependencies{Store: kvstore.NewMemoryStore(0)})
		assert.Error(t, err)
	})
}

func TestInstrumented_RecordsOutcomes(t *testing.T) {
	ctx := context.Background()
	recorder := &fakeRecorder{}

	local, err := New(trade.DirectionSales, Config{Mode: trade.GatewayModeLocal}, Dependencies{
		Store:    kvstore.NewMemoryStore(0),
		Recorder: recorder,
	})
	require.NoError(t, err)
	_, err = local.Submit(ctx, testRecord(trade.DirectionSales, "INV-1"))
	require.NoError(t, err)

	full, err := New(trade.DirectionSales, Config{Mode: trade.GatewayModeLocal}, Dependencies{
		Store:    kvstore.NewMemoryStore(16),
		Recorder: recorder,
	})
	require.NoError(t, err)
	_, err = full.Submit(ctx, testRecord(trade.DirectionSales, "INV-2"))
	require.Error(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	remote, err := New(trade.DirectionPurchase, Config{Remote: RemoteConfig{BaseURL: srv.URL}}, Dependencies{Recorder: recorder})
	require.NoError(t, err)
	_, err = remote.Submit(ctx, testRecord(trade.DirectionPurchase, "PO-1"))
	require.Error(t, err)

	assert.Equal(t, []observation{
		{"sales", "local", OutcomeSuccess},
		{"sales", "local", OutcomeStorageError},
		{"purchase", "remote", OutcomeTransportError},
	}, recorder.obs)
}

func TestInstrumented_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	}()

	gw := Instrument(newLocal(t, trade.DirectionSales, brokenStore{}), nil)
	_, err := gw.Submit(context.Background(), testRecord(trade.DirectionSales, "INV-1"))
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "submission_gateway.submit", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "sales", attrs["direction"])
	assert.Equal(t, "local", attrs["gateway_mode"])
	assert.Equal(t, "INV-1", attrs["order_number"])
	assert.Equal(t, trace.SpanKindInternal, spans[0].SpanKind())

	ok := Instrument(newLocal(t, trade.DirectionSales, kvstore.NewMemoryStore(0)), nil)
	_, err = ok.Submit(context.Background(), testRecord(trade.DirectionSales, "INV-2"))
	require.NoError(t, err)

	spans = sr.Ended()
	require.Len(t, spans, 2)
	events := spans[1].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "order_submitted", events[0].Name)
	assert.Equal(t, trade.SourceLocalStorage, events[0].Attributes[0].Value.AsString())
}

func TestSpanKind(t *testing.T) {
	assert.Equal(t, trace.SpanKindClient, spanKind(trade.GatewayModeRemote))
	assert.Equal(t, trace.SpanKindInternal, spanKind(trade.GatewayModeLocal))
}

func TestInstrumented_Clear(t *testing.T) {
	remote, err := NewRemoteGateway(trade.DirectionSales, RemoteConfig{BaseURL: "http://localhost"}, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, Instrument(remote, nil).Clear(context.Background()), shared.ErrNotSupported)

	local := Instrument(newLocal(t, trade.DirectionSales, kvstore.NewMemoryStore(0)), nil)
	assert.NoError(t, local.Clear(context.Background()))
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, outcomeOf(nil))
	assert.Equal(t, OutcomeTransportError, outcomeOf(shared.NewTransportError("submit", 502, nil)))
	assert.Equal(t, OutcomeStorageError, outcomeOf(shared.NewStorageError("submit", nil)))
	assert.Equal(t, OutcomeError, outcomeOf(context.Canceled))
}
