package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/orderdesk/internal/domain/shared"
	"github.com/erp/orderdesk/internal/domain/trade"
	"github.com/erp/orderdesk/internal/infrastructure/kvstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("store offline")
}
func (brokenStore) Set(context.Context, string, string) error { return errors.New("store offline") }
func (brokenStore) Remove(context.Context, string) error      { return errors.New("store offline") }

type countingLocker struct {
	locks   atomic.Int32
	unlocks atomic.Int32
	err     error
}

func (l *countingLocker) Lock(_ context.Context, _ string, _ time.Duration) (func(context.Context) error, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.locks.Add(1)
	return func(context.Context) error {
		l.unlocks.Add(1)
		return nil
	}, nil
}

func newLocal(t *testing.T, direction trade.Direction, store trade.KeyValueStore) *LocalGateway {
	t.Helper()
	gw, err := NewLocalGateway(direction, store, nil, LocalConfig{}, nil)
	require.NoError(t, err)
	return gw
}

func TestNewLocalGateway(t *testing.T) {
	_, err := NewLocalGateway(trade.DirectionSales, nil, nil, LocalConfig{}, nil)
	assert.Error(t, err)

	_, err = NewLocalGateway("refund", kvstore.NewMemoryStore(0), nil, LocalConfig{}, nil)
	assert.Error(t, err)

	gw := newLocal(t, trade.DirectionPurchase, kvstore.NewMemoryStore(0))
	assert.Equal(t, trade.GatewayModeLocal, gw.Mode())
	assert.Equal(t, "purchaseRecords", gw.Key())
	assert.Equal(t, "salesRecords", newLocal(t, trade.DirectionSales, kvstore.NewMemoryStore(0)).Key())
}

func TestDefaultLatency(t *testing.T) {
	assert.Equal(t, 400*time.Millisecond, DefaultLatency(trade.DirectionSales))
	assert.Equal(t, 500*time.Millisecond, DefaultLatency(trade.DirectionPurchase))
}

func TestLocalGateway_SubmitRoundTrip(t *testing.T) {
	ctx := context.Background()
	for _, direction := range []trade.Direction{trade.DirectionSales, trade.DirectionPurchase} {
		t.Run(direction.String(), func(t *testing.T) {
			store := kvstore.NewMemoryStore(0)
			gw := newLocal(t, direction, store)

			first := testRecord(direction, direction.DocumentPrefix()+"-1")
			second := testRecord(direction, direction.DocumentPrefix()+"-2")

			result, err := gw.Submit(ctx, first)
			require.NoError(t, err)
			assert.True(t, result.OK)
			assert.Equal(t, trade.SourceLocalStorage, result.Source)
			require.NotNil(t, result.Data)
			assert.True(t, first.Equal(*result.Data))

			_, err = gw.Submit(ctx, second)
			require.NoError(t, err)

			precise := preciseRecord(direction, direction.DocumentPrefix()+"-3")
			_, err = gw.Submit(ctx, precise)
			require.NoError(t, err)

			records, err := gw.List(ctx, trade.ListQuery{})
			require.NoError(t, err)
			require.Len(t, records, 3)
			assert.True(t, first.Equal(records[0]), "stored record must equal the submitted one")
			assert.True(t, second.Equal(records[1]))
			assert.True(t, precise.Equal(records[2]))
			assert.Equal(t, precise.Totals.GrandTotal.String(), records[2].Totals.GrandTotal.String())
			assert.Equal(t, precise.Totals.TaxAmount.String(), records[2].Totals.TaxAmount.String())

			raw, ok, err := store.Get(ctx, direction.StorageKey())
			require.NoError(t, err)
			require.True(t, ok)
			assert.Contains(t, raw, `"`+direction.DocumentPrefix()+`-1"`)
		})
	}
}

// preciseRecord has totals with more significant digits than a float64 holds
func preciseRecord(direction trade.Direction, number string) trade.SubmissionRecord {
	rec := testRecord(direction, number)
	rec.Items = []trade.LineItem{
		{ProductID: "p-9", Quantity: 3, UnitCost: decimal.RequireFromString("123456.789")},
	}
	rec.ShippingFee = decimal.NewFromInt(10)
	rec.Discount = decimal.Zero
	rec.TaxRatePercent = decimal.RequireFromString("7.123456")
	rec.Totals = trade.ComputeTotals(rec.Items, trade.Adjustments{
		ShippingFee:    rec.ShippingFee,
		Discount:       rec.Discount,
		TaxRatePercent: rec.TaxRatePercent,
	})
	return rec
}

func TestLocalGateway_ResultDoesNotAliasRecord(t *testing.T) {
	gw := newLocal(t, trade.DirectionSales, kvstore.NewMemoryStore(0))
	record := testRecord(trade.DirectionSales, "INV-1")

	result, err := gw.Submit(context.Background(), record)
	require.NoError(t, err)

	record.Items[0].Quantity = 99
	assert.Equal(t, int64(2), result.Data.Items[0].Quantity)
}

func TestLocalGateway_GetByID(t *testing.T) {
	ctx := context.Background()
	gw := newLocal(t, trade.DirectionSales, kvstore.NewMemoryStore(0))
	for i := 1; i <= 3; i++ {
		_, err := gw.Submit(ctx, testRecord(trade.DirectionSales, fmt.Sprintf("INV-%d", i)))
		require.NoError(t, err)
	}

	rec, err := gw.GetByID(ctx, "2")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "INV-2", rec.DocumentNumber)

	for _, id := range []string{"0", "4", "-1", "abc", ""} {
		rec, err := gw.GetByID(ctx, id)
		assert.NoError(t, err, id)
		assert.Nil(t, rec, id)
	}
}

func TestLocalGateway_List(t *testing.T) {
	ctx := context.Background()
	gw := newLocal(t, trade.DirectionSales, kvstore.NewMemoryStore(0))
	for i := 1; i <= 5; i++ {
		rec := testRecord(trade.DirectionSales, fmt.Sprintf("INV-%d", i))
		if i%2 == 0 {
			rec.Notes = "Rush order"
		}
		_, err := gw.Submit(ctx, rec)
		require.NoError(t, err)
	}

	tests := []struct {
		name  string
		query trade.ListQuery
		want  []string
	}{
		{"all", trade.ListQuery{}, []string{"INV-1", "INV-2", "INV-3", "INV-4", "INV-5"}},
		{"filter by notes", trade.ListQuery{Q: "rush"}, []string{"INV-2", "INV-4"}},
		{"filter by number", trade.ListQuery{Q: "inv-5"}, []string{"INV-5"}},
		{"first page", trade.ListQuery{Page: 1, Size: 2}, []string{"INV-1", "INV-2"}},
		{"last page", trade.ListQuery{Page: 3, Size: 2}, []string{"INV-5"}},
		{"page past the end", trade.ListQuery{Page: 4, Size: 2}, []string{}},
		{"page defaults to 1", trade.ListQuery{Size: 1}, []string{"INV-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := gw.List(ctx, tt.query)
			require.NoError(t, err)
			got := make([]string, 0, len(records))
			for _, r := range records {
				got = append(got, r.DocumentNumber)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocalGateway_MalformedStoredValue(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore(0)
	require.NoError(t, store.Set(ctx, "salesRecords", "{not json"))
	gw := newLocal(t, trade.DirectionSales, store)

	records, err := gw.List(ctx, trade.ListQuery{})
	require.NoError(t, err)
	assert.Empty(t, records)

	// the next submission starts a fresh list
	_, err = gw.Submit(ctx, testRecord(trade.DirectionSales, "INV-1"))
	require.NoError(t, err)
	records, err = gw.List(ctx, trade.ListQuery{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestLocalGateway_StorageErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("quota exceeded", func(t *testing.T) {
		gw := newLocal(t, trade.DirectionSales, kvstore.NewMemoryStore(64))

		result, err := gw.Submit(ctx, testRecord(trade.DirectionSales, "INV-1"))
		require.Error(t, err)
		assert.Nil(t, result)
		assert.True(t, shared.IsStorageError(err))
		assert.True(t, errors.Is(err, shared.ErrSubmissionFailed))
		assert.True(t, errors.Is(err, kvstore.ErrQuotaExceeded))

		records, err := gw.List(ctx, trade.ListQuery{})
		require.NoError(t, err)
		assert.Empty(t, records, "nothing is persisted on failure")
	})

	t.Run("store unavailable", func(t *testing.T) {
		gw := newLocal(t, trade.DirectionSales, brokenStore{})

		_, err := gw.Submit(ctx, testRecord(trade.DirectionSales, "INV-1"))
		assert.True(t, shared.IsStorageError(err))

		_, err = gw.List(ctx, trade.ListQuery{})
		assert.True(t, shared.IsStorageError(err))

		_, err = gw.GetByID(ctx, "1")
		assert.True(t, shared.IsStorageError(err))

		assert.True(t, shared.IsStorageError(gw.Clear(ctx)))
	})

	t.Run("lock unavailable", func(t *testing.T) {
		locker := &countingLocker{err: errors.New("lock held")}
		gw, err := NewLocalGateway(trade.DirectionSales, kvstore.NewMemoryStore(0), locker, LocalConfig{}, nil)
		require.NoError(t, err)

		_, err = gw.Submit(ctx, testRecord(trade.DirectionSales, "INV-1"))
		assert.True(t, shared.IsStorageError(err))
		assert.Contains(t, err.Error(), "acquiring lock")
	})
}

func TestLocalGateway_Clear(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore(0)
	sales := newLocal(t, trade.DirectionSales, store)
	purchases := newLocal(t, trade.DirectionPurchase, store)

	_, err := sales.Submit(ctx, testRecord(trade.DirectionSales, "INV-1"))
	require.NoError(t, err)
	_, err = purchases.Submit(ctx, testRecord(trade.DirectionPurchase, "PO-1"))
	require.NoError(t, err)

	require.NoError(t, sales.Clear(ctx))

	records, err := sales.List(ctx, trade.ListQuery{})
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = purchases.List(ctx, trade.ListQuery{})
	require.NoError(t, err)
	assert.Len(t, records, 1, "clearing sales leaves purchases alone")
}

func TestLocalGateway_Latency(t *testing.T) {
	t.Run("waits before writing", func(t *testing.T) {
		gw, err := NewLocalGateway(trade.DirectionSales, kvstore.NewMemoryStore(0), nil, LocalConfig{Latency: 30 * time.Millisecond}, nil)
		require.NoError(t, err)

		start := time.Now()
		_, err = gw.Submit(context.Background(), testRecord(trade.DirectionSales, "INV-1"))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})

	t.Run("cancellation during the wait writes nothing", func(t *testing.T) {
		gw, err := NewLocalGateway(trade.DirectionSales, kvstore.NewMemoryStore(0), nil, LocalConfig{Latency: time.Second}, nil)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err = gw.Submit(ctx, testRecord(trade.DirectionSales, "INV-1"))
		require.Error(t, err)
		assert.True(t, shared.IsStorageError(err))
		assert.True(t, errors.Is(err, context.DeadlineExceeded))

		records, err := gw.List(context.Background(), trade.ListQuery{})
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestLocalGateway_ConcurrentSubmissions(t *testing.T) {
	ctx := context.Background()
	locker := &countingLocker{}
	gw, err := NewLocalGateway(trade.DirectionPurchase, kvstore.NewMemoryStore(0), locker, LocalConfig{}, nil)
	require.NoError(t, err)

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := gw.Submit(ctx, testRecord(trade.DirectionPurchase, fmt.Sprintf("PO-%d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	records, err := gw.List(ctx, trade.ListQuery{})
	require.NoError(t, err)
	assert.Len(t, records, n, "no submission may be lost")
	assert.Equal(t, int32(n), locker.locks.Load())
	assert.Equal(t, int32(n), locker.unlocks.Load())
}
