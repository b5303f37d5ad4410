package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/erp/orderdesk/internal/domain/shared"
	"github.com/erp/orderdesk/internal/domain/trade"
	"go.uber.org/zap"
)

// Default simulated latencies of the local fallback
const (
	DefaultSalesLatency    = 400 * time.Millisecond
	DefaultPurchaseLatency = 500 * time.Millisecond
	DefaultLockTTL         = 5 * time.Second
)

// DefaultLatency returns the simulated latency for a direction
func DefaultLatency(direction trade.Direction) time.Duration {
	if direction == trade.DirectionPurchase {
		return DefaultPurchaseLatency
	}
	return DefaultSalesLatency
}

// LocalConfig configures the local fallback gateway
type LocalConfig struct {
	// Latency is waited before every submission; zero disables it
	Latency time.Duration
	LockTTL time.Duration
}

// LocalGateway persists records as a JSON array under a fixed key of a
// key-value store. Each submission is one read-modify-write of that key.
type LocalGateway struct {
	direction trade.Direction
	store     trade.KeyValueStore
	locker    trade.Locker
	latency   time.Duration
	lockTTL   time.Duration
	logger    *zap.Logger

	mu sync.Mutex
}

// NewLocalGateway creates a new LocalGateway. locker may be nil.
func NewLocalGateway(direction trade.Direction, store trade.KeyValueStore, locker trade.Locker, cfg LocalConfig, logger *zap.Logger) (*LocalGateway, error) {
	if !direction.IsValid() {
		return nil, fmt.Errorf("invalid direction %q", direction)
	}
	if store == nil {
		return nil, fmt.Errorf("key-value store is required")
	}
	if cfg.Latency < 0 {
		cfg.Latency = 0
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalGateway{
		direction: direction,
		store:     store,
		locker:    locker,
		latency:   cfg.Latency,
		lockTTL:   cfg.LockTTL,
		logger:    logger,
	}, nil
}

// Mode returns GatewayModeLocal
func (g *LocalGateway) Mode() trade.GatewayMode {
	return trade.GatewayModeLocal
}

// Direction returns the direction the gateway serves
func (g *LocalGateway) Direction() trade.Direction {
	return g.direction
}

// Key returns the storage key holding the records
func (g *LocalGateway) Key() string {
	return g.direction.StorageKey()
}

// Submit waits the simulated latency and appends the record to the stored
// list. Once the write has been issued it runs to completion even if ctx
// ends; the caller then receives the context error.
func (g *LocalGateway) Submit(ctx context.Context, record trade.SubmissionRecord) (*trade.SubmitResult, error) {
	if g.latency > 0 {
		timer := time.NewTimer(g.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, shared.NewStorageError("submit", ctx.Err())
		case <-timer.C:
		}
	}

	done := make(chan error, 1)
	writeCtx := context.WithoutCancel(ctx)
	go func() {
		done <- g.append(writeCtx, record)
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
		g.logger.Warn("Caller gave up on a local submission that is still being written",
			zap.String("key", g.Key()),
			zap.String("document_number", record.DocumentNumber),
		)
		return nil, shared.NewStorageError("submit", ctx.Err())
	}

	stored := record
	stored.Items = record.LineItems()
	return &trade.SubmitResult{
		OK:     true,
		Source: trade.SourceLocalStorage,
		Data:   &stored,
	}, nil
}

func (g *LocalGateway) append(ctx context.Context, record trade.SubmissionRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.locker != nil {
		unlock, err := g.locker.Lock(ctx, g.Key(), g.lockTTL)
		if err != nil {
			return shared.NewStorageError("submit", fmt.Errorf("acquiring lock: %w", err))
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				g.logger.Warn("Failed to release storage lock", zap.String("key", g.Key()), zap.Error(err))
			}
		}()
	}

	records, err := g.load(ctx, "submit")
	if err != nil {
		return err
	}
	records = append(records, record)

	data, err := json.Marshal(records)
	if err != nil {
		return shared.NewStorageError("submit", fmt.Errorf("encoding records: %w", err))
	}
	if err := g.store.Set(ctx, g.Key(), string(data)); err != nil {
		return shared.NewStorageError("submit", err)
	}

	g.logger.Debug("Order stored locally",
		zap.String("key", g.Key()),
		zap.String("document_number", record.DocumentNumber),
		zap.Int("count", len(records)),
	)
	return nil
}

// GetByID returns the record at the 1-based position id. A non-numeric or
// out of range id yields nil, nil.
func (g *LocalGateway) GetByID(ctx context.Context, id string) (*trade.SubmissionRecord, error) {
	pos, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil {
		return nil, nil
	}

	records, err := g.load(ctx, "get")
	if err != nil {
		return nil, err
	}
	if pos < 1 || pos > len(records) {
		return nil, nil
	}
	rec := records[pos-1]
	return &rec, nil
}

// List returns the stored records. A zero query returns all of them;
// otherwise Q filters and Page/Size paginate (page is 1-based).
func (g *LocalGateway) List(ctx context.Context, query trade.ListQuery) ([]trade.SubmissionRecord, error) {
	records, err := g.load(ctx, "list")
	if err != nil {
		return nil, err
	}
	if query.IsZero() {
		return records, nil
	}

	filtered := make([]trade.SubmissionRecord, 0, len(records))
	for _, rec := range records {
		if rec.Matches(query.Q) {
			filtered = append(filtered, rec)
		}
	}

	if query.Size <= 0 {
		return filtered, nil
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	start := (page - 1) * query.Size
	if start >= len(filtered) {
		return []trade.SubmissionRecord{}, nil
	}
	end := start + query.Size
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[start:end], nil
}

// Clear removes every stored record of this direction
func (g *LocalGateway) Clear(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.store.Remove(ctx, g.Key()); err != nil {
		return shared.NewStorageError("clear", err)
	}
	g.logger.Info("Local records cleared", zap.String("key", g.Key()))
	return nil
}

// load reads the stored list. An absent or malformed value is an empty list.
func (g *LocalGateway) load(ctx context.Context, op string) ([]trade.SubmissionRecord, error) {
	raw, ok, err := g.store.Get(ctx, g.Key())
	if err != nil {
		return nil, shared.NewStorageError(op, err)
	}
	if !ok {
		return []trade.SubmissionRecord{}, nil
	}
	return trade.DecodeRecords(raw), nil
}
