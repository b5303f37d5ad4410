package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	DBSystem        string        // "postgresql" or "sqlite"
	SlowQueryThresh time.Duration // default 200ms
	// LogFullSQL keeps bound values in span statements; the stored values are
	// whole order documents, so leave it off outside development.
	LogFullSQL bool
}

type queryStartKey struct{}

// InstrumentGorm registers otelgorm on db, so every key-value store read and
// write becomes a child span of the gateway span, and marks slow statements.
func InstrumentGorm(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
		}
	}
	after := func(tx *gorm.DB) {
		markSlowQuery(tx, cfg.SlowQueryThresh)
	}

	cb := db.Callback()
	registrations := []struct {
		name string
		err  error
	}{
		{"create:before", cb.Create().Before("gorm:create").Register("orderdesk:timing_before_create", before)},
		{"create:after", cb.Create().After("gorm:create").Register("orderdesk:timing_after_create", after)},
		{"query:before", cb.Query().Before("gorm:query").Register("orderdesk:timing_before_query", before)},
		{"query:after", cb.Query().After("gorm:query").Register("orderdesk:timing_after_query", after)},
		{"delete:before", cb.Delete().Before("gorm:delete").Register("orderdesk:timing_before_delete", before)},
		{"delete:after", cb.Delete().After("gorm:delete").Register("orderdesk:timing_after_delete", after)},
	}
	for _, r := range registrations {
		if r.err != nil {
			return r.err
		}
	}

	logger.Info("Database tracing enabled",
		zap.String("db_system", cfg.DBSystem),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

func markSlowQuery(tx *gorm.DB, threshold time.Duration) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", tx.Statement.RowsAffected))
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		RecordError(span, tx.Error)
	}

	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(start); elapsed > threshold {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("threshold_ms", threshold.Milliseconds()),
		))
	}
}
