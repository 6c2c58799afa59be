package telemetry

import (
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const queryStartKey = "telemetry:query_start"

// DBTracingConfig controls GORM instrumentation.
type DBTracingConfig struct {
	Enabled         bool
	DBSystem        string
	SlowQueryThresh time.Duration
	// LogFullSQL keeps bound query parameters in span attributes
	LogFullSQL bool
}

// RegisterDBTracing installs otelgorm plus timing callbacks that tag and log
// statements slower than SlowQueryThresh.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	slow := &slowQueryTracker{thresh: cfg.SlowQueryThresh, logger: logger}
	cb := db.Callback()
	register := []func() error{
		func() error { return cb.Create().Before("gorm:create").Register("telemetry:before_create", slow.before) },
		func() error { return cb.Query().Before("gorm:query").Register("telemetry:before_query", slow.before) },
		func() error { return cb.Update().Before("gorm:update").Register("telemetry:before_update", slow.before) },
		func() error { return cb.Delete().Before("gorm:delete").Register("telemetry:before_delete", slow.before) },
		func() error { return cb.Row().Before("gorm:row").Register("telemetry:before_row", slow.before) },
		func() error { return cb.Raw().Before("gorm:raw").Register("telemetry:before_raw", slow.before) },
		func() error { return cb.Create().After("gorm:create").Register("telemetry:after_create", slow.after) },
		func() error { return cb.Query().After("gorm:query").Register("telemetry:after_query", slow.after) },
		func() error { return cb.Update().After("gorm:update").Register("telemetry:after_update", slow.after) },
		func() error { return cb.Delete().After("gorm:delete").Register("telemetry:after_delete", slow.after) },
		func() error { return cb.Row().After("gorm:row").Register("telemetry:after_row", slow.after) },
		func() error { return cb.Raw().After("gorm:raw").Register("telemetry:after_raw", slow.after) },
	}
	for _, r := range register {
		if err := r(); err != nil {
			return err
		}
	}

	logger.Info("Database tracing enabled",
		zap.String("db_system", cfg.DBSystem),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
		zap.Bool("log_full_sql", cfg.LogFullSQL),
	)
	return nil
}

type slowQueryTracker struct {
	thresh time.Duration
	logger *zap.Logger
}

func (t *slowQueryTracker) before(db *gorm.DB) {
	db.InstanceSet(queryStartKey, time.Now())
}

func (t *slowQueryTracker) after(db *gorm.DB) {
	var span trace.Span
	if ctx := db.Statement.Context; ctx != nil {
		span = trace.SpanFromContext(ctx)
	}
	recording := span != nil && span.IsRecording()

	if recording {
		if db.Statement.Table != "" {
			span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
		}
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			span.RecordError(db.Error)
			span.SetStatus(codes.Error, db.Error.Error())
		}
	}

	if t.thresh <= 0 {
		return
	}
	v, ok := db.InstanceGet(queryStartKey)
	if !ok {
		return
	}
	start, ok := v.(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(start)
	if elapsed <= t.thresh {
		return
	}
	t.logger.Warn("Slow query",
		zap.String("table", db.Statement.Table),
		zap.Duration("elapsed", elapsed),
		zap.Duration("threshold", t.thresh),
	)
	if recording {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
	}
}
