package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	infraconfig "github.com/backoffice/saas/internal/infrastructure/config"
)

type tracedRow struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:100"`
}

func setupRecorder(t *testing.T) *tracetest.SpanRecorder {
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

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedRow{}))
	return db
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), infraconfig.TelemetryConfig{ServiceName: "backoffice"}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	tp.EnableSpanProfiles()
	assert.False(t, tp.SpanProfilesEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), samplerFor(0).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(), samplerFor(0.25).Description())
}

func TestNewProfiler_Disabled(t *testing.T) {
	p, err := NewProfiler(infraconfig.TelemetryConfig{}, nil)
	require.NoError(t, err)
	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
}

func TestNewProfiler_RequiresURL(t *testing.T) {
	_, err := NewProfiler(infraconfig.TelemetryConfig{PyroscopeEnabled: true, ServiceName: "backoffice"}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pyroscope_url")
}

func TestStartSpan(t *testing.T) {
	sr := setupRecorder(t)

	ctx, span := StartServiceSpan(context.Background(), "media", "upload",
		WithAttribute(SpanAttrTenantID, "acme"),
		WithAttribute("size", int64(42)),
	)
	assert.NotEmpty(t, TraceID(ctx))
	SetAttributes(span, "mime", "image/png", 7, "skipped", "ok", true)
	AddEvent(span, "stored", "key", "acme/2026/10/a.png")
	RecordError(span, errors.New("boom"))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "media.upload", s.Name())
	assert.Equal(t, codes.Error, s.Status().Code)

	attrs := attrMap(s.Attributes())
	assert.Equal(t, "acme", attrs[SpanAttrTenantID].AsString())
	assert.Equal(t, int64(42), attrs["size"].AsInt64())
	assert.Equal(t, "image/png", attrs["mime"].AsString())
	assert.True(t, attrs["ok"].AsBool())
	assert.NotContains(t, attrs, "skipped")

	var names []string
	for _, e := range s.Events() {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "stored")
}

func TestTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))
}

func TestRecordError_NilSafe(t *testing.T) {
	RecordError(nil, errors.New("x"))
	_, span := StartSpan(context.Background(), "noop")
	RecordError(span, nil)
	span.End()
}

func TestRegisterDBTracing_Disabled(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, RegisterDBTracing(db, DBTracingConfig{}, nil))
	assert.Nil(t, db.Callback().Query().Get("telemetry:after_query"))
}

func TestRegisterDBTracing_RecordsSpans(t *testing.T) {
	sr := setupRecorder(t)
	db := setupDB(t)
	require.NoError(t, RegisterDBTracing(db, DBTracingConfig{Enabled: true, DBSystem: "sqlite"}, zap.NewNop()))

	ctx, parent := StartSpan(context.Background(), "parent")
	require.NoError(t, db.WithContext(ctx).Create(&tracedRow{Name: "a"}).Error)
	var found tracedRow
	require.NoError(t, db.WithContext(ctx).First(&found, "name = ?", "a").Error)
	parent.End()

	assert.Greater(t, len(sr.Ended()), 1)
}

func TestRegisterDBTracing_LogsSlowQueries(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	db := setupDB(t)
	require.NoError(t, RegisterDBTracing(db, DBTracingConfig{
		Enabled:         true,
		DBSystem:        "sqlite",
		SlowQueryThresh: time.Nanosecond,
	}, zap.New(core)))

	var rows []tracedRow
	require.NoError(t, db.Find(&rows).Error)

	slow := logs.FilterMessage("Slow query").All()
	require.NotEmpty(t, slow)
	assert.Equal(t, "traced_rows", slow[0].ContextMap()["table"])
}

func TestWithProfilingLabels(t *testing.T) {
	assert.Equal(t, []string{"method", "GET", "route", "/api/v1/media"},
		labelPairs(map[string]string{"route": "/api/v1/media", "method": "GET", "tenant_id": "", " ": "x"}))

	called := false
	WithProfilingLabels(context.Background(), nil, func(context.Context) { called = true })
	assert.True(t, called)

	called = false
	WithProfilingLabels(context.Background(), map[string]string{ProfilingLabelJob: "media.empty_trash"}, func(ctx context.Context) {
		called = ctx != nil
	})
	assert.True(t, called)
}
