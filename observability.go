package rods

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/arllen133/rods"
	meterName  = "github.com/arllen133/rods"
)

// Attribute keys shared by spans, metrics and log records.
const (
	attrSystem     = "db.system"
	attrOperation  = "db.operation"
	attrTable      = "db.sql.table"
	attrStatement  = "db.statement"
	attrCollection = "rods.collection"
	attrSource     = "rods.source"
	attrTarget     = "rods.target"
	attrInsert     = "rods.insert"
)

// statement is one round trip to the database as the session reports it.
type statement struct {
	op    string // select, insert, update or exec
	table string // empty for raw statements
	query string
}

func (st statement) attrs(system string) []attribute.KeyValue {
	kv := []attribute.KeyValue{
		attribute.String(attrSystem, system),
		attribute.String(attrOperation, st.op),
	}
	if st.table != "" {
		kv = append(kv, attribute.String(attrTable, st.table))
	}
	return kv
}

// Metrics are the per-statement instruments of a Session.
type Metrics struct {
	QueryCount    metric.Int64Counter
	QueryDuration metric.Float64Histogram
	QueryErrors   metric.Int64Counter
}

// ObservabilityConfig holds the logging, tracing and metrics settings of a
// Session. A nil Logger, Tracer or Metrics disables that concern.
type ObservabilityConfig struct {
	Logger             *slog.Logger
	Tracer             trace.Tracer
	Meter              metric.Meter
	Metrics            *Metrics
	SlowQueryThreshold time.Duration
	LogQueries         bool
}

func defaultObservabilityConfig() *ObservabilityConfig {
	return &ObservabilityConfig{SlowQueryThreshold: 200 * time.Millisecond}
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithLogger sets the logger for statement logging.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.obs.Logger = logger
	}
}

// WithTracer wraps every statement in a client span.
func WithTracer(tracer trace.Tracer) SessionOption {
	return func(s *Session) {
		s.obs.Tracer = tracer
	}
}

// WithDefaultTracer uses the global OpenTelemetry tracer
func WithDefaultTracer() SessionOption {
	return WithTracer(otel.Tracer(tracerName))
}

// WithMeter records statement counts, durations and failures per table.
func WithMeter(meter metric.Meter) SessionOption {
	return func(s *Session) {
		s.obs.Meter = meter
		s.obs.Metrics = newSessionMetrics(meter)
	}
}

// WithDefaultMeter uses the global OpenTelemetry meter
func WithDefaultMeter() SessionOption {
	return WithMeter(otel.Meter(meterName))
}

// WithSlowQueryThreshold sets the duration above which statements are logged
// at warn level.
func WithSlowQueryThreshold(d time.Duration) SessionOption {
	return func(s *Session) {
		s.obs.SlowQueryThreshold = d
	}
}

// WithQueryLogging logs every statement with its SQL at debug level.
func WithQueryLogging(enabled bool) SessionOption {
	return func(s *Session) {
		s.obs.LogQueries = enabled
	}
}

func newSessionMetrics(meter metric.Meter) *Metrics {
	queryCount, _ := meter.Int64Counter("rods.query.count",
		metric.WithDescription("Statements sent to the database"),
		metric.WithUnit("{query}"),
	)
	queryDuration, _ := meter.Float64Histogram("rods.query.duration",
		metric.WithDescription("Statement duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)
	queryErrors, _ := meter.Int64Counter("rods.query.errors",
		metric.WithDescription("Statements the database rejected"),
		metric.WithUnit("{error}"),
	)
	return &Metrics{
		QueryCount:    queryCount,
		QueryDuration: queryDuration,
		QueryErrors:   queryErrors,
	}
}

// spanWrapper tolerates a disabled tracer.
type spanWrapper struct {
	span trace.Span
}

func (w spanWrapper) End() {
	if w.span != nil {
		w.span.End()
	}
}

func (w spanWrapper) RecordError(err error) {
	if w.span != nil {
		w.span.RecordError(err)
	}
}

func (w spanWrapper) SetStatus(code codes.Code, description string) {
	if w.span != nil {
		w.span.SetStatus(code, description)
	}
}

func (w spanWrapper) SetAttributes(kv ...attribute.KeyValue) {
	if w.span != nil {
		w.span.SetAttributes(kv...)
	}
}

func (w spanWrapper) fail(err error) {
	w.RecordError(err)
	w.SetStatus(codes.Error, err.Error())
}

func startSpan(tracer trace.Tracer, ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, spanWrapper) {
	if tracer == nil {
		return ctx, spanWrapper{nil}
	}
	ctx, span := tracer.Start(ctx, name, opts...)
	return ctx, spanWrapper{span}
}

// observe runs one statement inside a span and records its log line and
// metrics. The statement's error is returned unchanged.
func (s *Session) observe(ctx context.Context, st statement, fn func(context.Context) error) error {
	kv := st.attrs(s.dialect.Name())
	ctx, span := startSpan(s.obs.Tracer, ctx, "rods."+st.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(kv...),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	if err != nil {
		span.fail(err)
	}
	if s.obs.LogQueries {
		span.SetAttributes(attribute.String(attrStatement, st.query))
	}
	s.recordMetrics(ctx, kv, elapsed, err)
	s.logQuery(ctx, st, elapsed, err)
	return err
}

func (s *Session) recordMetrics(ctx context.Context, kv []attribute.KeyValue, elapsed time.Duration, err error) {
	if s.obs.Metrics == nil {
		return
	}
	attrs := metric.WithAttributes(kv...)
	s.obs.Metrics.QueryCount.Add(ctx, 1, attrs)
	s.obs.Metrics.QueryDuration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	if err != nil {
		s.obs.Metrics.QueryErrors.Add(ctx, 1, attrs)
	}
}

// logQuery logs failures at error, slow statements at warn and, with query
// logging on, everything else at debug.
func (s *Session) logQuery(ctx context.Context, st statement, elapsed time.Duration, err error) {
	if s.obs.Logger == nil {
		return
	}
	attrs := []slog.Attr{
		slog.String("operation", st.op),
		slog.Duration("duration", elapsed),
	}
	if st.table != "" {
		attrs = append(attrs, slog.String("table", st.table))
	}
	if s.obs.LogQueries {
		attrs = append(attrs, slog.String("query", st.query))
	}

	switch {
	case err != nil:
		s.obs.Logger.LogAttrs(ctx, slog.LevelError, "query failed", append(attrs, slog.String("error", err.Error()))...)
	case elapsed > s.obs.SlowQueryThreshold:
		s.obs.Logger.LogAttrs(ctx, slog.LevelWarn, "slow query", attrs...)
	case s.obs.LogQueries:
		s.obs.Logger.LogAttrs(ctx, slog.LevelDebug, "query executed", attrs...)
	}
}

// mapperMetrics count what the mapper does on top of the statements: relations
// resolved and entities saved.
type mapperMetrics struct {
	populates metric.Int64Counter
	saves     metric.Int64Counter
}

func newMapperMetrics(meter metric.Meter) *mapperMetrics {
	populates, _ := meter.Int64Counter("rods.populate.count",
		metric.WithDescription("Relations resolved on materialized entities"),
		metric.WithUnit("{relation}"),
	)
	saves, _ := meter.Int64Counter("rods.save.count",
		metric.WithDescription("Entities saved"),
		metric.WithUnit("{entity}"),
	)
	return &mapperMetrics{populates: populates, saves: saves}
}

// WithMapperMeter counts populated relations and saved entities per
// collection.
func WithMapperMeter(meter metric.Meter) MapperOption {
	return func(m *Mapper) {
		m.metrics = newMapperMetrics(meter)
	}
}

// WithDefaultMapperMeter uses the global OpenTelemetry meter
func WithDefaultMapperMeter() MapperOption {
	return WithMapperMeter(otel.Meter(meterName))
}

func (m *Mapper) startSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, spanWrapper) {
	return startSpan(m.tracer, ctx, name, opts...)
}

func (m *Mapper) debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	if m.logger == nil {
		return
	}
	m.logger.LogAttrs(ctx, slog.LevelDebug, msg, attrs...)
}

func (m *Mapper) recordPopulate(ctx context.Context, collection, target, source string) {
	if m.metrics == nil {
		return
	}
	m.metrics.populates.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrCollection, collection),
		attribute.String(attrTarget, target),
		attribute.String(attrSource, source),
	))
}

func (m *Mapper) recordSave(ctx context.Context, collection string, insert bool) {
	if m.metrics == nil {
		return
	}
	m.metrics.saves.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrCollection, collection),
		attribute.Bool(attrInsert, insert),
	))
}
