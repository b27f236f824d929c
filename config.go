package rods

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultIDField is the identifier column used when neither the model nor
// the mapper names one.
const DefaultIDField = "id"

// MapperOption configures a Mapper
type MapperOption func(*Mapper)

// WithDefaultIDField sets the identifier column for every model the mapper
// binds that does not set its own.
func WithDefaultIDField(name string) MapperOption {
	return func(m *Mapper) {
		m.idField = name
	}
}

// WithPreHook registers a pre hook at construction time. An unknown event
// makes New panic; use Mapper.Pre to handle the error instead.
func WithPreHook(ev Event, fn PreHook) MapperOption {
	return func(m *Mapper) {
		if err := m.hooks.setPre(ev, fn); err != nil {
			panic(err)
		}
	}
}

// WithPostHook registers a post hook at construction time. An unknown event
// makes New panic.
func WithPostHook(ev Event, fn PostHook) MapperOption {
	return func(m *Mapper) {
		if err := m.hooks.setPost(ev, fn); err != nil {
			panic(err)
		}
	}
}

// WithMapperLogger sets the logger used for populate and save tracing at
// debug level.
func WithMapperLogger(logger *slog.Logger) MapperOption {
	return func(m *Mapper) {
		m.logger = logger
	}
}

// WithMapperTracer wraps saves and query executions in spans.
func WithMapperTracer(tracer trace.Tracer) MapperOption {
	return func(m *Mapper) {
		m.tracer = tracer
	}
}

// WithDefaultMapperTracer uses the global OpenTelemetry tracer
func WithDefaultMapperTracer() MapperOption {
	return func(m *Mapper) {
		m.tracer = otel.Tracer(tracerName)
	}
}

// ModelOption configures a Model
type ModelOption func(*Model)

// WithIDField overrides the identifier column for one model.
func WithIDField(name string) ModelOption {
	return func(m *Model) {
		m.idField = name
	}
}

// WithColumns declares the model's columns. Queries then select exactly these
// columns and saves only send these fields; without it every column is
// selected and every plain field is sent.
func WithColumns(cols ...string) ModelOption {
	return func(m *Model) {
		m.columns = append([]string(nil), cols...)
	}
}
