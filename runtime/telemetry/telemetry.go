// Package telemetry defines the logging, metrics, and tracing contracts used
// throughout the StreetRace runtime, and a Clue/OTEL-backed implementation.
//
// Every component that logs-and-suppresses per the error-handling design
// (session read failures, guardrail unknown-kind warnings, MCP per-client
// teardown errors, discovery duplicate-name debug notes) goes through the
// Logger here rather than calling a package-level log function directly, so
// tests can substitute a lightweight stub.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger is the structured logging contract.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics exposes counter, timer, and gauge helpers.
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
	RecordTimer(name string, duration time.Duration, tags ...string)
	RecordGauge(name string, value float64, tags ...string)
}

// Tracer abstracts span creation so runtime code stays agnostic of the
// underlying OTEL provider.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	Span(ctx context.Context) Span
}

// Span represents an in-flight trace span.
type Span interface {
	End(opts ...trace.SpanEndOption)
	AddEvent(name string, attrs ...any)
	SetStatus(code codes.Code, description string)
	RecordError(err error, opts ...trace.EventOption)
}

// noop is a zero-dependency implementation used as a safe default so callers
// never need a nil check.
type noop struct{}

// NewNoopLogger returns a Logger that discards everything.
func NewNoopLogger() Logger { return noop{} }

func (noop) Debug(context.Context, string, ...any) {}
func (noop) Info(context.Context, string, ...any)  {}
func (noop) Warn(context.Context, string, ...any)  {}
func (noop) Error(context.Context, string, ...any) {}

// NewNoopMetrics returns a Metrics that discards everything.
func NewNoopMetrics() Metrics { return noop{} }

func (noop) IncCounter(string, float64, ...string)          {}
func (noop) RecordTimer(string, time.Duration, ...string)   {}
func (noop) RecordGauge(string, float64, ...string)         {}

type noopSpan struct{}

// NewNoopTracer returns a Tracer that produces inert spans.
func NewNoopTracer() Tracer { return noop{} }

func (noop) Start(ctx context.Context, _ string, _ ...trace.SpanStartOption) (context.Context, Span) {
	return ctx, noopSpan{}
}
func (noop) Span(context.Context) Span { return noopSpan{} }

func (noopSpan) End(...trace.SpanEndOption)               {}
func (noopSpan) AddEvent(string, ...any)                  {}
func (noopSpan) SetStatus(codes.Code, string)             {}
func (noopSpan) RecordError(error, ...trace.EventOption) {}
