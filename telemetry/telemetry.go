// Package telemetry defines the ambient logging/metrics/tracing interfaces
// threaded through the runtime. Concrete sinks are an external collaborator
// (spec.md §1 lists "telemetry sinks" as out of scope) — this package only
// fixes the shape every component programs against, plus Noop defaults so
// the runtime works with zero configuration.
package telemetry

import (
	"context"
	"time"
)

type (
	// Logger emits structured, leveled log lines. Implementations should be
	// cheap enough to call on every pass, tool dispatch, and bridge message.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)
	}

	// Metrics records counters, timers, and gauges for runtime operations.
	Metrics interface {
		IncCounter(name string, value float64, tags ...string)
		RecordTimer(name string, duration time.Duration, tags ...string)
		RecordGauge(name string, value float64, tags ...string)
	}

	// Tracer creates spans around permission resolution, deck loads, model
	// turns, and tool dispatch.
	Tracer interface {
		Start(ctx context.Context, name string) (context.Context, Span)
	}

	// Span is a single traced operation.
	Span interface {
		End()
		SetError(err error)
		AddEvent(name string, keyvals ...any)
	}
)

type (
	// NoopLogger discards everything.
	NoopLogger struct{}
	// NoopMetrics discards everything.
	NoopMetrics struct{}
	// NoopTracer produces spans that do nothing.
	NoopTracer struct{}
	noopSpan   struct{}
)

func (NoopLogger) Debug(context.Context, string, ...any) {}
func (NoopLogger) Info(context.Context, string, ...any)  {}
func (NoopLogger) Warn(context.Context, string, ...any)  {}
func (NoopLogger) Error(context.Context, string, ...any) {}

func (NoopMetrics) IncCounter(string, float64, ...string)          {}
func (NoopMetrics) RecordTimer(string, time.Duration, ...string)   {}
func (NoopMetrics) RecordGauge(string, float64, ...string)         {}

func (NoopTracer) Start(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (noopSpan) End()                        {}
func (noopSpan) SetError(error)              {}
func (noopSpan) AddEvent(string, ...any)     {}
