package series

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Option configures a sequence.
type Option func(*config)

type config struct {
	panicToError bool
	tracer       trace.Tracer
	parent       context.Context
}

func defaultConfig() config {
	return config{
		panicToError: true,
		tracer:       noop.NewTracerProvider().Tracer(tracerName),
		parent:       context.Background(),
	}
}

// WithPanicToError converts a panic raised while a task is invoked into that
// step's error.
func WithPanicToError(enabled bool) Option {
	return func(c *config) {
		c.panicToError = enabled
	}
}

// WithTracer records one span for the sequence and one child span per step.
func WithTracer(tracer trace.Tracer) Option {
	if tracer == nil {
		panic("series: tracer cannot be nil")
	}

	return func(c *config) {
		c.tracer = tracer
	}
}

// WithParent sets the context the sequence span is started from.
// Cancellation of ctx is not observed.
func WithParent(ctx context.Context) Option {
	if ctx == nil {
		panic("series: parent context cannot be nil")
	}

	return func(c *config) {
		c.parent = ctx
	}
}
