package worker_rpc

import (
	"context"
	"time"

	"github.com/jmalloc/twelf/src/twelf"
	opentracing "github.com/opentracing/opentracing-go"
)

// DispatcherBuilderOption is a functional option for configuring a Dispatcher.
type DispatcherBuilderOption func(*dispatcher)

// WithDispatcherContext sets the parent of the context handed to every method call.
// Cancelling it has the same effect on running methods as Close.
//
// Parameters:
//   - ctx: the parent context
//
// Returns:
//   - DispatcherBuilderOption: a function that applies the context option
func WithDispatcherContext(ctx context.Context) DispatcherBuilderOption {
	return func(d *dispatcher) {
		if ctx != nil {
			d.parent = ctx
		}
	}
}

// WithWorkers sets the maximum number of methods executing at once.
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - DispatcherBuilderOption: a function that applies the worker count option
func WithWorkers(n int) DispatcherBuilderOption {
	return func(d *dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithQueueSize sets how many accepted requests may wait for a free worker.
//
// Parameters:
//   - n: the queue size
//
// Returns:
//   - DispatcherBuilderOption: a function that applies the queue size option
func WithQueueSize(n int) DispatcherBuilderOption {
	return func(d *dispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// WithIdleTimeout sets how long an idle worker goroutine lingers before exiting.
//
// Parameters:
//   - timeout: the idle timeout
//
// Returns:
//   - DispatcherBuilderOption: a function that applies the idle timeout option
func WithIdleTimeout(timeout time.Duration) DispatcherBuilderOption {
	return func(d *dispatcher) {
		if timeout > 0 {
			d.idleTimeout = timeout
		}
	}
}

// WithDispatcherLogger sets the logger used by the dispatcher.
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - DispatcherBuilderOption: a function that applies the logger option
func WithDispatcherLogger(logger twelf.Logger) DispatcherBuilderOption {
	return func(d *dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithDispatcherTracer sets the tracer used to record one span per handled request.
//
// Parameters:
//   - tracer: the tracer to use
//
// Returns:
//   - DispatcherBuilderOption: a function that applies the tracer option
func WithDispatcherTracer(tracer opentracing.Tracer) DispatcherBuilderOption {
	return func(d *dispatcher) {
		if tracer != nil {
			d.tracer = tracer
		}
	}
}
