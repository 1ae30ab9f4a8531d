package worker_rpc

import (
	"github.com/jmalloc/twelf/src/twelf"
	opentracing "github.com/opentracing/opentracing-go"
)

// ClientBuilderOption is a functional option for configuring a Client.
type ClientBuilderOption func(*client)

// WithClientLogger sets the logger used by the client.
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - ClientBuilderOption: a function that applies the logger option
func WithClientLogger(logger twelf.Logger) ClientBuilderOption {
	return func(c *client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClientTracer sets the tracer used to record one span per call. The span context is
// sent with the request so the worker side span joins the same trace.
//
// Parameters:
//   - tracer: the tracer to use
//
// Returns:
//   - ClientBuilderOption: a function that applies the tracer option
func WithClientTracer(tracer opentracing.Tracer) ClientBuilderOption {
	return func(c *client) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}
