package sector_cache

import (
	"context"

	"github.com/jmalloc/twelf/src/twelf"
	opentracing "github.com/opentracing/opentracing-go"
)

// cacheOptions collects the settings applied by CacheBuilderOption functions.
type cacheOptions struct {
	ctx    context.Context
	logger twelf.Logger
	tracer opentracing.Tracer
}

func defaultCacheOptions() cacheOptions {
	return cacheOptions{
		ctx:    context.Background(),
		logger: &twelf.StandardLogger{},
		tracer: opentracing.GlobalTracer(),
	}
}

// CacheBuilderOption is a functional option for configuring a Cache via New.
type CacheBuilderOption func(*cacheOptions)

// WithContext sets the lifetime context passed to every fetch and parse. Work is shared
// between callers, so it never runs under an individual caller's context.
//
// Parameters:
//   - ctx: the cache lifetime context
//
// Returns:
//   - CacheBuilderOption: a function that applies the context option
func WithContext(ctx context.Context) CacheBuilderOption {
	return func(o *cacheOptions) {
		o.ctx = ctx
	}
}

// WithLogger sets the logger used for failures and debug output.
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - CacheBuilderOption: a function that applies the logger option
func WithLogger(logger twelf.Logger) CacheBuilderOption {
	return func(o *cacheOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer sets the tracer used to record fetch and parse spans.
//
// Parameters:
//   - tracer: the tracer to use
//
// Returns:
//   - CacheBuilderOption: a function that applies the tracer option
func WithTracer(tracer opentracing.Tracer) CacheBuilderOption {
	return func(o *cacheOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}
