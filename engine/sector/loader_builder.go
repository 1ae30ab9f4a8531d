package sector

import (
	"github.com/Carmen-Shannon/oxy-stream/engine/box_merger"
	"github.com/Carmen-Shannon/oxy-stream/engine/node_transform"

	"github.com/jmalloc/twelf/src/twelf"
	opentracing "github.com/opentracing/opentracing-go"
)

// DefaultConcurrency is the number of sectors a Loader fetches and parses at once.
const DefaultConcurrency = 4

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithConcurrency bounds how many sectors a single Load works on at once.
//
// Parameters:
//   - n: the limit, ignored unless positive
//
// Returns:
//   - LoaderBuilderOption: a function that applies the concurrency option
func WithConcurrency(n int) LoaderBuilderOption {
	return func(l *loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// WithLogger sets the logger used by the loader and its cache.
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - LoaderBuilderOption: a function that applies the logger option
func WithLogger(logger twelf.Logger) LoaderBuilderOption {
	return func(l *loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithTracer sets the tracer used by the loader and its cache.
//
// Parameters:
//   - tracer: the tracer to use
//
// Returns:
//   - LoaderBuilderOption: a function that applies the tracer option
func WithTracer(tracer opentracing.Tracer) LoaderBuilderOption {
	return func(l *loader) {
		if tracer != nil {
			l.tracer = tracer
		}
	}
}

// WithNodeTransforms subscribes the loader to provider so NodeMatrix reflects its overrides.
//
// Parameters:
//   - provider: the node transform provider to observe
//
// Returns:
//   - LoaderBuilderOption: a function that applies the provider option
func WithNodeTransforms(provider node_transform.NodeTransformProvider) LoaderBuilderOption {
	return func(l *loader) {
		l.transforms = provider
	}
}

// WithMerger sets the merger that consolidates the instance boxes of visible sectors.
//
// Parameters:
//   - merger: the box merger to use
//
// Returns:
//   - LoaderBuilderOption: a function that applies the merger option
func WithMerger(merger box_merger.BoxMerger) LoaderBuilderOption {
	return func(l *loader) {
		if merger != nil {
			l.merger = merger
		}
	}
}

// WithFirstShaderLocation sets the shader location of the first instance attribute in
// the vertex layouts the loader builds.
//
// Parameters:
//   - location: the first shader location
//
// Returns:
//   - LoaderBuilderOption: a function that applies the location option
func WithFirstShaderLocation(location uint32) LoaderBuilderOption {
	return func(l *loader) {
		l.firstLocation = location
	}
}
