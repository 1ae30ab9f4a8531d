package sector_cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-stream/engine/future"

	"github.com/jmalloc/twelf/src/twelf"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	otlog "github.com/opentracing/opentracing-go/log"
)

// FetchFunc retrieves the raw bytes for a sector. It is the seam to the network/IO layer.
type FetchFunc[K comparable] func(ctx context.Context, id K) ([]byte, error)

// ParseFunc decodes the raw bytes of a sector. It is the seam to the decoding layer and
// may itself dispatch the work to a background worker.
type ParseFunc[K comparable, T any] func(ctx context.Context, id K, data []byte) (T, error)

// entry is the per-id record. fetchResult is nil when the id was parsed from bytes the
// cache never fetched itself.
type entry[T any] struct {
	fetchResult *future.Future[[]byte]
	parseResult *future.Future[T]
}

// sectorCache is the implementation of the Cache interface.
type sectorCache[K comparable, T any] struct {
	mu sync.Mutex

	fetch FetchFunc[K]
	parse ParseFunc[K, T]

	entries map[K]*entry[T]
	stats   Stats

	ctx    context.Context
	logger twelf.Logger
	tracer opentracing.Tracer
}

// Cache de-duplicates concurrent fetch and parse requests keyed by a sector identifier.
//
// Entries live for the lifetime of the cache; there is no eviction. A failed fetch or
// parse stays cached as a rejected future: asking again for the same id returns the
// same error rather than retrying. Callers that want a retry must call Forget first.
type Cache[K comparable, T any] interface {
	// FetchCached returns the fetch future for id, invoking the FetchFunc only if no
	// entry exists yet. Concurrent callers for the same id share a single fetch.
	//
	// Parameters:
	//   - id: the sector identifier
	//
	// Returns:
	//   - *future.Future[[]byte]: the (possibly shared) fetch result
	FetchCached(id K) *future.Future[[]byte]

	// ParseCached returns the parse future for id, invoking the ParseFunc only if no
	// parse has been started for id. On a hit data is ignored, even if it differs from
	// the bytes the first parse received. Once a parse succeeds the fetched bytes held
	// for id are replaced with an empty buffer so they can be garbage collected.
	//
	// Parameters:
	//   - id: the sector identifier
	//   - data: the raw bytes to parse on a miss
	//
	// Returns:
	//   - *future.Future[T]: the (possibly shared) parse result
	ParseCached(id K, data []byte) *future.Future[T]

	// Forget drops everything cached for id so the next request starts over.
	// In-flight work is not cancelled; waiters holding the old futures still see its outcome.
	//
	// Parameters:
	//   - id: the sector identifier
	Forget(id K)

	// Len returns the number of ids with a cache entry.
	//
	// Returns:
	//   - int: the entry count
	Len() int

	// Stats returns a snapshot of the hit/miss counters.
	//
	// Returns:
	//   - Stats: the counters
	Stats() Stats
}

// Stats counts cache hits and misses. A miss is a call that started new work.
type Stats struct {
	FetchHits   int
	FetchMisses int
	ParseHits   int
	ParseMisses int
	Released    int // fetched payloads dropped after a successful parse
}

var _ Cache[string, int] = &sectorCache[string, int]{}

// New creates a Cache around the given fetch and parse functions.
//
// Parameters:
//   - fetch: loads raw sector bytes
//   - parse: decodes raw sector bytes
//   - options: a variadic list of CacheBuilderOption functions
//
// Returns:
//   - Cache[K, T]: the new cache
func New[K comparable, T any](fetch FetchFunc[K], parse ParseFunc[K, T], options ...CacheBuilderOption) Cache[K, T] {
	if fetch == nil || parse == nil {
		panic("sector_cache: New requires non-nil fetch and parse functions")
	}

	cfg := defaultCacheOptions()
	for _, opt := range options {
		opt(&cfg)
	}

	return &sectorCache[K, T]{
		fetch:   fetch,
		parse:   parse,
		entries: make(map[K]*entry[T]),
		ctx:     cfg.ctx,
		logger:  cfg.logger,
		tracer:  cfg.tracer,
	}
}

func (c *sectorCache[K, T]) FetchCached(id K) *future.Future[[]byte] {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if ok && e.fetchResult != nil {
		c.stats.FetchHits++
		return e.fetchResult
	}
	if !ok {
		e = &entry[T]{}
		c.entries[id] = e
	}
	c.stats.FetchMisses++

	e.fetchResult = future.Go(func() ([]byte, error) {
		span := c.tracer.StartSpan("sector_cache.fetch")
		defer span.Finish()
		span.SetTag("sector.id", fmt.Sprint(id))

		data, err := c.fetch(opentracing.ContextWithSpan(c.ctx, span), id)
		if err != nil {
			markSpanError(span, err)
			c.logger.Log("[SectorCache] fetch of sector %v failed: %s", id, err)
			return nil, fmt.Errorf("fetch sector %v: %w", id, err)
		}
		span.SetTag("sector.bytes", len(data))
		return data, nil
	})
	return e.fetchResult
}

func (c *sectorCache[K, T]) ParseCached(id K, data []byte) *future.Future[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if ok && e.parseResult != nil {
		c.stats.ParseHits++
		return e.parseResult
	}
	if !ok {
		e = &entry[T]{}
		c.entries[id] = e
	}
	c.stats.ParseMisses++

	e.parseResult = future.Go(func() (T, error) {
		span := c.tracer.StartSpan("sector_cache.parse")
		defer span.Finish()
		span.SetTag("sector.id", fmt.Sprint(id))
		span.SetTag("sector.bytes", len(data))

		parsed, err := c.parse(opentracing.ContextWithSpan(c.ctx, span), id, data)
		if err != nil {
			markSpanError(span, err)
			c.logger.Log("[SectorCache] parse of sector %v failed: %s", id, err)
			var zero T
			return zero, fmt.Errorf("parse sector %v: %w", id, err)
		}

		c.releaseFetched(id, e)
		return parsed, nil
	})
	return e.parseResult
}

// releaseFetched swaps the fetch result stored in e for an empty buffer. Nothing happens
// when id was forgotten after e started parsing, even if a newer entry exists for id.
func (c *sectorCache[K, T]) releaseFetched(id K, e *entry[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries[id] != e {
		if c.logger.IsDebug() {
			c.logger.Log("[SectorCache] sector %v was forgotten while parsing, keeping the newer entry", id)
		}
		return
	}
	if e.fetchResult == nil {
		c.logger.Log("[SectorCache] sector %v parsed without a fetch entry, nothing to release", id)
		return
	}
	e.fetchResult = future.Resolved([]byte{})
	c.stats.Released++
	if c.logger.IsDebug() {
		c.logger.Log("[SectorCache] released fetched bytes of sector %v", id)
	}
}

func (c *sectorCache[K, T]) Forget(id K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

func (c *sectorCache[K, T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *sectorCache[K, T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func markSpanError(span opentracing.Span, err error) {
	ext.Error.Set(span, true)
	span.LogFields(otlog.Error(err))
}
