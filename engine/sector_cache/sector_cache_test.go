package sector_cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spy counts invocations and lets a test hold fetches open until released.
type spy struct {
	fetches atomic.Int32
	parses  atomic.Int32
	gate    chan struct{}
}

func newSpy() *spy {
	return &spy{gate: make(chan struct{})}
}

func (s *spy) fetch(ctx context.Context, id int) ([]byte, error) {
	s.fetches.Add(1)
	<-s.gate
	return []byte("sector-" + strconv.Itoa(id)), nil
}

func (s *spy) parse(ctx context.Context, id int, data []byte) (string, error) {
	s.parses.Add(1)
	return string(data), nil
}

func TestFetchCached_DeduplicatesInFlight(t *testing.T) {
	s := newSpy()
	c := New(s.fetch, s.parse)

	first := c.FetchCached(1)
	second := c.FetchCached(1)
	require.Same(t, first, second)
	require.False(t, first.Settled())

	close(s.gate)
	data, err := second.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sector-1", string(data))
	require.EqualValues(t, 1, s.fetches.Load())
}

func TestFetchCached_ConcurrentCallers(t *testing.T) {
	s := newSpy()
	close(s.gate)
	c := New(s.fetch, s.parse)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.FetchCached(7).Result()
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, s.fetches.Load())
	st := c.Stats()
	require.Equal(t, 1, st.FetchMisses)
	require.Equal(t, 31, st.FetchHits)
}

func TestParseCached_IgnoresBytesOnHit(t *testing.T) {
	s := newSpy()
	c := New(s.fetch, s.parse)

	first := c.ParseCached(3, []byte("a"))
	second := c.ParseCached(3, []byte("completely different"))
	require.Same(t, first, second)

	v, err := second.Result()
	require.NoError(t, err)
	require.Equal(t, "a", v)
	require.EqualValues(t, 1, s.parses.Load())
}

func TestParseCached_ReleasesFetchedBytes(t *testing.T) {
	s := newSpy()
	close(s.gate)
	c := New(s.fetch, s.parse)

	data, err := c.FetchCached(5).Result()
	require.NoError(t, err)
	require.NotEmpty(t, data)

	parsed, err := c.ParseCached(5, data).Result()
	require.NoError(t, err)
	require.Equal(t, "sector-5", parsed)

	released, err := c.FetchCached(5).Result()
	require.NoError(t, err)
	require.Empty(t, released)
	require.EqualValues(t, 1, s.fetches.Load(), "release must not trigger a refetch")
	require.Equal(t, 1, c.Stats().Released)
}

func TestParseCached_WithoutFetchEntry(t *testing.T) {
	s := newSpy()
	c := New(s.fetch, s.parse)

	v, err := c.ParseCached(9, []byte("external")).Result()
	require.NoError(t, err)
	require.Equal(t, "external", v)
	require.Equal(t, 0, c.Stats().Released)
	require.Equal(t, 1, c.Len())
}

func TestFetchCached_RejectionIsCached(t *testing.T) {
	boom := errors.New("network down")
	var calls atomic.Int32
	c := New(
		func(ctx context.Context, id string) ([]byte, error) {
			calls.Add(1)
			return nil, boom
		},
		func(ctx context.Context, id string, data []byte) (int, error) { return len(data), nil },
	)

	first := c.FetchCached("a")
	_, err := first.Result()
	require.ErrorIs(t, err, boom)

	second := c.FetchCached("a")
	require.Same(t, first, second)
	_, err = second.Result()
	require.ErrorIs(t, err, boom)
	require.EqualValues(t, 1, calls.Load())
}

func TestParseCached_RejectionIsCachedAndKeepsBytes(t *testing.T) {
	boom := errors.New("corrupt")
	var parses atomic.Int32
	c := New(
		func(ctx context.Context, id string) ([]byte, error) { return []byte("raw"), nil },
		func(ctx context.Context, id string, data []byte) (int, error) {
			parses.Add(1)
			return 0, boom
		},
	)

	data, err := c.FetchCached("x").Result()
	require.NoError(t, err)

	_, err = c.ParseCached("x", data).Result()
	require.ErrorIs(t, err, boom)
	_, err = c.ParseCached("x", data).Result()
	require.ErrorIs(t, err, boom)
	require.EqualValues(t, 1, parses.Load())

	kept, err := c.FetchCached("x").Result()
	require.NoError(t, err)
	require.Equal(t, "raw", string(kept))
}

func TestForget_AllowsRetry(t *testing.T) {
	var calls atomic.Int32
	c := New(
		func(ctx context.Context, id int) ([]byte, error) {
			if calls.Add(1) == 1 {
				return nil, errors.New("transient")
			}
			return []byte{1}, nil
		},
		func(ctx context.Context, id int, data []byte) (int, error) { return len(data), nil },
	)

	_, err := c.FetchCached(1).Result()
	require.Error(t, err)

	c.Forget(1)
	require.Equal(t, 0, c.Len())

	data, err := c.FetchCached(1).Result()
	require.NoError(t, err)
	require.Equal(t, []byte{1}, data)
	require.EqualValues(t, 2, calls.Load())
}

func TestForget_StaleParseKeepsNewerEntry(t *testing.T) {
	var fetches atomic.Int32
	parseGate := make(chan struct{})
	c := New(
		func(ctx context.Context, id int) ([]byte, error) {
			if fetches.Add(1) == 1 {
				return []byte("stale"), nil
			}
			return []byte("fresh"), nil
		},
		func(ctx context.Context, id int, data []byte) (string, error) {
			<-parseGate
			return string(data), nil
		},
	)

	stale, err := c.FetchCached(1).Result()
	require.NoError(t, err)
	staleParse := c.ParseCached(1, stale)

	c.Forget(1)
	fresh, err := c.FetchCached(1).Result()
	require.NoError(t, err)
	require.Equal(t, "fresh", string(fresh))

	close(parseGate)
	parsed, err := staleParse.Result()
	require.NoError(t, err)
	require.Equal(t, "stale", parsed)

	kept, err := c.FetchCached(1).Result()
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(kept))
	assert.Equal(t, 0, c.Stats().Released)

	parsed, err = c.ParseCached(1, kept).Result()
	require.NoError(t, err)
	assert.Equal(t, "fresh", parsed)
	assert.Equal(t, 1, c.Stats().Released)
}

func TestCache_RecordsSpans(t *testing.T) {
	tracer := mocktracer.New()
	c := New(
		func(ctx context.Context, id int) ([]byte, error) { return nil, errors.New("nope") },
		func(ctx context.Context, id int, data []byte) (int, error) { return 0, nil },
		WithTracer(tracer),
	)

	_, err := c.FetchCached(4).Result()
	require.Error(t, err)

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 1)
	require.Equal(t, "sector_cache.fetch", spans[0].OperationName)
	require.Equal(t, "4", spans[0].Tag("sector.id"))
	require.Equal(t, true, spans[0].Tag("error"))
}

func TestNew_PanicsOnNilFuncs(t *testing.T) {
	require.Panics(t, func() {
		New[int, int](nil, func(ctx context.Context, id int, data []byte) (int, error) { return 0, nil })
	})
}
