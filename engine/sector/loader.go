package sector

import (
	"context"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-stream/common"
	"github.com/Carmen-Shannon/oxy-stream/engine/box_merger"
	"github.com/Carmen-Shannon/oxy-stream/engine/buffer_layout"
	"github.com/Carmen-Shannon/oxy-stream/engine/node_transform"
	"github.com/Carmen-Shannon/oxy-stream/engine/sector_cache"
	"github.com/Carmen-Shannon/oxy-stream/engine/sequencer"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/jmalloc/twelf/src/twelf"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	otlog "github.com/opentracing/opentracing-go/log"
	"golang.org/x/sync/errgroup"
)

// LoadedSector is a sector bound as instanced geometry and ready for upload.
type LoadedSector struct {
	ID          uint32
	Parsed      *Parsed
	Geometry    *buffer_layout.Geometry
	Layout      wgpu.VertexBufferLayout
	TreeIndices []int
	Boxes       []common.Box3
}

// LoaderStats counts loader activity.
type LoaderStats struct {
	Requested int
	Loaded    int
	Failed    int
	Visible   int
	Cache     sector_cache.Stats
}

// Loader streams sectors from a Source into a visible set.
type Loader interface {
	// Load fetches and parses ids concurrently and adds them to the visible set in the
	// order they were requested, regardless of which finishes first. Ids that are already
	// visible are returned without reloading.
	//
	// Parameters:
	//   - ctx: bounds the wait for fetching and parsing
	//   - ids: the sectors to load
	//
	// Returns:
	//   - []*LoadedSector: the loaded sectors, indexed like ids; nil where loading failed
	//   - error: the first failure; the other sectors are still loaded and applied
	Load(ctx context.Context, ids []uint32) ([]*LoadedSector, error)

	// Visible returns the visible sectors in the order they were added.
	Visible() []*LoadedSector

	// CullingBoxes returns the merged instance boxes of every visible sector.
	CullingBoxes() []common.Box3

	// VisibleBoxes returns the merged boxes that intersect f.
	//
	// Parameters:
	//   - f: the view frustum
	//
	// Returns:
	//   - []common.Box3: the boxes worth drawing
	VisibleBoxes(f common.Frustum) []common.Box3

	// NodeMatrix returns the local space override of the most recently set range that
	// contains treeIndex.
	//
	// Parameters:
	//   - treeIndex: the node's tree index
	//
	// Returns:
	//   - common.Mat4: the override, or the identity
	//   - bool: true if an override applies
	NodeMatrix(treeIndex int) (common.Mat4, bool)

	// Unload removes id from the visible set and forgets its cached data.
	//
	// Parameters:
	//   - id: the sector to unload
	//
	// Returns:
	//   - bool: true if id was visible
	Unload(id uint32) bool

	// Stats returns a snapshot of the loader counters.
	Stats() LoaderStats

	// Close stops observing node transforms and cancels in-flight fetches and parses.
	Close() error
}

// nodeOverride is the local space matrix received for a range.
type nodeOverride struct {
	rng    node_transform.TreeIndexRange
	matrix common.Mat4
}

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.Mutex

	cache  sector_cache.Cache[uint32, *Parsed]
	seq    *sequencer.AsyncSequencer
	cancel context.CancelFunc

	visible []*LoadedSector
	byID    map[uint32]*LoadedSector
	merger  box_merger.BoxMerger

	overrides []nodeOverride
	stats     LoaderStats

	concurrency   int
	firstLocation uint32
	transforms    node_transform.NodeTransformProvider
	unsubscribe   func()

	logger twelf.Logger
	tracer opentracing.Tracer
}

var _ Loader = &loader{}

// NewLoader creates a Loader reading from source and decoding with parse.
//
// Parameters:
//   - source: where encoded sectors come from
//   - parse: the decoder, typically LocalParser or RemoteParser
//   - options: variadic LoaderBuilderOption functions
//
// Returns:
//   - Loader: the new loader
func NewLoader(source Source, parse sector_cache.ParseFunc[uint32, *Parsed], options ...LoaderBuilderOption) Loader {
	l := &loader{
		seq:         sequencer.New(),
		byID:        make(map[uint32]*LoadedSector),
		merger:      box_merger.NewBoxMerger(),
		concurrency: DefaultConcurrency,
		logger:      &twelf.StandardLogger{},
		tracer:      opentracing.GlobalTracer(),
	}
	for _, opt := range options {
		opt(l)
	}

	var ctx context.Context
	ctx, l.cancel = context.WithCancel(context.Background())
	l.cache = sector_cache.New(source.Fetch, parse,
		sector_cache.WithContext(ctx),
		sector_cache.WithLogger(l.logger),
		sector_cache.WithTracer(l.tracer),
	)

	if l.transforms != nil {
		l.unsubscribe = l.transforms.Subscribe(node_transform.ObserverFuncs{
			Set:   l.setOverride,
			Reset: l.resetOverride,
		})
	}
	return l
}

func (l *loader) Load(ctx context.Context, ids []uint32) ([]*LoadedSector, error) {
	span, ctx := opentracing.StartSpanFromContextWithTracer(ctx, l.tracer, "sector.load")
	defer span.Finish()
	span.SetTag("sector.count", len(ids))

	l.mu.Lock()
	l.stats.Requested += len(ids)
	l.mu.Unlock()

	// Slots are reserved before any work starts so they follow the request order.
	applies := make([]sequencer.Sequencer[*LoadedSector], len(ids))
	for i := range ids {
		applies[i] = sequencer.Next[*LoadedSector](l.seq)
	}

	results := make([]*LoadedSector, len(ids))
	var (
		errMu    sync.Mutex
		firstErr error
	)
	// A plain group so one failed sector does not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(l.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			loaded, prepErr := l.prepare(ctx, id)
			applied := applies[i](func() (*LoadedSector, error) {
				if prepErr != nil {
					return nil, prepErr
				}
				return l.publish(loaded), nil
			})
			// Every earlier region is bounded by ctx, so this wait always ends.
			res, err := applied.Result()
			if err != nil {
				l.mu.Lock()
				l.stats.Failed++
				l.mu.Unlock()
				l.logger.Log("[Loader] sector %d failed: %v", id, err)
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	if firstErr != nil {
		ext.Error.Set(span, true)
		span.LogFields(otlog.String("event", "error"), otlog.String("message", firstErr.Error()))
		return results, firstErr
	}
	return results, nil
}

// prepare fetches, parses and binds sector id. It runs concurrently with other sectors.
func (l *loader) prepare(ctx context.Context, id uint32) (*LoadedSector, error) {
	data, err := l.cache.FetchCached(id).Await(ctx)
	if err != nil {
		return nil, err
	}
	parsed, err := l.cache.ParseCached(id, data).Await(ctx)
	if err != nil {
		return nil, err
	}
	return l.bind(parsed)
}

// bind builds the instanced geometry and its vertex layout over the parsed payload.
func (l *loader) bind(p *Parsed) (*LoadedSector, error) {
	g, err := p.Geometry()
	if err != nil {
		return nil, err
	}
	layout, err := buffer_layout.InstanceBufferLayout(g, l.firstLocation)
	if err != nil {
		return nil, fmt.Errorf("sector %d: %w", p.ID, err)
	}
	return &LoadedSector{
		ID:          p.ID,
		Parsed:      p,
		Geometry:    g,
		Layout:      layout,
		TreeIndices: buffer_layout.TreeIndices(g),
		Boxes:       InstanceBoxes(g),
	}, nil
}

// publish adds s to the visible set unless a sector with the same id is already there,
// in which case the visible one is returned.
func (l *loader) publish(s *LoadedSector) *LoadedSector {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.byID[s.ID]; ok {
		return existing
	}
	l.byID[s.ID] = s
	l.visible = append(l.visible, s)
	l.merger.AddBoxes(s.Boxes...)
	l.stats.Loaded++
	if l.logger.IsDebug() {
		l.logger.Log("[Loader] sector %d visible with %d instances", s.ID, s.Parsed.InstanceCount)
	}
	return s
}

func (l *loader) Visible() []*LoadedSector {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*LoadedSector(nil), l.visible...)
}

func (l *loader) CullingBoxes() []common.Box3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.merger.SquashAndGetBoxes()
}

func (l *loader) VisibleBoxes(f common.Frustum) []common.Box3 {
	var out []common.Box3
	for _, b := range l.CullingBoxes() {
		if f.IntersectsBox(b) {
			out = append(out, b)
		}
	}
	return out
}

func (l *loader) NodeMatrix(treeIndex int) (common.Mat4, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.overrides) - 1; i >= 0; i-- {
		if l.overrides[i].rng.Contains(treeIndex) {
			return l.overrides[i].matrix, true
		}
	}
	return common.IdentityMat4(), false
}

func (l *loader) Unload(id uint32) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.byID[id]; !ok {
		return false
	}
	delete(l.byID, id)
	for i, s := range l.visible {
		if s.ID == id {
			l.visible = append(l.visible[:i], l.visible[i+1:]...)
			break
		}
	}
	l.cache.Forget(id)

	l.merger.Reset()
	for _, s := range l.visible {
		l.merger.AddBoxes(s.Boxes...)
	}
	return true
}

func (l *loader) Stats() LoaderStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.stats
	s.Visible = len(l.visible)
	s.Cache = l.cache.Stats()
	return s
}

func (l *loader) Close() error {
	if l.unsubscribe != nil {
		l.unsubscribe()
	}
	l.cancel()
	return nil
}

// setOverride records the latest local matrix for r, moving it to the end of the list.
func (l *loader) setOverride(r node_transform.TreeIndexRange, m common.Mat4) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dropOverride(r)
	l.overrides = append(l.overrides, nodeOverride{rng: r, matrix: m})
}

func (l *loader) resetOverride(r node_transform.TreeIndexRange, _ common.Mat4) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dropOverride(r)
}

// dropOverride removes the entry for r. The caller holds l.mu.
func (l *loader) dropOverride(r node_transform.TreeIndexRange) {
	for i, o := range l.overrides {
		if o.rng == r {
			l.overrides = append(l.overrides[:i], l.overrides[i+1:]...)
			return
		}
	}
}
