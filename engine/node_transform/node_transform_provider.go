package node_transform

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-stream/common"

	"github.com/jmalloc/twelf/src/twelf"
)

// ErrSingularMatrix is returned when a base conversion matrix has no inverse.
var ErrSingularMatrix = errors.New("matrix is not invertible")

// Space selects the frame a node transform is expressed in.
type Space int

const (
	// SpaceWorld transforms are expressed in the renderer's world frame and are stored,
	// so they follow later changes of the CDF to world matrix.
	SpaceWorld Space = iota
	// SpaceModel transforms are expressed in the CDF frame and are not retained.
	SpaceModel
)

func (s Space) String() string {
	switch s {
	case SpaceWorld:
		return "world"
	case SpaceModel:
		return "model"
	default:
		return fmt.Sprintf("Space(%d)", int(s))
	}
}

// NodeTransformEntry is a stored world space override.
type NodeTransformEntry struct {
	Range  TreeIndexRange
	Matrix common.Mat4
	Space  Space
}

// NodeTransformProvider tracks per-subtree transform overrides and converts them into the
// renderer's local model frame, notifying observers of every change.
type NodeTransformProvider interface {
	// SetCdfToWorldTransform replaces the CDF to world matrix and re-applies every stored
	// world space override through it. Observers receive one set notification per override,
	// in the order the overrides were first stored.
	//
	// Parameters:
	//   - m: the new CDF to world matrix
	//
	// Returns:
	//   - error: ErrSingularMatrix if m has no inverse; the previous matrix is kept
	SetCdfToWorldTransform(m common.Mat4) error

	// CdfToWorldTransform returns the current CDF to world matrix.
	CdfToWorldTransform() common.Mat4

	// SetNodeTransform applies matrix to the nodes in r. World space transforms are stored
	// and replace any previous override for the same range; model space transforms are
	// only forwarded to observers.
	//
	// Parameters:
	//   - r: the tree index range the transform applies to
	//   - matrix: the transform, expressed in space
	//   - space: the frame matrix is expressed in
	//
	// Returns:
	//   - error: ErrInvalidRange if r is malformed
	SetNodeTransform(r TreeIndexRange, matrix common.Mat4, space Space) error

	// ResetNodeTransform removes the override for r, if any, and notifies observers with
	// the identity matrix.
	//
	// Parameters:
	//   - r: the tree index range to reset
	//
	// Returns:
	//   - error: ErrInvalidRange if r is malformed
	ResetNodeTransform(r TreeIndexRange) error

	// Overrides returns the stored world space overrides in insertion order.
	Overrides() []NodeTransformEntry

	// Subscribe registers o for change notifications. The returned function unsubscribes
	// and may be called any number of times.
	//
	// Parameters:
	//   - o: the observer to register
	//
	// Returns:
	//   - func(): unsubscribes o
	Subscribe(o Observer) func()
}

// subscription wraps an observer so the same observer value can be registered twice
// and removed independently.
type subscription struct {
	observer Observer
}

// nodeTransformProvider is the implementation of the NodeTransformProvider interface.
type nodeTransformProvider struct {
	mu sync.Mutex

	cdfToWorld common.Mat4
	worldToCdf common.Mat4
	cdfToLocal common.Mat4
	localToCdf common.Mat4

	overrides map[string]*NodeTransformEntry
	order     []string

	subscriptions []*subscription

	logger twelf.Logger
}

var _ NodeTransformProvider = &nodeTransformProvider{}

// NewNodeTransformProvider creates a provider with an identity CDF to world matrix and the
// z-up to y-up CDF to local conversion, then applies the given options.
//
// Parameters:
//   - options: variadic NodeTransformProviderBuilderOption functions
//
// Returns:
//   - NodeTransformProvider: the configured provider
func NewNodeTransformProvider(options ...NodeTransformProviderBuilderOption) NodeTransformProvider {
	localToCdf, _ := CdfToLocalZUpToYUp.Inverse()
	p := &nodeTransformProvider{
		cdfToWorld: common.IdentityMat4(),
		worldToCdf: common.IdentityMat4(),
		cdfToLocal: CdfToLocalZUpToYUp,
		localToCdf: localToCdf,
		overrides:  make(map[string]*NodeTransformEntry),
		logger:     &twelf.StandardLogger{},
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *nodeTransformProvider) SetCdfToWorldTransform(m common.Mat4) error {
	inv, ok := m.Inverse()
	if !ok {
		return ErrSingularMatrix
	}

	p.mu.Lock()
	p.cdfToWorld = m
	p.worldToCdf = inv
	changes := make([]change, 0, len(p.order))
	for _, key := range p.order {
		e := p.overrides[key]
		changes = append(changes, change{kind: changeSet, rng: e.Range, matrix: p.composeWorld(e.Matrix)})
	}
	subs := p.snapshot()
	p.mu.Unlock()

	if p.logger.IsDebug() {
		p.logger.Log("[NodeTransform] base transform changed, re-applying %d override(s)", len(changes))
	}
	notify(subs, changes...)
	return nil
}

func (p *nodeTransformProvider) CdfToWorldTransform() common.Mat4 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cdfToWorld
}

func (p *nodeTransformProvider) SetNodeTransform(r TreeIndexRange, matrix common.Mat4, space Space) error {
	if err := r.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	var c change
	switch space {
	case SpaceModel:
		c = change{kind: changeSet, rng: r, matrix: p.composeModel(matrix)}
	case SpaceWorld:
		key := r.Key()
		if e, ok := p.overrides[key]; ok {
			e.Matrix = matrix
		} else {
			p.overrides[key] = &NodeTransformEntry{Range: r, Matrix: matrix, Space: SpaceWorld}
			p.order = append(p.order, key)
		}
		c = change{kind: changeSet, rng: r, matrix: p.composeWorld(matrix)}
	default:
		p.mu.Unlock()
		return fmt.Errorf("unknown transform space %v", space)
	}
	subs := p.snapshot()
	p.mu.Unlock()

	notify(subs, c)
	return nil
}

func (p *nodeTransformProvider) ResetNodeTransform(r TreeIndexRange) error {
	if err := r.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	key := r.Key()
	if _, ok := p.overrides[key]; ok {
		delete(p.overrides, key)
		for i, k := range p.order {
			if k == key {
				p.order = append(p.order[:i], p.order[i+1:]...)
				break
			}
		}
	}
	subs := p.snapshot()
	p.mu.Unlock()

	notify(subs, change{kind: changeReset, rng: r, matrix: common.IdentityMat4()})
	return nil
}

func (p *nodeTransformProvider) Overrides() []NodeTransformEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]NodeTransformEntry, 0, len(p.order))
	for _, key := range p.order {
		out = append(out, *p.overrides[key])
	}
	return out
}

func (p *nodeTransformProvider) Subscribe(o Observer) func() {
	sub := &subscription{observer: o}
	p.mu.Lock()
	p.subscriptions = append(p.subscriptions, sub)
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			for i, s := range p.subscriptions {
				if s == sub {
					p.subscriptions = append(p.subscriptions[:i:i], p.subscriptions[i+1:]...)
					return
				}
			}
		})
	}
}

// composeModel maps a CDF frame transform into the local frame: L * T * L^-1.
// The caller must hold p.mu.
func (p *nodeTransformProvider) composeModel(t common.Mat4) common.Mat4 {
	return common.MulAll(p.cdfToLocal, t, p.localToCdf)
}

// composeWorld maps a world frame transform into the local frame: L * M^-1 * T * M * L^-1.
// The caller must hold p.mu.
func (p *nodeTransformProvider) composeWorld(t common.Mat4) common.Mat4 {
	return common.MulAll(p.cdfToLocal, p.worldToCdf, t, p.cdfToWorld, p.localToCdf)
}

// snapshot copies the observer list so notifications run without the lock held and
// observers may call back into the provider. The caller must hold p.mu.
func (p *nodeTransformProvider) snapshot() []*subscription {
	return append([]*subscription(nil), p.subscriptions...)
}

func notify(subs []*subscription, changes ...change) {
	for _, c := range changes {
		for _, s := range subs {
			c.deliver(s.observer)
		}
	}
}
