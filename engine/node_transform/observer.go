package node_transform

import "github.com/Carmen-Shannon/oxy-stream/common"

// Observer receives transform change notifications. The two methods are the closed
// set of change kinds; implementing the interface forces a handler for each.
// Notifications are delivered synchronously on the goroutine that made the change.
type Observer interface {
	// OnTransformSet is called when a range gets a new override. matrix is expressed in
	// the renderer's local model space and is ready to be uploaded as-is.
	OnTransformSet(r TreeIndexRange, matrix common.Mat4)

	// OnTransformReset is called when the override for a range is removed. matrix is
	// always the identity.
	OnTransformReset(r TreeIndexRange, matrix common.Mat4)
}

// ObserverFuncs adapts a pair of functions to the Observer interface. Nil fields are skipped.
type ObserverFuncs struct {
	Set   func(r TreeIndexRange, matrix common.Mat4)
	Reset func(r TreeIndexRange, matrix common.Mat4)
}

var _ Observer = ObserverFuncs{}

func (o ObserverFuncs) OnTransformSet(r TreeIndexRange, matrix common.Mat4) {
	if o.Set != nil {
		o.Set(r, matrix)
	}
}

func (o ObserverFuncs) OnTransformReset(r TreeIndexRange, matrix common.Mat4) {
	if o.Reset != nil {
		o.Reset(r, matrix)
	}
}

// changeKind tags a queued notification.
type changeKind int

const (
	changeSet changeKind = iota
	changeReset
)

// change is a notification captured under the provider lock and delivered after it is released.
type change struct {
	kind   changeKind
	rng    TreeIndexRange
	matrix common.Mat4
}

func (c change) deliver(o Observer) {
	switch c.kind {
	case changeSet:
		o.OnTransformSet(c.rng, c.matrix)
	case changeReset:
		o.OnTransformReset(c.rng, c.matrix)
	}
}
