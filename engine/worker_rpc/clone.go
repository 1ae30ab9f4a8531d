package worker_rpc

import (
	"fmt"
	"reflect"

	"github.com/Carmen-Shannon/oxy-stream/common"
)

// Cloneable is implemented by payload types that know how to rebuild themselves on the
// other side of a port. Implementations pass every field that may hold a buffer or port
// through c.Clone so transfers are honoured.
type Cloneable interface {
	StructuredClone(c *Cloner) (any, error)
}

// IsTransferable reports whether v can appear in a transfer list: a live
// *common.ArrayBuffer or an open *MessagePort.
func IsTransferable(v any) bool {
	switch t := v.(type) {
	case *common.ArrayBuffer:
		return t != nil && !t.Detached()
	case *MessagePort:
		return t != nil && !t.Detached()
	default:
		return false
	}
}

// Cloner deep-copies a value for delivery through a port. Objects named in the transfer
// list are moved instead of copied; the sender's handles are detached.
//
// Cloning runs twice: a checking pass that walks the value without copying or moving
// anything, then the real pass. A value that cannot be cloned therefore leaves every
// buffer in the transfer list untouched.
type Cloner struct {
	transfer map[any]bool
	seen     map[any]any
	checking bool
}

// StructuredClone clones v, moving the objects listed in transfer.
//
// Parameters:
//   - v: the value to clone
//   - transfer: buffers and ports whose ownership moves with the value
//
// Returns:
//   - any: the clone
//   - error: *DataCloneError if v holds an unsupported value or transfer is invalid
func StructuredClone(v any, transfer []any) (any, error) {
	var out any
	err := cloneWith(transfer, func(c *Cloner) error {
		var err error
		out, err = c.Clone(v)
		return err
	})
	return out, err
}

// cloneWith validates transfer and runs fn in a checking pass, then in a real pass.
func cloneWith(transfer []any, fn func(c *Cloner) error) error {
	set := make(map[any]bool, len(transfer))
	for _, t := range transfer {
		if !IsTransferable(t) {
			return &DataCloneError{Reason: fmt.Sprintf("%T in transfer list is not transferable", t)}
		}
		if set[t] {
			return &DataCloneError{Reason: "duplicate entry in transfer list"}
		}
		set[t] = true
	}

	check := &Cloner{transfer: set, seen: map[any]any{}, checking: true}
	if err := fn(check); err != nil {
		return err
	}

	final := &Cloner{transfer: set, seen: map[any]any{}}
	if err := fn(final); err != nil {
		return err
	}
	// Listed objects that were not reachable from the value are still moved away.
	for t := range set {
		if _, ok := final.seen[t]; !ok {
			if _, err := final.Clone(t); err != nil {
				return err
			}
		}
	}
	return nil
}

// Clone returns the clone of v. The same buffer or port reached twice clones to the same
// object.
//
// Parameters:
//   - v: the value to clone
//
// Returns:
//   - any: the clone
//   - error: *DataCloneError if v holds an unsupported value
func (c *Cloner) Clone(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return t, nil
	case []byte:
		if c.checking || t == nil {
			return t, nil
		}
		return append([]byte{}, t...), nil
	case *common.ArrayBuffer:
		return c.cloneBuffer(t)
	case *MessagePort:
		return c.clonePort(t)
	case []any:
		if t == nil {
			return t, nil
		}
		out := make([]any, len(t))
		for i, e := range t {
			ce, err := c.Clone(e)
			if err != nil {
				return nil, err
			}
			out[i] = ce
		}
		return out, nil
	case map[string]any:
		if t == nil {
			return t, nil
		}
		out := make(map[string]any, len(t))
		for k, e := range t {
			ce, err := c.Clone(e)
			if err != nil {
				return nil, err
			}
			out[k] = ce
		}
		return out, nil
	case Cloneable:
		return t.StructuredClone(c)
	}
	return c.cloneReflect(v)
}

func (c *Cloner) cloneBuffer(b *common.ArrayBuffer) (any, error) {
	if b == nil {
		return b, nil
	}
	if prev, ok := c.seen[b]; ok {
		return prev, nil
	}
	var out *common.ArrayBuffer
	var err error
	switch {
	case c.transfer[b]:
		if c.checking {
			out = b
		} else {
			out, err = b.Transfer()
		}
	case b.Detached():
		err = common.ErrDetached
	case c.checking:
		out = b
	default:
		out, err = b.Clone()
	}
	if err != nil {
		return nil, &DataCloneError{Reason: err.Error()}
	}
	c.seen[b] = out
	return out, nil
}

func (c *Cloner) clonePort(p *MessagePort) (any, error) {
	if p == nil {
		return p, nil
	}
	if prev, ok := c.seen[p]; ok {
		return prev, nil
	}
	if !c.transfer[p] {
		return nil, &DataCloneError{Reason: "a message port can only be transferred, not copied"}
	}
	out := p
	if !c.checking {
		moved, err := p.transfer()
		if err != nil {
			return nil, &DataCloneError{Reason: err.Error()}
		}
		out = moved
	}
	c.seen[p] = out
	return out, nil
}

// cloneReflect handles named scalar types and slices of scalars.
func (c *Cloner) cloneReflect(v any) (any, error) {
	rv := reflect.ValueOf(v)
	if isScalar(rv.Kind()) {
		return v, nil
	}
	if rv.Kind() == reflect.Slice && isScalar(rv.Type().Elem().Kind()) {
		if c.checking || rv.IsNil() {
			return v, nil
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(out, rv)
		return out.Interface(), nil
	}
	return nil, &DataCloneError{Reason: fmt.Sprintf("%T could not be cloned", v)}
}

func isScalar(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
