package worker_rpc

import (
	"context"
	"fmt"
)

// Method is a procedure a worker exposes over the RPC protocol.
type Method interface {
	// Call runs the method with the decoded request params.
	//
	// Parameters:
	//   - ctx: cancelled when the dispatcher shuts down
	//   - params: the request params, already cloned onto the worker side
	//
	// Returns:
	//   - any: the result sent back to the caller
	//   - error: the failure sent back to the caller
	Call(ctx context.Context, params []any) (any, error)

	// PickTransferables returns the buffers and ports inside result whose ownership moves
	// back to the caller with the response. Returning nil copies everything.
	PickTransferables(result any) []any
}

// Methods maps method names to their implementations.
type Methods map[string]Method

// MethodFunc adapts a function to the Method interface. Its result is always copied.
type MethodFunc func(ctx context.Context, params []any) (any, error)

var _ Method = MethodFunc(nil)

func (f MethodFunc) Call(ctx context.Context, params []any) (any, error) {
	return f(ctx, params)
}

func (f MethodFunc) PickTransferables(any) []any {
	return nil
}

// transferringMethod pairs a MethodFunc with a transferable picker.
type transferringMethod struct {
	MethodFunc
	pick func(result any) []any
}

func (m transferringMethod) PickTransferables(result any) []any {
	return m.pick(result)
}

// WithTransferables returns a Method that runs fn and moves the objects chosen by pick
// back to the caller instead of copying them.
//
// Parameters:
//   - fn: the method implementation
//   - pick: selects the transferables inside a result
//
// Returns:
//   - Method: the combined method
func WithTransferables(fn MethodFunc, pick func(result any) []any) Method {
	return transferringMethod{MethodFunc: fn, pick: pick}
}

// Typed1 is a Method taking exactly one parameter of type P and returning an R.
type Typed1[P, R any] struct {
	Fn   func(ctx context.Context, param P) (R, error)
	Pick func(result R) []any
}

var _ Method = Typed1[int, int]{}

func (t Typed1[P, R]) Call(ctx context.Context, params []any) (any, error) {
	if len(params) != 1 {
		return nil, fmt.Errorf("expected 1 param, got %d", len(params))
	}
	p, ok := params[0].(P)
	if !ok {
		var want P
		return nil, fmt.Errorf("param has type %T, want %T", params[0], want)
	}
	return t.Fn(ctx, p)
}

func (t Typed1[P, R]) PickTransferables(result any) []any {
	if t.Pick == nil {
		return nil
	}
	r, ok := result.(R)
	if !ok {
		return nil
	}
	return t.Pick(r)
}
