// Package future provides a write-once result cell used wherever work completes
// asynchronously: sector fetches, parses, sequenced regions and RPC round trips.
package future

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// Future holds the eventual result of an asynchronous operation. It settles exactly
// once, either with a value or with an error, and may be awaited by any number of
// goroutines. Futures are shared by pointer, so two callers holding the same
// *Future observe the same outcome.
type Future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

// New returns an unsettled Future together with the function that settles it.
// Only the first call to settle has any effect.
//
// Returns:
//   - *Future[T]: the pending future
//   - func(T, error): settles the future with a value or an error
func New[T any]() (*Future[T], func(T, error)) {
	f := &Future[T]{done: make(chan struct{})}
	return f, f.settle
}

// Go runs fn on a new goroutine and returns a Future for its result.
// A panic inside fn rejects the future with a *PanicError instead of crashing the process.
//
// Parameters:
//   - fn: the work to run
//
// Returns:
//   - *Future[T]: settles when fn returns
func Go[T any](fn func() (T, error)) *Future[T] {
	f, settle := New[T]()
	go func() {
		var zero T
		defer func() {
			if r := recover(); r != nil {
				settle(zero, &PanicError{Value: r, Stack: string(debug.Stack())})
			}
		}()
		settle(fn())
	}()
	return f
}

// Resolved returns a future already settled with v.
func Resolved[T any](v T) *Future[T] {
	f, settle := New[T]()
	settle(v, nil)
	return f
}

// Rejected returns a future already settled with err.
func Rejected[T any](err error) *Future[T] {
	f, settle := New[T]()
	var zero T
	settle(zero, err)
	return f
}

func (f *Future[T]) settle(v T, err error) {
	f.once.Do(func() {
		f.value = v
		f.err = err
		close(f.done)
	})
}

// Done returns a channel that is closed once the future has settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has a result yet, without blocking.
func (f *Future[T]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await blocks until the future settles or ctx is done. Cancelling ctx only stops the
// wait; the underlying work keeps running and other waiters are unaffected.
//
// Parameters:
//   - ctx: bounds how long the caller is willing to wait
//
// Returns:
//   - T: the resolved value (zero value on error)
//   - error: the rejection error, or ctx.Err() if the wait was abandoned
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the settled outcome. It blocks until the future settles.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.value, f.err
}

// Then returns a future settling with fn applied to f's value. If f rejects, the
// returned future rejects with the same error and fn is not called.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	return Go(func() (U, error) {
		v, err := f.Result()
		if err != nil {
			var zero U
			return zero, err
		}
		return fn(v)
	})
}

// PanicError wraps a value recovered from a panicking goroutine.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
