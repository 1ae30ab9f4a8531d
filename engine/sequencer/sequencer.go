// Package sequencer orders the side effects of work that runs in parallel.
//
// Callers obtain a Sequencer handle, in the order they want their effects applied,
// before starting any expensive work. Each handle later runs exactly one Region;
// regions run strictly in the order their handles were obtained, no matter which
// caller's preceding work finishes first.
//
//	s := sequencer.New()
//	for _, id := range ids {
//		apply := sequencer.Next[*Sector](s) // obtained in request order
//		go func() {
//			sector, err := load(id)         // finishes in any order
//			apply(func() (*Sector, error) {  // runs in request order
//				visible = append(visible, sector)
//				return sector, err
//			})
//		}()
//	}
package sequencer

import (
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-stream/engine/future"
)

// Region is the order-sensitive part of an operation.
type Region[T any] func() (T, error)

// Sequencer runs one Region after every region of previously obtained handles has
// finished. It must be invoked exactly once: a handle that is never invoked blocks
// all later handles, and invoking a handle twice panics.
type Sequencer[T any] func(region Region[T]) *future.Future[T]

// AsyncSequencer hands out Sequencer handles that form a single FIFO chain.
// The zero value is not usable; call New.
type AsyncSequencer struct {
	mu   sync.Mutex
	last chan struct{}
}

// New creates an AsyncSequencer with an empty chain.
func New() *AsyncSequencer {
	start := make(chan struct{})
	close(start)
	return &AsyncSequencer{last: start}
}

// Next reserves the next slot in the chain and returns the handle that fills it.
//
// A region that fails (returns an error or panics) does not stop the chain: the next
// region still runs once it has finished, and only the future returned for that
// region carries the failure.
//
// Parameters:
//   - s: the sequencer to reserve a slot on
//
// Returns:
//   - Sequencer[T]: the handle for the reserved slot
func Next[T any](s *AsyncSequencer) Sequencer[T] {
	done := make(chan struct{})

	s.mu.Lock()
	prev := s.last
	s.last = done
	s.mu.Unlock()

	var used atomic.Bool
	return func(region Region[T]) *future.Future[T] {
		if !used.CompareAndSwap(false, true) {
			panic("sequencer: handle invoked more than once")
		}
		return future.Go(func() (T, error) {
			defer close(done)
			<-prev
			return region()
		})
	}
}

// Idle returns a channel that is closed once every region of the handles obtained so
// far has finished.
func (s *AsyncSequencer) Idle() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
