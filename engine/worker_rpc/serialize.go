package worker_rpc

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// statusCoder is implemented by HTTP-shaped errors carrying a status code.
type statusCoder interface {
	StatusCode() int
}

// responseJSONer is implemented by HTTP-shaped errors carrying a decoded response body.
type responseJSONer interface {
	ResponseJSON() any
}

// HTTPError is a ready-made HTTP-shaped error for worker methods that wrap remote calls.
type HTTPError struct {
	Status int
	Body   any
	Err    error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("status %d", e.Status)
}

func (e *HTTPError) Unwrap() error     { return e.Err }
func (e *HTTPError) StatusCode() int   { return e.Status }
func (e *HTTPError) ResponseJSON() any { return e.Body }

// handlerPanic is the error recorded when a method panics.
type handlerPanic struct {
	value any
	stack string
}

func (p *handlerPanic) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

// callSafely runs m, converting a panic into a *handlerPanic carrying the stack.
func callSafely(fn func() (any, error)) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &handlerPanic{value: r, stack: string(debug.Stack())}
		}
	}()
	return fn()
}

// serializeError converts err into its wire form. Reading the message is guarded: an
// Error method that panics yields a nil Message instead of taking the worker down.
func serializeError(err error) SerializedError {
	var out SerializedError
	if err == nil {
		return out
	}

	func() {
		defer func() {
			if recover() != nil {
				out.Message = nil
			}
		}()
		msg := err.Error()
		out.Message = &msg
	}()

	out.Name = fmt.Sprintf("%T", err)
	var hp *handlerPanic
	if errors.As(err, &hp) {
		out.Name = "panic"
		out.Stack = hp.stack
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		status := sc.StatusCode()
		out.Status = &status
	}
	var rj responseJSONer
	if errors.As(err, &rj) {
		out.ResponseJSON = rj.ResponseJSON()
	}
	return out
}

// messageOf returns the serialized message, or a placeholder when there is none.
func messageOf(s SerializedError) string {
	if s.Message == nil {
		return "<no message>"
	}
	return *s.Message
}
