package worker_rpc

import (
	"errors"
	"fmt"
	"strconv"
)

// NoSuchMethodMessage is the error message returned for requests naming an unregistered method.
const NoSuchMethodMessage = "No such method"

var (
	// ErrPortClosed is returned when posting to, or waiting on, a closed or detached port.
	ErrPortClosed = errors.New("message port is closed")
	// ErrClientClosed is returned for calls made on, or pending in, a closed client.
	ErrClientClosed = errors.New("rpc client is closed")
	// ErrDispatcherStarted is returned when Start is called more than once.
	ErrDispatcherStarted = errors.New("dispatcher already started")
)

// DecodeError reports a received message that does not have the shape the protocol requires.
type DecodeError struct {
	ID     int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("rpc decode error (id %d): %s", e.ID, e.Reason)
}

// DataCloneError reports a value that cannot be cloned or transferred across a port.
type DataCloneError struct {
	Reason string
}

func (e *DataCloneError) Error() string {
	return "data clone error: " + e.Reason
}

// RemoteError is the caller side form of a failure raised by a worker method.
type RemoteError struct {
	Method string
	// Message is empty when the worker could not read the original error's message.
	Message    string
	HasMessage bool
	Name       string
	Stack      string
	Status     int
	HasStatus  bool
	Body       any
}

func newRemoteError(method string, s SerializedError) *RemoteError {
	e := &RemoteError{Method: method, Name: s.Name, Stack: s.Stack, Body: s.ResponseJSON}
	if s.Message != nil {
		e.Message, e.HasMessage = *s.Message, true
	}
	if s.Status != nil {
		e.Status, e.HasStatus = *s.Status, true
	}
	return e
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if !e.HasMessage {
		msg = "<no message>"
	}
	if e.Name != "" {
		return fmt.Sprintf("rpc %s failed: %s: %s", e.Method, e.Name, msg)
	}
	return fmt.Sprintf("rpc %s failed: %s", e.Method, msg)
}

// StatusCode returns the HTTP-style status reported by the worker, or 0.
func (e *RemoteError) StatusCode() int {
	return e.Status
}

// ResponseJSON returns the response body reported with an HTTP-style failure, if any.
func (e *RemoteError) ResponseJSON() any {
	return e.Body
}

// IsNoSuchMethod reports whether err is a RemoteError for an unregistered method.
func IsNoSuchMethod(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.HasMessage && re.Message == NoSuchMethodMessage
}

func quote(s string) string {
	return strconv.Quote(s)
}
