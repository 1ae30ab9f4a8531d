package worker_rpc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jmalloc/twelf/src/twelf"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	otlog "github.com/opentracing/opentracing-go/log"
)

// ClientStats counts the calls a client has made.
type ClientStats struct {
	Calls    int64
	Failures int64
	Pending  int
}

// Client calls methods served by a Dispatcher on the other end of a port.
type Client interface {
	// Call sends a request and waits for its response.
	//
	// ctx bounds only the wait: the request, once posted, still runs on the worker and a
	// late response is discarded.
	//
	// Parameters:
	//   - ctx: bounds the wait for the response
	//   - method: the method name
	//   - params: the method params
	//   - transfer: buffers and ports inside params to move instead of copy
	//
	// Returns:
	//   - any: the method result
	//   - error: *RemoteError if the method failed, or a local posting/cancellation error
	Call(ctx context.Context, method string, params []any, transfer []any) (any, error)

	// Close fails every pending call with ErrClientClosed and stops reading responses.
	// The port itself is left open.
	Close() error

	// Stats returns a snapshot of the call counters.
	Stats() ClientStats
}

// client is the implementation of the Client interface.
type client struct {
	port   Port
	logger twelf.Logger
	tracer opentracing.Tracer

	mu      sync.Mutex
	nextID  int
	pending map[int]*call
	closed  bool

	done      chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once

	calls    atomic.Int64
	failures atomic.Int64
}

// call is a request waiting for its response.
type call struct {
	method string
	reply  chan Message
}

var _ Client = &client{}

// NewClient creates a client on port and starts reading responses from it.
//
// Parameters:
//   - port: the caller end of a message channel
//   - options: variadic ClientBuilderOption functions
//
// Returns:
//   - Client: the running client
func NewClient(port Port, options ...ClientBuilderOption) Client {
	c := &client{
		port:     port,
		logger:   &twelf.StandardLogger{},
		tracer:   opentracing.GlobalTracer(),
		pending:  map[int]*call{},
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	for _, opt := range options {
		opt(c)
	}
	go c.readLoop()
	return c
}

// Invoke is Call with the result asserted to R.
//
// Parameters:
//   - ctx: bounds the wait for the response
//   - c: the client
//   - method: the method name
//   - params: the method params
//   - transfer: buffers and ports inside params to move instead of copy
//
// Returns:
//   - R: the typed result
//   - error: the call error, or a type mismatch
func Invoke[R any](ctx context.Context, c Client, method string, params []any, transfer []any) (R, error) {
	var zero R
	result, err := c.Call(ctx, method, params, transfer)
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	r, ok := result.(R)
	if !ok {
		return zero, fmt.Errorf("rpc %s returned %T, want %T", method, result, zero)
	}
	return r, nil
}

func (c *client) Call(ctx context.Context, method string, params []any, transfer []any) (any, error) {
	c.calls.Add(1)
	result, err := c.call(ctx, method, params, transfer)
	if err != nil {
		c.failures.Add(1)
	}
	return result, err
}

func (c *client) call(ctx context.Context, method string, params []any, transfer []any) (any, error) {
	span, ctx := opentracing.StartSpanFromContextWithTracer(ctx, c.tracer, "rpc.call "+method, ext.SpanKindRPCClient)
	defer span.Finish()

	id, pc, err := c.register(method)
	if err != nil {
		return nil, traceError(span, err)
	}
	span.SetTag("rpc.id", id)

	req := NewRequest(id, method, params...)
	carrier := opentracing.TextMapCarrier{}
	if err := c.tracer.Inject(span.Context(), opentracing.TextMap, carrier); err == nil && len(carrier) > 0 {
		req.Trace = carrier
	}

	if err := c.port.PostMessage(req, transfer); err != nil {
		c.unregister(id)
		return nil, traceError(span, fmt.Errorf("rpc %s: %w", method, err))
	}

	select {
	case reply := <-pc.reply:
		switch m := reply.(type) {
		case *Response:
			return m.Result, nil
		case *ErrorResponse:
			return nil, traceError(span, newRemoteError(method, m.Error))
		default:
			return nil, traceError(span, ErrClientClosed)
		}
	case <-ctx.Done():
		c.unregister(id)
		return nil, traceError(span, ctx.Err())
	}
}

func (c *client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		<-c.loopDone
		c.failAll()
	})
	return nil
}

func (c *client) Stats() ClientStats {
	c.mu.Lock()
	pending := len(c.pending)
	c.mu.Unlock()
	return ClientStats{Calls: c.calls.Load(), Failures: c.failures.Load(), Pending: pending}
}

func (c *client) register(method string) (int, *call, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, nil, ErrClientClosed
	}
	id := c.nextID
	c.nextID++
	pc := &call{method: method, reply: make(chan Message, 1)}
	c.pending[id] = pc
	return id, pc, nil
}

func (c *client) unregister(id int) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *client) readLoop() {
	defer close(c.loopDone)
	messages := c.port.Messages()
	for {
		select {
		case <-c.done:
			return
		case msg, ok := <-messages:
			if !ok {
				c.failAll()
				return
			}
			c.deliver(msg)
		}
	}
}

// deliver hands a response to the call waiting for its id.
func (c *client) deliver(msg Message) {
	if err := Validate(msg); err != nil {
		c.logger.Log("[RPCClient] dropping malformed response: %v", err)
		return
	}
	if _, ok := msg.(*Request); ok {
		if c.logger.IsDebug() {
			c.logger.Log("[RPCClient] ignoring request #%d sent to a client port", msg.MessageID())
		}
		return
	}

	c.mu.Lock()
	pc, ok := c.pending[msg.MessageID()]
	delete(c.pending, msg.MessageID())
	c.mu.Unlock()

	if !ok {
		if c.logger.IsDebug() {
			c.logger.Log("[RPCClient] no pending call for response #%d", msg.MessageID())
		}
		return
	}
	pc.reply <- msg
}

// failAll wakes every pending call with a closed notification and refuses new calls.
func (c *client) failAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, pc := range c.pending {
		delete(c.pending, id)
		close(pc.reply)
	}
}

func traceError(span opentracing.Span, err error) error {
	ext.Error.Set(span, true)
	span.LogFields(otlog.Error(err))
	return err
}
