package worker_rpc

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/jmalloc/twelf/src/twelf"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	otlog "github.com/opentracing/opentracing-go/log"
)

// DispatcherStats counts the requests a dispatcher has seen.
type DispatcherStats struct {
	Handled       int64
	Failed        int64
	UnknownMethod int64
	Malformed     int64
}

// Dispatcher serves registered methods to requests arriving on a port. Each request is
// handled on a pooled worker goroutine and answered with exactly one response carrying
// the request id.
type Dispatcher interface {
	// Start begins reading requests from the port.
	//
	// Returns:
	//   - error: ErrDispatcherStarted if called more than once
	Start() error

	// Close stops reading requests, waits for running methods to return and stops the
	// worker pool. The port itself is left open.
	Close() error

	// Stats returns a snapshot of the request counters.
	Stats() DispatcherStats
}

// dispatcher is the implementation of the Dispatcher interface.
type dispatcher struct {
	port    Port
	methods Methods

	parent      context.Context
	workers     int
	queueSize   int
	idleTimeout time.Duration
	logger      twelf.Logger
	tracer      opentracing.Tracer

	pool   worker.DynamicWorkerPool
	ctx    context.Context
	cancel context.CancelFunc

	started   atomic.Bool
	closeOnce sync.Once
	loopDone  chan struct{}
	inFlight  sync.WaitGroup
	nextTask  atomic.Int64

	handled       atomic.Int64
	failed        atomic.Int64
	unknownMethod atomic.Int64
	malformed     atomic.Int64
}

var _ Dispatcher = &dispatcher{}

// NewDispatcher creates a dispatcher serving methods on port. It does nothing until Start.
//
// Parameters:
//   - port: the worker end of a message channel
//   - methods: the registered methods
//   - options: variadic DispatcherBuilderOption functions
//
// Returns:
//   - Dispatcher: the configured dispatcher
func NewDispatcher(port Port, methods Methods, options ...DispatcherBuilderOption) Dispatcher {
	d := &dispatcher{
		port:        port,
		methods:     make(Methods, len(methods)),
		parent:      context.Background(),
		workers:     runtime.NumCPU(),
		queueSize:   256,
		idleTimeout: time.Second,
		logger:      &twelf.StandardLogger{},
		tracer:      opentracing.GlobalTracer(),
		loopDone:    make(chan struct{}),
	}
	for name, m := range methods {
		d.methods[name] = m
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

func (d *dispatcher) Start() error {
	if !d.started.CompareAndSwap(false, true) {
		return ErrDispatcherStarted
	}
	d.ctx, d.cancel = context.WithCancel(d.parent)
	d.pool = worker.NewDynamicWorkerPool(d.workers, d.queueSize, d.idleTimeout)
	go d.readLoop()
	return nil
}

func (d *dispatcher) Close() error {
	if !d.started.Load() {
		return nil
	}
	d.closeOnce.Do(func() {
		d.cancel()
		<-d.loopDone
		d.inFlight.Wait()
		d.pool.Stop()
	})
	return nil
}

func (d *dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Handled:       d.handled.Load(),
		Failed:        d.failed.Load(),
		UnknownMethod: d.unknownMethod.Load(),
		Malformed:     d.malformed.Load(),
	}
}

func (d *dispatcher) readLoop() {
	defer close(d.loopDone)
	messages := d.port.Messages()
	for {
		select {
		case <-d.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			d.accept(msg)
		}
	}
}

// accept validates msg and queues it on the pool.
func (d *dispatcher) accept(msg Message) {
	req, ok := msg.(*Request)
	if !ok {
		if d.logger.IsDebug() {
			d.logger.Log("[Dispatcher] ignoring non-request message %T", msg)
		}
		return
	}
	if err := Validate(req); err != nil {
		d.malformed.Add(1)
		d.logger.Log("[Dispatcher] dropping malformed request: %v", err)
		if req != nil && req.Type == ProtocolType && req.ID >= 0 {
			d.replyError(req, err)
		}
		return
	}

	d.inFlight.Add(1)
	d.pool.SubmitTask(worker.Task{
		ID: int(d.nextTask.Add(1)),
		Do: func() (any, error) {
			defer d.inFlight.Done()
			d.handle(req)
			return nil, nil
		},
	})
}

func (d *dispatcher) handle(req *Request) {
	span := d.startSpan(req)
	defer span.Finish()

	method, ok := d.methods[req.Method]
	if !ok {
		d.unknownMethod.Add(1)
		msg := NoSuchMethodMessage
		span.SetTag("rpc.unknown_method", true)
		d.post(&ErrorResponse{Type: ProtocolType, ID: req.ID, Error: SerializedError{Message: &msg}}, nil)
		return
	}

	result, err := callSafely(func() (any, error) {
		return method.Call(d.ctx, req.Params)
	})
	if err != nil {
		d.failed.Add(1)
		serialized := serializeError(err)
		ext.Error.Set(span, true)
		span.LogFields(otlog.String("event", "error"), otlog.String("message", messageOf(serialized)))
		if d.logger.IsDebug() {
			d.logger.Log("[Dispatcher] %s #%d failed: %s", req.Method, req.ID, messageOf(serialized))
		}
		d.reply(req, serialized)
		return
	}

	transfer, err := d.pickTransferables(method, result)
	if err != nil {
		d.failed.Add(1)
		d.replyError(req, err)
		return
	}
	if err := d.post(&Response{Type: ProtocolType, ID: req.ID, Result: result}, transfer); err != nil {
		d.failed.Add(1)
		d.logger.Log("[Dispatcher] could not post result of %s #%d: %v", req.Method, req.ID, err)
		d.replyError(req, err)
		return
	}
	d.handled.Add(1)
}

// pickTransferables asks method for the transferables in result, treating a panic as a failure.
func (d *dispatcher) pickTransferables(method Method, result any) ([]any, error) {
	picked, err := callSafely(func() (any, error) {
		return method.PickTransferables(result), nil
	})
	if err != nil {
		return nil, err
	}
	transfer, _ := picked.([]any)
	return transfer, nil
}

// replyError posts the serialized form of err.
func (d *dispatcher) replyError(req *Request, err error) {
	d.reply(req, serializeError(err))
}

// reply posts an error response. If the response body cannot be cloned it is dropped and
// the rest of the error is still delivered.
func (d *dispatcher) reply(req *Request, serialized SerializedError) {
	resp := &ErrorResponse{Type: ProtocolType, ID: req.ID, Error: serialized}
	if postErr := d.post(resp, nil); postErr != nil && resp.Error.ResponseJSON != nil {
		resp.Error.ResponseJSON = nil
		postErr = d.post(resp, nil)
		if postErr != nil {
			d.logger.Log("[Dispatcher] could not post error for #%d: %v", req.ID, postErr)
		}
	}
}

func (d *dispatcher) post(msg Message, transfer []any) error {
	err := d.port.PostMessage(msg, transfer)
	if errors.Is(err, ErrPortClosed) {
		d.logger.Log("[Dispatcher] port closed, dropping response #%d", msg.MessageID())
	}
	return err
}

// startSpan opens the server side span for req, continuing the caller's trace if the
// request carries one.
func (d *dispatcher) startSpan(req *Request) opentracing.Span {
	opts := []opentracing.StartSpanOption{ext.SpanKindRPCServer}
	if len(req.Trace) > 0 {
		parent, err := d.tracer.Extract(opentracing.TextMap, opentracing.TextMapCarrier(req.Trace))
		if err == nil {
			opts = append(opts, ext.RPCServerOption(parent))
		} else if d.logger.IsDebug() {
			d.logger.Log("[Dispatcher] could not extract span context for #%d: %v", req.ID, err)
		}
	}
	span := d.tracer.StartSpan("rpc.handle "+req.Method, opts...)
	span.SetTag("rpc.id", req.ID)
	return span
}
