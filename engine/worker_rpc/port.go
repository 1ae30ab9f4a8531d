package worker_rpc

import (
	"sync"
)

// DefaultPortBuffer is the number of messages a port queues before PostMessage blocks.
const DefaultPortBuffer = 256

// Port is one end of a bidirectional message channel.
type Port interface {
	// PostMessage clones msg and delivers it to the other end. Objects in transfer are
	// moved rather than copied and the sender's handles become detached.
	//
	// Parameters:
	//   - msg: the message to send
	//   - transfer: buffers and ports whose ownership moves with msg
	//
	// Returns:
	//   - error: *DataCloneError if msg cannot be cloned, ErrPortClosed if the channel is closed
	PostMessage(msg Message, transfer []any) error

	// Messages returns the stream of messages posted by the other end. The channel is
	// closed once either end closes the channel.
	Messages() <-chan Message

	// Close shuts down both directions of the channel. Queued messages are dropped.
	Close() error
}

var closedMessages = func() chan Message {
	ch := make(chan Message)
	close(ch)
	return ch
}()

// pipe carries messages in one direction. The pump goroutine moves messages from queue
// to out until done is closed, then closes out.
type pipe struct {
	queue     chan Message
	out       chan Message
	done      chan struct{}
	closeOnce sync.Once
}

func newPipe(size int) *pipe {
	p := &pipe{
		queue: make(chan Message, size),
		out:   make(chan Message),
		done:  make(chan struct{}),
	}
	go p.pump()
	return p
}

func (p *pipe) pump() {
	defer close(p.out)
	for {
		select {
		case m := <-p.queue:
			select {
			case p.out <- m:
			case <-p.done:
				return
			}
		case <-p.done:
			return
		}
	}
}

func (p *pipe) send(m Message) error {
	select {
	case <-p.done:
		return ErrPortClosed
	default:
	}
	select {
	case p.queue <- m:
		return nil
	case <-p.done:
		return ErrPortClosed
	}
}

func (p *pipe) close() {
	p.closeOnce.Do(func() { close(p.done) })
}

// MessagePort is the in-process Port returned by NewMessageChannel. A MessagePort can
// itself be transferred through another port, after which the original handle is detached.
type MessagePort struct {
	mu       sync.RWMutex
	recv     *pipe
	send     *pipe
	detached bool
}

var _ Port = &MessagePort{}

// NewMessageChannel returns two entangled ports: messages posted on one are received on
// the other.
//
// Returns:
//   - *MessagePort: the first end
//   - *MessagePort: the second end
func NewMessageChannel() (*MessagePort, *MessagePort) {
	return NewMessageChannelSize(DefaultPortBuffer)
}

// NewMessageChannelSize is NewMessageChannel with a custom queue size per direction.
func NewMessageChannelSize(size int) (*MessagePort, *MessagePort) {
	if size < 1 {
		size = 1
	}
	ab, ba := newPipe(size), newPipe(size)
	return &MessagePort{recv: ba, send: ab}, &MessagePort{recv: ab, send: ba}
}

func (p *MessagePort) PostMessage(msg Message, transfer []any) error {
	p.mu.RLock()
	detached := p.detached
	p.mu.RUnlock()
	if detached {
		return ErrPortClosed
	}
	for _, t := range transfer {
		if t == any(p) {
			return &DataCloneError{Reason: "a port cannot transfer itself"}
		}
	}

	var cloned Message
	err := cloneWith(transfer, func(c *Cloner) error {
		var err error
		cloned, err = cloneMessage(msg, c)
		return err
	})
	if err != nil {
		return err
	}
	return p.send.send(cloned)
}

func (p *MessagePort) Messages() <-chan Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.detached {
		return closedMessages
	}
	return p.recv.out
}

func (p *MessagePort) Close() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.detached {
		return nil
	}
	p.send.close()
	p.recv.close()
	return nil
}

// Detached reports whether the port was transferred away.
func (p *MessagePort) Detached() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.detached
}

// transfer moves the channel ends into a new handle and detaches p.
func (p *MessagePort) transfer() (*MessagePort, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.detached {
		return nil, ErrPortClosed
	}
	p.detached = true
	return &MessagePort{recv: p.recv, send: p.send}, nil
}
