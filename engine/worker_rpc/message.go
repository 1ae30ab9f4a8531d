package worker_rpc

// ProtocolType tags every message that belongs to the RPC protocol.
const ProtocolType = "rpc-transferable"

// Message is one of *Request, *Response or *ErrorResponse.
type Message interface {
	// MessageType returns the protocol tag carried by the message.
	MessageType() string
	// MessageID returns the id correlating a request with its response.
	MessageID() int
	isMessage()
}

// Request asks the worker to run Method with Params. Trace carries the caller's span
// context, if any.
type Request struct {
	Type   string
	ID     int
	Method string
	Params []any
	Trace  map[string]string
}

// Response carries the successful result of the request with the same ID.
type Response struct {
	Type   string
	ID     int
	Result any
}

// ErrorResponse carries the failure of the request with the same ID.
type ErrorResponse struct {
	Type  string
	ID    int
	Error SerializedError
}

// SerializedError is the wire form of a failure raised by a worker method.
// Message is nil when the original error could not produce one.
type SerializedError struct {
	Message      *string
	Stack        string
	Name         string
	Status       *int
	ResponseJSON any
}

var (
	_ Message = &Request{}
	_ Message = &Response{}
	_ Message = &ErrorResponse{}
)

func (r *Request) MessageType() string { return r.Type }
func (r *Request) MessageID() int      { return r.ID }
func (r *Request) isMessage()          {}

func (r *Response) MessageType() string { return r.Type }
func (r *Response) MessageID() int      { return r.ID }
func (r *Response) isMessage()          {}

func (r *ErrorResponse) MessageType() string { return r.Type }
func (r *ErrorResponse) MessageID() int      { return r.ID }
func (r *ErrorResponse) isMessage()          {}

// NewRequest builds a request tagged with ProtocolType.
func NewRequest(id int, method string, params ...any) *Request {
	if params == nil {
		params = []any{}
	}
	return &Request{Type: ProtocolType, ID: id, Method: method, Params: params}
}

// Validate checks that msg is a well-formed protocol message.
//
// Parameters:
//   - msg: the received message
//
// Returns:
//   - error: *DecodeError describing the first problem found, or nil
func Validate(msg Message) error {
	switch m := msg.(type) {
	case nil:
		return &DecodeError{Reason: "nil message"}
	case *Request:
		if m == nil {
			return &DecodeError{Reason: "nil request"}
		}
	case *Response:
		if m == nil {
			return &DecodeError{Reason: "nil response"}
		}
	case *ErrorResponse:
		if m == nil {
			return &DecodeError{Reason: "nil error response"}
		}
	}

	if msg.MessageType() != ProtocolType {
		return &DecodeError{ID: msg.MessageID(), Reason: "unexpected message type " + quote(msg.MessageType())}
	}
	if msg.MessageID() < 0 {
		return &DecodeError{ID: msg.MessageID(), Reason: "negative id"}
	}
	if req, ok := msg.(*Request); ok {
		if req.Method == "" {
			return &DecodeError{ID: req.ID, Reason: "request without method"}
		}
		if req.Params == nil {
			return &DecodeError{ID: req.ID, Reason: "request without params"}
		}
	}
	return nil
}

// cloneMessage deep-copies msg through c.
func cloneMessage(msg Message, c *Cloner) (Message, error) {
	switch m := msg.(type) {
	case *Request:
		params, err := c.Clone(m.Params)
		if err != nil {
			return nil, err
		}
		out := *m
		out.Params, _ = params.([]any)
		if m.Trace != nil {
			out.Trace = make(map[string]string, len(m.Trace))
			for k, v := range m.Trace {
				out.Trace[k] = v
			}
		}
		return &out, nil
	case *Response:
		result, err := c.Clone(m.Result)
		if err != nil {
			return nil, err
		}
		out := *m
		out.Result = result
		return &out, nil
	case *ErrorResponse:
		body, err := c.Clone(m.Error.ResponseJSON)
		if err != nil {
			return nil, err
		}
		out := *m
		out.Error.ResponseJSON = body
		if m.Error.Message != nil {
			msg := *m.Error.Message
			out.Error.Message = &msg
		}
		if m.Error.Status != nil {
			status := *m.Error.Status
			out.Error.Status = &status
		}
		return &out, nil
	default:
		return nil, &DataCloneError{Reason: "unknown message kind"}
	}
}
