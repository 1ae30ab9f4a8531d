package worker_rpc

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-stream/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filledBuffer(n int) *common.ArrayBuffer {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i)
	}
	return common.WrapArrayBuffer(data)
}

func receive(t *testing.T, p Port) Message {
	t.Helper()
	select {
	case msg, ok := <-p.Messages():
		require.True(t, ok, "port closed")
		return msg
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out waiting for message")
		return nil
	}
}

func TestStructuredCloneCopiesByDefault(t *testing.T) {
	buf := filledBuffer(16)
	raw := []byte{1, 2, 3}
	v := map[string]any{
		"buf":    buf,
		"raw":    raw,
		"floats": []float32{1, 2},
		"nested": []any{"a", 1, true, nil},
	}

	out, err := StructuredClone(v, nil)
	require.NoError(t, err)
	clone := out.(map[string]any)

	cloned := clone["buf"].(*common.ArrayBuffer)
	assert.NotSame(t, buf, cloned)
	assert.Equal(t, buf.Bytes(), cloned.Bytes())
	assert.False(t, buf.Detached())

	raw[0] = 9
	assert.Equal(t, []byte{1, 2, 3}, clone["raw"])
	assert.Equal(t, []float32{1, 2}, clone["floats"])
	assert.Equal(t, []any{"a", 1, true, nil}, clone["nested"])
}

func TestStructuredCloneTransfersListedBuffers(t *testing.T) {
	buf := filledBuffer(64)
	want := append([]byte{}, buf.Bytes()...)

	out, err := StructuredClone([]any{buf, buf}, []any{buf})
	require.NoError(t, err)
	clone := out.([]any)

	moved := clone[0].(*common.ArrayBuffer)
	assert.Same(t, moved, clone[1], "the same buffer must clone to the same object")
	assert.Equal(t, 64, moved.ByteLength())
	assert.Equal(t, want, moved.Bytes())
	assert.True(t, buf.Detached())
	assert.Equal(t, 0, buf.ByteLength())
}

func TestStructuredCloneTransfersUnreachableBuffers(t *testing.T) {
	buf := filledBuffer(8)
	_, err := StructuredClone("unrelated", []any{buf})
	require.NoError(t, err)
	assert.True(t, buf.Detached())
}

func TestStructuredCloneRejectsInvalidTransferLists(t *testing.T) {
	buf := filledBuffer(8)
	var cloneErr *DataCloneError

	_, err := StructuredClone(buf, []any{[]byte{1}})
	assert.ErrorAs(t, err, &cloneErr)

	_, err = StructuredClone(buf, []any{buf, buf})
	assert.ErrorAs(t, err, &cloneErr)

	detached := filledBuffer(8)
	_, err = detached.Transfer()
	require.NoError(t, err)
	_, err = StructuredClone(nil, []any{detached})
	assert.ErrorAs(t, err, &cloneErr)

	_, err = StructuredClone(detached, nil)
	assert.ErrorAs(t, err, &cloneErr)

	assert.False(t, buf.Detached())
}

func TestStructuredCloneFailureLeavesTransfersUntouched(t *testing.T) {
	buf := filledBuffer(8)
	_, err := StructuredClone([]any{buf, func() {}}, []any{buf})

	var cloneErr *DataCloneError
	require.ErrorAs(t, err, &cloneErr)
	assert.False(t, buf.Detached())
	assert.Equal(t, 8, buf.ByteLength())
}

type payload struct {
	Name string
	Data *common.ArrayBuffer
}

func (p *payload) StructuredClone(c *Cloner) (any, error) {
	data, err := c.Clone(p.Data)
	if err != nil {
		return nil, err
	}
	return &payload{Name: p.Name, Data: data.(*common.ArrayBuffer)}, nil
}

func TestStructuredCloneUsesCloneable(t *testing.T) {
	p := &payload{Name: "sector", Data: filledBuffer(32)}
	out, err := StructuredClone(p, []any{p.Data})
	require.NoError(t, err)

	clone := out.(*payload)
	assert.NotSame(t, p, clone)
	assert.Equal(t, "sector", clone.Name)
	assert.Equal(t, 32, clone.Data.ByteLength())
	assert.True(t, p.Data.Detached())
}

func TestIsTransferable(t *testing.T) {
	a, b := NewMessageChannel()
	defer a.Close()

	assert.True(t, IsTransferable(filledBuffer(1)))
	assert.True(t, IsTransferable(a))
	assert.False(t, IsTransferable([]byte{1}))
	assert.False(t, IsTransferable((*common.ArrayBuffer)(nil)))
	assert.False(t, IsTransferable("x"))

	_, err := b.transfer()
	require.NoError(t, err)
	assert.False(t, IsTransferable(b))
}

func TestPortDeliversClonedMessages(t *testing.T) {
	a, b := NewMessageChannel()
	defer a.Close()

	buf := filledBuffer(4)
	require.NoError(t, a.PostMessage(NewRequest(1, "m", buf), nil))

	msg := receive(t, b)
	req := msg.(*Request)
	assert.Equal(t, "m", req.Method)
	assert.NotSame(t, buf, req.Params[0])
	assert.False(t, buf.Detached())

	require.NoError(t, b.PostMessage(&Response{Type: ProtocolType, ID: 1, Result: "ok"}, nil))
	assert.Equal(t, "ok", receive(t, a).(*Response).Result)
}

func TestPortCloseEndsBothStreams(t *testing.T) {
	a, b := NewMessageChannel()
	require.NoError(t, b.Close())

	_, ok := <-a.Messages()
	assert.False(t, ok)
	_, ok = <-b.Messages()
	assert.False(t, ok)
	assert.ErrorIs(t, a.PostMessage(NewRequest(1, "m"), nil), ErrPortClosed)
}

func TestPortCanBeTransferred(t *testing.T) {
	a, b := NewMessageChannel()
	defer a.Close()
	c1, c2 := NewMessageChannel()
	defer c2.Close()

	require.NoError(t, a.PostMessage(&Response{Type: ProtocolType, ID: 1, Result: c1}, []any{c1}))
	moved := receive(t, b).(*Response).Result.(*MessagePort)

	assert.True(t, c1.Detached())
	assert.ErrorIs(t, c1.PostMessage(NewRequest(2, "m"), nil), ErrPortClosed)

	require.NoError(t, moved.PostMessage(NewRequest(3, "ping"), nil))
	assert.Equal(t, "ping", receive(t, c2).(*Request).Method)
}

func TestPortCannotBeCopied(t *testing.T) {
	a, _ := NewMessageChannel()
	defer a.Close()
	c1, c2 := NewMessageChannel()
	defer c2.Close()

	var cloneErr *DataCloneError
	assert.ErrorAs(t, a.PostMessage(&Response{Type: ProtocolType, ID: 1, Result: c1}, nil), &cloneErr)
	assert.ErrorAs(t, a.PostMessage(NewRequest(1, "m"), []any{a}), &cloneErr)
	assert.False(t, c1.Detached())
}

func TestValidate(t *testing.T) {
	var decodeErr *DecodeError

	assert.NoError(t, Validate(NewRequest(0, "m")))
	assert.NoError(t, Validate(&Response{Type: ProtocolType, ID: 3}))
	assert.NoError(t, Validate(&ErrorResponse{Type: ProtocolType, ID: 3}))

	assert.ErrorAs(t, Validate(nil), &decodeErr)
	assert.ErrorAs(t, Validate((*Request)(nil)), &decodeErr)
	assert.ErrorAs(t, Validate(&Request{Type: "other", Method: "m", Params: []any{}}), &decodeErr)
	assert.ErrorAs(t, Validate(&Request{Type: ProtocolType, Params: []any{}}), &decodeErr)
	assert.ErrorAs(t, Validate(&Request{Type: ProtocolType, Method: "m"}), &decodeErr)
	assert.ErrorAs(t, Validate(&Response{Type: ProtocolType, ID: -1}), &decodeErr)
}
