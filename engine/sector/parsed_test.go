package sector

import (
	"context"
	"math/rand"
	"testing"

	"github.com/Carmen-Shannon/oxy-stream/common"
	"github.com/Carmen-Shannon/oxy-stream/engine/buffer_layout"
	"github.com/Carmen-Shannon/oxy-stream/engine/worker_rpc"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encoded(t *testing.T, s *Sector) []byte {
	t.Helper()
	data, err := Encode(s)
	require.NoError(t, err)
	return data
}

func TestParse_Geometry(t *testing.T) {
	s := NewSector(4, []Instance{
		{TreeIndex: 40, Color: [4]uint8{255, 0, 0, 255}, Center: [3]float32{1, 2, 3}, Size: 2},
		{TreeIndex: 41, Color: [4]uint8{0, 255, 0, 255}, Center: [3]float32{4, 5, 6}, Size: 4},
	})
	data := encoded(t, s)

	p, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), p.ID)
	assert.Equal(t, 2, p.InstanceCount)
	require.Len(t, p.Descriptors, 4)
	assert.Equal(t, 6, p.Descriptors[0].Stride)
	assert.Equal(t, 24, p.Descriptors[1].Stride)
	assert.Equal(t, 4, p.Descriptors[1].ByteOffset)

	// The payload is a copy, so the encoded bytes can be released.
	data[len(data)-1] ^= 0xff
	assert.Equal(t, s.Payload, p.Payload.Bytes())

	g, err := p.Geometry()
	require.NoError(t, err)
	assert.Equal(t, []int{40, 41}, buffer_layout.TreeIndices(g))

	boxes := InstanceBoxes(g)
	require.Len(t, boxes, 2)
	assert.Equal(t, common.Box3{Min: common.Vec3{0, 1, 2}, Max: common.Vec3{2, 3, 4}}, boxes[0])
	assert.Equal(t, common.Box3{Min: common.Vec3{2, 3, 4}, Max: common.Vec3{6, 7, 8}}, boxes[1])

	layout, err := buffer_layout.InstanceBufferLayout(g, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(InstanceSize), layout.ArrayStride)
	assert.Equal(t, wgpu.VertexStepModeInstance, layout.StepMode)
	require.Len(t, layout.Attributes, 4)
	assert.Equal(t, wgpu.VertexFormatUnorm8x4, layout.Attributes[1].Format)
	assert.Equal(t, wgpu.VertexFormatFloat32x3, layout.Attributes[2].Format)
	assert.Equal(t, uint32(2), layout.Attributes[0].ShaderLocation)
}

func TestParse_EmptySector(t *testing.T) {
	p, err := Parse(encoded(t, NewSector(9, nil)))
	require.NoError(t, err)
	assert.Equal(t, 0, p.InstanceCount)
	require.Len(t, p.Descriptors, len(StandardAttributes))

	g, err := p.Geometry()
	require.NoError(t, err)
	assert.Empty(t, buffer_layout.TreeIndices(g))
	assert.Empty(t, InstanceBoxes(g))

	layout, err := buffer_layout.InstanceBufferLayout(g, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(InstanceSize), layout.ArrayStride)
}

func TestParsed_StructuredClone(t *testing.T) {
	p, err := Parse(encoded(t, Generate(2, 3, 0, rand.New(rand.NewSource(4)))))
	require.NoError(t, err)
	before := append([]byte(nil), p.Payload.Bytes()...)

	copied, err := worker_rpc.StructuredClone(p, nil)
	require.NoError(t, err)
	cp := copied.(*Parsed)
	assert.NotSame(t, p.Payload, cp.Payload)
	assert.Equal(t, before, cp.Payload.Bytes())
	assert.False(t, p.Payload.Detached())

	moved, err := worker_rpc.StructuredClone(p, []any{p.Payload})
	require.NoError(t, err)
	assert.True(t, p.Payload.Detached())
	assert.Equal(t, before, moved.(*Parsed).Payload.Bytes())
}

func TestParseSectorMethod_OverWorker(t *testing.T) {
	callerPort, workerPort := worker_rpc.NewMessageChannel()
	d := worker_rpc.NewDispatcher(workerPort, RegisterWorkerMethods(nil), worker_rpc.WithWorkers(2))
	require.NoError(t, d.Start())
	c := worker_rpc.NewClient(callerPort)
	t.Cleanup(func() {
		c.Close()
		d.Close()
		callerPort.Close()
	})

	s := Generate(9, 5, 500, rand.New(rand.NewSource(5)))
	parse := RemoteParser(c)

	p, err := parse(context.Background(), 9, encoded(t, s))
	require.NoError(t, err)
	assert.Equal(t, uint32(9), p.ID)
	assert.Equal(t, s.Payload, p.Payload.Bytes())

	_, err = parse(context.Background(), 8, encoded(t, s))
	assert.Error(t, err)

	_, err = parse(context.Background(), 9, []byte("garbage"))
	var remote *worker_rpc.RemoteError
	assert.ErrorAs(t, err, &remote)
}

func TestLocalParser_ChecksID(t *testing.T) {
	parse := LocalParser()
	data := encoded(t, Generate(1, 1, 0, rand.New(rand.NewSource(6))))

	_, err := parse(context.Background(), 1, data)
	assert.NoError(t, err)
	_, err = parse(context.Background(), 2, data)
	assert.Error(t, err)
}
