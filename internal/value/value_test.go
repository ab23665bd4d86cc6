package value

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tethergrid/tether/internal/native"
)

// seqGenerator hands out "id-1", "id-2", ... for deterministic tests.
type seqGenerator struct{ n int }

func (g *seqGenerator) Generate() ObjectID {
	g.n++
	return ObjectID(fmt.Sprintf("id-%d", g.n))
}

func TestValueSealed(t *testing.T) {
	var _ Value = Int(42)
	var _ Value = Bool(true)
	var _ Value = Str("s")
	var _ Value = TensorValue{Tensor: native.New(1)}
	var _ Value = ProxyValue{Proxy: NewNativeProxy(native.New(1))}
	var _ Value = Tuple{Int(1), Int(2)}
}

func TestRepresentationSealed(t *testing.T) {
	var _ Representation = &Native{Tensor: native.New(1)}
	var _ Representation = &Remote{Pointer: &Pointer{Location: "bob", IDAtLocation: "o1"}}
	var _ Representation = &Decorated{Inner: NewNativeProxy(native.New(1)), Layer: "audit"}
}

func TestProxyLazyIDStable(t *testing.T) {
	gen := &seqGenerator{}
	p := NewNativeProxy(native.New(1, 2), WithGenerator(gen))

	id := p.ID()
	assert.Equal(t, ObjectID("id-1"), id)
	// Repeated access returns the same identifier; the generator is not
	// consulted again.
	assert.Equal(t, id, p.ID())
	assert.Equal(t, 1, gen.n)
}

func TestProxyExplicitID(t *testing.T) {
	gen := &seqGenerator{}
	p := NewNativeProxy(native.New(1), WithID("obj-7"), WithGenerator(gen))

	assert.Equal(t, ObjectID("obj-7"), p.ID())
	assert.Zero(t, gen.n)
}

func TestProxyPointerAccessor(t *testing.T) {
	ptr := &Pointer{Location: "bob", IDAtLocation: "o1", Owner: "me"}
	remote := NewRemoteProxy(ptr)
	local := NewNativeProxy(native.New(1))

	assert.Equal(t, ptr, remote.Pointer())
	assert.Nil(t, local.Pointer())
}

func TestUUIDv7GeneratorUnique(t *testing.T) {
	gen := UUIDv7Generator{}
	a := gen.Generate()
	b := gen.Generate()
	assert.NotEqual(t, a, b)
	assert.Len(t, string(a), 36)
}

func TestFromOperand(t *testing.T) {
	v, err := FromOperand(native.New(1, 2))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, v.(TensorValue).Tensor.Data())

	v, err = FromOperand(int64(5))
	require.NoError(t, err)
	assert.Equal(t, Int(5), v)

	v, err = FromOperand(true)
	require.NoError(t, err)
	assert.Equal(t, Bool(true), v)

	_, err = FromOperand(3.14)
	assert.Error(t, err)
}

func TestCommandDigestStable(t *testing.T) {
	mk := func() Command {
		recv := NewRemoteProxy(
			&Pointer{Location: "bob", IDAtLocation: "o1", Owner: "me"},
			WithID("p-1"), WithOwner("me"),
		)
		return Command{Op: "add", Receiver: recv, Args: []Value{Int(3)}}
	}

	d1, err := mk().Digest()
	require.NoError(t, err)
	d2, err := mk().Digest()
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64)

	// A different argument produces a different digest.
	other := mk()
	other.Args = []Value{Int(4)}
	d3, err := other.Digest()
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3)
}

func TestCommandWireShape(t *testing.T) {
	recv := NewNativeProxy(native.New(2), WithID("p-1"), WithOwner("me"))
	cmd := Command{Op: "add", Receiver: recv, Args: []Value{Int(3)}}

	b, err := cmd.MarshalWire()
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"args":[{"t":"int","v":3}],"op":"add","receiver":{"id":"p-1","owner":"me","rep":{"data":[2],"kind":"native"}}}`,
		string(b))
}

func TestCommandWireFreeFunction(t *testing.T) {
	cmd := Command{Op: "tensor.zeros", Args: []Value{Int(2)}}

	b, err := cmd.MarshalWire()
	require.NoError(t, err)
	// No receiver key at all for free functions, rather than null.
	assert.Equal(t, `{"args":[{"t":"int","v":2}],"op":"tensor.zeros"}`, string(b))
}

func TestTensorPayloadRoundTrip(t *testing.T) {
	payload, err := EncodeTensor(native.New(5, -3, 0))
	require.NoError(t, err)
	assert.Equal(t, `[5,-3,0]`, string(payload))

	back, err := DecodeTensor(payload)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, -3, 0}, back.Data())

	_, err = DecodeTensor([]byte(`{"not": "a tensor"}`))
	assert.Error(t, err)
}

func TestMarshalCanonicalRejectsFloatsAndNull(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"x": 3.14})
	assert.Error(t, err)

	_, err = MarshalCanonical(nil)
	assert.Error(t, err)
}

func TestMarshalCanonicalKeyOrder(t *testing.T) {
	b, err := MarshalCanonical(map[string]any{
		"a":  int64(1),
		"A":  int64(2),
		"aa": int64(3),
	})
	require.NoError(t, err)
	// UTF-16 code unit order: uppercase before lowercase.
	assert.Equal(t, `{"A":2,"a":1,"aa":3}`, string(b))
}

func TestMarshalCanonicalNoHTMLEscaping(t *testing.T) {
	b, err := MarshalCanonical("<&>")
	require.NoError(t, err)
	assert.Equal(t, `"<&>"`, string(b))
}
