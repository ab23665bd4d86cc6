package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tethergrid/tether/internal/caps"
	"github.com/tethergrid/tether/internal/engine"
	"github.com/tethergrid/tether/internal/native"
	"github.com/tethergrid/tether/internal/store"
	"github.com/tethergrid/tether/internal/testutil"
	"github.com/tethergrid/tether/internal/value"
)

// grid wires a client hook and two virtual workers through one router, the
// smallest topology that exercises forwarding end to end.
type grid struct {
	router *Router
	client *engine.Hook
	alice  *VirtualWorker
	bob    *VirtualWorker
}

func newHook(t *testing.T, id value.WorkerID, prefix string, sender engine.CommandSender) *engine.Hook {
	t.Helper()
	m, err := caps.DefaultManifest()
	require.NoError(t, err)
	reg := caps.NewRegistry(m, testutil.QuietLogger())
	h := engine.New(reg,
		engine.WithLogger(testutil.QuietLogger()),
		engine.WithLocalWorker(id),
		engine.WithGenerator(testutil.NewSeqGenerator(prefix)),
		engine.WithSender(sender))
	require.NoError(t, h.Install(native.TensorType))
	require.NoError(t, h.InstallFunctions())
	return h
}

func newGrid(t *testing.T, opts ...VirtualOption) *grid {
	t.Helper()
	router := NewRouter()
	g := &grid{router: router}
	g.client = newHook(t, "client", "c", router)
	g.alice = NewVirtualWorker("alice", newHook(t, "alice", "x", router),
		append([]VirtualOption{
			WithWorkerGenerator(testutil.NewSeqGenerator("a")),
			WithWorkerLogger(testutil.QuietLogger()),
		}, opts...)...)
	g.bob = NewVirtualWorker("bob", newHook(t, "bob", "y", router),
		WithWorkerGenerator(testutil.NewSeqGenerator("b")),
		WithWorkerLogger(testutil.QuietLogger()))
	router.Register(g.alice)
	router.Register(g.bob)
	return g
}

// pointerTo builds the client-side proxy for an object held by a worker.
func pointerTo(location value.WorkerID, id value.ObjectID) value.Value {
	p := value.NewRemoteProxy(&value.Pointer{
		Location:     location,
		IDAtLocation: id,
		Owner:        "client",
	}, value.WithID(id), value.WithOwner("client"))
	return value.ProxyValue{Proxy: p}
}

func TestRouterResolvesRegisteredWorkers(t *testing.T) {
	g := newGrid(t)

	assert.Equal(t, []value.WorkerID{"alice", "bob"}, g.router.Locations())
	assert.Same(t, g.alice, g.router.Lookup("alice").(*VirtualWorker))
	assert.Nil(t, g.router.Lookup("carol"))
}

func TestRouterUnknownLocation(t *testing.T) {
	g := newGrid(t)

	_, err := g.router.SendCommand(context.Background(), "carol", value.Command{Op: "add"})
	var rerr *RouteError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, value.WorkerID("carol"), rerr.Location)
}

func TestRemoteRoundTrip(t *testing.T) {
	g := newGrid(t)
	ctx := context.Background()
	require.NoError(t, g.alice.RegisterObject(ctx, "obj-1", native.New(2, 4)))

	res, err := g.client.Invoke(ctx, pointerTo("alice", "obj-1"), "add", value.Int(3))
	require.NoError(t, err)

	pv, ok := res.(value.ProxyValue)
	require.True(t, ok, "expected pointer result, got %T", res)
	rep, ok := pv.Proxy.Rep().(*value.Remote)
	require.True(t, ok)
	assert.Equal(t, value.WorkerID("alice"), rep.Pointer.Location)

	got, err := g.alice.GetObject(ctx, rep.Pointer.IDAtLocation)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 7}, got.Data())

	orig, err := g.alice.GetObject(ctx, "obj-1")
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4}, orig.Data(), "receiver must stay untouched")
}

func TestChainedRemoteOps(t *testing.T) {
	g := newGrid(t)
	ctx := context.Background()
	require.NoError(t, g.alice.RegisterObject(ctx, "obj-1", native.New(1, 2, 3)))

	first, err := g.client.Invoke(ctx, pointerTo("alice", "obj-1"), "scale", value.Int(10))
	require.NoError(t, err)
	second, err := g.client.Invoke(ctx, first, "sum")
	require.NoError(t, err)

	assert.Equal(t, value.Int(60), second, "scalar results come back inline")
}

func TestPointerArgumentResolvedAtWorker(t *testing.T) {
	g := newGrid(t)
	ctx := context.Background()
	require.NoError(t, g.alice.RegisterObject(ctx, "lhs", native.New(1, 2)))
	require.NoError(t, g.alice.RegisterObject(ctx, "rhs", native.New(10, 20)))

	res, err := g.client.Invoke(ctx, pointerTo("alice", "lhs"), "add", pointerTo("alice", "rhs"))
	require.NoError(t, err)

	pv := res.(value.ProxyValue)
	rep := pv.Proxy.Rep().(*value.Remote)
	got, err := g.alice.GetObject(ctx, rep.Pointer.IDAtLocation)
	require.NoError(t, err)
	assert.Equal(t, []int64{11, 22}, got.Data())
}

func TestCrossWorkerArgumentRejected(t *testing.T) {
	g := newGrid(t)
	ctx := context.Background()
	require.NoError(t, g.alice.RegisterObject(ctx, "lhs", native.New(1)))
	require.NoError(t, g.bob.RegisterObject(ctx, "rhs", native.New(2)))

	_, err := g.client.Invoke(ctx, pointerTo("alice", "lhs"), "add", pointerTo("bob", "rhs"))
	var eerr *ExecError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, value.WorkerID("alice"), eerr.Worker)
}

func TestExecuteUnknownObject(t *testing.T) {
	g := newGrid(t)

	_, err := g.client.Invoke(context.Background(), pointerTo("alice", "ghost"), "neg")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestExecuteWrongDestination(t *testing.T) {
	g := newGrid(t)
	ctx := context.Background()
	require.NoError(t, g.alice.RegisterObject(ctx, "obj-1", native.New(1)))

	// Deliver a command whose receiver points elsewhere straight to bob.
	cmd := value.Command{
		Op: "neg",
		Receiver: value.NewRemoteProxy(&value.Pointer{
			Location: "alice", IDAtLocation: "obj-1", Owner: "client",
		}),
	}
	_, err := g.bob.Execute(ctx, cmd)
	var eerr *ExecError
	require.ErrorAs(t, err, &eerr)
	assert.Contains(t, eerr.Message, "alice")
}

func TestShapeErrorPropagatesThroughRouter(t *testing.T) {
	g := newGrid(t)
	ctx := context.Background()
	require.NoError(t, g.alice.RegisterObject(ctx, "obj-1", native.New(1, 2)))
	require.NoError(t, g.alice.RegisterObject(ctx, "obj-2", native.New(1, 2, 3)))

	_, err := g.client.Invoke(ctx, pointerTo("alice", "obj-1"), "add", pointerTo("alice", "obj-2"))
	var serr *native.ShapeError
	require.ErrorAs(t, err, &serr, "worker failures must come back unchanged")
	assert.Equal(t, "add", serr.Op)
}

func TestTupleResultBecomesPointerTuple(t *testing.T) {
	g := newGrid(t)
	ctx := context.Background()
	require.NoError(t, g.alice.RegisterObject(ctx, "obj-1", native.New(7, 2, 9)))

	res, err := g.client.Invoke(ctx, pointerTo("alice", "obj-1"), "minmax")
	require.NoError(t, err)

	tup, ok := res.(value.Tuple)
	require.True(t, ok)
	require.Len(t, tup, 2)
	assert.Equal(t, value.Int(2), tup[0])
	assert.Equal(t, value.Int(9), tup[1])
}

func TestInlineResults(t *testing.T) {
	g := newGrid(t, WithInlineResults())
	ctx := context.Background()
	require.NoError(t, g.alice.RegisterObject(ctx, "obj-1", native.New(2, 4)))

	res, err := g.client.Invoke(ctx, pointerTo("alice", "obj-1"), "add", value.Int(1))
	require.NoError(t, err)

	tv, ok := res.(value.TensorValue)
	require.True(t, ok, "inline worker answers with raw tensors, got %T", res)
	assert.Equal(t, []int64{3, 5}, tv.Tensor.Data())
	assert.Len(t, g.alice.ObjectIDs(), 1, "no result object registered")
}

func TestFreeFunctionForwarded(t *testing.T) {
	g := newGrid(t)
	ctx := context.Background()
	require.NoError(t, g.alice.RegisterObject(ctx, "obj-1", native.New(1, 2)))
	require.NoError(t, g.alice.RegisterObject(ctx, "obj-2", native.New(3)))

	res, err := g.client.Call(ctx, "tensor.cat", pointerTo("alice", "obj-1"), pointerTo("alice", "obj-2"))
	require.NoError(t, err)

	pv := res.(value.ProxyValue)
	rep := pv.Proxy.Rep().(*value.Remote)
	got, err := g.alice.GetObject(ctx, rep.Pointer.IDAtLocation)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, got.Data())
}

func TestDeregisterObject(t *testing.T) {
	g := newGrid(t)
	ctx := context.Background()
	require.NoError(t, g.alice.RegisterObject(ctx, "obj-1", native.New(1)))

	require.NoError(t, g.alice.DeregisterObject(ctx, "obj-1"))
	_, err := g.alice.GetObject(ctx, "obj-1")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	require.NoError(t, g.alice.DeregisterObject(ctx, "obj-1"), "second delete is a no-op")
}

func TestStoreBackedWorker(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	router := NewRouter()
	alice := NewVirtualWorker("alice", newHook(t, "alice", "x", router),
		WithStore(st),
		WithWorkerGenerator(testutil.NewSeqGenerator("a")),
		WithWorkerLogger(testutil.QuietLogger()))
	router.Register(alice)
	client := newHook(t, "client", "c", router)
	ctx := context.Background()

	require.NoError(t, alice.RegisterObject(ctx, "obj-1", native.New(5, 6)))

	res, err := client.Invoke(ctx, pointerTo("alice", "obj-1"), "neg")
	require.NoError(t, err)
	resultID := res.(value.ProxyValue).Proxy.Rep().(*value.Remote).Pointer.IDAtLocation

	persisted, err := st.GetObject(ctx, "alice", resultID)
	require.NoError(t, err)
	assert.Equal(t, []int64{-5, -6}, persisted.Data())

	logged, err := st.Commands(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, "neg", logged[0].Op)

	// A fresh worker over the same store serves objects from disk.
	revived := NewVirtualWorker("alice", newHook(t, "alice", "z", router),
		WithStore(st), WithWorkerLogger(testutil.QuietLogger()))
	got, err := revived.GetObject(ctx, "obj-1")
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 6}, got.Data())
}
