package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tethergrid/tether/internal/native"
	"github.com/tethergrid/tether/internal/testutil"
	"github.com/tethergrid/tether/internal/value"
)

func TestRemoteForwardingNoLocalExecution(t *testing.T) {
	sender := &testutil.RecordingSender{Response: value.Int(99)}
	h := newTestHook(t, WithSender(sender))

	ptr := &value.Pointer{Location: "W2", IDAtLocation: "7", Owner: "me"}
	recv := value.NewRemoteProxy(ptr, value.WithOwner("me"))

	res, err := h.Invoke(context.Background(), value.ProxyValue{Proxy: recv}, "add", value.Int(3))
	require.NoError(t, err)

	// Exactly one command, routed to the pointer's location.
	require.Len(t, sender.Sent, 1)
	sent := sender.Sent[0]
	assert.Equal(t, value.WorkerID("W2"), sent.Location)
	assert.Equal(t, "add", sent.Command.Op)
	assert.Same(t, recv, sent.Command.Receiver)
	assert.Equal(t, []value.Value{value.Int(3)}, sent.Command.Args)

	// The response comes back verbatim: no local rehydration on this path.
	assert.Equal(t, value.Int(99), res)
}

func TestRemoteResponsePointerVerbatim(t *testing.T) {
	// The remote side may answer with a further indirection; it arrives
	// untouched.
	respPtr := value.NewRemoteProxy(&value.Pointer{Location: "W2", IDAtLocation: "8"})
	sender := &testutil.RecordingSender{Response: value.ProxyValue{Proxy: respPtr}}
	h := newTestHook(t, WithSender(sender))

	recv := value.NewRemoteProxy(&value.Pointer{Location: "W2", IDAtLocation: "7"})
	res, err := h.Invoke(context.Background(), value.ProxyValue{Proxy: recv}, "neg")
	require.NoError(t, err)

	pv, ok := res.(value.ProxyValue)
	require.True(t, ok)
	assert.Same(t, respPtr, pv.Proxy)
}

func TestRemoteFailurePropagatedUnchanged(t *testing.T) {
	sentinel := errors.New("connection refused")
	sender := &testutil.RecordingSender{Err: sentinel}
	h := newTestHook(t, WithSender(sender))

	recv := value.NewRemoteProxy(&value.Pointer{Location: "W2", IDAtLocation: "7"})
	_, err := h.Invoke(context.Background(), value.ProxyValue{Proxy: recv}, "add", value.Int(1))

	// No retry, no wrapping: the caller sees the sender's error itself.
	require.Len(t, sender.Sent, 1)
	assert.Equal(t, sentinel, err)
}

func TestRemoteWithoutSender(t *testing.T) {
	h := newTestHook(t)

	recv := value.NewRemoteProxy(&value.Pointer{Location: "W2", IDAtLocation: "7"})
	_, err := h.Invoke(context.Background(), value.ProxyValue{Proxy: recv}, "add", value.Int(1))

	var de *DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ErrCodeRemoteFailed, de.Code)
}

func TestSequentialCommandsKeepOrder(t *testing.T) {
	sender := &testutil.RecordingSender{Response: value.Int(0)}
	h := newTestHook(t, WithSender(sender))

	recv := value.NewRemoteProxy(&value.Pointer{Location: "W2", IDAtLocation: "7"})
	ops := []string{"add", "neg", "abs", "sum"}
	for _, op := range ops {
		args := []value.Value{}
		if op == "add" {
			args = append(args, value.Int(1))
		}
		_, err := h.Invoke(context.Background(), value.ProxyValue{Proxy: recv}, op, args...)
		require.NoError(t, err)
	}

	// One command per operation, in issue order: no coalescing, no
	// batching.
	require.Len(t, sender.Sent, len(ops))
	for i, op := range ops {
		assert.Equal(t, op, sender.Sent[i].Command.Op)
	}
}

func TestFreeFunctionLocal(t *testing.T) {
	h := newTestHook(t)
	ctx := context.Background()

	a := localProxy(h, t, 1, 2)
	b := localProxy(h, t, 3)
	res, err := h.Call(ctx, "tensor.cat", value.ProxyValue{Proxy: a}, value.ProxyValue{Proxy: b})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, innerTensor(t, res).Data())

	res, err = h.Call(ctx, "tensor.zeros", value.Int(2))
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 0}, innerTensor(t, res).Data())
}

func TestFreeFunctionForwardsOnPointerArgument(t *testing.T) {
	sender := &testutil.RecordingSender{Response: value.Int(1)}
	h := newTestHook(t, WithSender(sender))
	ctx := context.Background()

	local := localProxy(h, t, 1, 2)
	remote := value.NewRemoteProxy(&value.Pointer{Location: "W3", IDAtLocation: "9"})

	res, err := h.Call(ctx, "tensor.cat",
		value.ProxyValue{Proxy: local},
		value.ProxyValue{Proxy: remote},
	)
	require.NoError(t, err)
	assert.Equal(t, value.Int(1), res)

	// Receiverless command, routed to the first pointer's location, with
	// the arguments unmodified.
	require.Len(t, sender.Sent, 1)
	sent := sender.Sent[0]
	assert.Equal(t, value.WorkerID("W3"), sent.Location)
	assert.Equal(t, "tensor.cat", sent.Command.Op)
	assert.Nil(t, sent.Command.Receiver)
	require.Len(t, sent.Command.Args, 2)
}

func TestFreeFunctionUnknown(t *testing.T) {
	h := newTestHook(t)
	_, err := h.Call(context.Background(), "tensor.transpose")
	assert.True(t, IsOperationNotFound(err), "got %v", err)
}

func TestFreeFunctionNativeOperands(t *testing.T) {
	h := newTestHook(t)

	res, err := h.Call(context.Background(), "tensor.cat",
		value.TensorValue{Tensor: native.New(4)},
		value.TensorValue{Tensor: native.New(5)},
	)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5}, innerTensor(t, res).Data())
}
