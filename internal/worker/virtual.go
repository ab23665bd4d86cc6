package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tethergrid/tether/internal/native"
	"github.com/tethergrid/tether/internal/store"
	"github.com/tethergrid/tether/internal/value"
)

// ErrObjectNotFound is returned when a worker's table has no object under
// the requested ID.
var ErrObjectNotFound = errors.New("object not found in worker table")

// VirtualWorker is an in-process Worker. It keeps its objects in a map and
// executes received Commands through an Executor against local data. With a
// store attached the table is durable and every received Command lands in
// the command log.
type VirtualWorker struct {
	id     value.WorkerID
	exec   Executor
	gen    value.Generator
	logger *slog.Logger
	st     *store.Store
	inline bool

	mu      sync.RWMutex
	objects map[value.ObjectID]*native.Tensor
}

// VirtualOption tunes a VirtualWorker at construction.
type VirtualOption func(*VirtualWorker)

// WithStore persists the object table and command log in st. The in-memory
// map stays authoritative for reads; the store is write-through.
func WithStore(st *store.Store) VirtualOption {
	return func(w *VirtualWorker) { w.st = st }
}

// WithWorkerGenerator controls the IDs minted for result objects.
func WithWorkerGenerator(g value.Generator) VirtualOption {
	return func(w *VirtualWorker) { w.gen = g }
}

// WithWorkerLogger replaces the default logger.
func WithWorkerLogger(l *slog.Logger) VirtualOption {
	return func(w *VirtualWorker) { w.logger = l }
}

// WithInlineResults makes the worker answer with raw tensor values instead
// of registering results and returning pointers.
func WithInlineResults() VirtualOption {
	return func(w *VirtualWorker) { w.inline = true }
}

// NewVirtualWorker builds a worker executing through exec under the given
// identity.
func NewVirtualWorker(id value.WorkerID, exec Executor, opts ...VirtualOption) *VirtualWorker {
	w := &VirtualWorker{
		id:      id,
		exec:    exec,
		logger:  slog.Default(),
		objects: make(map[value.ObjectID]*native.Tensor),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.gen == nil {
		w.gen = value.UUIDv7Generator{}
	}
	return w
}

func (w *VirtualWorker) ID() value.WorkerID { return w.id }

// RegisterObject stores t under id, replacing any previous object there.
func (w *VirtualWorker) RegisterObject(ctx context.Context, id value.ObjectID, t *native.Tensor) error {
	if t == nil {
		return &ExecError{Worker: w.id, Op: "register", Message: "nil tensor"}
	}
	w.mu.Lock()
	w.objects[id] = t
	w.mu.Unlock()
	if w.st != nil {
		if err := w.st.PutObject(ctx, w.id, id, t); err != nil {
			return fmt.Errorf("persist object %s: %w", id, err)
		}
	}
	return nil
}

// GetObject returns the tensor at id or ErrObjectNotFound.
func (w *VirtualWorker) GetObject(ctx context.Context, id value.ObjectID) (*native.Tensor, error) {
	w.mu.RLock()
	t, ok := w.objects[id]
	w.mu.RUnlock()
	if ok {
		return t, nil
	}
	if w.st != nil {
		t, err := w.st.GetObject(ctx, w.id, id)
		if err == nil {
			w.mu.Lock()
			w.objects[id] = t
			w.mu.Unlock()
			return t, nil
		}
		if !errors.Is(err, store.ErrObjectNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("worker %s: %w: %s", w.id, ErrObjectNotFound, id)
}

// DeregisterObject drops id from the table. Missing IDs are not an error.
func (w *VirtualWorker) DeregisterObject(ctx context.Context, id value.ObjectID) error {
	w.mu.Lock()
	delete(w.objects, id)
	w.mu.Unlock()
	if w.st != nil {
		return w.st.DeleteObject(ctx, w.id, id)
	}
	return nil
}

// ObjectIDs returns the IDs currently held in memory.
func (w *VirtualWorker) ObjectIDs() []value.ObjectID {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]value.ObjectID, 0, len(w.objects))
	for id := range w.objects {
		out = append(out, id)
	}
	return out
}

// Execute runs a received Command against this worker's objects. Pointer
// arguments addressed to this worker resolve to their tensors; the result
// comes back as a fresh pointer per grown object, or inline when the worker
// is configured for inline results.
func (w *VirtualWorker) Execute(ctx context.Context, cmd value.Command) (value.Value, error) {
	if w.st != nil {
		if err := w.st.AppendCommand(ctx, w.id, cmd); err != nil {
			return nil, fmt.Errorf("log command: %w", err)
		}
	}
	w.logger.Debug("executing command",
		slog.String("worker", string(w.id)),
		slog.String("op", cmd.Op))

	args, err := w.resolveArgs(ctx, cmd.Args)
	if err != nil {
		return nil, err
	}

	var res value.Value
	if cmd.Receiver == nil {
		res, err = w.exec.Call(ctx, cmd.Op, args...)
	} else {
		recv, rerr := w.resolveReceiver(ctx, cmd)
		if rerr != nil {
			return nil, rerr
		}
		res, err = w.exec.Invoke(ctx, recv, cmd.Op, args...)
	}
	if err != nil {
		return nil, err
	}
	return w.packageResult(ctx, res)
}

// resolveReceiver turns the command's remote receiver into a local native
// proxy over the owned tensor.
func (w *VirtualWorker) resolveReceiver(ctx context.Context, cmd value.Command) (value.Value, error) {
	ptr := cmd.Receiver.Pointer()
	if ptr == nil {
		return nil, &ExecError{Worker: w.id, Op: cmd.Op, Message: "receiver is not a pointer"}
	}
	if ptr.Location != w.id {
		return nil, &ExecError{Worker: w.id, Op: cmd.Op,
			Message: fmt.Sprintf("receiver points at %s", ptr.Location)}
	}
	t, err := w.GetObject(ctx, ptr.IDAtLocation)
	if err != nil {
		return nil, err
	}
	local := value.NewNativeProxy(t,
		value.WithID(ptr.IDAtLocation),
		value.WithOwner(w.id),
		value.WithGenerator(w.gen))
	return value.ProxyValue{Proxy: local}, nil
}

func (w *VirtualWorker) resolveArgs(ctx context.Context, args []value.Value) ([]value.Value, error) {
	out := make([]value.Value, len(args))
	for i, a := range args {
		r, err := w.resolveArg(ctx, a)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func (w *VirtualWorker) resolveArg(ctx context.Context, a value.Value) (value.Value, error) {
	pv, ok := a.(value.ProxyValue)
	if !ok {
		return a, nil
	}
	rep, ok := pv.Proxy.Rep().(*value.Remote)
	if !ok {
		return a, nil
	}
	if rep.Pointer.Location != w.id {
		return nil, &ExecError{Worker: w.id, Op: "resolve",
			Message: fmt.Sprintf("argument points at %s", rep.Pointer.Location)}
	}
	t, err := w.GetObject(ctx, rep.Pointer.IDAtLocation)
	if err != nil {
		return nil, err
	}
	return value.TensorValue{Tensor: t}, nil
}

// packageResult registers grown tensors and answers with pointers back at
// them. Scalars pass through either way.
func (w *VirtualWorker) packageResult(ctx context.Context, res value.Value) (value.Value, error) {
	switch v := res.(type) {
	case nil:
		return nil, nil
	case value.Tuple:
		out := make(value.Tuple, len(v))
		for i, elem := range v {
			p, err := w.packageResult(ctx, elem)
			if err != nil {
				return nil, err
			}
			out[i] = p
		}
		return out, nil
	case value.ProxyValue:
		rep, ok := v.Proxy.Rep().(*value.Native)
		if !ok {
			return v, nil
		}
		if w.inline {
			return value.TensorValue{Tensor: rep.Tensor}, nil
		}
		return w.registerResult(ctx, rep.Tensor)
	case value.TensorValue:
		if w.inline {
			return v, nil
		}
		return w.registerResult(ctx, v.Tensor)
	default:
		return res, nil
	}
}

// registerResult stores a result tensor under a fresh ID and answers with a
// pointer proxy at it.
func (w *VirtualWorker) registerResult(ctx context.Context, t *native.Tensor) (value.Value, error) {
	id := w.gen.Generate()
	if err := w.RegisterObject(ctx, id, t); err != nil {
		return nil, err
	}
	remote := value.NewRemoteProxy(&value.Pointer{
		Location:     w.id,
		IDAtLocation: id,
		Owner:        w.id,
	}, value.WithID(id), value.WithOwner(w.id))
	return value.ProxyValue{Proxy: remote}, nil
}
