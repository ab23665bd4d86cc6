package harness

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/tethergrid/tether/internal/caps"
	"github.com/tethergrid/tether/internal/engine"
	"github.com/tethergrid/tether/internal/native"
	"github.com/tethergrid/tether/internal/store"
	"github.com/tethergrid/tether/internal/testutil"
	"github.com/tethergrid/tether/internal/value"
	"github.com/tethergrid/tether/internal/worker"
)

// TraceEvent records one flow step's outcome.
type TraceEvent struct {
	Seq    int
	Op     string
	Result string
	Error  string
}

// Result is a completed scenario run: the per-step trace, the saved
// results, and handles to the workers for state assertions.
type Result struct {
	Trace   []TraceEvent
	Saved   map[string]value.Value
	Workers map[string]*worker.VirtualWorker
	Stores  map[string]*store.Store
}

// Harness executes scenarios. Each Run stands up a fresh router, client
// hook, and per-worker in-memory stores, so scenarios are fully isolated
// and every run of the same scenario produces the same trace.
type Harness struct {
	logger *slog.Logger
}

// New creates a harness. A nil logger discards output.
func New(logger *slog.Logger) *Harness {
	if logger == nil {
		logger = testutil.QuietLogger()
	}
	return &Harness{logger: logger}
}

// Run executes one scenario and evaluates its assertions. The returned
// Result is populated even when an assertion fails, so callers can inspect
// the trace.
func (h *Harness) Run(ctx context.Context, s *Scenario) (*Result, error) {
	run, err := h.setup(ctx, s)
	if err != nil {
		return nil, err
	}
	defer run.close()

	for i, step := range s.Flow {
		if err := run.execStep(ctx, i, step); err != nil {
			return run.result, err
		}
	}
	for i, a := range s.Assertions {
		if err := run.assert(ctx, a); err != nil {
			return run.result, fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return run.result, nil
}

// run is the per-scenario execution state.
type run struct {
	scenario *Scenario
	client   *engine.Hook
	result   *Result
	stores   []*store.Store
}

func (h *Harness) setup(ctx context.Context, s *Scenario) (*run, error) {
	m, err := caps.DefaultManifest()
	if err != nil {
		return nil, err
	}
	reg := caps.NewRegistry(m, h.logger)
	router := worker.NewRouter()

	r := &run{
		scenario: s,
		result: &Result{
			Saved:   make(map[string]value.Value),
			Workers: make(map[string]*worker.VirtualWorker, len(s.Workers)),
			Stores:  make(map[string]*store.Store, len(s.Workers)),
		},
	}
	r.client = engine.New(reg,
		engine.WithLogger(h.logger),
		engine.WithLocalWorker("client"),
		engine.WithGenerator(testutil.NewSeqGenerator("client")),
		engine.WithSender(router))
	if err := r.client.Install(native.TensorType); err != nil {
		return nil, err
	}
	if err := r.client.InstallFunctions(); err != nil {
		return nil, err
	}

	for _, name := range s.Workers {
		st, err := store.Open(":memory:")
		if err != nil {
			r.close()
			return nil, fmt.Errorf("worker %s: %w", name, err)
		}
		r.stores = append(r.stores, st)

		hk := engine.New(reg,
			engine.WithLogger(h.logger),
			engine.WithLocalWorker(value.WorkerID(name)),
			engine.WithGenerator(testutil.NewSeqGenerator(name)),
			engine.WithSender(router))
		if err := hk.Install(native.TensorType); err != nil {
			r.close()
			return nil, err
		}
		if err := hk.InstallFunctions(); err != nil {
			r.close()
			return nil, err
		}
		w := worker.NewVirtualWorker(value.WorkerID(name), hk,
			worker.WithStore(st),
			worker.WithWorkerGenerator(testutil.NewSeqGenerator(name+"-obj")),
			worker.WithWorkerLogger(h.logger))
		router.Register(w)
		r.result.Workers[name] = w
		r.result.Stores[name] = st
	}

	for i, st := range s.Setup {
		w := r.result.Workers[st.Worker]
		if err := w.RegisterObject(ctx, value.ObjectID(st.Object), native.New(st.Data...)); err != nil {
			r.close()
			return nil, fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	return r, nil
}

func (r *run) close() {
	for _, st := range r.stores {
		_ = st.Close()
	}
}

func (r *run) execStep(ctx context.Context, i int, step FlowStep) error {
	op := step.Invoke
	if op == "" {
		op = step.Call
	}
	ev := TraceEvent{Seq: i + 1, Op: op}

	res, err := r.dispatch(ctx, step)
	if err != nil {
		if step.ExpectError == "" {
			ev.Error = err.Error()
			r.result.Trace = append(r.result.Trace, ev)
			return fmt.Errorf("flow[%d] %s: %w", i, op, err)
		}
		if !strings.Contains(err.Error(), step.ExpectError) {
			return fmt.Errorf("flow[%d] %s: error %q does not contain %q", i, op, err, step.ExpectError)
		}
		ev.Error = err.Error()
		r.result.Trace = append(r.result.Trace, ev)
		return nil
	}
	if step.ExpectError != "" {
		return fmt.Errorf("flow[%d] %s: expected error containing %q, got success", i, op, step.ExpectError)
	}

	ev.Result = RenderValue(res)
	r.result.Trace = append(r.result.Trace, ev)
	if step.Save != "" {
		r.result.Saved[step.Save] = res
	}
	return nil
}

func (r *run) dispatch(ctx context.Context, step FlowStep) (value.Value, error) {
	args := make([]value.Value, len(step.Args))
	for i, a := range step.Args {
		v, err := r.resolveRef(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	if step.Call != "" {
		return r.client.Call(ctx, step.Call, args...)
	}
	recv, err := r.resolveRef(step.Receiver)
	if err != nil {
		return nil, err
	}
	return r.client.Invoke(ctx, recv, step.Invoke, args...)
}

// resolveRef turns a scenario operand reference into a value: "$name" is a
// saved result, "worker/object" is a pointer, and anything left parses as
// an integer or boolean literal.
func (r *run) resolveRef(ref string) (value.Value, error) {
	if name, ok := strings.CutPrefix(ref, "$"); ok {
		v, ok := r.result.Saved[name]
		if !ok {
			return nil, fmt.Errorf("no saved result %q", name)
		}
		return v, nil
	}
	if loc, obj, ok := strings.Cut(ref, "/"); ok {
		if _, known := r.result.Workers[loc]; !known {
			return nil, fmt.Errorf("reference %q names unknown worker", ref)
		}
		p := value.NewRemoteProxy(&value.Pointer{
			Location:     value.WorkerID(loc),
			IDAtLocation: value.ObjectID(obj),
			Owner:        "client",
		}, value.WithID(value.ObjectID(obj)), value.WithOwner("client"))
		return value.ProxyValue{Proxy: p}, nil
	}
	if n, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return value.Int(n), nil
	}
	if b, err := strconv.ParseBool(ref); err == nil {
		return value.Bool(b), nil
	}
	return nil, fmt.Errorf("cannot parse operand reference %q", ref)
}

// RenderValue flattens a result into the short label form used in traces.
func RenderValue(v value.Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case value.Int:
		return fmt.Sprintf("int:%d", int64(x))
	case value.Bool:
		return fmt.Sprintf("bool:%t", bool(x))
	case value.Str:
		return "str:" + string(x)
	case value.TensorValue:
		return "tensor:" + x.Tensor.String()
	case value.ProxyValue:
		if rep, ok := x.Proxy.Rep().(*value.Remote); ok {
			return rep.Pointer.String()
		}
		return "proxy:" + string(x.Proxy.ID())
	case value.Tuple:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = RenderValue(e)
		}
		return "(" + strings.Join(parts, ",") + ")"
	default:
		return fmt.Sprintf("%T", v)
	}
}
