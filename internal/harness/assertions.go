package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/tethergrid/tether/internal/value"
)

// AssertionError reports one failed scenario assertion with enough context
// to debug it from the test log alone.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "assertion failed: %s\n", e.Type)
	fmt.Fprintf(&b, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&b, "  actual:   %s\n", e.Actual)
	b.WriteString("\ntrace:\n")
	for _, ev := range e.Trace {
		if ev.Error != "" {
			fmt.Fprintf(&b, "  [%d] %s -> error: %s\n", ev.Seq, ev.Op, ev.Error)
			continue
		}
		fmt.Fprintf(&b, "  [%d] %s -> %s\n", ev.Seq, ev.Op, ev.Result)
	}
	return b.String()
}

func (r *run) assert(ctx context.Context, a Assertion) error {
	switch a.Type {
	case AssertResultData:
		return r.assertResultData(ctx, a)
	case AssertResultScalar:
		return r.assertResultScalar(a)
	case AssertLocation:
		return r.assertLocation(a)
	case AssertObjectCount:
		return r.assertObjectCount(a)
	case AssertCommandCount:
		return r.assertCommandCount(ctx, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// resolveTensor fetches the tensor behind a saved result, following a
// pointer to its worker when needed.
func (r *run) resolveTensor(ctx context.Context, ref string) ([]int64, error) {
	v := r.result.Saved[ref]
	switch x := v.(type) {
	case value.TensorValue:
		return x.Tensor.Data(), nil
	case value.ProxyValue:
		switch rep := x.Proxy.Rep().(type) {
		case *value.Native:
			return rep.Tensor.Data(), nil
		case *value.Remote:
			w, ok := r.result.Workers[string(rep.Pointer.Location)]
			if !ok {
				return nil, fmt.Errorf("result %q points at unknown worker %s", ref, rep.Pointer.Location)
			}
			t, err := w.GetObject(ctx, rep.Pointer.IDAtLocation)
			if err != nil {
				return nil, err
			}
			return t.Data(), nil
		default:
			return nil, fmt.Errorf("result %q has no tensor behind it", ref)
		}
	default:
		return nil, fmt.Errorf("result %q is %T, not a tensor", ref, v)
	}
}

func (r *run) assertResultData(ctx context.Context, a Assertion) error {
	data, err := r.resolveTensor(ctx, a.Ref)
	if err != nil {
		return err
	}
	if !slices.Equal(data, a.Data) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("$%s = %v", a.Ref, a.Data),
			Actual:   fmt.Sprintf("$%s = %v", a.Ref, data),
			Trace:    r.result.Trace,
		}
	}
	return nil
}

func (r *run) assertResultScalar(a Assertion) error {
	v := r.result.Saved[a.Ref]
	n, ok := v.(value.Int)
	if !ok || int64(n) != a.Scalar {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("$%s = %d", a.Ref, a.Scalar),
			Actual:   fmt.Sprintf("$%s = %s", a.Ref, RenderValue(v)),
			Trace:    r.result.Trace,
		}
	}
	return nil
}

func (r *run) assertLocation(a Assertion) error {
	v := r.result.Saved[a.Ref]
	pv, ok := v.(value.ProxyValue)
	if ok {
		if rep, ok := pv.Proxy.Rep().(*value.Remote); ok {
			if rep.Pointer.Location == value.WorkerID(a.Worker) {
				return nil
			}
		}
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("$%s located at %s", a.Ref, a.Worker),
		Actual:   fmt.Sprintf("$%s = %s", a.Ref, RenderValue(v)),
		Trace:    r.result.Trace,
	}
}

func (r *run) assertObjectCount(a Assertion) error {
	w := r.result.Workers[a.Worker]
	got := len(w.ObjectIDs())
	if got != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s holds %d objects", a.Worker, a.Count),
			Actual:   fmt.Sprintf("%s holds %d objects", a.Worker, got),
			Trace:    r.result.Trace,
		}
	}
	return nil
}

func (r *run) assertCommandCount(ctx context.Context, a Assertion) error {
	st := r.result.Stores[a.Worker]
	cmds, err := st.Commands(ctx, value.WorkerID(a.Worker))
	if err != nil {
		return err
	}
	if len(cmds) != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s received %d commands", a.Worker, a.Count),
			Actual:   fmt.Sprintf("%s received %d commands", a.Worker, len(cmds)),
			Trace:    r.result.Trace,
		}
	}
	return nil
}
