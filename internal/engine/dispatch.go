package engine

import (
	"context"
	"fmt"

	"github.com/tethergrid/tether/internal/native"
	"github.com/tethergrid/tether/internal/value"
)

// Invoke dispatches a named operation against a receiver. The receiver is
// either a bare tensor value (escape hatch: the saved original runs
// directly) or a proxy, in which case dispatch pattern-matches on the
// outermost representation: Native executes locally, Remote forwards a
// Command, Decorated observes and delegates inward. Each dispatch unwraps
// exactly one level.
func (h *Hook) Invoke(ctx context.Context, recv value.Value, op string, args ...value.Value) (value.Value, error) {
	switch r := recv.(type) {
	case value.TensorValue:
		return h.invokeSavedOriginal(r.Tensor, op, args)
	case value.ProxyValue:
		p := r.Proxy
		switch rep := p.Rep().(type) {
		case *value.Native:
			if !p.IsWrapper() {
				// A bare native value observed through the proxy type, not a
				// genuine indirection node.
				return h.invokeSavedOriginal(rep.Tensor, op, args)
			}
			return h.invokeLocal(p, rep, op, args)
		case *value.Remote:
			return h.invokeRemote(ctx, p, rep, op, args)
		case *value.Decorated:
			return h.invokeDecorated(ctx, p, rep, op, args)
		default:
			return nil, &DispatchError{
				Code:    ErrCodeBadReceiver,
				Op:      op,
				Message: fmt.Sprintf("unknown representation %T", p.Rep()),
			}
		}
	default:
		return nil, &DispatchError{
			Code:    ErrCodeBadReceiver,
			Op:      op,
			Message: fmt.Sprintf("receiver type %T is not dispatchable", recv),
		}
	}
}

// invokeSavedOriginal runs the previously saved native operation directly.
// This is the escape hatch that stops recursion once hooking has happened:
// no unwrapping of the receiver, no rehydration of results.
func (h *Hook) invokeSavedOriginal(t *native.Tensor, op string, args []value.Value) (value.Value, error) {
	method, err := h.original(op)
	if err != nil {
		return nil, err
	}
	operands, err := unwrapOperands(op, args)
	if err != nil {
		return nil, err
	}
	results, err := method(t, operands...)
	if err != nil {
		return nil, err
	}
	return rawResults(op, results)
}

// invokeLocal strips one level of indirection from receiver and arguments,
// runs the saved original, and rehydrates the results into proxies of the
// receiver's outward shape.
func (h *Hook) invokeLocal(p *value.Proxy, rep *value.Native, op string, args []value.Value) (value.Value, error) {
	method, err := h.original(op)
	if err != nil {
		return nil, err
	}
	operands, err := unwrapOperands(op, args)
	if err != nil {
		return nil, err
	}
	results, err := method(rep.Tensor, operands...)
	if err != nil {
		// The underlying operation's own failure, surfaced untouched.
		return nil, err
	}
	return h.rehydrate(op, p, results)
}

// original resolves the saved native method for op, distinguishing "not
// eligible" from "never installed".
func (h *Hook) original(op string) (native.Method, error) {
	table, err := h.table(native.TensorType, op)
	if err != nil {
		return nil, err
	}
	method, ok := table.originals[op]
	if !ok {
		if h.registry.Excluded(op) {
			return nil, notEligible(op, native.TensorType)
		}
		return nil, opNotFound(op, native.TensorType)
	}
	return method, nil
}

// unwrapOperands strips exactly one level of indirection from each
// argument. Callees expect native values, never nested indirection.
func unwrapOperands(op string, args []value.Value) ([]native.Operand, error) {
	operands := make([]native.Operand, len(args))
	for i, a := range args {
		operand, err := unwrapOperand(a)
		if err != nil {
			return nil, &DispatchError{
				Code:    ErrCodeBadOperand,
				Op:      op,
				Message: fmt.Sprintf("argument %d: %v", i, err),
			}
		}
		operands[i] = operand
	}
	return operands, nil
}

func unwrapOperand(v value.Value) (native.Operand, error) {
	switch val := v.(type) {
	case value.Int:
		return int64(val), nil
	case value.Bool:
		return bool(val), nil
	case value.Str:
		return string(val), nil
	case value.TensorValue:
		return val.Tensor, nil
	case value.ProxyValue:
		// One unwrap level: only a native representation yields an operand.
		switch rep := val.Proxy.Rep().(type) {
		case *value.Native:
			return rep.Tensor, nil
		case *value.Remote:
			return nil, fmt.Errorf("remote operand %s cannot be used in local dispatch", rep.Pointer)
		case *value.Decorated:
			return nil, fmt.Errorf("decorated operand is still wrapped after one unwrap")
		default:
			return nil, fmt.Errorf("unknown representation %T", val.Proxy.Rep())
		}
	default:
		return nil, fmt.Errorf("value type %T has no native operand", v)
	}
}

// rehydrate wraps raw native results back into the receiver's outward
// shape: tensors become proxies owned like the receiver, scalars pass
// through. Handles no-result, single-result, and tuple-result operations
// uniformly.
func (h *Hook) rehydrate(op string, recv *value.Proxy, results []native.Operand) (value.Value, error) {
	out := make([]value.Value, len(results))
	for i, r := range results {
		switch res := r.(type) {
		case *native.Tensor:
			out[i] = value.ProxyValue{Proxy: value.NewNativeProxy(
				res,
				value.WithOwner(recv.Owner()),
				value.WithGenerator(h.gen),
			)}
		default:
			v, err := value.FromOperand(r)
			if err != nil {
				return nil, &DispatchError{
					Code:    ErrCodeRehydrateMismatch,
					Op:      op,
					Message: fmt.Sprintf("result %d: %v", i, err),
				}
			}
			out[i] = v
		}
	}
	return collapse(out), nil
}

// rawResults converts native results to values without proxy wrapping, for
// the bare-receiver escape hatch.
func rawResults(op string, results []native.Operand) (value.Value, error) {
	out := make([]value.Value, len(results))
	for i, r := range results {
		v, err := value.FromOperand(r)
		if err != nil {
			return nil, &DispatchError{
				Code:    ErrCodeRehydrateMismatch,
				Op:      op,
				Message: fmt.Sprintf("result %d: %v", i, err),
			}
		}
		out[i] = v
	}
	return collapse(out), nil
}

// collapse maps zero results to nil, one result to itself, and several to a
// tuple.
func collapse(vals []value.Value) value.Value {
	switch len(vals) {
	case 0:
		return nil
	case 1:
		return vals[0]
	default:
		return value.Tuple(vals)
	}
}
