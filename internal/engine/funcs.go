package engine

import (
	"context"
	"fmt"

	"github.com/tethergrid/tether/internal/native"
	"github.com/tethergrid/tether/internal/value"
)

// Call dispatches a module-level function by its qualified name. The
// arguments are inspected for pointers: if any argument is a remote proxy,
// the whole call is forwarded as a receiverless Command to that pointer's
// location; otherwise the saved native function runs locally and its
// results are rehydrated into fresh local proxies.
func (h *Hook) Call(ctx context.Context, qualified string, args ...value.Value) (value.Value, error) {
	if h.funcs == nil {
		return nil, opNotFound(qualified, "module")
	}
	fn, ok := h.funcs.originals[qualified]
	if !ok {
		if h.registry.Excluded(qualified) {
			return nil, notEligible(qualified, "module")
		}
		return nil, opNotFound(qualified, "module")
	}

	if ptr := firstPointer(args); ptr != nil {
		if h.sender == nil {
			return nil, &DispatchError{
				Code:    ErrCodeRemoteFailed,
				Op:      qualified,
				Message: "no command sender configured",
			}
		}
		cmd := value.Command{Op: qualified, Receiver: nil, Args: args}
		h.logger.Debug("forwarding function command",
			"op", qualified, "location", ptr.Location)
		return h.sender.SendCommand(ctx, ptr.Location, cmd)
	}

	operands, err := unwrapOperands(qualified, args)
	if err != nil {
		return nil, err
	}
	results, err := fn(operands...)
	if err != nil {
		return nil, err
	}
	return h.rehydrateLocal(qualified, results)
}

// firstPointer scans arguments one level deep for a remote proxy and
// returns its pointer. Routing resolution for free functions: the call goes
// to whichever location appears first among the arguments.
func firstPointer(args []value.Value) *value.Pointer {
	for _, a := range args {
		pv, ok := a.(value.ProxyValue)
		if !ok {
			continue
		}
		if ptr := pv.Proxy.Pointer(); ptr != nil {
			return ptr
		}
	}
	return nil
}

// rehydrateLocal wraps function results into fresh proxies owned by the
// local worker; free functions have no receiver to inherit a shape from.
func (h *Hook) rehydrateLocal(op string, results []native.Operand) (value.Value, error) {
	out := make([]value.Value, len(results))
	for i, r := range results {
		switch res := r.(type) {
		case *native.Tensor:
			out[i] = value.ProxyValue{Proxy: value.NewNativeProxy(
				res,
				value.WithOwner(h.localID),
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
