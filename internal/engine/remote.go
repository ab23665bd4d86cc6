package engine

import (
	"context"

	"github.com/tethergrid/tether/internal/native"
	"github.com/tethergrid/tether/internal/value"
)

// invokeRemote forwards the operation to the worker that owns the real
// data. Pointer receivers are forwarding-only: the operation never executes
// locally, and the response is returned verbatim because the remote side
// decides whether to answer with data or a further pointer.
func (h *Hook) invokeRemote(ctx context.Context, p *value.Proxy, rep *value.Remote, op string, args []value.Value) (value.Value, error) {
	table, err := h.table(native.TensorType, op)
	if err != nil {
		return nil, err
	}
	if !table.eligible.Has(op) {
		if h.registry.Excluded(op) {
			return nil, notEligible(op, native.TensorType)
		}
		return nil, opNotFound(op, native.TensorType)
	}
	if h.sender == nil {
		return nil, &DispatchError{
			Code:    ErrCodeRemoteFailed,
			Op:      op,
			Message: "no command sender configured",
		}
	}

	// Arguments travel unmodified; unwrapping for the wire is the worker's
	// responsibility.
	cmd := value.Command{Op: op, Receiver: p, Args: args}

	h.logger.Debug("forwarding command",
		"op", op,
		"location", rep.Pointer.Location,
		"object", rep.Pointer.IDAtLocation,
	)

	// Failures inside SendCommand propagate unchanged: no retry, no
	// partial recovery, no wrapping.
	return h.sender.SendCommand(ctx, rep.Pointer.Location, cmd)
}
