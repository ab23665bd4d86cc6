package engine

import (
	"context"

	"github.com/tethergrid/tether/internal/value"
)

// invokeDecorated applies the same substitution pattern as the local path
// to an instrumentation layer: observe the call, strip one level from
// receiver and arguments, delegate to the inner representation's dispatch,
// and rehydrate with the decorating layer's own shape.
func (h *Hook) invokeDecorated(ctx context.Context, p *value.Proxy, rep *value.Decorated, op string, args []value.Value) (value.Value, error) {
	if h.observer != nil {
		h.observer.Observe(Observation{
			Op:       op,
			Layer:    rep.Layer,
			Receiver: p,
			Args:     args,
		})
	}

	inner := make([]value.Value, len(args))
	for i, a := range args {
		inner[i] = undecorate(a)
	}

	res, err := h.Invoke(ctx, value.ProxyValue{Proxy: rep.Inner}, op, inner...)
	if err != nil {
		return nil, err
	}
	return h.redecorate(rep.Layer, res), nil
}

// undecorate strips one decorating level from an argument, leaving
// everything else untouched.
func undecorate(v value.Value) value.Value {
	pv, ok := v.(value.ProxyValue)
	if !ok {
		return v
	}
	if dec, ok := pv.Proxy.Rep().(*value.Decorated); ok {
		return value.ProxyValue{Proxy: dec.Inner}
	}
	return v
}

// redecorate rewraps proxy results behind the decorating layer so the
// outward type of the dispatch result matches the receiver's.
func (h *Hook) redecorate(layer string, res value.Value) value.Value {
	switch val := res.(type) {
	case value.ProxyValue:
		return value.ProxyValue{Proxy: h.Decorate(val.Proxy, layer)}
	case value.Tuple:
		out := make(value.Tuple, len(val))
		for i, e := range val {
			out[i] = h.redecorate(layer, e)
		}
		return out
	default:
		return res
	}
}
