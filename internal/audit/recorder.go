package audit

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tethergrid/tether/internal/engine"
	"github.com/tethergrid/tether/internal/value"
)

// Event is one recorded observation: an operation seen by a decorating
// layer, stamped with its position in the trace.
type Event struct {
	Seq      int64
	Op       string
	Layer    string
	Receiver value.ObjectID
	Args     []string
}

// Recorder collects events from decorated dispatch. It implements the
// dispatch engine's Observer.
type Recorder struct {
	clock *Clock

	mu     sync.Mutex
	events []Event
}

// NewRecorder creates a recorder with its own clock.
func NewRecorder() *Recorder {
	return &Recorder{clock: NewClock()}
}

// Observe stamps and stores one observation.
func (r *Recorder) Observe(obs engine.Observation) {
	ev := Event{
		Seq:   r.clock.Next(),
		Op:    obs.Op,
		Layer: obs.Layer,
		Args:  renderArgs(obs.Args),
	}
	if obs.Receiver != nil {
		ev.Receiver = obs.Receiver.ID()
	}
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of the recorded trace in sequence order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Reset drops the trace and rewinds the clock.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
	r.clock = NewClock()
}

// Snapshot serializes the trace as canonical JSON, one stable byte form
// per trace, suitable for golden-file comparison.
func (r *Recorder) Snapshot() ([]byte, error) {
	events := r.Events()
	out := make([]any, len(events))
	for i, ev := range events {
		m := map[string]any{
			"seq":   ev.Seq,
			"op":    ev.Op,
			"layer": ev.Layer,
			"args":  stringsToAny(ev.Args),
		}
		if ev.Receiver != "" {
			m["receiver"] = string(ev.Receiver)
		}
		out[i] = m
	}
	return value.MarshalCanonical(out)
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// renderArgs flattens argument values into short readable labels. Proxies
// render as their pointer or object ID so traces never embed remote data.
func renderArgs(args []value.Value) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = renderValue(a)
	}
	return out
}

func renderValue(v value.Value) string {
	switch x := v.(type) {
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
		for i, elem := range x {
			parts[i] = renderValue(elem)
		}
		return "(" + strings.Join(parts, ",") + ")"
	default:
		return fmt.Sprintf("%T", v)
	}
}
