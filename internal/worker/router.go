package worker

import (
	"context"
	"fmt"
	"sort"

	"github.com/tethergrid/tether/internal/value"
)

// RouteError reports a location no registered worker answers to.
type RouteError struct {
	Location value.WorkerID
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("no worker registered for location %s", e.Location)
}

// Router resolves a Command's destination to a registered Worker. It is the
// CommandSender the dispatch engine forwards remote invocations through.
// Registration happens up front; routing itself takes no lock because the
// execution model is single threaded.
type Router struct {
	workers map[value.WorkerID]Worker
}

func NewRouter() *Router {
	return &Router{workers: make(map[value.WorkerID]Worker)}
}

// Register adds w under its own ID, replacing any previous worker there.
func (r *Router) Register(w Worker) {
	r.workers[w.ID()] = w
}

// Lookup returns the worker at location, or nil.
func (r *Router) Lookup(location value.WorkerID) Worker {
	return r.workers[location]
}

// Locations returns the registered worker IDs in sorted order.
func (r *Router) Locations() []value.WorkerID {
	out := make([]value.WorkerID, 0, len(r.workers))
	for id := range r.workers {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SendCommand delivers cmd to the worker at location and returns its
// response. Execution failures come back from the worker unchanged.
func (r *Router) SendCommand(ctx context.Context, location value.WorkerID, cmd value.Command) (value.Value, error) {
	w, ok := r.workers[location]
	if !ok {
		return nil, &RouteError{Location: location}
	}
	return w.Execute(ctx, cmd)
}
