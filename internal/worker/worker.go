// Package worker implements the collaborator side of the dispatch core:
// the Worker contract, a router that resolves locations to workers, and an
// in-process VirtualWorker owning an object table and executing Commands
// through the same dispatch engine that produced them.
package worker

import (
	"context"
	"fmt"

	"github.com/tethergrid/tether/internal/native"
	"github.com/tethergrid/tether/internal/value"
)

// Worker owns real objects and executes Commands on their behalf.
type Worker interface {
	ID() value.WorkerID
	Execute(ctx context.Context, cmd value.Command) (value.Value, error)
}

// ObjectTable is the register/get/delete abstraction over a worker's
// objects. The dispatch core references it only indirectly through Pointer
// fields.
type ObjectTable interface {
	RegisterObject(ctx context.Context, id value.ObjectID, t *native.Tensor) error
	GetObject(ctx context.Context, id value.ObjectID) (*native.Tensor, error)
	DeregisterObject(ctx context.Context, id value.ObjectID) error
}

// Executor runs operations for a worker. Satisfied by the dispatch engine's
// Hook: a worker receiving a Command feeds it back through the same
// interception machinery, now against local data.
type Executor interface {
	Invoke(ctx context.Context, recv value.Value, op string, args ...value.Value) (value.Value, error)
	Call(ctx context.Context, qualified string, args ...value.Value) (value.Value, error)
}

// ExecError reports a command a worker could not execute.
type ExecError struct {
	Worker  value.WorkerID
	Op      string
	Message string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("worker %s: cannot execute %s: %s", e.Worker, e.Op, e.Message)
}
