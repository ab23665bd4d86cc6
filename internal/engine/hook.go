// Package engine implements the interception core: the Hook initialization
// context, the per-representation dispatchers, and rehydration. A caller
// invokes an operation name against a proxy; the engine classifies the
// proxy's outermost representation, executes locally or forwards a Command
// to the owning worker, and rewraps the result so the caller sees the same
// outward shape it started with.
package engine

import (
	"context"
	"log/slog"

	"github.com/tethergrid/tether/internal/caps"
	"github.com/tethergrid/tether/internal/native"
	"github.com/tethergrid/tether/internal/value"
)

// CommandSender routes a Command to the worker at a location and returns
// its response. Implemented by the worker router; the engine never talks to
// a transport directly.
//
// SendCommand is blocking; the engine places no timeout or retry policy
// around it.
type CommandSender interface {
	SendCommand(ctx context.Context, location value.WorkerID, cmd value.Command) (value.Value, error)
}

// Observation describes one call passing through a decorating layer.
type Observation struct {
	Op       string
	Layer    string
	Receiver *value.Proxy
	Args     []value.Value
}

// Observer receives observations from decorated dispatch. Implemented by
// the audit recorder.
type Observer interface {
	Observe(obs Observation)
}

// Registrar registers newly constructed proxies with a worker's object
// table. Only consulted when auto-registration is enabled.
type Registrar interface {
	RegisterObject(ctx context.Context, id value.ObjectID, t *native.Tensor) error
}

// Hook is the explicit initialization context for interception: it holds
// the capability registry, the routing sender, the identifier generator,
// and the installed dispatch tables. There is no process-global state; call
// sites that need routing carry the Hook.
//
// Dispatch tables are write-once: built by Install during initialization
// and never mutated afterwards, so the synchronous call/return model needs
// no locking discipline.
type Hook struct {
	registry *caps.Registry
	sender   CommandSender
	observer Observer
	gen      value.Generator
	logger   *slog.Logger
	localID  value.WorkerID

	// Auto-registration of constructed proxies is a policy, not inferred
	// behavior: off unless a registrar is supplied.
	registrar Registrar

	tables map[string]*dispatchTable
	funcs  *funcTable
}

// dispatchTable holds the installed state for one native type: the eligible
// set and the saved originals keyed by operation name.
type dispatchTable struct {
	eligible  caps.OpSet
	originals map[string]native.Method
}

// funcTable is the installed state for module-level functions.
type funcTable struct {
	eligible  caps.OpSet
	originals map[string]native.Function
}

// Option configures a Hook.
type Option func(*Hook)

// WithSender sets the command router used by remote dispatch.
func WithSender(sender CommandSender) Option {
	return func(h *Hook) { h.sender = sender }
}

// WithObserver sets the observer notified on decorated dispatch.
func WithObserver(obs Observer) Option {
	return func(h *Hook) { h.observer = obs }
}

// WithGenerator sets the identifier generator used for proxies the hook
// constructs. Defaults to UUIDv7.
func WithGenerator(gen value.Generator) Option {
	return func(h *Hook) { h.gen = gen }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hook) { h.logger = logger }
}

// WithLocalWorker records the identity of the local worker; proxies the
// hook constructs carry it as their owner.
func WithLocalWorker(id value.WorkerID) Option {
	return func(h *Hook) { h.localID = id }
}

// WithAutoRegister enables registering newly wrapped values with the given
// registrar.
func WithAutoRegister(r Registrar) Option {
	return func(h *Hook) { h.registrar = r }
}

// New creates a Hook over a capability registry. Nothing is intercepted
// until Install/InstallFunctions run.
func New(registry *caps.Registry, opts ...Option) *Hook {
	h := &Hook{
		registry: registry,
		gen:      value.UUIDv7Generator{},
		logger:   slog.Default(),
		tables:   make(map[string]*dispatchTable),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Install builds the dispatch table for a native type: computes the
// eligible-operation set and saves the native originals under it.
//
// Install is idempotent. Installing a type that is already hooked logs a
// warning and returns without modification; it is not an error.
func (h *Hook) Install(typeName string) error {
	if _, ok := h.tables[typeName]; ok {
		h.logger.Warn("type already hooked, skipping install", "type", typeName)
		return nil
	}

	methods := methodsFor(typeName)
	eligible := h.registry.Operations(typeName, caps.SurfaceFunc(func(name string) bool {
		_, ok := methods[name]
		return ok
	}))

	originals := make(map[string]native.Method, len(eligible))
	for name := range eligible {
		originals[name] = methods[name]
	}

	h.tables[typeName] = &dispatchTable{eligible: eligible, originals: originals}
	h.logger.Info("hooked native type", "type", typeName, "operations", len(originals))
	return nil
}

// InstallFunctions builds the dispatch table for module-level functions,
// with the same idempotency as Install.
func (h *Hook) InstallFunctions() error {
	if h.funcs != nil {
		h.logger.Warn("functions already hooked, skipping install")
		return nil
	}

	fns := native.Functions()
	eligible := h.registry.Functions(caps.SurfaceFunc(func(name string) bool {
		_, ok := fns[name]
		return ok
	}))

	originals := make(map[string]native.Function, len(eligible))
	for name := range eligible {
		originals[name] = fns[name]
	}

	h.funcs = &funcTable{eligible: eligible, originals: originals}
	h.logger.Info("hooked module functions", "functions", len(originals))
	return nil
}

// InstalledOperations returns the number of operations installed for a
// type, 0 when the type is not hooked.
func (h *Hook) InstalledOperations(typeName string) int {
	t, ok := h.tables[typeName]
	if !ok {
		return 0
	}
	return len(t.originals)
}

// Eligible returns the eligible-operation set installed for a type, nil
// when the type is not hooked.
func (h *Hook) Eligible(typeName string) caps.OpSet {
	t, ok := h.tables[typeName]
	if !ok {
		return nil
	}
	return t.eligible
}

// LocalWorker returns the identity of the local worker.
func (h *Hook) LocalWorker() value.WorkerID {
	return h.localID
}

// Wrap is the proxy construction hook: it wraps a bare tensor in a proxy
// carrying identity and ownership metadata. When auto-registration is
// enabled the new object is registered with the local worker's table.
func (h *Hook) Wrap(ctx context.Context, t *native.Tensor) (*value.Proxy, error) {
	p := value.NewNativeProxy(t, value.WithOwner(h.localID), value.WithGenerator(h.gen))
	if h.registrar != nil {
		if err := h.registrar.RegisterObject(ctx, p.ID(), t); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Decorate wraps a proxy behind a named instrumentation layer. Operations
// invoked on the result behave identically, with each call observed.
func (h *Hook) Decorate(p *value.Proxy, layer string) *value.Proxy {
	return value.NewProxy(
		&value.Decorated{Inner: p, Layer: layer},
		value.WithOwner(h.localID),
		value.WithGenerator(h.gen),
	)
}

// table returns the installed table for a type, or an OP_NOT_FOUND error
// mentioning the operation being dispatched.
func (h *Hook) table(typeName, op string) (*dispatchTable, error) {
	t, ok := h.tables[typeName]
	if !ok {
		return nil, opNotFound(op, typeName)
	}
	return t, nil
}

func methodsFor(typeName string) map[string]native.Method {
	// Single collaborator type today. Additional types get their tables
	// resolved here.
	if typeName == native.TensorType {
		return native.Methods()
	}
	return nil
}
