package value

import (
	"github.com/tethergrid/tether/internal/native"
)

// WorkerID names a worker in the routing topology.
type WorkerID string

// ObjectID identifies an object within a worker's object table, and a proxy
// within the local process.
type ObjectID string

// Representation is the sealed set of things a Proxy can wrap.
// Only Native, Remote, and Decorated implement it. Dispatch pattern-matches
// on the concrete type of the outermost representation; a proxy's
// representation type never changes after construction.
type Representation interface {
	representation() // sealed
}

// Native wraps real local data.
type Native struct {
	Tensor *native.Tensor
}

func (*Native) representation() {}

// Remote wraps a routing reference to data owned by another worker.
type Remote struct {
	Pointer *Pointer
}

func (*Remote) representation() {}

// Decorated wraps another proxy behind an instrumentation layer. The layer
// holds no data; it exists so calls through it can be observed.
type Decorated struct {
	Inner *Proxy
	Layer string
}

func (*Decorated) representation() {}

// Proxy is the outward-facing value. It carries exactly one representation,
// lazily allocated identity, and a registry relation to the worker that
// manages it.
type Proxy struct {
	rep   Representation
	id    ObjectID
	gen   Generator
	owner WorkerID

	// isWrapper distinguishes a genuine indirection node from a bare native
	// value observed through the same type. Bare receivers always take the
	// saved-original escape hatch in dispatch.
	isWrapper bool
}

// ProxyOption configures proxy construction.
type ProxyOption func(*Proxy)

// WithID assigns an explicit identifier instead of lazy allocation.
func WithID(id ObjectID) ProxyOption {
	return func(p *Proxy) { p.id = id }
}

// WithOwner records the worker that manages this proxy.
func WithOwner(owner WorkerID) ProxyOption {
	return func(p *Proxy) { p.owner = owner }
}

// WithGenerator sets the identifier generator used for lazy allocation.
// Defaults to the process-wide UUID generator.
func WithGenerator(gen Generator) ProxyOption {
	return func(p *Proxy) { p.gen = gen }
}

// Bare marks the proxy as a bare native value observed through the proxy
// type rather than a genuine indirection node. Dispatch sends bare receivers
// straight to the saved original.
func Bare() ProxyOption {
	return func(p *Proxy) { p.isWrapper = false }
}

// NewProxy constructs a proxy over the given representation.
// The representation type is fixed for the proxy's lifetime.
func NewProxy(rep Representation, opts ...ProxyOption) *Proxy {
	p := &Proxy{rep: rep, gen: defaultGenerator, isWrapper: true}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Rep returns the proxy's representation.
func (p *Proxy) Rep() Representation {
	return p.rep
}

// ID returns the proxy's identifier, allocating it on first access.
// Once allocated the identifier is stable.
func (p *Proxy) ID() ObjectID {
	if p.id == "" {
		p.id = p.gen.Generate()
	}
	return p.id
}

// Owner returns the worker registered as managing this proxy.
// May be empty when the proxy is unregistered.
func (p *Proxy) Owner() WorkerID {
	return p.owner
}

// IsWrapper reports whether this proxy is a genuine indirection node.
func (p *Proxy) IsWrapper() bool {
	return p.isWrapper
}

// Pointer returns the routing reference when the representation is Remote,
// or nil otherwise.
func (p *Proxy) Pointer() *Pointer {
	if r, ok := p.rep.(*Remote); ok {
		return r.Pointer
	}
	return nil
}
