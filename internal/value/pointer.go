package value

import (
	"fmt"

	"github.com/tethergrid/tether/internal/native"
)

// Pointer is a routing reference to an object that lives in another worker's
// object table. It carries no data: a weak reference with an address, not an
// owning handle. The remote worker reclaims the target independently of any
// local proxy's lifetime.
type Pointer struct {
	// Location is the worker that owns the real object.
	Location WorkerID

	// IDAtLocation keys the object in that worker's table.
	IDAtLocation ObjectID

	// Owner is the local worker used to route sends.
	Owner WorkerID
}

func (p *Pointer) String() string {
	return fmt.Sprintf("ptr:%s@%s", p.IDAtLocation, p.Location)
}

// NewRemoteProxy wraps a pointer in a proxy, the usual shape a caller holds
// for remote data.
func NewRemoteProxy(ptr *Pointer, opts ...ProxyOption) *Proxy {
	return NewProxy(&Remote{Pointer: ptr}, opts...)
}

// NewNativeProxy wraps a bare tensor in a proxy.
func NewNativeProxy(t *native.Tensor, opts ...ProxyOption) *Proxy {
	return NewProxy(&Native{Tensor: t}, opts...)
}
