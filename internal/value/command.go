package value

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/tethergrid/tether/internal/native"
)

// Command describes one operation invocation bound for a worker. Commands
// are values: constructed fresh per call, never mutated or retained by the
// core. The shape is the only cross-boundary format the core defines.
//
// Named options are deliberately not part of the shape; operations take
// positional arguments only.
type Command struct {
	// Op is the operation name; qualified ("tensor.cat") for free functions.
	Op string

	// Receiver is the proxy the operation was invoked on, nil for free
	// functions.
	Receiver *Proxy

	// Args is the ordered argument sequence, each possibly a proxy.
	Args []Value
}

// Domain prefixes for content-addressed digests. The version suffix leaves
// room for algorithm migration.
const (
	DomainCommand = "tether/command/v1"
	DomainObject  = "tether/object/v1"
)

// Digest computes the content-addressed digest of the command over its
// canonical encoding. Stable across processes given the same operation,
// receiver identity, and arguments.
func (c Command) Digest() (string, error) {
	enc, err := c.canonical()
	if err != nil {
		return "", fmt.Errorf("command digest: %w", err)
	}
	b, err := MarshalCanonical(enc)
	if err != nil {
		return "", fmt.Errorf("command digest: %w", err)
	}
	return hashWithDomain(DomainCommand, b), nil
}

// MarshalWire returns the canonical JSON encoding of the command, the form
// recorded in worker command logs.
func (c Command) MarshalWire() ([]byte, error) {
	enc, err := c.canonical()
	if err != nil {
		return nil, err
	}
	return MarshalCanonical(enc)
}

func (c Command) canonical() (map[string]any, error) {
	args := make([]any, len(c.Args))
	for i, a := range c.Args {
		enc, err := canonicalValue(a)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
		args[i] = enc
	}
	obj := map[string]any{
		"op":   c.Op,
		"args": args,
	}
	if c.Receiver != nil {
		recv, err := canonicalProxy(c.Receiver)
		if err != nil {
			return nil, fmt.Errorf("receiver: %w", err)
		}
		obj["receiver"] = recv
	}
	return obj, nil
}

func canonicalValue(v Value) (any, error) {
	switch val := v.(type) {
	case Int:
		return map[string]any{"t": "int", "v": int64(val)}, nil
	case Bool:
		return map[string]any{"t": "bool", "v": bool(val)}, nil
	case Str:
		return map[string]any{"t": "str", "v": string(val)}, nil
	case TensorValue:
		return map[string]any{"t": "tensor", "v": tensorElems(val.Tensor)}, nil
	case ProxyValue:
		p, err := canonicalProxy(val.Proxy)
		if err != nil {
			return nil, err
		}
		return map[string]any{"t": "proxy", "v": p}, nil
	case Tuple:
		elems := make([]any, len(val))
		for i, e := range val {
			enc, err := canonicalValue(e)
			if err != nil {
				return nil, fmt.Errorf("tuple[%d]: %w", i, err)
			}
			elems[i] = enc
		}
		return map[string]any{"t": "tuple", "v": elems}, nil
	case nil:
		return nil, fmt.Errorf("nil value")
	default:
		return nil, fmt.Errorf("unknown value type %T", v)
	}
}

func canonicalProxy(p *Proxy) (map[string]any, error) {
	obj := map[string]any{
		"id":    string(p.ID()),
		"owner": string(p.Owner()),
	}
	switch rep := p.Rep().(type) {
	case *Native:
		obj["rep"] = map[string]any{
			"kind": "native",
			"data": tensorElems(rep.Tensor),
		}
	case *Remote:
		obj["rep"] = map[string]any{
			"kind":     "remote",
			"location": string(rep.Pointer.Location),
			"object":   string(rep.Pointer.IDAtLocation),
		}
	case *Decorated:
		inner, err := canonicalProxy(rep.Inner)
		if err != nil {
			return nil, err
		}
		obj["rep"] = map[string]any{
			"kind":  "decorated",
			"layer": rep.Layer,
			"inner": inner,
		}
	default:
		return nil, fmt.Errorf("unknown representation type %T", p.Rep())
	}
	return obj, nil
}

func tensorElems(t *native.Tensor) []any {
	data := t.Data()
	elems := make([]any, len(data))
	for i, n := range data {
		elems[i] = n
	}
	return elems
}

// EncodeTensor returns the canonical payload stored in worker object tables.
func EncodeTensor(t *native.Tensor) ([]byte, error) {
	return MarshalCanonical(t.Data())
}

// DecodeTensor rebuilds a tensor from a stored payload.
func DecodeTensor(payload []byte) (*native.Tensor, error) {
	var elems []int64
	if err := json.Unmarshal(payload, &elems); err != nil {
		return nil, fmt.Errorf("decode tensor payload: %w", err)
	}
	return native.New(elems...), nil
}

// ObjectDigest computes a content-addressed digest for a stored tensor.
func ObjectDigest(t *native.Tensor) (string, error) {
	b, err := EncodeTensor(t)
	if err != nil {
		return "", err
	}
	return hashWithDomain(DomainObject, b), nil
}

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data); the null byte prevents boundary
// ambiguity between domain and data.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
