// Package value holds the data model of the dispatch core: the sealed
// argument/result union, the Proxy and its closed set of representations,
// the Pointer routing reference, and the Command wire shape. Serialization
// here is canonical JSON so command digests and stored objects are stable.
package value

import (
	"fmt"

	"github.com/tethergrid/tether/internal/native"
)

// Value is a sealed interface over everything a Command may carry as an
// argument or a dispatch may produce as a result. Only Int, Bool, Str,
// TensorValue, ProxyValue, and Tuple implement it.
//
// No float variant: payloads are serialized to canonical JSON, which
// forbids floats, and the collaborator is integer-only.
type Value interface {
	value() // sealed
}

// Int is a scalar integer value.
type Int int64

func (Int) value() {}

// Bool is a boolean value.
type Bool bool

func (Bool) value() {}

// Str is a string value.
type Str string

func (Str) value() {}

// TensorValue carries a bare native tensor, outside any proxy indirection.
type TensorValue struct {
	Tensor *native.Tensor
}

func (TensorValue) value() {}

// ProxyValue carries a proxy indirection node.
type ProxyValue struct {
	Proxy *Proxy
}

func (ProxyValue) value() {}

// Tuple is an ordered sequence of values, used for multi-result operations.
type Tuple []Value

func (Tuple) value() {}

// FromOperand converts a collaborator operand into a Value.
// Returns an error for operand kinds the data model does not carry.
func FromOperand(op native.Operand) (Value, error) {
	switch v := op.(type) {
	case *native.Tensor:
		return TensorValue{Tensor: v}, nil
	case int64:
		return Int(v), nil
	case bool:
		return Bool(v), nil
	case string:
		return Str(v), nil
	default:
		return nil, fmt.Errorf("operand type %T has no value representation", op)
	}
}
