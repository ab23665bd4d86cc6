// Package native is the numeric collaborator whose operations the dispatch
// core intercepts. It is deliberately small: a dense integer tensor with a
// handful of elementwise and reduction operations, plus a few module-level
// functions. The dispatch core treats this package as opaque - it only sees
// the operation tables in table.go.
package native

import (
	"fmt"
	"strings"
)

// Tensor is a dense one-dimensional integer tensor.
//
// Integer-only by design: command payloads and stored objects are serialized
// to canonical JSON, which forbids floats. Operations that would naturally
// produce fractions (mean, normalize) are not part of this collaborator.
type Tensor struct {
	data []int64
}

// New creates a tensor from the given elements. The slice is copied.
func New(elems ...int64) *Tensor {
	data := make([]int64, len(elems))
	copy(data, elems)
	return &Tensor{data: data}
}

// Data returns a copy of the tensor's elements.
func (t *Tensor) Data() []int64 {
	out := make([]int64, len(t.data))
	copy(out, t.data)
	return out
}

// Len returns the number of elements.
func (t *Tensor) Len() int {
	return len(t.data)
}

// At returns the element at index i.
func (t *Tensor) At(i int) int64 {
	return t.data[i]
}

// Equal reports elementwise equality. It is on the exclusion list and is
// never intercepted - equality semantics must not change under proxying.
func (t *Tensor) Equal(o *Tensor) bool {
	if len(t.data) != len(o.data) {
		return false
	}
	for i, v := range t.data {
		if v != o.data[i] {
			return false
		}
	}
	return true
}

// String renders the tensor for logs and CLI output.
func (t *Tensor) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range t.data {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%d", v)
	}
	b.WriteByte(']')
	return b.String()
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return New(t.data...)
}

// Add returns the elementwise sum of t and o.
// Tensors must have the same length.
func (t *Tensor) Add(o *Tensor) (*Tensor, error) {
	return t.zip(o, "add", func(a, b int64) int64 { return a + b })
}

// AddScalar returns t with s added to every element.
func (t *Tensor) AddScalar(s int64) *Tensor {
	return t.mapElems(func(a int64) int64 { return a + s })
}

// Sub returns the elementwise difference of t and o.
func (t *Tensor) Sub(o *Tensor) (*Tensor, error) {
	return t.zip(o, "sub", func(a, b int64) int64 { return a - b })
}

// Mul returns the elementwise product of t and o.
func (t *Tensor) Mul(o *Tensor) (*Tensor, error) {
	return t.zip(o, "mul", func(a, b int64) int64 { return a * b })
}

// Neg returns t with every element negated.
func (t *Tensor) Neg() *Tensor {
	return t.mapElems(func(a int64) int64 { return -a })
}

// Abs returns t with every element replaced by its absolute value.
func (t *Tensor) Abs() *Tensor {
	return t.mapElems(func(a int64) int64 {
		if a < 0 {
			return -a
		}
		return a
	})
}

// Scale returns t with every element multiplied by s.
func (t *Tensor) Scale(s int64) *Tensor {
	return t.mapElems(func(a int64) int64 { return a * s })
}

// Sum returns the sum of all elements. The sum of an empty tensor is 0.
func (t *Tensor) Sum() int64 {
	var acc int64
	for _, v := range t.data {
		acc += v
	}
	return acc
}

// Dot returns the inner product of t and o.
func (t *Tensor) Dot(o *Tensor) (int64, error) {
	if len(t.data) != len(o.data) {
		return 0, &ShapeError{Op: "dot", Left: len(t.data), Right: len(o.data)}
	}
	var acc int64
	for i, v := range t.data {
		acc += v * o.data[i]
	}
	return acc, nil
}

// MinMax returns the smallest and largest elements.
// Errors on an empty tensor.
func (t *Tensor) MinMax() (int64, int64, error) {
	if len(t.data) == 0 {
		return 0, 0, fmt.Errorf("minmax: empty tensor")
	}
	lo, hi := t.data[0], t.data[0]
	for _, v := range t.data[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, nil
}

// ShapeError reports an elementwise operation over mismatched lengths.
type ShapeError struct {
	Op    string
	Left  int
	Right int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: tensor lengths differ (%d vs %d)", e.Op, e.Left, e.Right)
}

func (t *Tensor) zip(o *Tensor, op string, f func(a, b int64) int64) (*Tensor, error) {
	if len(t.data) != len(o.data) {
		return nil, &ShapeError{Op: op, Left: len(t.data), Right: len(o.data)}
	}
	out := make([]int64, len(t.data))
	for i, v := range t.data {
		out[i] = f(v, o.data[i])
	}
	return &Tensor{data: out}, nil
}

func (t *Tensor) mapElems(f func(a int64) int64) *Tensor {
	out := make([]int64, len(t.data))
	for i, v := range t.data {
		out[i] = f(v)
	}
	return &Tensor{data: out}
}
