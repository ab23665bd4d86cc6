package native

import "fmt"

// TensorType is the type name the capability registry classifies under.
const TensorType = "tensor"

// Operand is a value the collaborator accepts or produces at the dispatch
// boundary: either *Tensor or int64. The interception layer unwraps its own
// proxy types down to operands before calling in, and rewraps operands on
// the way out.
type Operand any

// Method executes a named operation against a receiver tensor.
// It returns zero or more results; multi-result methods (minmax) exercise
// tuple rehydration in the dispatch layer.
type Method func(recv *Tensor, args ...Operand) ([]Operand, error)

// Function executes a module-level operation with no receiver.
type Function func(args ...Operand) ([]Operand, error)

// Methods returns the method table for the tensor type. This table is the
// introspection surface the capability registry resolves declared operation
// names against. The map is rebuilt on each call; callers treat it as
// read-only.
func Methods() map[string]Method {
	return map[string]Method{
		"add":   binaryOrScalar("add", (*Tensor).Add, (*Tensor).AddScalar),
		"sub":   binary("sub", (*Tensor).Sub),
		"mul":   binary("mul", (*Tensor).Mul),
		"neg":   unary(func(t *Tensor) *Tensor { return t.Neg() }),
		"abs":   unary(func(t *Tensor) *Tensor { return t.Abs() }),
		"clone": unary(func(t *Tensor) *Tensor { return t.Clone() }),
		"scale": scalarOnly("scale", (*Tensor).Scale),
		"sum": func(recv *Tensor, args ...Operand) ([]Operand, error) {
			if err := wantArgs("sum", args, 0); err != nil {
				return nil, err
			}
			return []Operand{recv.Sum()}, nil
		},
		"dot": func(recv *Tensor, args ...Operand) ([]Operand, error) {
			o, err := oneTensor("dot", args)
			if err != nil {
				return nil, err
			}
			v, err := recv.Dot(o)
			if err != nil {
				return nil, err
			}
			return []Operand{v}, nil
		},
		"minmax": func(recv *Tensor, args ...Operand) ([]Operand, error) {
			if err := wantArgs("minmax", args, 0); err != nil {
				return nil, err
			}
			lo, hi, err := recv.MinMax()
			if err != nil {
				return nil, err
			}
			return []Operand{lo, hi}, nil
		},
		// Equality is present in the table so the registry has something to
		// classify, but the default manifest excludes it: comparing a proxy
		// must mean comparing identities, not routed data.
		"equal": func(recv *Tensor, args ...Operand) ([]Operand, error) {
			o, err := oneTensor("equal", args)
			if err != nil {
				return nil, err
			}
			return []Operand{recv.Equal(o)}, nil
		},
	}
}

// Functions returns the module-level function table, keyed by qualified name.
func Functions() map[string]Function {
	return map[string]Function{
		"tensor.cat": func(args ...Operand) ([]Operand, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("tensor.cat: no operands")
			}
			var elems []int64
			for i, a := range args {
				t, ok := a.(*Tensor)
				if !ok {
					return nil, &OperandError{Op: "tensor.cat", Index: i, Got: a}
				}
				elems = append(elems, t.Data()...)
			}
			return []Operand{New(elems...)}, nil
		},
		"tensor.zeros": func(args ...Operand) ([]Operand, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("tensor.zeros: want 1 operand, got %d", len(args))
			}
			n, ok := args[0].(int64)
			if !ok || n < 0 {
				return nil, &OperandError{Op: "tensor.zeros", Index: 0, Got: args[0]}
			}
			return []Operand{New(make([]int64, n)...)}, nil
		},
	}
}

// OperandError reports an operand of the wrong kind at a given position.
type OperandError struct {
	Op    string
	Index int
	Got   Operand
}

func (e *OperandError) Error() string {
	return fmt.Sprintf("%s: operand %d has unsupported type %T", e.Op, e.Index, e.Got)
}

func wantArgs(op string, args []Operand, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s: want %d operands, got %d", op, n, len(args))
	}
	return nil
}

func oneTensor(op string, args []Operand) (*Tensor, error) {
	if err := wantArgs(op, args, 1); err != nil {
		return nil, err
	}
	t, ok := args[0].(*Tensor)
	if !ok {
		return nil, &OperandError{Op: op, Index: 0, Got: args[0]}
	}
	return t, nil
}

func oneScalar(op string, args []Operand) (int64, error) {
	if err := wantArgs(op, args, 1); err != nil {
		return 0, err
	}
	s, ok := args[0].(int64)
	if !ok {
		return 0, &OperandError{Op: op, Index: 0, Got: args[0]}
	}
	return s, nil
}

func unary(f func(*Tensor) *Tensor) Method {
	return func(recv *Tensor, args ...Operand) ([]Operand, error) {
		if len(args) != 0 {
			return nil, fmt.Errorf("want 0 operands, got %d", len(args))
		}
		return []Operand{f(recv)}, nil
	}
}

func binary(op string, f func(*Tensor, *Tensor) (*Tensor, error)) Method {
	return func(recv *Tensor, args ...Operand) ([]Operand, error) {
		o, err := oneTensor(op, args)
		if err != nil {
			return nil, err
		}
		out, err := f(recv, o)
		if err != nil {
			return nil, err
		}
		return []Operand{out}, nil
	}
}

// binaryOrScalar accepts either a tensor or an int64 broadcast operand.
func binaryOrScalar(op string, ft func(*Tensor, *Tensor) (*Tensor, error), fs func(*Tensor, int64) *Tensor) Method {
	return func(recv *Tensor, args ...Operand) ([]Operand, error) {
		if err := wantArgs(op, args, 1); err != nil {
			return nil, err
		}
		switch a := args[0].(type) {
		case *Tensor:
			out, err := ft(recv, a)
			if err != nil {
				return nil, err
			}
			return []Operand{out}, nil
		case int64:
			return []Operand{fs(recv, a)}, nil
		default:
			return nil, &OperandError{Op: op, Index: 0, Got: args[0]}
		}
	}
}

func scalarOnly(op string, f func(*Tensor, int64) *Tensor) Method {
	return func(recv *Tensor, args ...Operand) ([]Operand, error) {
		s, err := oneScalar(op, args)
		if err != nil {
			return nil, err
		}
		return []Operand{f(recv, s)}, nil
	}
}
