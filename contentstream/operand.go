package contentstream

import (
	"fmt"
	"strconv"
)

// Operand is a value preceding an operator in a content stream.
type Operand interface{ isOperand() }

type Number float64
type Name string
type Bool bool
type Null struct{}

// String is a literal or hexadecimal string; Hex records which form was
// used so writers can keep it.
type String struct {
	Value []byte
	Hex   bool
}

type Array []Operand
type Dict map[string]Operand

func (Number) isOperand() {}
func (Name) isOperand()   {}
func (Bool) isOperand()   {}
func (Null) isOperand()   {}
func (String) isOperand() {}
func (Array) isOperand()  {}
func (Dict) isOperand()   {}

// Operation is an operator with its operands. Offset is the byte position of
// the operator in the stream.
type Operation struct {
	Operator string
	Operands []Operand
	Offset   int64
	// InlineData holds the raw bytes between ID and EI for the BI operator.
	InlineData []byte
}

// Float returns operand i as a number.
func (op Operation) Float(i int) (float64, error) {
	if i >= len(op.Operands) {
		return 0, fmt.Errorf("%s: missing operand %d", op.Operator, i)
	}
	n, ok := op.Operands[i].(Number)
	if !ok {
		return 0, fmt.Errorf("%s: operand %d is %T, want number", op.Operator, i, op.Operands[i])
	}
	return float64(n), nil
}

// Floats returns the first n operands as numbers.
func (op Operation) Floats(n int) ([]float64, error) {
	if len(op.Operands) < n {
		return nil, fmt.Errorf("%s: want %d operands, got %d", op.Operator, n, len(op.Operands))
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := op.Float(i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// NumbersOnly returns all operands that are numbers, in order. Color
// operators such as scn may end with a pattern name that callers ignore.
func (op Operation) NumbersOnly() []float64 {
	var out []float64
	for _, o := range op.Operands {
		if n, ok := o.(Number); ok {
			out = append(out, float64(n))
		}
	}
	return out
}

// Name returns operand i as a name.
func (op Operation) Name(i int) (string, error) {
	if i >= len(op.Operands) {
		return "", fmt.Errorf("%s: missing operand %d", op.Operator, i)
	}
	n, ok := op.Operands[i].(Name)
	if !ok {
		return "", fmt.Errorf("%s: operand %d is %T, want name", op.Operator, i, op.Operands[i])
	}
	return string(n), nil
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
