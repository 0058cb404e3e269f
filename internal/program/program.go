package program

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

var (
	// ErrSyntax reports a program that does not follow the grammar.
	ErrSyntax = errors.New("program: syntax error")

	// ErrUnknownFunction reports a function name the program does not define.
	ErrUnknownFunction = errors.New("program: unknown function")

	// ErrInvalidValue reports an input literal that cannot be parsed or does
	// not fit its declared type.
	ErrInvalidValue = errors.New("program: invalid value")
)

// Type is the declared type of a register or literal.
type Type uint8

const (
	TypeField Type = iota + 1
	TypeU64
)

func (t Type) String() string {
	switch t {
	case TypeField:
		return "field"
	case TypeU64:
		return "u64"
	default:
		return "unknown"
	}
}

func parseType(s string) (Type, bool) {
	switch s {
	case "field":
		return TypeField, true
	case "u64":
		return TypeU64, true
	default:
		return 0, false
	}
}

// Visibility controls whether an input is part of the public statement.
type Visibility uint8

const (
	Private Visibility = iota
	Public
)

func (v Visibility) String() string {
	if v == Public {
		return "public"
	}
	return "private"
}

// Opcode names an instruction.
type Opcode string

const (
	OpAdd       Opcode = "add"
	OpSub       Opcode = "sub"
	OpMul       Opcode = "mul"
	OpHash      Opcode = "hash.mimc"
	OpAssertEq  Opcode = "assert.eq"
	OpAssertLTE Opcode = "assert.lte"
)

// Operand is either a register reference or a literal.
type Operand struct {
	Register string
	Literal  *Value
}

func (o Operand) String() string {
	if o.Literal != nil {
		return o.Literal.String()
	}
	return o.Register
}

// Instruction is one statement of a function body. Dest is empty for
// assertions.
type Instruction struct {
	Op       Opcode
	Operands []Operand
	Dest     string
}

// Input declares a function argument.
type Input struct {
	Register   string
	Type       Type
	Visibility Visibility
}

// Output declares a function result. Outputs are always public.
type Output struct {
	Register string
	Type     Type
}

// Function is a parsed function definition.
type Function struct {
	Name    string
	Inputs  []Input
	Body    []Instruction
	Outputs []Output

	types map[string]Type
}

// RegisterType returns the type a register was assigned.
func (f *Function) RegisterType(reg string) (Type, bool) {
	t, ok := f.types[reg]
	return t, ok
}

// Counts returns the number of private and public inputs.
func (f *Function) Counts() (private, public int) {
	for _, in := range f.Inputs {
		if in.Visibility == Public {
			public++
		} else {
			private++
		}
	}
	return private, public
}

// ParseInputs parses host-supplied literals against the function signature.
func (f *Function) ParseInputs(raw []string) ([]Value, error) {
	if len(raw) != len(f.Inputs) {
		return nil, fmt.Errorf("%w: %s expects %d inputs, got %d", ErrInvalidValue, f.Name, len(f.Inputs), len(raw))
	}
	values := make([]Value, len(raw))
	for i, s := range raw {
		v, err := ParseValue(s)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		if v.Type != f.Inputs[i].Type {
			return nil, fmt.Errorf("%w: input %d must be %s, got %s", ErrInvalidValue, i, f.Inputs[i].Type, v.Type)
		}
		values[i] = v
	}
	return values, nil
}

// Program is a parsed program. It is immutable once returned by Parse and
// may be shared between goroutines.
type Program struct {
	ID     string
	Source string

	functions map[string]*Function
	order     []string
}

// Function looks up a function by name.
func (p *Program) Function(name string) (*Function, error) {
	fn, ok := p.functions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownFunction, p.ID, name)
	}
	return fn, nil
}

// Functions returns the function names in declaration order.
func (p *Program) Functions() []string {
	return append([]string(nil), p.order...)
}

// Digest identifies the exact program source.
func (p *Program) Digest() [32]byte {
	return sha256.Sum256([]byte(p.Source))
}

// Value is a typed field element.
type Value struct {
	Type    Type
	Element fr.Element
}

// NewU64 builds a u64 value.
func NewU64(v uint64) Value {
	var out Value
	out.Type = TypeU64
	out.Element.SetUint64(v)
	return out
}

// ParseValue parses a literal such as "42u64" or "7field".
func ParseValue(s string) (Value, error) {
	var (
		typ    Type
		digits string
	)
	switch {
	case strings.HasSuffix(s, "field"):
		typ, digits = TypeField, strings.TrimSuffix(s, "field")
	case strings.HasSuffix(s, "u64"):
		typ, digits = TypeU64, strings.TrimSuffix(s, "u64")
	default:
		return Value{}, fmt.Errorf("%w: %q has no type suffix", ErrInvalidValue, s)
	}
	if digits == "" || strings.ContainsAny(digits, "+-") {
		return Value{}, fmt.Errorf("%w: %q", ErrInvalidValue, s)
	}
	n, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Value{}, fmt.Errorf("%w: %q is not a decimal literal", ErrInvalidValue, s)
	}
	if typ == TypeU64 && !n.IsUint64() {
		return Value{}, fmt.Errorf("%w: %q overflows u64", ErrInvalidValue, s)
	}
	if n.Cmp(fr.Modulus()) >= 0 {
		return Value{}, fmt.Errorf("%w: %q exceeds the field modulus", ErrInvalidValue, s)
	}
	var v Value
	v.Type = typ
	v.Element.SetBigInt(n)
	return v, nil
}

// BigInt returns the canonical integer representation.
func (v Value) BigInt() *big.Int {
	var b big.Int
	v.Element.BigInt(&b)
	return &b
}

// FitsU64 reports whether the value is a valid u64.
func (v Value) FitsU64() bool {
	return v.BigInt().IsUint64()
}

func (v Value) String() string {
	return v.BigInt().String() + v.Type.String()
}
