package engine

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/consensys/gnark/std/hash/mimc"

	"github.com/zkwasm/zkwasm-go/internal/program"
)

const u64Bits = 64

// circuit arithmetizes one program function. The public statement holds
// the public inputs followed by the outputs, so it is never empty. A
// function without private inputs gets one private slot pinned to zero:
// gnark's witness walker prints a warning to stdout for empty slices.
type circuit struct {
	Private   []frontend.Variable
	Statement []frontend.Variable `gnark:",public"`

	fn *program.Function `gnark:"-"`
}

func privateSlots(fn *program.Function) int {
	priv, _ := fn.Counts()
	return max(priv, 1)
}

func newCircuit(fn *program.Function) *circuit {
	_, pub := fn.Counts()
	return &circuit{
		Private:   make([]frontend.Variable, privateSlots(fn)),
		Statement: make([]frontend.Variable, pub+len(fn.Outputs)),
		fn:        fn,
	}
}

// assign fills a circuit with concrete values.
func assign(fn *program.Function, inputs, outputs []program.Value) *circuit {
	c := &circuit{fn: fn}
	for i, in := range fn.Inputs {
		v := inputs[i].BigInt()
		if in.Visibility == program.Public {
			c.Statement = append(c.Statement, v)
		} else {
			c.Private = append(c.Private, v)
		}
	}
	if len(c.Private) == 0 {
		c.Private = []frontend.Variable{0}
	}
	for _, o := range outputs {
		c.Statement = append(c.Statement, o.BigInt())
	}
	return c
}

// publicAssignment fills the statement. The private slot is a placeholder
// that public-only witnesses never read.
func publicAssignment(public, outputs []program.Value) *circuit {
	c := &circuit{Private: []frontend.Variable{0}}
	for _, v := range public {
		c.Statement = append(c.Statement, v.BigInt())
	}
	for _, o := range outputs {
		c.Statement = append(c.Statement, o.BigInt())
	}
	return c
}

func (c *circuit) Define(api frontend.API) error {
	regs := make(map[string]frontend.Variable, len(c.fn.Inputs)+len(c.fn.Body))
	var pi, ui int
	for _, in := range c.fn.Inputs {
		var v frontend.Variable
		if in.Visibility == program.Public {
			v = c.Statement[ui]
			ui++
		} else {
			v = c.Private[pi]
			pi++
		}
		if in.Type == program.TypeU64 {
			api.ToBinary(v, u64Bits)
		}
		regs[in.Register] = v
	}
	if pi == 0 {
		api.AssertIsEqual(c.Private[0], 0)
	}

	load := func(o program.Operand) frontend.Variable {
		if o.Literal != nil {
			return o.Literal.BigInt()
		}
		return regs[o.Register]
	}

	for _, ins := range c.fn.Body {
		args := make([]frontend.Variable, len(ins.Operands))
		for i, o := range ins.Operands {
			args[i] = load(o)
		}

		var out frontend.Variable
		switch ins.Op {
		case program.OpAdd:
			out = api.Add(args[0], args[1])
		case program.OpSub:
			out = api.Sub(args[0], args[1])
		case program.OpMul:
			out = api.Mul(args[0], args[1])
		case program.OpHash:
			h, err := mimc.NewMiMC(api)
			if err != nil {
				return err
			}
			h.Write(args...)
			out = h.Sum()
		case program.OpAssertEq:
			api.AssertIsEqual(args[0], args[1])
			continue
		case program.OpAssertLTE:
			api.AssertIsLessOrEqual(args[0], args[1])
			continue
		default:
			return fmt.Errorf("unknown opcode %q", ins.Op)
		}

		if typ, _ := c.fn.RegisterType(ins.Dest); typ == program.TypeU64 {
			api.ToBinary(out, u64Bits)
		}
		regs[ins.Dest] = out
	}

	for i, o := range c.fn.Outputs {
		api.AssertIsEqual(c.Statement[ui+i], regs[o.Register])
	}
	return nil
}

func scalarField() *big.Int {
	return ecc.BN254.ScalarField()
}

func compile(fn *program.Function) (constraint.ConstraintSystem, error) {
	ccs, err := frontend.Compile(scalarField(), r1cs.NewBuilder, newCircuit(fn))
	if err != nil {
		return nil, fmt.Errorf("%w: compile %s: %v", ErrSynthesis, fn.Name, err)
	}
	return ccs, nil
}
