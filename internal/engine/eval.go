package engine

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"

	"github.com/zkwasm/zkwasm-go/internal/program"
)

// Evaluate runs fn over inputs without producing a proof.
func (r *Reference) Evaluate(p *program.Program, name string, inputs []program.Value) ([]program.Value, error) {
	fn, err := p.Function(name)
	if err != nil {
		return nil, err
	}
	return evaluate(fn, inputs)
}

func evaluate(fn *program.Function, inputs []program.Value) ([]program.Value, error) {
	if len(inputs) != len(fn.Inputs) {
		return nil, fmt.Errorf("%w: %s expects %d inputs, got %d", program.ErrInvalidValue, fn.Name, len(fn.Inputs), len(inputs))
	}
	regs := make(map[string]program.Value, len(fn.Inputs)+len(fn.Body))
	for i, in := range fn.Inputs {
		if inputs[i].Type != in.Type {
			return nil, fmt.Errorf("%w: input %d must be %s", program.ErrInvalidValue, i, in.Type)
		}
		regs[in.Register] = inputs[i]
	}

	load := func(o program.Operand) program.Value {
		if o.Literal != nil {
			return *o.Literal
		}
		return regs[o.Register]
	}

	for line, ins := range fn.Body {
		args := make([]program.Value, len(ins.Operands))
		for i, o := range ins.Operands {
			args[i] = load(o)
		}

		var out program.Value
		switch ins.Op {
		case program.OpAdd:
			out.Type = args[0].Type
			out.Element.Add(&args[0].Element, &args[1].Element)
		case program.OpSub:
			out.Type = args[0].Type
			out.Element.Sub(&args[0].Element, &args[1].Element)
		case program.OpMul:
			out.Type = args[0].Type
			out.Element.Mul(&args[0].Element, &args[1].Element)
		case program.OpHash:
			out.Type = program.TypeField
			out.Element = hashElements(args)
		case program.OpAssertEq:
			if !args[0].Element.Equal(&args[1].Element) {
				return nil, fmt.Errorf("%w: %s instruction %d: %s != %s", ErrAssertion, fn.Name, line, args[0], args[1])
			}
			continue
		case program.OpAssertLTE:
			if args[0].BigInt().Cmp(args[1].BigInt()) > 0 {
				return nil, fmt.Errorf("%w: %s instruction %d: %s > %s", ErrAssertion, fn.Name, line, args[0], args[1])
			}
			continue
		default:
			return nil, fmt.Errorf("%w: unknown opcode %q", program.ErrSyntax, ins.Op)
		}

		if out.Type == program.TypeU64 && !out.FitsU64() {
			return nil, fmt.Errorf("%w: %s instruction %d (%s)", ErrOverflow, fn.Name, line, ins.Op)
		}
		regs[ins.Dest] = out
	}

	outputs := make([]program.Value, len(fn.Outputs))
	for i, o := range fn.Outputs {
		outputs[i] = regs[o.Register]
	}
	return outputs, nil
}

// hashElements matches std/hash/mimc on BN254 when each element is written
// as one 32-byte block.
func hashElements(values []program.Value) fr.Element {
	h := mimc.NewMiMC()
	for _, v := range values {
		b := v.Element.Bytes()
		h.Write(b[:])
	}
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}
