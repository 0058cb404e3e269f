package program

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxSourceSize bounds the program text accepted by Parse.
const MaxSourceSize = 1 << 20

var (
	programIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*\.zk$`)
	identPattern     = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	registerPattern  = regexp.MustCompile(`^r[0-9]+$`)
)

// ValidID reports whether s is a well-formed program ID such as "hello.zk".
func ValidID(s string) bool {
	return programIDPattern.MatchString(s)
}

// ValidFunctionName reports whether s is a well-formed function name.
func ValidFunctionName(s string) bool {
	return identPattern.MatchString(s)
}

type parser struct {
	prog *Program
	fn   *Function
	line int

	// stage tracks inputs -> body -> outputs ordering inside a function.
	stage int
}

const (
	stageInputs = iota
	stageBody
	stageOutputs
)

// Parse parses program source.
func Parse(source string) (*Program, error) {
	if len(source) == 0 {
		return nil, fmt.Errorf("%w: empty program", ErrSyntax)
	}
	if len(source) > MaxSourceSize {
		return nil, fmt.Errorf("%w: program exceeds %d bytes", ErrSyntax, MaxSourceSize)
	}

	p := &parser{prog: &Program{Source: source, functions: make(map[string]*Function)}}
	for i, raw := range strings.Split(source, "\n") {
		p.line = i + 1
		line := raw
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := p.statement(line); err != nil {
			return nil, err
		}
	}
	if p.prog.ID == "" {
		return nil, fmt.Errorf("%w: missing program declaration", ErrSyntax)
	}
	if err := p.finish(); err != nil {
		return nil, err
	}
	if len(p.prog.order) == 0 {
		return nil, fmt.Errorf("%w: program %s declares no functions", ErrSyntax, p.prog.ID)
	}
	return p.prog, nil
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrSyntax, p.line, fmt.Sprintf(format, args...))
}

func (p *parser) statement(line string) error {
	if strings.HasPrefix(line, "function ") {
		return p.function(line)
	}
	if !strings.HasSuffix(line, ";") {
		return p.errorf("missing ';'")
	}
	fields := strings.Fields(strings.TrimSuffix(line, ";"))
	if len(fields) == 0 {
		return p.errorf("empty statement")
	}

	if fields[0] == "program" {
		if p.prog.ID != "" {
			return p.errorf("duplicate program declaration")
		}
		if len(fields) != 2 || !ValidID(fields[1]) {
			return p.errorf("invalid program ID")
		}
		p.prog.ID = fields[1]
		return nil
	}
	if p.prog.ID == "" {
		return p.errorf("statement before program declaration")
	}
	if p.fn == nil {
		return p.errorf("statement outside of a function")
	}

	switch fields[0] {
	case "input":
		return p.input(fields)
	case "output":
		return p.output(fields)
	default:
		return p.instruction(fields)
	}
}

func (p *parser) function(line string) error {
	if p.prog.ID == "" {
		return p.errorf("function before program declaration")
	}
	if !strings.HasSuffix(line, ":") {
		return p.errorf("function header must end with ':'")
	}
	name := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(line, "function "), ":"))
	if !ValidFunctionName(name) {
		return p.errorf("invalid function name %q", name)
	}
	if _, dup := p.prog.functions[name]; dup {
		return p.errorf("duplicate function %q", name)
	}
	if err := p.finish(); err != nil {
		return err
	}
	p.fn = &Function{Name: name, types: make(map[string]Type)}
	p.stage = stageInputs
	p.prog.functions[name] = p.fn
	p.prog.order = append(p.prog.order, name)
	return nil
}

// finish closes the current function. Every function must produce at least
// one public output.
func (p *parser) finish() error {
	if p.fn == nil {
		return nil
	}
	if len(p.fn.Outputs) == 0 {
		return p.errorf("function %s declares no outputs", p.fn.Name)
	}
	return nil
}

// typed parses "REG as TYPE.VIS".
func (p *parser) typed(fields []string) (string, Type, Visibility, error) {
	if len(fields) != 4 || fields[2] != "as" {
		return "", 0, 0, p.errorf("expected '%s rN as type.visibility'", fields[0])
	}
	reg := fields[1]
	if !registerPattern.MatchString(reg) {
		return "", 0, 0, p.errorf("invalid register %q", reg)
	}
	typeName, visName, ok := strings.Cut(fields[3], ".")
	if !ok {
		return "", 0, 0, p.errorf("missing visibility in %q", fields[3])
	}
	typ, ok := parseType(typeName)
	if !ok {
		return "", 0, 0, p.errorf("unknown type %q", typeName)
	}
	var vis Visibility
	switch visName {
	case "private":
		vis = Private
	case "public":
		vis = Public
	default:
		return "", 0, 0, p.errorf("unknown visibility %q", visName)
	}
	return reg, typ, vis, nil
}

func (p *parser) input(fields []string) error {
	if p.stage != stageInputs {
		return p.errorf("inputs must precede instructions")
	}
	reg, typ, vis, err := p.typed(fields)
	if err != nil {
		return err
	}
	if _, dup := p.fn.types[reg]; dup {
		return p.errorf("register %s already assigned", reg)
	}
	p.fn.types[reg] = typ
	p.fn.Inputs = append(p.fn.Inputs, Input{Register: reg, Type: typ, Visibility: vis})
	return nil
}

func (p *parser) output(fields []string) error {
	p.stage = stageOutputs
	reg, typ, vis, err := p.typed(fields)
	if err != nil {
		return err
	}
	if vis != Public {
		return p.errorf("outputs must be public")
	}
	have, ok := p.fn.types[reg]
	if !ok {
		return p.errorf("output register %s is not assigned", reg)
	}
	if have != typ {
		return p.errorf("output %s declared %s but holds %s", reg, typ, have)
	}
	p.fn.Outputs = append(p.fn.Outputs, Output{Register: reg, Type: typ})
	return nil
}

func (p *parser) operand(tok string) (Operand, Type, error) {
	if registerPattern.MatchString(tok) {
		typ, ok := p.fn.types[tok]
		if !ok {
			return Operand{}, 0, p.errorf("register %s used before assignment", tok)
		}
		return Operand{Register: tok}, typ, nil
	}
	v, err := ParseValue(tok)
	if err != nil {
		return Operand{}, 0, p.errorf("invalid operand %q", tok)
	}
	return Operand{Literal: &v}, v.Type, nil
}

func (p *parser) instruction(fields []string) error {
	if p.stage == stageOutputs {
		return p.errorf("instructions must precede outputs")
	}
	p.stage = stageBody

	op := Opcode(fields[0])
	switch op {
	case OpAssertEq, OpAssertLTE:
		if len(fields) != 3 {
			return p.errorf("%s takes two operands", op)
		}
		a, ta, err := p.operand(fields[1])
		if err != nil {
			return err
		}
		b, tb, err := p.operand(fields[2])
		if err != nil {
			return err
		}
		if ta != tb {
			return p.errorf("%s operands differ in type (%s, %s)", op, ta, tb)
		}
		p.fn.Body = append(p.fn.Body, Instruction{Op: op, Operands: []Operand{a, b}})
		return nil

	case OpAdd, OpSub, OpMul, OpHash:
		if len(fields) < 4 || fields[len(fields)-2] != "into" {
			return p.errorf("expected '%s a b into rN'", op)
		}
		dest := fields[len(fields)-1]
		args := fields[1 : len(fields)-2]
		if op != OpHash && len(args) != 2 {
			return p.errorf("%s takes two operands", op)
		}
		if !registerPattern.MatchString(dest) {
			return p.errorf("invalid destination %q", dest)
		}
		if _, dup := p.fn.types[dest]; dup {
			return p.errorf("register %s already assigned", dest)
		}

		ins := Instruction{Op: op, Dest: dest}
		var first Type
		for i, tok := range args {
			o, t, err := p.operand(tok)
			if err != nil {
				return err
			}
			if i == 0 {
				first = t
			} else if op != OpHash && t != first {
				return p.errorf("%s operands differ in type (%s, %s)", op, first, t)
			}
			ins.Operands = append(ins.Operands, o)
		}
		result := first
		if op == OpHash {
			result = TypeField
		}
		p.fn.types[dest] = result
		p.fn.Body = append(p.fn.Body, ins)
		return nil

	default:
		return p.errorf("unknown instruction %q", fields[0])
	}
}
