package program

import (
	"errors"
	"strings"
	"testing"
)

const helloSource = `program hello.zk;

// squares the sum and hashes it with the secret
function main:
    input r0 as field.private;
    input r1 as u64.public;
    add r0 7field into r2;
    mul r2 r2 into r3;
    hash.mimc r3 r0 into r4;
    assert.lte r1 10u64;
    output r4 as field.public;

function sum:
    input r0 as u64.private;
    input r1 as u64.private;
    add r0 r1 into r2;
    output r2 as u64.public;
`

func TestParseHello(t *testing.T) {
	p, err := Parse(helloSource)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.ID != "hello.zk" {
		t.Fatalf("ID = %q", p.ID)
	}
	if got := strings.Join(p.Functions(), ","); got != "main,sum" {
		t.Fatalf("Functions = %s", got)
	}

	fn, err := p.Function("main")
	if err != nil {
		t.Fatalf("Function(main): %v", err)
	}
	priv, pub := fn.Counts()
	if priv != 1 || pub != 1 {
		t.Fatalf("Counts = (%d, %d), want (1, 1)", priv, pub)
	}
	if len(fn.Body) != 4 {
		t.Fatalf("len(Body) = %d, want 4", len(fn.Body))
	}
	if fn.Body[0].Operands[1].Literal == nil || fn.Body[0].Operands[1].Literal.String() != "7field" {
		t.Fatalf("literal operand not parsed: %+v", fn.Body[0].Operands[1])
	}
	if typ, _ := fn.RegisterType("r4"); typ != TypeField {
		t.Fatalf("r4 type = %s, want field", typ)
	}
	if len(fn.Outputs) != 1 || fn.Outputs[0].Register != "r4" {
		t.Fatalf("Outputs = %+v", fn.Outputs)
	}

	if _, err := p.Function("missing"); !errors.Is(err, ErrUnknownFunction) {
		t.Fatalf("Function(missing) err = %v, want ErrUnknownFunction", err)
	}
}

func TestParseDigestTracksSource(t *testing.T) {
	a, err := Parse(helloSource)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Parse(helloSource + "\n// trailing comment\n")
	if err != nil {
		t.Fatal(err)
	}
	if a.Digest() == b.Digest() {
		t.Fatal("digest should change with source text")
	}
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"empty":              "",
		"no program":         "function main:\n input r0 as u64.public;\n output r0 as u64.public;",
		"bad id":             "program Hello;\nfunction main:\n input r0 as u64.public;\n output r0 as u64.public;",
		"no functions":       "program a.zk;",
		"missing semicolon":  "program a.zk;\nfunction main:\n input r0 as u64.public\n",
		"unknown op":         "program a.zk;\nfunction main:\n input r0 as u64.public;\n div r0 r0 into r1;",
		"use before assign":  "program a.zk;\nfunction main:\n input r0 as u64.public;\n add r0 r9 into r1;",
		"reassign":           "program a.zk;\nfunction main:\n input r0 as u64.public;\n add r0 r0 into r0;",
		"type mismatch":      "program a.zk;\nfunction main:\n input r0 as u64.public;\n input r1 as field.public;\n add r0 r1 into r2;",
		"private output":     "program a.zk;\nfunction main:\n input r0 as u64.public;\n output r0 as u64.private;",
		"output type":        "program a.zk;\nfunction main:\n input r0 as u64.public;\n output r0 as field.public;",
		"input after body":   "program a.zk;\nfunction main:\n input r0 as u64.public;\n add r0 r0 into r1;\n input r2 as u64.public;",
		"body after output":  "program a.zk;\nfunction main:\n input r0 as u64.public;\n output r0 as u64.public;\n add r0 r0 into r1;",
		"duplicate function": "program a.zk;\nfunction f:\n input r0 as u64.public;\n output r0 as u64.public;\nfunction f:\n input r0 as u64.public;",
		"no outputs":         "program a.zk;\nfunction f:\n input r0 as u64.public;\n assert.eq r0 1u64;",
		"outside function":   "program a.zk;\ninput r0 as u64.public;",
		"bad visibility":     "program a.zk;\nfunction main:\n input r0 as u64.secret;",
		"bad literal":        "program a.zk;\nfunction main:\n input r0 as u64.public;\n add r0 -1u64 into r1;",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(src); !errors.Is(err, ErrSyntax) {
				t.Fatalf("Parse err = %v, want ErrSyntax", err)
			}
		})
	}
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue("18446744073709551615u64")
	if err != nil {
		t.Fatalf("ParseValue(max u64): %v", err)
	}
	if !v.FitsU64() || v.Type != TypeU64 {
		t.Fatalf("max u64 parsed as %s", v)
	}

	for _, bad := range []string{"18446744073709551616u64", "12", "u64", "-3field", "0x10field", "1.5u64"} {
		if _, err := ParseValue(bad); !errors.Is(err, ErrInvalidValue) {
			t.Errorf("ParseValue(%q) err = %v, want ErrInvalidValue", bad, err)
		}
	}

	huge := "21888242871839275222246405745257275088548364400416034343698204186575808495617field"
	if _, err := ParseValue(huge); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("modulus accepted: %v", err)
	}
}

func TestParseInputs(t *testing.T) {
	p, err := Parse(helloSource)
	if err != nil {
		t.Fatal(err)
	}
	fn, _ := p.Function("main")

	values, err := fn.ParseInputs([]string{"3field", "5u64"})
	if err != nil {
		t.Fatalf("ParseInputs: %v", err)
	}
	if values[0].String() != "3field" || values[1].String() != "5u64" {
		t.Fatalf("values = %v", values)
	}

	if _, err := fn.ParseInputs([]string{"3field"}); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("short inputs err = %v", err)
	}
	if _, err := fn.ParseInputs([]string{"3u64", "5u64"}); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("mistyped inputs err = %v", err)
	}
}
