package zkwasm

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/zkwasm/zkwasm-go/internal/engine"
	"github.com/zkwasm/zkwasm-go/internal/program"
)

// CreditsProgramID is the built-in program that pays transaction fees.
const CreditsProgramID = "credits.zk"

const feeFunction = "fee"

// creditsSource debits a fee from a private balance. The output commits to
// the remaining balance, the state root the transaction was built against
// and the call the fee pays for.
const creditsSource = `program credits.zk;

function fee:
    input r0 as u64.private;   // record balance
    input r1 as u64.public;    // fee
    input r2 as field.public;  // state root
    input r3 as field.public;  // paid call
    assert.lte r1 r0;
    sub r0 r1 into r4;
    hash.mimc r4 r2 r3 into r5;
    output r5 as field.public;
`

// Positions of the fee transition's public inputs.
const (
	feeAmountIndex = iota
	feeRootIndex
	feeCallIndex
)

func parseCredits() *program.Program {
	p, err := program.Parse(creditsSource)
	if err != nil {
		panic(fmt.Sprintf("zkwasm: built-in credits program: %v", err))
	}
	return p
}

// stateRootValue maps a node state root onto a field element.
func stateRootValue(root string) program.Value {
	h := sha256.Sum256([]byte(root))
	var v program.Value
	v.Type = program.TypeField
	v.Element.SetBytes(h[:])
	return v
}

// fieldDigest is the BLAKE2b-256 of length-prefixed parts reduced into the
// scalar field.
func fieldDigest(parts ...[]byte) program.Value {
	var buf []byte
	for _, p := range parts {
		buf = binary.AppendUvarint(buf, uint64(len(p)))
		buf = append(buf, p...)
	}
	sum := blake2b.Sum256(buf)
	var v program.Value
	v.Type = program.TypeField
	v.Element.SetBytes(sum[:])
	return v
}

// callCommitment names one proven call without its proof: the function,
// the verifying key it is checked against, its public inputs and its
// signer. Everything in it is known before proving starts.
func callCommitment(programID, function string, verifyingKey []byte, public []program.Value, signer [33]byte) program.Value {
	parts := [][]byte{[]byte("call"), []byte(programID), []byte(function), verifyingKey, signer[:]}
	for _, v := range public {
		parts = append(parts, []byte(v.String()))
	}
	return fieldDigest(parts...)
}

func transitionCommitment(t *engine.Transition) program.Value {
	return callCommitment(t.Program, t.Function, t.VerifyingKey, t.Public, t.Signer)
}

// deployCommitment names a deployment: the program source and the
// verifying keys of its functions in declaration order.
func deployCommitment(p *program.Program, verifyingKeys [][]byte, signer [33]byte) program.Value {
	d := p.Digest()
	parts := [][]byte{[]byte("deploy"), []byte(p.ID), d[:], signer[:]}
	parts = append(parts, verifyingKeys...)
	return fieldDigest(parts...)
}

func feeInputs(balance, fee uint64, root string, paid program.Value) []program.Value {
	return []program.Value{program.NewU64(balance), program.NewU64(fee), stateRootValue(root), paid}
}
