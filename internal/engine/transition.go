package engine

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"github.com/zkwasm/zkwasm-go/internal/program"
)

// Transition is one proven, signed function call.
type Transition struct {
	Program  string
	Function string

	// Public holds the public inputs in declaration order.
	Public  []program.Value
	Outputs []program.Value

	Proof        []byte
	VerifyingKey []byte

	Signer    [33]byte
	Signature []byte
}

// ID is the BLAKE2b-256 digest of everything in the transition except the
// signature. It is the message the signer signs.
func (t *Transition) ID() [32]byte {
	var buf []byte
	field := func(b []byte) {
		buf = binary.AppendUvarint(buf, uint64(len(b)))
		buf = append(buf, b...)
	}
	values := func(vs []program.Value) {
		buf = binary.AppendUvarint(buf, uint64(len(vs)))
		for _, v := range vs {
			buf = append(buf, byte(v.Type))
			b := v.Element.Bytes()
			buf = append(buf, b[:]...)
		}
	}

	field([]byte(t.Program))
	field([]byte(t.Function))
	values(t.Public)
	values(t.Outputs)
	field(t.Proof)
	field(t.VerifyingKey)
	field(t.Signer[:])
	return blake2b.Sum256(buf)
}

// IDString is the hex form of ID, used as the host-facing identifier.
func (t *Transition) IDString() string {
	id := t.ID()
	return hex.EncodeToString(id[:])
}
