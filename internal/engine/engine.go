package engine

import (
	"io"
	"sync"

	"github.com/consensys/gnark/logger"

	"github.com/zkwasm/zkwasm-go/internal/program"
)

const (
	PrivateKeySize = 32
	ViewKeySize    = 32
	AddressSize    = 33 + 32
	SignatureSize  = 64
)

// PrivateKey is a secp256k1 scalar in big-endian form.
type PrivateKey [PrivateKeySize]byte

// ViewKey is a clamped X25519 scalar derived from a private key.
type ViewKey [ViewKeySize]byte

// Address is the public half of an account: a compressed secp256k1 point
// used to verify signatures followed by the X25519 point records are
// encrypted to.
type Address struct {
	Signing [33]byte
	Record  [32]byte
}

// Bytes returns the 65-byte wire form of the address.
func (a Address) Bytes() []byte {
	out := make([]byte, 0, AddressSize)
	out = append(out, a.Signing[:]...)
	return append(out, a.Record[:]...)
}

// Engine is the cryptographic engine behind the binding surface.
type Engine interface {
	NewPrivateKey(rng io.Reader) (PrivateKey, error)
	ViewKey(sk PrivateKey) (ViewKey, error)
	Address(sk PrivateKey) (Address, error)

	// RecordKey returns the X25519 point that records for vk are sealed to.
	RecordKey(vk ViewKey) ([32]byte, error)
	Seal(plaintext []byte, recipient [32]byte, rng io.Reader) ([]byte, error)
	Open(ciphertext []byte, vk ViewKey) ([]byte, error)

	Sign(sk PrivateKey, msg []byte) ([]byte, error)
	Verify(addr Address, msg, sig []byte) (bool, error)

	// Evaluate runs fn natively and returns its outputs.
	Evaluate(p *program.Program, fn string, inputs []program.Value) ([]program.Value, error)
	// Synthesize compiles fn and runs the Groth16 setup.
	Synthesize(p *program.Program, fn string) (*KeyPair, error)
	// ImportKeys compiles fn and binds externally supplied keys to it.
	ImportKeys(p *program.Program, fn string, provingKey, verifyingKey []byte) (*KeyPair, error)
	// Prove evaluates fn, proves the evaluation and signs the transition.
	Prove(sk PrivateKey, kp *KeyPair, p *program.Program, fn string, inputs []program.Value) (*Transition, error)
	VerifyTransition(t *Transition) error
}

var quietGnark sync.Once

// Reference is the engine shipped with the module.
type Reference struct{}

// New returns the reference engine.
func New() *Reference {
	quietGnark.Do(logger.Disable)
	return &Reference{}
}

var _ Engine = (*Reference)(nil)
