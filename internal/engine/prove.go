package engine

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"

	"github.com/zkwasm/zkwasm-go/internal/program"
)

// KeyPair is the compiled circuit of a function together with its Groth16
// keys. A KeyPair is read-only after construction.
type KeyPair struct {
	CCS          constraint.ConstraintSystem
	ProvingKey   groth16.ProvingKey
	VerifyingKey groth16.VerifyingKey
}

func writeObject(w io.Writer, obj io.WriterTo) error {
	var buf bytes.Buffer
	if _, err := obj.WriteTo(&buf); err != nil {
		return err
	}
	var hdr [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(hdr[:], uint64(buf.Len()))
	if _, err := w.Write(hdr[:n]); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func readObject(r *bytes.Reader, obj io.ReaderFrom) error {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return err
	}
	if n > uint64(r.Len()) {
		return io.ErrUnexpectedEOF
	}
	chunk := make([]byte, n)
	if _, err := io.ReadFull(r, chunk); err != nil {
		return err
	}
	_, err = obj.ReadFrom(bytes.NewReader(chunk))
	return err
}

// MarshalBinary encodes the circuit and both keys.
func (kp *KeyPair) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	for _, obj := range []io.WriterTo{kp.CCS, kp.ProvingKey, kp.VerifyingKey} {
		if err := writeObject(&buf, obj); err != nil {
			return nil, fmt.Errorf("engine: marshal key pair: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalKeyPair decodes the output of MarshalBinary.
func UnmarshalKeyPair(b []byte) (*KeyPair, error) {
	kp := &KeyPair{
		CCS:          groth16.NewCS(ecc.BN254),
		ProvingKey:   groth16.NewProvingKey(ecc.BN254),
		VerifyingKey: groth16.NewVerifyingKey(ecc.BN254),
	}
	r := bytes.NewReader(b)
	for _, obj := range []io.ReaderFrom{kp.CCS, kp.ProvingKey, kp.VerifyingKey} {
		if err := readObject(r, obj); err != nil {
			return nil, fmt.Errorf("engine: unmarshal key pair: %w", err)
		}
	}
	return kp, nil
}

// ProvingKeyBytes returns the gnark encoding of the proving key.
func (kp *KeyPair) ProvingKeyBytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := kp.ProvingKey.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// VerifyingKeyBytes returns the gnark encoding of the verifying key.
func (kp *KeyPair) VerifyingKeyBytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := kp.VerifyingKey.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Reference) Synthesize(p *program.Program, name string) (*KeyPair, error) {
	fn, err := p.Function(name)
	if err != nil {
		return nil, err
	}
	ccs, err := compile(fn)
	if err != nil {
		return nil, err
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("%w: setup %s/%s: %v", ErrSynthesis, p.ID, name, err)
	}
	return &KeyPair{CCS: ccs, ProvingKey: pk, VerifyingKey: vk}, nil
}

func (r *Reference) ImportKeys(p *program.Program, name string, provingKey, verifyingKey []byte) (*KeyPair, error) {
	fn, err := p.Function(name)
	if err != nil {
		return nil, err
	}
	ccs, err := compile(fn)
	if err != nil {
		return nil, err
	}
	pk := groth16.NewProvingKey(ecc.BN254)
	if _, err := pk.ReadFrom(bytes.NewReader(provingKey)); err != nil {
		return nil, fmt.Errorf("%w: proving key: %v", ErrKeyMismatch, err)
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(bytes.NewReader(verifyingKey)); err != nil {
		return nil, fmt.Errorf("%w: verifying key: %v", ErrKeyMismatch, err)
	}
	_, pub := fn.Counts()
	if vk.NbPublicWitness() != pub+len(fn.Outputs) {
		return nil, fmt.Errorf("%w: verifying key expects %d public values, %s/%s has %d",
			ErrKeyMismatch, vk.NbPublicWitness(), p.ID, name, pub+len(fn.Outputs))
	}
	return &KeyPair{CCS: ccs, ProvingKey: pk, VerifyingKey: vk}, nil
}

func (r *Reference) Prove(sk PrivateKey, kp *KeyPair, p *program.Program, name string, inputs []program.Value) (*Transition, error) {
	fn, err := p.Function(name)
	if err != nil {
		return nil, err
	}
	outputs, err := evaluate(fn, inputs)
	if err != nil {
		return nil, err
	}

	full, err := frontend.NewWitness(assign(fn, inputs, outputs), scalarField())
	if err != nil {
		return nil, fmt.Errorf("engine: witness %s/%s: %w", p.ID, name, err)
	}
	proof, err := groth16.Prove(kp.CCS, kp.ProvingKey, full)
	if err != nil {
		return nil, fmt.Errorf("%w: prove %s/%s: %v", ErrKeyMismatch, p.ID, name, err)
	}

	var proofBuf bytes.Buffer
	if _, err := proof.WriteTo(&proofBuf); err != nil {
		return nil, fmt.Errorf("engine: encode proof: %w", err)
	}
	vkBytes, err := kp.VerifyingKeyBytes()
	if err != nil {
		return nil, fmt.Errorf("engine: encode verifying key: %w", err)
	}

	t := &Transition{
		Program:      p.ID,
		Function:     name,
		Outputs:      outputs,
		Proof:        proofBuf.Bytes(),
		VerifyingKey: vkBytes,
	}
	for i, in := range fn.Inputs {
		if in.Visibility == program.Public {
			t.Public = append(t.Public, inputs[i])
		}
	}

	priv, pub := btcec.PrivKeyFromBytes(sk[:])
	defer priv.Zero()
	copy(t.Signer[:], pub.SerializeCompressed())
	id := t.ID()
	sig, err := schnorr.Sign(priv, id[:])
	if err != nil {
		return nil, fmt.Errorf("engine: sign transition: %w", err)
	}
	t.Signature = sig.Serialize()
	return t, nil
}

// VerifyTransition checks the transition signature and its Groth16 proof.
// It needs only what the transition carries.
func (r *Reference) VerifyTransition(t *Transition) error {
	signer, err := btcec.ParsePubKey(t.Signer[:])
	if err != nil {
		return fmt.Errorf("%w: signer: %v", ErrBadSignature, err)
	}
	sig, err := schnorr.ParseSignature(t.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	id := t.ID()
	if !sig.Verify(id[:], signer) {
		return fmt.Errorf("%w: %s/%s", ErrBadSignature, t.Program, t.Function)
	}

	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(bytes.NewReader(t.VerifyingKey)); err != nil {
		return fmt.Errorf("%w: verifying key: %v", ErrProofRejected, err)
	}
	if vk.NbPublicWitness() != len(t.Public)+len(t.Outputs) {
		return fmt.Errorf("%w: statement has %d public values, key expects %d",
			ErrProofRejected, len(t.Public)+len(t.Outputs), vk.NbPublicWitness())
	}
	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(t.Proof)); err != nil {
		return fmt.Errorf("%w: proof: %v", ErrProofRejected, err)
	}

	public, err := frontend.NewWitness(publicAssignment(t.Public, t.Outputs), scalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("%w: statement: %v", ErrProofRejected, err)
	}
	if err := groth16.Verify(proof, vk, public); err != nil {
		return fmt.Errorf("%w: %s/%s: %v", ErrProofRejected, t.Program, t.Function, err)
	}
	return nil
}
