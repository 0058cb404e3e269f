package zkwasm

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/zkwasm/zkwasm-go/internal/engine"
	"github.com/zkwasm/zkwasm-go/internal/program"
)

// Record is the plaintext of an encrypted record.
type Record struct {
	// Owner is the address the record belongs to.
	Owner        string            `json:"owner"`
	Microcredits uint64            `json:"microcredits"`
	Data         map[string]string `json:"data,omitempty"`
}

// OwnedRecord is a record found by ScanRecords, with its position in the
// scanned batch.
type OwnedRecord struct {
	Index  int    `json:"index"`
	Record Record `json:"record"`
}

// Transition is the host form of one proven function call. Values use the
// program literal syntax; binary fields are hex.
type Transition struct {
	ID           string   `json:"id"`
	Program      string   `json:"program"`
	Function     string   `json:"function"`
	Public       []string `json:"public"`
	Outputs      []string `json:"outputs"`
	Proof        string   `json:"proof"`
	VerifyingKey string   `json:"verifying_key"`
	Signer       string   `json:"signer"`
	Signature    string   `json:"signature"`
}

// Execution groups the transitions of one program execution.
type Execution struct {
	ID          string       `json:"id"`
	Transitions []Transition `json:"transitions"`
}

// ExecuteResult is the payload of ExecuteProgram.
type ExecuteResult struct {
	Outputs   []string   `json:"outputs"`
	Execution *Execution `json:"execution"`
}

// Transaction is an execution paid for by a fee transition.
type Transaction struct {
	ID        string     `json:"id"`
	StateRoot string     `json:"state_root"`
	Execution *Execution `json:"execution"`
	Fee       Transition `json:"fee"`
	// BroadcastID is the node's transaction ID when the transaction was
	// broadcast.
	BroadcastID string `json:"broadcast_id,omitempty"`
}

// KeyPair is the payload of SynthesizeKeys.
type KeyPair struct {
	ProvingKey   string `json:"proving_key"`
	VerifyingKey string `json:"verifying_key"`
}

func valueStrings(vs []program.Value) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}

func parseValues(ss []string) ([]program.Value, error) {
	out := make([]program.Value, len(ss))
	for i, s := range ss {
		v, err := program.ParseValue(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func fromEngine(t *engine.Transition) Transition {
	return Transition{
		ID:           t.IDString(),
		Program:      t.Program,
		Function:     t.Function,
		Public:       valueStrings(t.Public),
		Outputs:      valueStrings(t.Outputs),
		Proof:        hex.EncodeToString(t.Proof),
		VerifyingKey: hex.EncodeToString(t.VerifyingKey),
		Signer:       hex.EncodeToString(t.Signer[:]),
		Signature:    hex.EncodeToString(t.Signature),
	}
}

// toEngine decodes the host form. Malformed fields are input errors; a
// well-formed transition whose ID does not match its content is rejected
// the same way a bad signature is.
func (t Transition) toEngine(op string) (*engine.Transition, error) {
	out := &engine.Transition{Program: t.Program, Function: t.Function}
	if !program.ValidID(t.Program) || !program.ValidFunctionName(t.Function) {
		return nil, invalid(op, "transition names %q/%q", t.Program, t.Function)
	}
	var err error
	if out.Public, err = parseValues(t.Public); err != nil {
		return nil, invalid(op, "transition public values: %w", err)
	}
	if out.Outputs, err = parseValues(t.Outputs); err != nil {
		return nil, invalid(op, "transition outputs: %w", err)
	}
	fields := []struct {
		name string
		src  string
		dst  *[]byte
	}{
		{"proof", t.Proof, &out.Proof},
		{"verifying key", t.VerifyingKey, &out.VerifyingKey},
		{"signature", t.Signature, &out.Signature},
	}
	for _, f := range fields {
		if *f.dst, err = hex.DecodeString(f.src); err != nil || len(*f.dst) == 0 {
			return nil, invalid(op, "transition %s is not valid hex", f.name)
		}
	}
	signer, err := hex.DecodeString(t.Signer)
	if err != nil || len(signer) != len(out.Signer) {
		return nil, invalid(op, "transition signer must be %d hex-encoded bytes", len(out.Signer))
	}
	copy(out.Signer[:], signer)
	if out.IDString() != t.ID {
		return nil, fmt.Errorf("%w: transition ID does not match its content", engine.ErrBadSignature)
	}
	return out, nil
}

// digest is the BLAKE2b-256 of length-prefixed parts, hex encoded.
func digest(parts ...string) string {
	var buf []byte
	for _, p := range parts {
		buf = binary.AppendUvarint(buf, uint64(len(p)))
		buf = append(buf, p...)
	}
	sum := blake2b.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

func executionID(ts []Transition) string {
	ids := make([]string, 0, len(ts)+1)
	ids = append(ids, "execution")
	for _, t := range ts {
		ids = append(ids, t.ID)
	}
	return digest(ids...)
}

func newExecution(ts ...Transition) *Execution {
	return &Execution{ID: executionID(ts), Transitions: ts}
}

func transactionID(exec *Execution, fee Transition, stateRoot string) string {
	return digest("transaction", exec.ID, fee.ID, stateRoot)
}
