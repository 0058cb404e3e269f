package zkwasm

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/zkwasm/zkwasm-go/internal/engine"
	"github.com/zkwasm/zkwasm-go/internal/program"
	"github.com/zkwasm/zkwasm-go/pkg/zkwasm/dispatch"
)

// VerifyProof verifies the signature and proof of every transition in exec.
// It returns true or a KindEngine error naming the first rejected
// transition.
//
// A transition is checked against the verifying key this session holds for
// its function: the credits program always, other programs once they are
// cached. verifyingKey (hex, optional) is trusted for transitions of
// programs without held keys; without it such transitions are checked
// against the key they carry.
func (b *Bindings) VerifyProof(ctx context.Context, exec *Execution, verifyingKey string) (bool, error) {
	const op = "verify_proof"
	return guarded(ctx, b, op, func() (bool, error) {
		supplied, err := decodeVerifyingKey(op, verifyingKey)
		if err != nil {
			return false, err
		}
		ts, err := decodeExecution(op, exec)
		if err != nil {
			return false, err
		}
		if err := b.verifyTransitions(ctx, ts, supplied); err != nil {
			return false, err
		}
		return true, nil
	})
}

// VerifyTransaction verifies a transaction built by BuildTransaction: every
// execution transition, the fee transition under the held credits keys and
// the binding between them. A fee moved onto another execution or state
// root is rejected.
func (b *Bindings) VerifyTransaction(ctx context.Context, tx *Transaction, verifyingKey string) (bool, error) {
	const op = "verify_transaction"
	return guarded(ctx, b, op, func() (bool, error) {
		supplied, err := decodeVerifyingKey(op, verifyingKey)
		if err != nil {
			return false, err
		}
		if tx == nil {
			return false, invalid(op, "transaction is required")
		}
		ts, err := decodeExecution(op, tx.Execution)
		if err != nil {
			return false, err
		}
		fee, err := tx.Fee.toEngine(op)
		if err != nil {
			return false, err
		}
		if tx.ID != transactionID(tx.Execution, tx.Fee, tx.StateRoot) {
			return false, fmt.Errorf("%w: transaction ID does not match its content", engine.ErrProofRejected)
		}
		if err := checkFee(fee, tx.StateRoot, transitionCommitment(ts[0])); err != nil {
			return false, err
		}
		if err := b.verifyTransitions(ctx, append(ts, fee), supplied); err != nil {
			return false, err
		}
		return true, nil
	})
}

func decodeVerifyingKey(op, s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	vk, err := hex.DecodeString(s)
	if err != nil || len(vk) == 0 {
		return nil, invalid(op, "verifying_key is not valid hex")
	}
	return vk, nil
}

func decodeExecution(op string, exec *Execution) ([]*engine.Transition, error) {
	if exec == nil || len(exec.Transitions) == 0 {
		return nil, invalid(op, "execution has no transitions")
	}
	ts := make([]*engine.Transition, len(exec.Transitions))
	for i, t := range exec.Transitions {
		var err error
		if ts[i], err = t.toEngine(op); err != nil {
			return nil, err
		}
	}
	if exec.ID != executionID(exec.Transitions) {
		return nil, fmt.Errorf("%w: execution ID does not match its transitions", engine.ErrProofRejected)
	}
	return ts, nil
}

// checkFee checks that fee is a credits fee transition bound to root and to
// the paid call.
func checkFee(fee *engine.Transition, root string, paid program.Value) error {
	if fee.Program != CreditsProgramID || fee.Function != feeFunction {
		return fmt.Errorf("%w: fee transition is %s/%s", engine.ErrProofRejected, fee.Program, fee.Function)
	}
	if len(fee.Public) != feeCallIndex+1 {
		return fmt.Errorf("%w: fee transition has %d public inputs", engine.ErrProofRejected, len(fee.Public))
	}
	want := stateRootValue(root)
	if !fee.Public[feeRootIndex].Element.Equal(&want.Element) {
		return fmt.Errorf("%w: fee was built against another state root", engine.ErrProofRejected)
	}
	if !fee.Public[feeCallIndex].Element.Equal(&paid.Element) {
		return fmt.Errorf("%w: fee pays for another call", engine.ErrProofRejected)
	}
	return nil
}

// verifyTransitions pins every transition to a trusted verifying key where
// one exists, then verifies signatures and proofs as one sharded batch.
func (b *Bindings) verifyTransitions(ctx context.Context, ts []*engine.Transition, supplied []byte) error {
	for i, t := range ts {
		held, ok, err := b.heldVerifyingKey(ctx, t)
		if err != nil {
			return fmt.Errorf("transition %d: %w", i, err)
		}
		if !ok && supplied != nil {
			held, ok = supplied, true
		}
		if ok && subtle.ConstantTimeCompare(held, t.VerifyingKey) != 1 {
			return fmt.Errorf("transition %d: %w: %s/%s is not proven under the trusted verifying key",
				i, engine.ErrProofRejected, t.Program, t.Function)
		}
	}
	_, err := dispatch.Map(ctx, b.ctx.Dispatcher(), ts, func(ctx context.Context, i int, t *engine.Transition) (struct{}, error) {
		if err := b.engine.VerifyTransition(t); err != nil {
			return struct{}{}, fmt.Errorf("transition %d: %w", i, err)
		}
		return struct{}{}, nil
	})
	return err
}
