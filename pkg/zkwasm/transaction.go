package zkwasm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zkwasm/zkwasm-go/internal/engine"
	"github.com/zkwasm/zkwasm-go/internal/program"
	"github.com/zkwasm/zkwasm-go/pkg/zkwasm/dispatch"
)

// TransactionParams describes an execution together with the fee paying
// for it.
type TransactionParams struct {
	ExecuteParams

	// FeeMicrocredits is debited from FeeRecord, which must belong to the
	// signer.
	FeeMicrocredits uint64 `json:"fee_microcredits"`
	FeeRecord       string `json:"fee_record"`
	// FeeProvingKey and FeeVerifyingKey supply keys for the credits fee
	// function. Both or neither must be set; keys already cached win.
	FeeProvingKey   string `json:"fee_proving_key,omitempty"`
	FeeVerifyingKey string `json:"fee_verifying_key,omitempty"`

	// StateRoot pins the transaction to a state root. Empty fetches the
	// latest root from the node.
	StateRoot string `json:"state_root,omitempty"`
	// Broadcast submits the transaction to the node once built.
	Broadcast bool `json:"broadcast"`
}

// BuildTransaction proves the requested execution and a fee transition of
// the built-in credits program. The fee commits to the execution's
// function, verifying key, public inputs and signer, so the two transitions
// are proven as independent shards.
func (b *Bindings) BuildTransaction(ctx context.Context, p TransactionParams) (*Transaction, error) {
	const op = "build_transaction"
	return guarded(ctx, b, op, func() (*Transaction, error) {
		feeCT, err := decodeCiphertext(p.FeeRecord)
		if err != nil {
			return nil, fmt.Errorf("fee record: %w", err)
		}
		if p.FeeMicrocredits == 0 {
			return nil, invalid(op, "fee_microcredits must be positive")
		}
		feeExt, err := decodeExternalKeys(op, "fee_", p.FeeProvingKey, p.FeeVerifyingKey)
		if err != nil {
			return nil, err
		}
		if (p.Broadcast || p.StateRoot == "") && b.node == nil {
			return nil, &Error{Kind: KindInvalidInput, Op: op, Err: ErrNoNode}
		}
		exec, err := b.prepare(ctx, op, p.ExecuteParams)
		if err != nil {
			return nil, err
		}
		defer ZeroizeBytes(exec.sk[:])
		if exec.prog.ID == CreditsProgramID {
			return nil, invalid(op, "%s cannot be executed as the paid call", CreditsProgramID)
		}

		payer, err := b.feeBalance(ctx, exec.sk, feeCT, p.FeeMicrocredits)
		if err != nil {
			return nil, err
		}
		root, err := b.stateRoot(ctx, p.StateRoot)
		if err != nil {
			return nil, err
		}
		if err := b.evaluate(ctx, exec); err != nil {
			return nil, err
		}
		fee := &call{
			sk:   exec.sk,
			prog: b.credits,
			fn:   feeFunction,
			ext:  b.feeKeys(ctx, feeExt),
		}
		defer ZeroizeBytes(fee.sk[:])

		calls := []*call{exec, fee}
		keep := []bool{p.Cache, true}
		kps, err := dispatch.Map(ctx, b.ctx.Dispatcher(), calls, func(ctx context.Context, _ int, c *call) (*engine.KeyPair, error) {
			return b.loadKeys(ctx, c.prog, c.fn, c.ext)
		})
		if err != nil {
			return nil, err
		}
		for i, c := range calls {
			b.keep(ctx, c.prog, c.fn, kps[i], keep[i])
		}

		vk, err := kps[0].VerifyingKeyBytes()
		if err != nil {
			return nil, err
		}
		paid := callCommitment(exec.prog.ID, exec.fn, vk, publicInputs(exec), payer.addr.Signing)
		fee.inputs = feeInputs(payer.balance, p.FeeMicrocredits, root, paid)

		ts, err := dispatch.Map(ctx, b.ctx.Dispatcher(), calls, func(ctx context.Context, i int, c *call) (Transition, error) {
			t, err := b.engine.Prove(c.sk, kps[i], c.prog, c.fn, c.inputs)
			if err != nil {
				return Transition{}, err
			}
			return fromEngine(t), nil
		})
		if err != nil {
			return nil, err
		}

		execution := newExecution(ts[0])
		tx := &Transaction{
			ID:        transactionID(execution, ts[1], root),
			StateRoot: root,
			Execution: execution,
			Fee:       ts[1],
		}
		if p.Broadcast {
			if tx.BroadcastID, err = b.broadcast(ctx, tx); err != nil {
				return nil, err
			}
		}
		b.logger.Info(ctx, "transaction built", "transaction", tx.ID, "program", exec.prog.ID, "function", exec.fn)
		return tx, nil
	})
}

// publicInputs returns c's public inputs in declaration order, the way the
// engine places them in a transition.
func publicInputs(c *call) []program.Value {
	fn, err := c.prog.Function(c.fn)
	if err != nil {
		return nil
	}
	var out []program.Value
	for i, in := range fn.Inputs {
		if in.Visibility == program.Public {
			out = append(out, c.inputs[i])
		}
	}
	return out
}

func (b *Bindings) stateRoot(ctx context.Context, pinned string) (string, error) {
	if pinned != "" {
		return pinned, nil
	}
	return b.node.StateRoot(ctx)
}

func (b *Bindings) broadcast(ctx context.Context, v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode for broadcast: %w", err)
	}
	return b.node.Broadcast(ctx, raw)
}

type payer struct {
	addr    engine.Address
	balance uint64
}

// feeBalance opens the fee record with the payer's view key and checks that
// it belongs to the payer and covers the fee.
func (b *Bindings) feeBalance(ctx context.Context, sk engine.PrivateKey, ct []byte, fee uint64) (payer, error) {
	type opened struct {
		addr engine.Address
		rec  *Record
	}
	got, err := run(ctx, b, func(context.Context) (opened, error) {
		vk, err := b.engine.ViewKey(sk)
		if err != nil {
			return opened{}, err
		}
		defer ZeroizeBytes(vk[:])
		addr, err := b.engine.Address(sk)
		if err != nil {
			return opened{}, err
		}
		rec, err := b.open(ct, vk)
		if err != nil {
			return opened{}, fmt.Errorf("%w: %w", ErrRecordOwner, err)
		}
		return opened{addr: addr, rec: rec}, nil
	})
	if err != nil {
		return payer{}, err
	}
	if got.rec.Owner != encodeAddress(got.addr) {
		return payer{}, ErrRecordOwner
	}
	if got.rec.Microcredits < fee {
		return payer{}, fmt.Errorf("%w: balance %d, fee %d", ErrInsufficientFee, got.rec.Microcredits, fee)
	}
	return payer{addr: got.addr, balance: got.rec.Microcredits}, nil
}
