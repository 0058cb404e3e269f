package zkwasm

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/zkwasm/zkwasm-go/internal/engine"
	"github.com/zkwasm/zkwasm-go/internal/program"
	"github.com/zkwasm/zkwasm-go/pkg/zkwasm/dispatch"
)

// DeployParams describes a program deployment paid for by a fee record.
type DeployParams struct {
	PrivateKey string `json:"private_key"`
	// Program is the source of the program to deploy.
	Program string `json:"program"`

	FeeMicrocredits uint64 `json:"fee_microcredits"`
	FeeRecord       string `json:"fee_record"`
	FeeProvingKey   string `json:"fee_proving_key,omitempty"`
	FeeVerifyingKey string `json:"fee_verifying_key,omitempty"`

	// StateRoot pins the deployment to a state root. Empty fetches the
	// latest root from the node.
	StateRoot string `json:"state_root,omitempty"`
}

// Deployment publishes a program with the verifying keys of its functions.
type Deployment struct {
	ID      string `json:"id"`
	Program string `json:"program"`
	Source  string `json:"source"`
	// VerifyingKeys maps function names to hex verifying keys.
	VerifyingKeys map[string]string `json:"verifying_keys"`
	StateRoot     string            `json:"state_root"`
	Fee           Transition        `json:"fee"`
	BroadcastID   string            `json:"broadcast_id,omitempty"`
}

// DeployProgram binds a program, synthesizes and caches the keys of every
// function, proves a fee committing to the program and its verifying keys
// and broadcasts the deployment to the node.
func (b *Bindings) DeployProgram(ctx context.Context, p DeployParams) (*Deployment, error) {
	const op = "deploy_program"
	return guarded(ctx, b, op, func() (*Deployment, error) {
		sk, err := decodePrivateKey(p.PrivateKey)
		if err != nil {
			return nil, err
		}
		defer ZeroizeBytes(sk[:])
		feeCT, err := decodeCiphertext(p.FeeRecord)
		if err != nil {
			return nil, invalid(op, "fee record: %w", err)
		}
		if p.FeeMicrocredits == 0 {
			return nil, invalid(op, "fee_microcredits must be positive")
		}
		feeExt, err := decodeExternalKeys(op, "fee_", p.FeeProvingKey, p.FeeVerifyingKey)
		if err != nil {
			return nil, err
		}
		if b.node == nil {
			return nil, &Error{Kind: KindInvalidInput, Op: op, Err: ErrNoNode}
		}
		if p.Program == "" || program.ValidID(p.Program) {
			return nil, invalid(op, "program source is required")
		}
		prog, err := program.Parse(p.Program)
		if err != nil {
			return nil, err
		}
		if prog.ID == CreditsProgramID {
			return nil, invalid(op, "%s is built in", CreditsProgramID)
		}
		if err := b.keys.Check(prog); err != nil {
			return nil, err
		}

		payer, err := b.feeBalance(ctx, sk, feeCT, p.FeeMicrocredits)
		if err != nil {
			return nil, err
		}
		root, err := b.stateRoot(ctx, p.StateRoot)
		if err != nil {
			return nil, err
		}
		if err := b.keys.Bind(prog); err != nil {
			return nil, err
		}

		fns := prog.Functions()
		kps, err := dispatch.Map(ctx, b.ctx.Dispatcher(), fns, func(ctx context.Context, _ int, fn string) (*engine.KeyPair, error) {
			return b.loadKeys(ctx, prog, fn, nil)
		})
		if err != nil {
			return nil, err
		}
		vks := make([][]byte, len(fns))
		d := &Deployment{
			Program:       prog.ID,
			Source:        prog.Source,
			VerifyingKeys: make(map[string]string, len(fns)),
			StateRoot:     root,
		}
		for i, fn := range fns {
			b.keep(ctx, prog, fn, kps[i], true)
			if vks[i], err = kps[i].VerifyingKeyBytes(); err != nil {
				return nil, err
			}
			d.VerifyingKeys[fn] = hex.EncodeToString(vks[i])
		}

		fee := &call{
			sk:     sk,
			prog:   b.credits,
			fn:     feeFunction,
			inputs: feeInputs(payer.balance, p.FeeMicrocredits, root, deployCommitment(prog, vks, payer.addr.Signing)),
			ext:    b.feeKeys(ctx, feeExt),
		}
		defer ZeroizeBytes(fee.sk[:])
		feeKP, err := b.keysFor(ctx, fee.prog, fee.fn, true, fee.ext)
		if err != nil {
			return nil, err
		}
		if d.Fee, err = b.prove(ctx, fee, feeKP); err != nil {
			return nil, err
		}
		pd := prog.Digest()
		d.ID = digest("deployment", prog.ID, hex.EncodeToString(pd[:]), d.Fee.ID, root)

		if d.BroadcastID, err = b.broadcast(ctx, d); err != nil {
			return nil, err
		}
		b.logger.Info(ctx, "program deployed", "program", prog.ID, "deployment", d.ID)
		return d, nil
	})
}

// VerifyDeployment checks a deployment's ID, its fee under the held credits
// keys and that the fee commits to exactly this source and these verifying
// keys.
func (b *Bindings) VerifyDeployment(ctx context.Context, d *Deployment) (bool, error) {
	const op = "verify_deployment"
	return guarded(ctx, b, op, func() (bool, error) {
		if d == nil {
			return false, invalid(op, "deployment is required")
		}
		prog, err := program.Parse(d.Source)
		if err != nil {
			return false, err
		}
		if prog.ID != d.Program {
			return false, invalid(op, "source declares %s, deployment names %s", prog.ID, d.Program)
		}
		fns := prog.Functions()
		if len(d.VerifyingKeys) != len(fns) {
			return false, invalid(op, "deployment carries %d verifying keys for %d functions", len(d.VerifyingKeys), len(fns))
		}
		vks := make([][]byte, len(fns))
		for i, fn := range fns {
			if vks[i], err = decodeVerifyingKey(op, d.VerifyingKeys[fn]); err != nil || vks[i] == nil {
				return false, invalid(op, "verifying key for %s is missing or malformed", fn)
			}
		}
		fee, err := d.Fee.toEngine(op)
		if err != nil {
			return false, err
		}
		pd := prog.Digest()
		if d.ID != digest("deployment", prog.ID, hex.EncodeToString(pd[:]), d.Fee.ID, d.StateRoot) {
			return false, fmt.Errorf("%w: deployment ID does not match its content", engine.ErrProofRejected)
		}
		if err := checkFee(fee, d.StateRoot, deployCommitment(prog, vks, fee.Signer)); err != nil {
			return false, err
		}
		if err := b.verifyTransitions(ctx, []*engine.Transition{fee}, nil); err != nil {
			return false, err
		}
		return true, nil
	})
}
