package zkwasm

import (
	"context"
	"encoding/hex"

	"github.com/zkwasm/zkwasm-go/internal/engine"
	"github.com/zkwasm/zkwasm-go/internal/program"
)

// ExecuteParams describes one program execution.
type ExecuteParams struct {
	PrivateKey string `json:"private_key"`
	// Program is either program source or the ID of a cached or deployed
	// program.
	Program  string   `json:"program"`
	Function string   `json:"function"`
	Inputs   []string `json:"inputs"`
	// Cache keeps the program and its synthesized keys for later calls.
	Cache bool `json:"cache"`
	// ProvingKey and VerifyingKey supply externally generated keys. Both or
	// neither must be set.
	ProvingKey   string `json:"proving_key,omitempty"`
	VerifyingKey string `json:"verifying_key,omitempty"`
}

type call struct {
	sk     engine.PrivateKey
	prog   *program.Program
	fn     string
	inputs []program.Value
	ext    *externalKeys
}

func (b *Bindings) prepare(ctx context.Context, op string, p ExecuteParams) (*call, error) {
	sk, err := decodePrivateKey(p.PrivateKey)
	if err != nil {
		return nil, err
	}
	c := &call{sk: sk, fn: p.Function}
	if c.ext, err = decodeExternalKeys(op, "", p.ProvingKey, p.VerifyingKey); err != nil {
		return nil, err
	}
	if c.prog, err = b.resolveProgram(ctx, op, p.Program); err != nil {
		return nil, err
	}
	fn, err := c.prog.Function(p.Function)
	if err != nil {
		return nil, err
	}
	if c.inputs, err = fn.ParseInputs(p.Inputs); err != nil {
		return nil, err
	}
	if p.Cache {
		err = b.keys.Bind(c.prog)
	} else {
		err = b.keys.Check(c.prog)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// decodeExternalKeys decodes a hex proving/verifying key pair named
// prefix+"proving_key" and prefix+"verifying_key". Both or neither must be
// set.
func decodeExternalKeys(op, prefix, pk, vk string) (*externalKeys, error) {
	if pk == "" && vk == "" {
		return nil, nil
	}
	if pk == "" || vk == "" {
		return nil, invalid(op, "%sproving_key and %sverifying_key must be supplied together", prefix, prefix)
	}
	var (
		ext externalKeys
		err error
	)
	if ext.proving, err = hex.DecodeString(pk); err != nil || len(ext.proving) == 0 {
		return nil, invalid(op, "%sproving_key is not valid hex", prefix)
	}
	if ext.verifying, err = hex.DecodeString(vk); err != nil || len(ext.verifying) == 0 {
		return nil, invalid(op, "%sverifying_key is not valid hex", prefix)
	}
	return &ext, nil
}

// prove proves c with kp and signs the transition.
func (b *Bindings) prove(ctx context.Context, c *call, kp *engine.KeyPair) (Transition, error) {
	t, err := run(ctx, b, func(context.Context) (*engine.Transition, error) {
		return b.engine.Prove(c.sk, kp, c.prog, c.fn, c.inputs)
	})
	if err != nil {
		return Transition{}, err
	}
	return fromEngine(t), nil
}

// evaluate runs c natively so failing assertions surface before any key
// synthesis.
func (b *Bindings) evaluate(ctx context.Context, c *call) error {
	_, err := run(ctx, b, func(context.Context) ([]program.Value, error) {
		return b.engine.Evaluate(c.prog, c.fn, c.inputs)
	})
	return err
}

// ExecuteProgram runs a program function, proves the run and signs the
// resulting transition.
func (b *Bindings) ExecuteProgram(ctx context.Context, p ExecuteParams) (*ExecuteResult, error) {
	const op = "execute_program"
	return guarded(ctx, b, op, func() (*ExecuteResult, error) {
		c, err := b.prepare(ctx, op, p)
		if err != nil {
			return nil, err
		}
		defer ZeroizeBytes(c.sk[:])
		if err := b.evaluate(ctx, c); err != nil {
			return nil, err
		}
		kp, err := b.keysFor(ctx, c.prog, c.fn, p.Cache, c.ext)
		if err != nil {
			return nil, err
		}
		t, err := b.prove(ctx, c, kp)
		if err != nil {
			return nil, err
		}
		b.logger.Debug(ctx, "program executed", "program", c.prog.ID, "function", c.fn, "transition", t.ID)
		return &ExecuteResult{Outputs: t.Outputs, Execution: newExecution(t)}, nil
	})
}

// SynthesizeKeys returns the proving and verifying keys of a program
// function. The keys and the program are cached.
func (b *Bindings) SynthesizeKeys(ctx context.Context, prog, function string) (*KeyPair, error) {
	const op = "synthesize_keys"
	return guarded(ctx, b, op, func() (*KeyPair, error) {
		p, err := b.resolveProgram(ctx, op, prog)
		if err != nil {
			return nil, err
		}
		if _, err := p.Function(function); err != nil {
			return nil, err
		}
		if err := b.keys.Bind(p); err != nil {
			return nil, err
		}
		kp, err := b.keysFor(ctx, p, function, true, nil)
		if err != nil {
			return nil, err
		}
		pk, err := kp.ProvingKeyBytes()
		if err != nil {
			return nil, err
		}
		vk, err := kp.VerifyingKeyBytes()
		if err != nil {
			return nil, err
		}
		return &KeyPair{ProvingKey: hex.EncodeToString(pk), VerifyingKey: hex.EncodeToString(vk)}, nil
	})
}
