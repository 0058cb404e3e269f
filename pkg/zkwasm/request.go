package zkwasm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/zkwasm/zkwasm-go/pkg/zkwasm/bridge"
)

// Op names a binding entry point in a Request.
type Op string

const (
	OpGeneratePrivateKey Op = "generate_private_key"
	OpDeriveViewKey      Op = "derive_view_key"
	OpDeriveAddress      Op = "derive_address"
	OpEncryptRecord      Op = "encrypt_record"
	OpDecryptRecord      Op = "decrypt_record"
	OpScanRecords        Op = "scan_records"
	OpSign               Op = "sign"
	OpVerifySignature    Op = "verify_signature"
	OpBuildTransaction   Op = "build_transaction"
	OpExecuteProgram     Op = "execute_program"
	OpVerifyProof        Op = "verify_proof"
	OpSynthesizeKeys     Op = "synthesize_keys"
	OpVerifyTransaction  Op = "verify_transaction"
	OpDeployProgram      Op = "deploy_program"
	OpVerifyDeployment   Op = "verify_deployment"
)

// Ops lists every operation Invoke accepts.
func Ops() []Op {
	return []Op{
		OpGeneratePrivateKey, OpDeriveViewKey, OpDeriveAddress,
		OpEncryptRecord, OpDecryptRecord, OpScanRecords,
		OpSign, OpVerifySignature,
		OpBuildTransaction, OpExecuteProgram, OpVerifyProof, OpSynthesizeKeys,
		OpVerifyTransaction, OpDeployProgram, OpVerifyDeployment,
	}
}

// Request is one host call.
type Request struct {
	Op     Op              `json:"op"`
	Params json.RawMessage `json:"params,omitempty"`
}

// ErrorValue is the host form of an *Error.
type ErrorValue struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Result is the host form of a call's outcome. Exactly one of Payload and
// Error is set.
type Result struct {
	OK      bool        `json:"ok"`
	Payload any         `json:"payload,omitempty"`
	Error   *ErrorValue `json:"error,omitempty"`
}

func okResult(payload any) Result {
	return Result{OK: true, Payload: payload}
}

func errResult(err error) Result {
	return Result{Error: &ErrorValue{Kind: KindOf(err), Message: err.Error()}}
}

// params decodes raw into a new T, rejecting unknown fields.
func params[T any](op Op, raw json.RawMessage) (T, error) {
	var v T
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, invalid(string(op), "params: %w", err)
	}
	return v, nil
}

func result(v any, err error) Result {
	if err != nil {
		return errResult(err)
	}
	return okResult(v)
}

type (
	seedParams struct {
		Seed *uint64 `json:"seed,omitempty"`
	}
	privateKeyParams struct {
		PrivateKey string `json:"private_key"`
	}
	encryptParams struct {
		Record    Record `json:"record"`
		Recipient string `json:"recipient"`
	}
	decryptParams struct {
		Ciphertext string `json:"ciphertext"`
		ViewKey    string `json:"view_key"`
	}
	scanParams struct {
		ViewKey     string   `json:"view_key"`
		Ciphertexts []string `json:"ciphertexts"`
	}
	signParams struct {
		PrivateKey string `json:"private_key"`
		Message    string `json:"message"`
	}
	verifySignatureParams struct {
		Address   string `json:"address"`
		Message   string `json:"message"`
		Signature string `json:"signature"`
	}
	verifyProofParams struct {
		Execution    *Execution `json:"execution"`
		VerifyingKey string     `json:"verifying_key,omitempty"`
	}
	verifyTransactionParams struct {
		Transaction  *Transaction `json:"transaction"`
		VerifyingKey string       `json:"verifying_key,omitempty"`
	}
	verifyDeploymentParams struct {
		Deployment *Deployment `json:"deployment"`
	}
	synthesizeParams struct {
		Program  string `json:"program"`
		Function string `json:"function"`
	}
)

// Invoke dispatches req to the matching entry point. It never panics and
// never returns a partial payload.
func (b *Bindings) Invoke(ctx context.Context, req Request) Result {
	var res Result
	err := bridge.Guard(ctx, string(req.Op), func() error {
		res = b.invoke(ctx, req)
		return nil
	})
	if err != nil {
		return errResult(RemapError(string(req.Op), err))
	}
	return res
}

func (b *Bindings) invoke(ctx context.Context, req Request) Result {
	switch req.Op {
	case OpGeneratePrivateKey:
		p, err := params[seedParams](req.Op, req.Params)
		if err != nil {
			return errResult(err)
		}
		return result(b.GeneratePrivateKey(ctx, p.Seed))
	case OpDeriveViewKey:
		p, err := params[privateKeyParams](req.Op, req.Params)
		if err != nil {
			return errResult(err)
		}
		return result(b.DeriveViewKey(ctx, p.PrivateKey))
	case OpDeriveAddress:
		p, err := params[privateKeyParams](req.Op, req.Params)
		if err != nil {
			return errResult(err)
		}
		return result(b.DeriveAddress(ctx, p.PrivateKey))
	case OpEncryptRecord:
		p, err := params[encryptParams](req.Op, req.Params)
		if err != nil {
			return errResult(err)
		}
		return result(b.EncryptRecord(ctx, p.Record, p.Recipient))
	case OpDecryptRecord:
		p, err := params[decryptParams](req.Op, req.Params)
		if err != nil {
			return errResult(err)
		}
		return result(b.DecryptRecord(ctx, p.Ciphertext, p.ViewKey))
	case OpScanRecords:
		p, err := params[scanParams](req.Op, req.Params)
		if err != nil {
			return errResult(err)
		}
		return result(b.ScanRecords(ctx, p.ViewKey, p.Ciphertexts))
	case OpSign:
		p, err := params[signParams](req.Op, req.Params)
		if err != nil {
			return errResult(err)
		}
		return result(b.Sign(ctx, p.PrivateKey, p.Message))
	case OpVerifySignature:
		p, err := params[verifySignatureParams](req.Op, req.Params)
		if err != nil {
			return errResult(err)
		}
		return result(b.VerifySignature(ctx, p.Address, p.Message, p.Signature))
	case OpBuildTransaction:
		p, err := params[TransactionParams](req.Op, req.Params)
		if err != nil {
			return errResult(err)
		}
		return result(b.BuildTransaction(ctx, p))
	case OpExecuteProgram:
		p, err := params[ExecuteParams](req.Op, req.Params)
		if err != nil {
			return errResult(err)
		}
		return result(b.ExecuteProgram(ctx, p))
	case OpVerifyProof:
		p, err := params[verifyProofParams](req.Op, req.Params)
		if err != nil {
			return errResult(err)
		}
		return result(b.VerifyProof(ctx, p.Execution, p.VerifyingKey))
	case OpSynthesizeKeys:
		p, err := params[synthesizeParams](req.Op, req.Params)
		if err != nil {
			return errResult(err)
		}
		return result(b.SynthesizeKeys(ctx, p.Program, p.Function))
	case OpVerifyTransaction:
		p, err := params[verifyTransactionParams](req.Op, req.Params)
		if err != nil {
			return errResult(err)
		}
		return result(b.VerifyTransaction(ctx, p.Transaction, p.VerifyingKey))
	case OpDeployProgram:
		p, err := params[DeployParams](req.Op, req.Params)
		if err != nil {
			return errResult(err)
		}
		return result(b.DeployProgram(ctx, p))
	case OpVerifyDeployment:
		p, err := params[verifyDeploymentParams](req.Op, req.Params)
		if err != nil {
			return errResult(err)
		}
		return result(b.VerifyDeployment(ctx, p.Deployment))
	default:
		return errResult(invalid("invoke", "unknown op %q", req.Op))
	}
}

// InvokeJSON decodes a JSON Request, runs it and encodes the Result.
func (b *Bindings) InvokeJSON(ctx context.Context, raw []byte) []byte {
	var req Request
	var res Result
	if err := json.Unmarshal(raw, &req); err != nil {
		res = errResult(invalid("invoke", "request: %w", err))
	} else {
		res = b.Invoke(ctx, req)
	}
	out, err := json.Marshal(res)
	if err != nil {
		out, _ = json.Marshal(errResult(&Error{Kind: KindInternal, Op: string(req.Op), Err: fmt.Errorf("encode result: %w", err)}))
	}
	return out
}
