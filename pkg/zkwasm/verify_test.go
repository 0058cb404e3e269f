package zkwasm

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/stretchr/testify/require"

	"github.com/zkwasm/zkwasm-go/internal/engine"
	"github.com/zkwasm/zkwasm-go/internal/program"
	"github.com/zkwasm/zkwasm-go/pkg/zkwasm/node/mocknode"
)

// relabel renames t's program and signs the result with a fresh key, the
// way anyone holding a valid proof can.
func relabel(t *testing.T, tr *engine.Transition, programID string) Transition {
	t.Helper()
	tr.Program = programID
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	copy(tr.Signer[:], priv.PubKey().SerializeCompressed())
	id := tr.ID()
	sig, err := schnorr.Sign(priv, id[:])
	require.NoError(t, err)
	tr.Signature = sig.Serialize()
	return fromEngine(tr)
}

func TestVerifyProofRejectsRelabelledFee(t *testing.T) {
	ctx := context.Background()

	// Same public statement as the credits fee, without the balance check.
	src := strings.NewReplacer(
		CreditsProgramID, "fake.zk",
		"assert.lte r1 r0;", "",
		"sub r0 r1", "add r0 r1",
	).Replace(creditsSource)
	fake, err := program.Parse(src)
	require.NoError(t, err)

	e := engine.New()
	kp, err := e.Synthesize(fake, feeFunction)
	require.NoError(t, err)
	sk, err := e.NewPrivateKey(engine.SeededReader(3))
	require.NoError(t, err)
	tr, err := e.Prove(sk, kp, fake, feeFunction, feeInputs(10, 5000, "sr1", fieldDigest([]byte("call"))))
	require.NoError(t, err)

	forged := relabel(t, tr, CreditsProgramID)
	require.NoError(t, e.VerifyTransition(tr), "the proof itself is valid")

	b := newTestBindings(t, Serial)
	_, err = b.VerifyProof(ctx, newExecution(forged), "")
	requireKind(t, err, KindEngine)
	require.ErrorIs(t, err, engine.ErrProofRejected)

	// A supplied key does not override the held credits keys.
	_, err = b.VerifyProof(ctx, newExecution(forged), forged.VerifyingKey)
	requireKind(t, err, KindEngine)
	require.ErrorIs(t, err, engine.ErrProofRejected)
}

func TestVerifyProofWithSuppliedKey(t *testing.T) {
	ctx := context.Background()
	b := newTestBindings(t, Serial)
	alice := seeded(t, b, 1)

	res, err := b.ExecuteProgram(ctx, executeParams(alice.PrivateKey))
	require.NoError(t, err)
	ok, err := b.VerifyProof(ctx, res.Execution, res.Execution.Transitions[0].VerifyingKey)
	require.NoError(t, err)
	require.True(t, ok)

	foreign, err := newTestBindings(t, Serial).SynthesizeKeys(ctx, helloProgram, "main")
	require.NoError(t, err)
	_, err = b.VerifyProof(ctx, res.Execution, foreign.VerifyingKey)
	requireKind(t, err, KindEngine)
	require.ErrorIs(t, err, engine.ErrProofRejected)

	_, err = b.VerifyProof(ctx, res.Execution, "zz")
	requireKind(t, err, KindInvalidInput)
}

func TestVerifyProofPinsCachedProgramKeys(t *testing.T) {
	ctx := context.Background()
	b := newTestBindings(t, Serial)
	other := newTestBindings(t, Serial)
	alice := seeded(t, b, 1)

	p := executeParams(alice.PrivateKey)
	p.Cache = true
	own, err := b.ExecuteProgram(ctx, p)
	require.NoError(t, err)
	theirs, err := other.ExecuteProgram(ctx, executeParams(alice.PrivateKey))
	require.NoError(t, err)

	ok, err := b.VerifyProof(ctx, own.Execution, "")
	require.NoError(t, err)
	require.True(t, ok)

	// hello.zk is cached in b, so keys set up elsewhere are not trusted.
	_, err = b.VerifyProof(ctx, theirs.Execution, theirs.Execution.Transitions[0].VerifyingKey)
	requireKind(t, err, KindEngine)
	require.ErrorIs(t, err, engine.ErrProofRejected)

	ok, err = other.VerifyProof(ctx, theirs.Execution, "")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyTransactionBindsFee(t *testing.T) {
	ctx := context.Background()
	mock := mocknode.New()
	mock.Deploy("hello.zk", helloProgram)
	b := newTestBindings(t, Serial, WithNode(mock))
	alice := seeded(t, b, 1)
	feeRecord, err := b.EncryptRecord(ctx, Record{Owner: alice.Address, Microcredits: 1000}, alice.Address)
	require.NoError(t, err)

	build := func(inputs ...string) *Transaction {
		t.Helper()
		p := TransactionParams{
			ExecuteParams:   executeParams(alice.PrivateKey),
			FeeMicrocredits: 10,
			FeeRecord:       feeRecord,
			StateRoot:       "sr1pinned",
		}
		p.Program = "hello.zk"
		p.Inputs = inputs
		tx, err := b.BuildTransaction(ctx, p)
		require.NoError(t, err)
		return tx
	}
	first := build("3field", "5u64")
	second := build("3field", "6u64")

	for _, tx := range []*Transaction{first, second} {
		ok, err := b.VerifyTransaction(ctx, tx, "")
		require.NoError(t, err)
		require.True(t, ok)
	}

	swapped := *first
	swapped.Fee = second.Fee
	swapped.ID = transactionID(swapped.Execution, swapped.Fee, swapped.StateRoot)
	_, err = b.VerifyTransaction(ctx, &swapped, "")
	requireKind(t, err, KindEngine)
	require.ErrorIs(t, err, engine.ErrProofRejected)

	moved := *first
	moved.StateRoot = "sr1other"
	moved.ID = transactionID(moved.Execution, moved.Fee, moved.StateRoot)
	_, err = b.VerifyTransaction(ctx, &moved, "")
	requireKind(t, err, KindEngine)
	require.ErrorIs(t, err, engine.ErrProofRejected)

	relabelled := *first
	relabelled.ID = strings.Repeat("0", 64)
	_, err = b.VerifyTransaction(ctx, &relabelled, "")
	requireKind(t, err, KindEngine)

	// The fee alone is no substitute for the transaction.
	noFee := *first
	noFee.Fee = first.Execution.Transitions[0]
	noFee.ID = transactionID(noFee.Execution, noFee.Fee, noFee.StateRoot)
	_, err = b.VerifyTransaction(ctx, &noFee, "")
	requireKind(t, err, KindEngine)
	require.ErrorIs(t, err, engine.ErrProofRejected)

	_, err = b.VerifyTransaction(ctx, nil, "")
	requireKind(t, err, KindInvalidInput)
}

func TestFeeKeysBothOrNeither(t *testing.T) {
	ctx := context.Background()
	b := newTestBindings(t, Serial, WithNode(mocknode.New()))
	alice := seeded(t, b, 1)
	feeRecord, err := b.EncryptRecord(ctx, Record{Owner: alice.Address, Microcredits: 100}, alice.Address)
	require.NoError(t, err)

	p := TransactionParams{
		ExecuteParams:   executeParams(alice.PrivateKey),
		FeeMicrocredits: 10,
		FeeRecord:       feeRecord,
		StateRoot:       "sr1",
		FeeProvingKey:   "00",
	}
	_, err = b.BuildTransaction(ctx, p)
	requireKind(t, err, KindInvalidInput)
	require.Contains(t, err.Error(), "fee_proving_key and fee_verifying_key")

	_, err = b.DeployProgram(ctx, DeployParams{
		PrivateKey:      alice.PrivateKey,
		Program:         helloProgram,
		FeeMicrocredits: 10,
		FeeRecord:       feeRecord,
		FeeVerifyingKey: "00",
	})
	requireKind(t, err, KindInvalidInput)
}

func TestSuppliedFeeKeys(t *testing.T) {
	ctx := context.Background()
	mock := mocknode.New()
	mock.Deploy("hello.zk", helloProgram)

	// first holds credits keys from its first transaction.
	first := newTestBindings(t, Serial, WithNode(mock))
	alice := seeded(t, first, 1)
	feeRecord, err := first.EncryptRecord(ctx, Record{Owner: alice.Address, Microcredits: 1000}, alice.Address)
	require.NoError(t, err)
	params := TransactionParams{
		ExecuteParams:   executeParams(alice.PrivateKey),
		FeeMicrocredits: 10,
		FeeRecord:       feeRecord,
		StateRoot:       "sr1",
	}
	params.Program = "hello.zk"
	_, err = first.BuildTransaction(ctx, params)
	require.NoError(t, err)
	held, ok := first.keys.Lookup(first.credits, feeFunction)
	require.True(t, ok)
	heldPK, err := held.ProvingKeyBytes()
	require.NoError(t, err)
	heldVK, err := held.VerifyingKeyBytes()
	require.NoError(t, err)

	t.Run("cached keys win", func(t *testing.T) {
		foreign, err := engine.New().Synthesize(parseCredits(), feeFunction)
		require.NoError(t, err)
		pk, err := foreign.ProvingKeyBytes()
		require.NoError(t, err)
		vk, err := foreign.VerifyingKeyBytes()
		require.NoError(t, err)

		p := params
		p.FeeProvingKey, p.FeeVerifyingKey = hex.EncodeToString(pk), hex.EncodeToString(vk)
		tx, err := first.BuildTransaction(ctx, p)
		require.NoError(t, err)
		require.Equal(t, hex.EncodeToString(heldVK), tx.Fee.VerifyingKey)
	})

	t.Run("fresh session imports them", func(t *testing.T) {
		second := newTestBindings(t, Serial, WithNode(mock))
		p := params
		p.FeeProvingKey, p.FeeVerifyingKey = hex.EncodeToString(heldPK), hex.EncodeToString(heldVK)
		tx, err := second.BuildTransaction(ctx, p)
		require.NoError(t, err)
		require.Equal(t, hex.EncodeToString(heldVK), tx.Fee.VerifyingKey)

		// Both sessions now trust the same credits keys.
		for _, b := range []*Bindings{first, second} {
			ok, err := b.VerifyTransaction(ctx, tx, "")
			require.NoError(t, err)
			require.True(t, ok)
		}
	})
}
