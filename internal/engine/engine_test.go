package engine

import (
	"bytes"
	"crypto/rand"
	"io"
	"os"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/stretchr/testify/require"

	"github.com/zkwasm/zkwasm-go/internal/program"
)

const testProgram = `program square.zk;

function main:
    input r0 as field.private;
    input r1 as field.public;
    add r0 r1 into r2;
    mul r2 r2 into r3;
    hash.mimc r3 r0 into r4;
    assert.lte r1 100field;
    output r4 as field.public;

function change:
    input r0 as u64.private;
    input r1 as u64.public;
    assert.lte r1 r0;
    sub r0 r1 into r2;
    output r2 as u64.public;
`

func mustParse(t *testing.T, src string) *program.Program {
	t.Helper()
	p, err := program.Parse(src)
	require.NoError(t, err)
	return p
}

func mustInputs(t *testing.T, p *program.Program, fn string, raw ...string) []program.Value {
	t.Helper()
	f, err := p.Function(fn)
	require.NoError(t, err)
	v, err := f.ParseInputs(raw)
	require.NoError(t, err)
	return v
}

func TestSeededAccountIsDeterministic(t *testing.T) {
	e := New()
	a, err := e.NewPrivateKey(SeededReader(7))
	require.NoError(t, err)
	b, err := e.NewPrivateKey(SeededReader(7))
	require.NoError(t, err)
	require.Equal(t, a, b)

	c, err := e.NewPrivateKey(SeededReader(8))
	require.NoError(t, err)
	require.NotEqual(t, a, c)

	addrA, err := e.Address(a)
	require.NoError(t, err)
	addrB, err := e.Address(b)
	require.NoError(t, err)
	require.Equal(t, addrA, addrB)

	parsed, err := ParseAddress(addrA.Bytes())
	require.NoError(t, err)
	require.Equal(t, addrA, parsed)
}

func TestParseRejectsBadKeys(t *testing.T) {
	_, err := ParsePrivateKey(make([]byte, 32))
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = ParsePrivateKey(bytes.Repeat([]byte{0xff}, 32))
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = ParsePrivateKey([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = ParseViewKey(bytes.Repeat([]byte{0xff}, 32))
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = ParseAddress(make([]byte, AddressSize))
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestViewKeyIsClamped(t *testing.T) {
	e := New()
	sk, err := e.NewPrivateKey(rand.Reader)
	require.NoError(t, err)
	vk, err := e.ViewKey(sk)
	require.NoError(t, err)
	_, err = ParseViewKey(vk[:])
	require.NoError(t, err)
}

func TestRecordSealOpen(t *testing.T) {
	e := New()
	owner, err := e.NewPrivateKey(SeededReader(1))
	require.NoError(t, err)
	other, err := e.NewPrivateKey(SeededReader(2))
	require.NoError(t, err)

	ownerVK, err := e.ViewKey(owner)
	require.NoError(t, err)
	otherVK, err := e.ViewKey(other)
	require.NoError(t, err)
	addr, err := e.Address(owner)
	require.NoError(t, err)

	plaintext := []byte(`{"owner":"x","microcredits":5}`)
	ct, err := e.Seal(plaintext, addr.Record, rand.Reader)
	require.NoError(t, err)
	require.NoError(t, CheckCiphertext(ct))

	got, err := e.Open(ct, ownerVK)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)

	_, err = e.Open(ct, otherVK)
	require.ErrorIs(t, err, ErrNotOwner)

	ct[len(ct)-1] ^= 1
	_, err = e.Open(ct, ownerVK)
	require.ErrorIs(t, err, ErrNotOwner)

	_, err = e.Open(ct[:10], ownerVK)
	require.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestSignVerify(t *testing.T) {
	e := New()
	sk, err := e.NewPrivateKey(rand.Reader)
	require.NoError(t, err)
	addr, err := e.Address(sk)
	require.NoError(t, err)

	sig, err := e.Sign(sk, []byte("hello"))
	require.NoError(t, err)
	require.Len(t, sig, SignatureSize)

	ok, err := e.Verify(addr, []byte("hello"), sig)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = e.Verify(addr, []byte("hello!"), sig)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = e.Verify(addr, []byte("hello"), sig[:10])
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestEvaluate(t *testing.T) {
	e := New()
	p := mustParse(t, testProgram)

	out, err := e.Evaluate(p, "change", mustInputs(t, p, "change", "10u64", "3u64"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "7u64", out[0].String())

	_, err = e.Evaluate(p, "change", mustInputs(t, p, "change", "3u64", "10u64"))
	require.ErrorIs(t, err, ErrAssertion)

	_, err = e.Evaluate(p, "main", mustInputs(t, p, "main", "1field", "101field"))
	require.ErrorIs(t, err, ErrAssertion)
}

func TestEvaluateOverflow(t *testing.T) {
	e := New()
	p := mustParse(t, `program wrap.zk;
function main:
    input r0 as u64.private;
    sub r0 1u64 into r1;
    output r1 as u64.public;
`)
	_, err := e.Evaluate(p, "main", mustInputs(t, p, "main", "0u64"))
	require.ErrorIs(t, err, ErrOverflow)

	out, err := e.Evaluate(p, "main", mustInputs(t, p, "main", "5u64"))
	require.NoError(t, err)
	require.Equal(t, "4u64", out[0].String())
}

func TestProveAndVerify(t *testing.T) {
	e := New()
	p := mustParse(t, testProgram)
	sk, err := e.NewPrivateKey(rand.Reader)
	require.NoError(t, err)

	kp, err := e.Synthesize(p, "main")
	require.NoError(t, err)

	inputs := mustInputs(t, p, "main", "3field", "4field")
	tr, err := e.Prove(sk, kp, p, "main", inputs)
	require.NoError(t, err)
	require.Len(t, tr.Public, 1)
	require.Equal(t, "4field", tr.Public[0].String())

	want, err := e.Evaluate(p, "main", inputs)
	require.NoError(t, err)
	require.Equal(t, want, tr.Outputs)

	require.NoError(t, e.VerifyTransition(tr))

	forged := *tr
	forged.Outputs = []program.Value{program.NewU64(1)}
	forged.Outputs[0].Type = program.TypeField
	require.ErrorIs(t, e.VerifyTransition(&forged), ErrBadSignature)

	// Re-signing a forged statement still leaves the proof invalid.
	priv, _ := btcec.PrivKeyFromBytes(sk[:])
	id := forged.ID()
	sig, err := schnorr.Sign(priv, id[:])
	require.NoError(t, err)
	forged.Signature = sig.Serialize()
	require.ErrorIs(t, e.VerifyTransition(&forged), ErrProofRejected)
}

func TestKeyPairRoundTrip(t *testing.T) {
	e := New()
	p := mustParse(t, testProgram)
	kp, err := e.Synthesize(p, "change")
	require.NoError(t, err)

	raw, err := kp.MarshalBinary()
	require.NoError(t, err)
	restored, err := UnmarshalKeyPair(raw)
	require.NoError(t, err)

	sk, err := e.NewPrivateKey(rand.Reader)
	require.NoError(t, err)
	tr, err := e.Prove(sk, restored, p, "change", mustInputs(t, p, "change", "9u64", "4u64"))
	require.NoError(t, err)
	require.NoError(t, e.VerifyTransition(tr))
}

func TestImportKeys(t *testing.T) {
	e := New()
	p := mustParse(t, testProgram)
	kp, err := e.Synthesize(p, "change")
	require.NoError(t, err)
	pk, err := kp.ProvingKeyBytes()
	require.NoError(t, err)
	vk, err := kp.VerifyingKeyBytes()
	require.NoError(t, err)

	imported, err := e.ImportKeys(p, "change", pk, vk)
	require.NoError(t, err)

	sk, err := e.NewPrivateKey(rand.Reader)
	require.NoError(t, err)
	tr, err := e.Prove(sk, imported, p, "change", mustInputs(t, p, "change", "9u64", "4u64"))
	require.NoError(t, err)
	require.NoError(t, e.VerifyTransition(tr))

	_, err = e.ImportKeys(p, "change", pk[:len(pk)/2], vk)
	require.ErrorIs(t, err, ErrKeyMismatch)
}

const lopsidedProgram = `program lopsided.zk;

function bump:
    input r0 as u64.public;
    add r0 1u64 into r1;
    output r1 as u64.public;

function hide:
    input r0 as field.private;
    mul r0 r0 into r1;
    output r1 as field.public;
`

// captureStdout runs fn with os.Stdout redirected and returns what it wrote.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	saved := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = saved }()

	done := make(chan string)
	go func() {
		out, _ := io.ReadAll(r)
		done <- string(out)
	}()
	fn()
	require.NoError(t, w.Close())
	return <-done
}

func TestCircuitsKeepStdoutClean(t *testing.T) {
	e := New()
	p := mustParse(t, lopsidedProgram)
	sk, err := e.NewPrivateKey(rand.Reader)
	require.NoError(t, err)

	for fn, input := range map[string]string{"bump": "41u64", "hide": "3field"} {
		t.Run(fn, func(t *testing.T) {
			out := captureStdout(t, func() {
				kp, err := e.Synthesize(p, fn)
				require.NoError(t, err)
				tr, err := e.Prove(sk, kp, p, fn, mustInputs(t, p, fn, input))
				require.NoError(t, err)
				require.NoError(t, e.VerifyTransition(tr))
			})
			require.Empty(t, out)
		})
	}
}

func TestPaddedPrivateSlotIsPinned(t *testing.T) {
	e := New()
	p := mustParse(t, lopsidedProgram)
	kp, err := e.Synthesize(p, "bump")
	require.NoError(t, err)
	fn, err := p.Function("bump")
	require.NoError(t, err)

	c := &circuit{
		Private:   []frontend.Variable{5},
		Statement: []frontend.Variable{41, 42},
		fn:        fn,
	}
	w, err := frontend.NewWitness(c, scalarField())
	require.NoError(t, err)
	_, err = groth16.Prove(kp.CCS, kp.ProvingKey, w)
	require.Error(t, err)
}
