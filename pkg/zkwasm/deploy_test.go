package zkwasm

import (
	"context"
	"maps"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zkwasm/zkwasm-go/internal/engine"
	"github.com/zkwasm/zkwasm-go/internal/keystore"
	"github.com/zkwasm/zkwasm-go/pkg/zkwasm/node/mocknode"
)

var deployedProgram = strings.Replace(helloProgram, "hello.zk", "deployed.zk", 1)

func TestDeployProgram(t *testing.T) {
	ctx := context.Background()
	mock := mocknode.New()
	mock.SetStateRoot("sr1deploy")
	b := newTestBindings(t, Serial, WithNode(mock))
	alice := seeded(t, b, 1)
	feeRecord, err := b.EncryptRecord(ctx, Record{Owner: alice.Address, Microcredits: 1000}, alice.Address)
	require.NoError(t, err)

	params := DeployParams{
		PrivateKey:      alice.PrivateKey,
		Program:         deployedProgram,
		FeeMicrocredits: 100,
		FeeRecord:       feeRecord,
	}
	d, err := b.DeployProgram(ctx, params)
	require.NoError(t, err)
	require.Equal(t, "deployed.zk", d.Program)
	require.Equal(t, "sr1deploy", d.StateRoot)
	require.Len(t, d.VerifyingKeys, 2)
	require.NotEmpty(t, d.BroadcastID)
	require.Equal(t, CreditsProgramID, d.Fee.Program)
	require.Len(t, mock.Transactions(), 1)

	ok, err := b.VerifyDeployment(ctx, d)
	require.NoError(t, err)
	require.True(t, ok)

	// The deployer executes under the deployed keys.
	p := executeParams(alice.PrivateKey)
	p.Program = "deployed.zk"
	res, err := b.ExecuteProgram(ctx, p)
	require.NoError(t, err)
	require.Equal(t, d.VerifyingKeys["main"], res.Execution.Transitions[0].VerifyingKey)

	// Another session finds the program on the node.
	other := newTestBindings(t, Serial, WithNode(mock))
	theirs, err := other.ExecuteProgram(ctx, p)
	require.NoError(t, err)
	require.Equal(t, res.Outputs, theirs.Outputs)
	_, err = b.VerifyProof(ctx, theirs.Execution, "")
	requireKind(t, err, KindEngine)
	require.ErrorIs(t, err, engine.ErrProofRejected)

	// Redeploying the same source is allowed, other source is not.
	_, err = b.DeployProgram(ctx, params)
	require.NoError(t, err)
	params.Program = strings.Replace(deployedProgram, "7field", "8field", 1)
	_, err = b.DeployProgram(ctx, params)
	requireKind(t, err, KindEngine)
	require.ErrorIs(t, err, keystore.ErrProgramConflict)
}

func TestVerifyDeploymentRejectsTampering(t *testing.T) {
	ctx := context.Background()
	b := newTestBindings(t, Serial, WithNode(mocknode.New()))
	alice := seeded(t, b, 1)
	feeRecord, err := b.EncryptRecord(ctx, Record{Owner: alice.Address, Microcredits: 1000}, alice.Address)
	require.NoError(t, err)
	d, err := b.DeployProgram(ctx, DeployParams{
		PrivateKey:      alice.PrivateKey,
		Program:         deployedProgram,
		FeeMicrocredits: 100,
		FeeRecord:       feeRecord,
		StateRoot:       "sr1pinned",
	})
	require.NoError(t, err)
	require.Equal(t, "sr1pinned", d.StateRoot)

	swappedKeys := *d
	swappedKeys.VerifyingKeys = maps.Clone(d.VerifyingKeys)
	swappedKeys.VerifyingKeys["main"] = d.VerifyingKeys["bump"]
	_, err = b.VerifyDeployment(ctx, &swappedKeys)
	requireKind(t, err, KindEngine)
	require.ErrorIs(t, err, engine.ErrProofRejected)

	otherSource := *d
	otherSource.Source = strings.Replace(d.Source, "7field", "9field", 1)
	_, err = b.VerifyDeployment(ctx, &otherSource)
	requireKind(t, err, KindEngine)
	require.ErrorIs(t, err, engine.ErrProofRejected)

	missingKey := *d
	missingKey.VerifyingKeys = map[string]string{"main": d.VerifyingKeys["main"]}
	_, err = b.VerifyDeployment(ctx, &missingKey)
	requireKind(t, err, KindInvalidInput)

	_, err = b.VerifyDeployment(ctx, nil)
	requireKind(t, err, KindInvalidInput)
}

func TestDeployProgramRejects(t *testing.T) {
	ctx := context.Background()
	b := newTestBindings(t, Serial, WithNode(mocknode.New()))
	alice, bob := seeded(t, b, 1), seeded(t, b, 2)
	feeRecord, err := b.EncryptRecord(ctx, Record{Owner: alice.Address, Microcredits: 50}, alice.Address)
	require.NoError(t, err)
	base := DeployParams{
		PrivateKey:      alice.PrivateKey,
		Program:         deployedProgram,
		FeeMicrocredits: 10,
		FeeRecord:       feeRecord,
		StateRoot:       "sr1",
	}

	cases := map[string]struct {
		edit func(*DeployParams)
		kind Kind
		is   error
	}{
		"program id":   {func(p *DeployParams) { p.Program = "deployed.zk" }, KindInvalidInput, nil},
		"credits":      {func(p *DeployParams) { p.Program = creditsSource }, KindInvalidInput, nil},
		"zero fee":     {func(p *DeployParams) { p.FeeMicrocredits = 0 }, KindInvalidInput, nil},
		"fee too high": {func(p *DeployParams) { p.FeeMicrocredits = 51 }, KindEngine, ErrInsufficientFee},
		"fee owner":    {func(p *DeployParams) { p.PrivateKey = bob.PrivateKey }, KindEngine, ErrRecordOwner},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			p := base
			tc.edit(&p)
			_, err := b.DeployProgram(ctx, p)
			requireKind(t, err, tc.kind)
			if tc.is != nil {
				require.ErrorIs(t, err, tc.is)
			}
		})
	}

	noNode := newTestBindings(t, Serial)
	_, err = noNode.DeployProgram(ctx, base)
	requireKind(t, err, KindInvalidInput)
	require.ErrorIs(t, err, ErrNoNode)
	_, ok := b.keys.Program("deployed.zk")
	require.False(t, ok, "rejected deployments bind nothing")
}
