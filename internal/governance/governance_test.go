package governance_test

import (
	"context"
	"errors"
	"math/big"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"collective/internal/contract"
	"collective/internal/governance"
	"collective/internal/services"
	"collective/internal/testsupport"
)

func newBinder(t *testing.T, fake *testsupport.FakeLedger) *contract.Binder {
	t.Helper()
	dir := t.TempDir()
	testsupport.WriteDescriptors(t, dir)
	return contract.NewBinder(contract.NewLoader(dir), fake, 470000, nil)
}

func newGovernance(t *testing.T) (*testsupport.FakeLedger, *governance.Governance) {
	t.Helper()
	fake := testsupport.NewFakeLedger(t).
		Register(testsupport.GovernanceAddress, governance.GovernanceDescriptor, governance.StrategyDescriptor).
		Register(testsupport.StorageAddress, governance.StorageDescriptor)
	g, err := governance.Bind(newBinder(t, fake), testsupport.GovernanceAddress, nil)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	return fake, g
}

func proposalCreated(id int64) testsupport.SendFunc {
	return testsupport.Emits("ProposalCreated", map[string]any{
		"sender":     common.HexToAddress(testsupport.TestAccount),
		"proposalId": big.NewInt(id),
	})
}

func TestProposeReturnsEventID(t *testing.T) {
	fake, g := newGovernance(t)
	fake.OnSend(testsupport.GovernanceAddress, "propose", proposalCreated(7))

	id, err := g.Propose(context.Background())
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if id != 7 {
		t.Fatalf("expected proposal 7, got %d", id)
	}
}

func TestProposeFailures(t *testing.T) {
	tests := []struct {
		name string
		send testsupport.SendFunc
	}{
		{name: "no event", send: nil},
		{name: "zero id", send: proposalCreated(0)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake, g := newGovernance(t)
			fake.OnSend(testsupport.GovernanceAddress, "propose", tc.send)
			_, err := g.Propose(context.Background())
			if !errors.Is(err, services.ErrProposalCreation) || !errors.Is(err, services.ErrMissingEvent) {
				t.Fatalf("expected proposal creation error, got %v", err)
			}
		})
	}
}

func TestStrategyCallsUseProposalID(t *testing.T) {
	fake, g := newGovernance(t)
	ctx := context.Background()
	fake.OnRead(testsupport.GovernanceAddress, "isOpen", testsupport.Returns(true))
	fake.OnRead(testsupport.GovernanceAddress, "getVoteSucceeded", testsupport.Returns(false))

	if err := g.Configure(ctx, 7, 1, 5); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := g.OpenVote(ctx, 7); err != nil {
		t.Fatalf("OpenVote: %v", err)
	}
	if err := g.VoteFor(ctx, 7); err != nil {
		t.Fatalf("VoteFor: %v", err)
	}
	if err := g.VoteAgainstWithTokenID(ctx, 7, 3); err != nil {
		t.Fatalf("VoteAgainstWithTokenID: %v", err)
	}
	if err := g.EndVote(ctx, 7); err != nil {
		t.Fatalf("EndVote: %v", err)
	}
	open, err := g.IsOpen(ctx, 7)
	if err != nil || !open {
		t.Fatalf("IsOpen: %v %v", open, err)
	}
	passed, err := g.VoteSucceeded(ctx, 7)
	if err != nil || passed {
		t.Fatalf("VoteSucceeded: %v %v", passed, err)
	}

	want := []string{"configure", "openVote", "voteFor", "voteAgainstWithTokenId", "endVote"}
	if got := fake.SentMethods(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected sends %v", got)
	}
	configure := fake.Sent()[0]
	for i, expected := range []uint64{7, 1, 5} {
		if configure.Args[i].(*big.Int).Uint64() != expected {
			t.Fatalf("configure arg %d: expected %d, got %v", i, expected, configure.Args[i])
		}
	}
	if token := fake.Sent()[3].Args[1].(*big.Int).Uint64(); token != 3 {
		t.Fatalf("expected token 3, got %d", token)
	}
}

func TestTokenVoteUsesVoteForOverload(t *testing.T) {
	fake, g := newGovernance(t)
	ctx := context.Background()
	if err := g.VoteFor(ctx, 7); err != nil {
		t.Fatalf("VoteFor: %v", err)
	}
	if err := g.VoteForWithTokenID(ctx, 7, 11); err != nil {
		t.Fatalf("VoteForWithTokenID: %v", err)
	}
	sent := fake.Sent()
	if len(sent) != 2 || sent[0].Method != "voteFor" || sent[1].Method != "voteFor" {
		t.Fatalf("expected both votes on voteFor, got %v", fake.SentMethods())
	}
	if len(sent[0].Args) != 1 || len(sent[1].Args) != 2 {
		t.Fatalf("expected the one and two argument overloads, got %d and %d args", len(sent[0].Args), len(sent[1].Args))
	}
	if token := sent[1].Args[1].(*big.Int).Uint64(); token != 11 {
		t.Fatalf("expected token 11, got %d", token)
	}
}

func TestAttachTransactionDefaults(t *testing.T) {
	fake, g := newGovernance(t)
	target := common.HexToAddress(testsupport.TokenAddress)

	err := g.AttachTransaction(context.Background(), 7, governance.Transaction{
		Target:       target,
		Signature:    "transfer(address,uint256)",
		ScheduleTime: 1700000000,
	})
	if err != nil {
		t.Fatalf("AttachTransaction: %v", err)
	}
	args := fake.Sent()[0].Args
	if args[1].(common.Address) != target || args[2].(*big.Int).Sign() != 0 || len(args[4].([]byte)) != 0 {
		t.Fatalf("unexpected arguments %v", args)
	}
}

func TestStorageReads(t *testing.T) {
	fake, g := newGovernance(t)
	ctx := context.Background()
	fake.OnRead(testsupport.GovernanceAddress, "getStorageAddress", testsupport.Returns(common.HexToAddress(testsupport.StorageAddress)))
	fake.OnRead(testsupport.StorageAddress, "name", testsupport.Returns("collective storage"))
	fake.OnRead(testsupport.StorageAddress, "version", testsupport.Returns(uint32(2)))
	fake.OnRead(testsupport.StorageAddress, "quorumRequired", testsupport.Returns(big.NewInt(1)))
	fake.OnRead(testsupport.StorageAddress, "voteDuration", testsupport.Returns(big.NewInt(5)))
	fake.OnRead(testsupport.StorageAddress, "startBlock", testsupport.Returns(big.NewInt(1000)))
	fake.OnRead(testsupport.StorageAddress, "endBlock", testsupport.Returns(big.NewInt(1010)))

	storage, err := g.Storage(ctx)
	if err != nil {
		t.Fatalf("Storage: %v", err)
	}
	if storage.Address() != common.HexToAddress(testsupport.StorageAddress) {
		t.Fatalf("unexpected storage address %s", storage.Address())
	}
	if name, err := storage.Name(ctx); err != nil || name != "collective storage" {
		t.Fatalf("Name: %q %v", name, err)
	}
	if version, err := storage.Version(ctx); err != nil || version != 2 {
		t.Fatalf("Version: %d %v", version, err)
	}

	reads := []struct {
		name string
		fn   func(context.Context, uint64) (uint64, error)
		want uint64
	}{
		{"quorumRequired", storage.QuorumRequired, 1},
		{"voteDuration", storage.VoteDuration, 5},
		{"startBlock", storage.StartBlock, 1000},
		{"endBlock", storage.EndBlock, 1010},
	}
	for _, read := range reads {
		for i := 0; i < 3; i++ {
			got, err := read.fn(ctx, 7)
			if err != nil {
				t.Fatalf("%s: %v", read.name, err)
			}
			if got != read.want {
				t.Fatalf("%s read %d: expected %d, got %d", read.name, i, read.want, got)
			}
		}
	}
	if len(fake.Sent()) != 0 {
		t.Fatalf("reads must not send, got %v", fake.SentMethods())
	}
}

func newSystem(t *testing.T, fake *testsupport.FakeLedger) *governance.System {
	t.Helper()
	program, err := newBinder(t, fake).Bind(governance.SystemDescriptor, testsupport.SystemAddress)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	return governance.NewSystem(program, nil)
}

func TestSystemCreate(t *testing.T) {
	fake := testsupport.NewFakeLedger(t).Register(testsupport.SystemAddress, governance.SystemDescriptor)
	fake.OnSend(testsupport.SystemAddress, "create", testsupport.Emits("GovernanceContractCreated", map[string]any{
		"creator":     common.HexToAddress(testsupport.TestAccount),
		"name":        [32]byte{'c'},
		"_storage":    common.HexToAddress(testsupport.StorageAddress),
		"metaStorage": common.HexToAddress("0x00000000000000000000000000000000000000e2"),
		"governance":  common.HexToAddress(testsupport.GovernanceAddress),
	}))

	created, err := newSystem(t, fake).Create(context.Background(), governance.CollectivePlan{
		Name:   "collective",
		URL:    "https://collective.xyz",
		ERC721: common.HexToAddress(testsupport.TokenAddress),
		Quorum: 3,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	want := governance.Collective{
		Governance: common.HexToAddress(testsupport.GovernanceAddress),
		Storage:    common.HexToAddress(testsupport.StorageAddress),
		Meta:       common.HexToAddress("0x00000000000000000000000000000000000000e2"),
	}
	if created != want {
		t.Fatalf("expected %+v, got %+v", want, created)
	}
	if quorum := fake.Sent()[0].Args[4].(*big.Int).Uint64(); quorum != 3 {
		t.Fatalf("expected quorum 3, got %d", quorum)
	}
}

func TestSystemCreateIsAllOrNothing(t *testing.T) {
	fake := testsupport.NewFakeLedger(t).Register(testsupport.SystemAddress, governance.SystemDescriptor)
	fake.OnSend(testsupport.SystemAddress, "create", testsupport.Emits("GovernanceContractCreated", map[string]any{
		"creator":     common.HexToAddress(testsupport.TestAccount),
		"name":        [32]byte{},
		"_storage":    common.HexToAddress(testsupport.StorageAddress),
		"metaStorage": common.Address{},
		"governance":  common.HexToAddress(testsupport.GovernanceAddress),
	}))

	created, err := newSystem(t, fake).Create(context.Background(), governance.CollectivePlan{Name: "collective"})
	if !errors.Is(err, services.ErrCreation) {
		t.Fatalf("expected creation error, got %v", err)
	}
	if created != (governance.Collective{}) {
		t.Fatalf("expected no partial result, got %+v", created)
	}
}
