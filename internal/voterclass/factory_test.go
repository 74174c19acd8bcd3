package voterclass_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"collective/internal/contract"
	"collective/internal/services"
	"collective/internal/testsupport"
	"collective/internal/voterclass"
)

func newFactory(t *testing.T, fake *testsupport.FakeLedger) *voterclass.Factory {
	t.Helper()
	dir := t.TempDir()
	testsupport.WriteDescriptors(t, dir)
	binder := contract.NewBinder(contract.NewLoader(dir), fake, 470000, nil)
	program, err := binder.Bind(voterclass.Descriptor, testsupport.VoterFactoryAddress)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	return voterclass.New(program, nil)
}

func TestCreateERC721ReturnsCreatedClass(t *testing.T) {
	fake := testsupport.NewFakeLedger(t).Register(testsupport.VoterFactoryAddress, voterclass.Descriptor)
	project := common.HexToAddress(testsupport.TokenAddress)
	fake.OnSend(testsupport.VoterFactoryAddress, "createERC721", testsupport.Emits("VoterClassCreated", map[string]any{
		"voterClass": common.HexToAddress(testsupport.VoterClassAddress),
		"project":    project,
	}))

	class, err := newFactory(t, fake).CreateERC721(context.Background(), project, 1)
	if err != nil {
		t.Fatalf("CreateERC721: %v", err)
	}
	if class != common.HexToAddress(testsupport.VoterClassAddress) {
		t.Fatalf("unexpected class %s", class)
	}

	sent := fake.Sent()
	if len(sent) != 1 || sent[0].Method != "createERC721" {
		t.Fatalf("expected a single createERC721 send, got %v", fake.SentMethods())
	}
	if sent[0].Args[0].(common.Address) != project || sent[0].Args[1].(*big.Int).Uint64() != 1 {
		t.Fatalf("unexpected arguments %v", sent[0].Args)
	}
}

func TestCreateERC721WithoutEventIsCreationError(t *testing.T) {
	fake := testsupport.NewFakeLedger(t).Register(testsupport.VoterFactoryAddress, voterclass.Descriptor)

	_, err := newFactory(t, fake).CreateERC721(context.Background(), common.HexToAddress(testsupport.TokenAddress), 1)
	if !errors.Is(err, services.ErrCreation) {
		t.Fatalf("expected creation error, got %v", err)
	}
	if services.Kind(err) != "creation" {
		t.Fatalf("unexpected kind %q", services.Kind(err))
	}
}

func TestCreateERC721PropagatesSendFailure(t *testing.T) {
	fake := testsupport.NewFakeLedger(t).Register(testsupport.VoterFactoryAddress, voterclass.Descriptor)
	fake.OnSend(testsupport.VoterFactoryAddress, "createERC721", testsupport.Fail(services.ErrRejectedExecution))

	_, err := newFactory(t, fake).CreateERC721(context.Background(), common.HexToAddress(testsupport.TokenAddress), 1)
	if !errors.Is(err, services.ErrRejectedExecution) || errors.Is(err, services.ErrCreation) {
		t.Fatalf("expected the rejection unchanged, got %v", err)
	}
}
