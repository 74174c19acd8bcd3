package voterclass

import (
	"context"
	"errors"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"collective/internal/contract"
	"collective/internal/ledger"
	"collective/internal/logging"
	"collective/internal/services"
)

// Descriptor is the descriptor name of the voter-class factory program.
const Descriptor = "VoterClassFactory"

// Factory creates voter classes through the factory program.
type Factory struct {
	program *contract.Program
	logger  *slog.Logger
}

// New wraps a program bound from the VoterClassFactory descriptor.
func New(program *contract.Program, logger *slog.Logger) *Factory {
	return &Factory{
		program: program,
		logger:  logging.NewComponentLogger(logger, "voter-class"),
	}
}

// Address returns the factory address.
func (f *Factory) Address() common.Address {
	return f.program.Address()
}

// CreateERC721 creates a voter class that weighs holders of the ERC-721 token
// at project. The new class address is read from the VoterClassCreated event.
func (f *Factory) CreateERC721(ctx context.Context, project common.Address, weight uint64) (common.Address, error) {
	f.logger.Debug("creating erc721 voter class",
		logging.Address("project", project),
		logging.Uint64("weight", weight),
	)
	receipt, err := f.program.Send(ctx, "createERC721", project, new(big.Int).SetUint64(weight))
	if err != nil {
		return common.Address{}, err
	}
	class, err := ledger.ExtractAddress(receipt, "VoterClassCreated", "voterClass")
	if err != nil {
		if errors.Is(err, services.ErrMissingEvent) {
			return common.Address{}, services.Wrap(services.ErrCreation, Descriptor, "createERC721",
				"unknown voter class created in "+receipt.TxHash.Hex(), err)
		}
		return common.Address{}, err
	}
	f.logger.Info("voter class created",
		logging.Address("voter_class", class),
		logging.Address("project", project),
		logging.Hash("tx_hash", receipt.TxHash),
	)
	return class, nil
}
