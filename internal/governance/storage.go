package governance

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"collective/internal/contract"
	"collective/internal/logging"
)

// Storage reads proposal data kept by a governance instance. Every method is a
// read and may be repeated freely.
type Storage struct {
	program *contract.Program
}

// BindStorage attaches to the storage program at address.
func BindStorage(binder *contract.Binder, address common.Address, logger *slog.Logger) (*Storage, error) {
	program, err := binder.BindAddress(StorageDescriptor, address)
	if err != nil {
		return nil, err
	}
	logging.NewComponentLogger(logger, "storage").Debug("storage bound", logging.Address("storage", address))
	return &Storage{program: program}, nil
}

// Address returns the storage address.
func (s *Storage) Address() common.Address {
	return s.program.Address()
}

func (s *Storage) Name(ctx context.Context) (string, error) {
	return s.program.CallString(ctx, "name")
}

func (s *Storage) Version(ctx context.Context) (uint64, error) {
	return s.program.CallUint64(ctx, "version")
}

func (s *Storage) QuorumRequired(ctx context.Context, proposalID uint64) (uint64, error) {
	return s.program.CallUint64(ctx, "quorumRequired", id(proposalID))
}

// VoteDuration reads the vote duration in blocks.
func (s *Storage) VoteDuration(ctx context.Context, proposalID uint64) (uint64, error) {
	return s.program.CallUint64(ctx, "voteDuration", id(proposalID))
}

func (s *Storage) StartBlock(ctx context.Context, proposalID uint64) (uint64, error) {
	return s.program.CallUint64(ctx, "startBlock", id(proposalID))
}

func (s *Storage) EndBlock(ctx context.Context, proposalID uint64) (uint64, error) {
	return s.program.CallUint64(ctx, "endBlock", id(proposalID))
}
