package governance

import (
	"context"
	"errors"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"collective/internal/builder"
	"collective/internal/contract"
	"collective/internal/ledger"
	"collective/internal/logging"
	"collective/internal/services"
)

// Collective is the governance, storage and meta storage created by one
// System.create call.
type Collective struct {
	Governance common.Address
	Storage    common.Address
	Meta       common.Address
}

// CollectivePlan holds the arguments of System.create.
type CollectivePlan struct {
	Name        string
	URL         string
	Description string
	ERC721      common.Address
	Quorum      uint64
}

// System is the top level factory that creates a whole collective in one send.
type System struct {
	program *contract.Program
	logger  *slog.Logger
}

// NewSystem wraps a program bound from the System descriptor.
func NewSystem(program *contract.Program, logger *slog.Logger) *System {
	return &System{program: program, logger: logging.NewComponentLogger(logger, "system")}
}

// Create creates a collective. The three addresses come from one
// GovernanceContractCreated event; if any is missing the creation failed.
func (s *System) Create(ctx context.Context, plan CollectivePlan) (Collective, error) {
	name, err := builder.EncodeName(plan.Name)
	if err != nil {
		return Collective{}, err
	}
	s.logger.Info("creating collective",
		logging.String("name", plan.Name),
		logging.String("url", plan.URL),
		logging.Address("erc721", plan.ERC721),
		logging.Uint64("quorum", plan.Quorum),
	)
	receipt, err := s.program.Send(ctx, "create", name, plan.URL, plan.Description, plan.ERC721, new(big.Int).SetUint64(plan.Quorum))
	if err != nil {
		return Collective{}, err
	}

	var out Collective
	for _, field := range []struct {
		name string
		dst  *common.Address
	}{
		{"governance", &out.Governance},
		{"_storage", &out.Storage},
		{"metaStorage", &out.Meta},
	} {
		addr, err := ledger.ExtractAddress(receipt, "GovernanceContractCreated", field.name)
		if err != nil {
			if errors.Is(err, services.ErrMissingEvent) {
				return Collective{}, services.Wrap(services.ErrCreation, SystemDescriptor, "create",
					"governance creation failed in "+receipt.TxHash.Hex(), err)
			}
			return Collective{}, err
		}
		*field.dst = addr
	}
	s.logger.Info("collective created",
		logging.Address("governance", out.Governance),
		logging.Address("storage", out.Storage),
		logging.Address("meta", out.Meta),
	)
	return out, nil
}
