package governance

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

// Descriptor names of the programs behind a governance instance.
const (
	GovernanceDescriptor = "Governance"
	StrategyDescriptor   = "VoteStrategy"
	StorageDescriptor    = "Storage"
	SystemDescriptor     = "System"
)

// Governance is a governance instance. The governance and vote strategy
// interfaces are served from the same address.
type Governance struct {
	binder   *contract.Binder
	core     *contract.Program
	strategy *contract.Program
	logger   *slog.Logger
}

// Bind attaches to the governance instance at address.
func Bind(binder *contract.Binder, address string, logger *slog.Logger) (*Governance, error) {
	core, err := binder.Bind(GovernanceDescriptor, address)
	if err != nil {
		return nil, err
	}
	strategy, err := binder.BindAddress(StrategyDescriptor, core.Address())
	if err != nil {
		return nil, err
	}
	logger = logging.NewComponentLogger(logger, "governance").With(logging.Address("governance", core.Address()))
	logger.Debug("governance bound")
	return &Governance{binder: binder, core: core, strategy: strategy, logger: logger}, nil
}

// Address returns the governance address.
func (g *Governance) Address() common.Address {
	return g.core.Address()
}

func (g *Governance) Name(ctx context.Context) (string, error) {
	return g.core.CallString(ctx, "name")
}

func (g *Governance) Version(ctx context.Context) (uint64, error) {
	return g.core.CallUint64(ctx, "version")
}

// StorageAddress reads the address of the storage program holding proposal data.
func (g *Governance) StorageAddress(ctx context.Context) (common.Address, error) {
	return g.core.CallAddress(ctx, "getStorageAddress")
}

// Storage binds the storage program reported by the governance instance.
func (g *Governance) Storage(ctx context.Context) (*Storage, error) {
	addr, err := g.StorageAddress(ctx)
	if err != nil {
		return nil, err
	}
	return BindStorage(g.binder, addr, g.logger)
}

// Propose creates a proposal and returns its id from the ProposalCreated event.
// A missing event or a zero id means no proposal exists.
func (g *Governance) Propose(ctx context.Context) (uint64, error) {
	receipt, err := g.core.Send(ctx, "propose")
	if err != nil {
		return 0, err
	}
	id, err := ledger.ExtractUint64(receipt, "ProposalCreated", "proposalId")
	if err != nil {
		if errors.Is(err, services.ErrMissingEvent) {
			return 0, services.Wrap(services.ErrProposalCreation, GovernanceDescriptor, "propose",
				"unknown proposal created in "+receipt.TxHash.Hex(), err)
		}
		return 0, err
	}
	if id == 0 {
		return 0, services.Wrap(services.ErrProposalCreation, GovernanceDescriptor, "propose",
			"proposal id 0 in "+receipt.TxHash.Hex(), nil)
	}
	g.logger.Info("proposal created", logging.Uint64(logging.FieldProposalID, id), logging.Hash("tx_hash", receipt.TxHash))
	return id, nil
}

// Configure sets the quorum and vote duration, in blocks, of a proposal.
func (g *Governance) Configure(ctx context.Context, proposalID, quorum, duration uint64) error {
	_, err := g.core.Send(ctx, "configure", id(proposalID), id(quorum), id(duration))
	return err
}

// Transaction is a call the proposal executes once it passes.
type Transaction struct {
	Target       common.Address
	Value        *big.Int
	Signature    string
	Calldata     []byte
	ScheduleTime uint64
}

// AttachTransaction attaches tx to an unopened proposal.
func (g *Governance) AttachTransaction(ctx context.Context, proposalID uint64, tx Transaction) error {
	value := tx.Value
	if value == nil {
		value = new(big.Int)
	}
	calldata := tx.Calldata
	if calldata == nil {
		calldata = []byte{}
	}
	_, err := g.core.Send(ctx, "attachTransaction", id(proposalID), tx.Target, value, tx.Signature, calldata, id(tx.ScheduleTime))
	return err
}

func (g *Governance) OpenVote(ctx context.Context, proposalID uint64) error {
	return g.strategySend(ctx, "openVote", proposalID)
}

func (g *Governance) IsOpen(ctx context.Context, proposalID uint64) (bool, error) {
	return g.strategy.CallBool(ctx, "isOpen", id(proposalID))
}

func (g *Governance) EndVote(ctx context.Context, proposalID uint64) error {
	return g.strategySend(ctx, "endVote", proposalID)
}

// Cancel withdraws a proposal that has not been opened.
func (g *Governance) Cancel(ctx context.Context, proposalID uint64) error {
	return g.strategySend(ctx, "cancel", proposalID)
}

func (g *Governance) VoteFor(ctx context.Context, proposalID uint64) error {
	return g.strategySend(ctx, "voteFor", proposalID)
}

func (g *Governance) VoteAgainst(ctx context.Context, proposalID uint64) error {
	return g.strategySend(ctx, "voteAgainst", proposalID)
}

func (g *Governance) AbstainFromVote(ctx context.Context, proposalID uint64) error {
	return g.strategySend(ctx, "abstainFromVote", proposalID)
}

// VoteForWithTokenID votes with a single token of the voter class. The
// strategy exposes it as the two argument voteFor overload.
func (g *Governance) VoteForWithTokenID(ctx context.Context, proposalID, tokenID uint64) error {
	return g.tokenSend(ctx, "voteFor", proposalID, tokenID)
}

func (g *Governance) VoteAgainstWithTokenID(ctx context.Context, proposalID, tokenID uint64) error {
	return g.tokenSend(ctx, "voteAgainstWithTokenId", proposalID, tokenID)
}

func (g *Governance) AbstainWithTokenID(ctx context.Context, proposalID, tokenID uint64) error {
	return g.tokenSend(ctx, "abstainWithTokenId", proposalID, tokenID)
}

// VoteSucceeded reads the outcome of a closed vote.
func (g *Governance) VoteSucceeded(ctx context.Context, proposalID uint64) (bool, error) {
	return g.strategy.CallBool(ctx, "getVoteSucceeded", id(proposalID))
}

func (g *Governance) tokenSend(ctx context.Context, method string, proposalID, tokenID uint64) error {
	receipt, err := g.strategy.Send(ctx, method, id(proposalID), id(tokenID))
	if err != nil {
		return err
	}
	g.logger.Debug("vote strategy send mined",
		logging.String(logging.FieldMethod, method),
		logging.Uint64(logging.FieldProposalID, proposalID),
		logging.Uint64("token_id", tokenID),
		logging.Hash("tx_hash", receipt.TxHash),
	)
	return nil
}

func (g *Governance) strategySend(ctx context.Context, method string, proposalID uint64) error {
	receipt, err := g.strategy.Send(ctx, method, id(proposalID))
	if err != nil {
		return err
	}
	g.logger.Debug("vote strategy send mined",
		logging.String(logging.FieldMethod, method),
		logging.Uint64(logging.FieldProposalID, proposalID),
		logging.Hash("tx_hash", receipt.TxHash),
	)
	return nil
}

func id(n uint64) *big.Int {
	return new(big.Int).SetUint64(n)
}
