package builder

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"collective/internal/contract"
	"collective/internal/logging"
	"collective/internal/services"
)

// TreasuryBuilderDescriptor is the descriptor name of the treasury builder program.
const TreasuryBuilderDescriptor = "TreasuryBuilder"

// TreasuryBuilder drives the treasury builder program.
type TreasuryBuilder struct {
	program  *contract.Program
	registry *Registry
	logger   *slog.Logger
}

// NewTreasuryBuilder wraps a program bound from the TreasuryBuilder descriptor.
func NewTreasuryBuilder(program *contract.Program, registry *Registry, logger *slog.Logger) *TreasuryBuilder {
	return &TreasuryBuilder{
		program:  program,
		registry: registry,
		logger:   logging.NewComponentLogger(logger, "treasury-builder"),
	}
}

// Name reads the builder's self-reported name.
func (b *TreasuryBuilder) Name(ctx context.Context) (string, error) {
	return b.program.CallString(ctx, "name")
}

// Start opens a treasury staging session.
func (b *TreasuryBuilder) Start(ctx context.Context) (*TreasurySession, error) {
	session, err := b.registry.Start(ctx, Target{
		Program:      b.program,
		StartMethod:  "aTreasury",
		BuildMethod:  "build",
		CreatedEvent: "TreasuryCreated",
		AddressField: "treasury",
	})
	if err != nil {
		return nil, err
	}
	return &TreasurySession{Session: session}, nil
}

// TreasurySession exposes the treasury attributes as typed steps.
type TreasurySession struct {
	*Session
}

func (s *TreasurySession) WithMinimumApprovalRequirement(ctx context.Context, minimum uint64) error {
	return s.With(ctx, "withMinimumApprovalRequirement", new(big.Int).SetUint64(minimum))
}

// WithTimeLockDelay sets the delay, in seconds, before an approved transaction may execute.
func (s *TreasurySession) WithTimeLockDelay(ctx context.Context, seconds uint64) error {
	return s.With(ctx, "withTimeLockDelay", new(big.Int).SetUint64(seconds))
}

func (s *TreasurySession) WithApprover(ctx context.Context, approver common.Address) error {
	return s.With(ctx, "withApprover", approver)
}

// TreasuryPlan lists the attributes of one treasury build.
type TreasuryPlan struct {
	Approvers        []string
	MinimumApprovals uint64
	TimeLockDelay    uint64
}

// ParseApprovers validates every approver entry. An empty or malformed entry
// rejects the whole list.
func ParseApprovers(entries []string) ([]common.Address, error) {
	if len(entries) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, TreasuryBuilderDescriptor, "withApprover", "approver list is empty", nil)
	}
	out := make([]common.Address, 0, len(entries))
	for i, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			return nil, services.Wrap(services.ErrConfiguration, TreasuryBuilderDescriptor, "withApprover",
				fmt.Sprintf("approver %d is empty", i), nil)
		}
		if !common.IsHexAddress(entry) {
			return nil, services.Wrap(services.ErrConfiguration, TreasuryBuilderDescriptor, "withApprover",
				fmt.Sprintf("approver %d (%q) is not a ledger address", i, entry), nil)
		}
		out = append(out, common.HexToAddress(entry))
	}
	return out, nil
}

// Build runs a complete treasury build. The approver list is checked before
// the first send so a bad entry never leaves a half-staged treasury behind.
func (b *TreasuryBuilder) Build(ctx context.Context, plan TreasuryPlan) (common.Address, error) {
	approvers, err := ParseApprovers(plan.Approvers)
	if err != nil {
		return common.Address{}, err
	}

	name, err := b.Name(ctx)
	if err != nil {
		return common.Address{}, err
	}
	b.logger.Info("connected to treasury builder", logging.String("builder_name", name), logging.Address("builder", b.program.Address()))

	session, err := b.Start(ctx)
	if err != nil {
		return common.Address{}, err
	}
	if err := session.WithMinimumApprovalRequirement(ctx, plan.MinimumApprovals); err != nil {
		session.Abandon()
		return common.Address{}, err
	}
	if err := session.WithTimeLockDelay(ctx, plan.TimeLockDelay); err != nil {
		session.Abandon()
		return common.Address{}, err
	}
	for _, approver := range approvers {
		if err := session.WithApprover(ctx, approver); err != nil {
			session.Abandon()
			return common.Address{}, err
		}
	}
	return session.Build(ctx)
}
