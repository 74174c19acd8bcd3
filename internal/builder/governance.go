package builder

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"collective/internal/contract"
	"collective/internal/logging"
	"collective/internal/services"
)

// GovernanceBuilderDescriptor is the descriptor name of the governance builder program.
const GovernanceBuilderDescriptor = "GovernanceBuilder"

// GovernanceBuilder drives the governance builder program.
type GovernanceBuilder struct {
	program  *contract.Program
	registry *Registry
	logger   *slog.Logger
}

// NewGovernanceBuilder wraps a program bound from the GovernanceBuilder descriptor.
func NewGovernanceBuilder(program *contract.Program, registry *Registry, logger *slog.Logger) *GovernanceBuilder {
	return &GovernanceBuilder{
		program:  program,
		registry: registry,
		logger:   logging.NewComponentLogger(logger, "governance-builder"),
	}
}

// Name reads the builder's self-reported name.
func (b *GovernanceBuilder) Name(ctx context.Context) (string, error) {
	return b.program.CallString(ctx, "name")
}

// Start opens a governance staging session.
func (b *GovernanceBuilder) Start(ctx context.Context) (*GovernanceSession, error) {
	session, err := b.registry.Start(ctx, Target{
		Program:      b.program,
		StartMethod:  "aGovernance",
		BuildMethod:  "build",
		CreatedEvent: "GovernanceContractCreated",
		AddressField: "governance",
	})
	if err != nil {
		return nil, err
	}
	return &GovernanceSession{Session: session}, nil
}

// GovernanceSession exposes the governance attributes as typed steps.
type GovernanceSession struct {
	*Session
}

// WithName sets the name, stored on-chain as ASCII right padded to 32 bytes.
func (s *GovernanceSession) WithName(ctx context.Context, name string) error {
	encoded, err := EncodeName(name)
	if err != nil {
		return err
	}
	return s.With(ctx, "withName", encoded)
}

func (s *GovernanceSession) WithURL(ctx context.Context, url string) error {
	return s.With(ctx, "withUrl", url)
}

func (s *GovernanceSession) WithDescription(ctx context.Context, description string) error {
	return s.With(ctx, "withDescription", description)
}

func (s *GovernanceSession) WithSupervisor(ctx context.Context, supervisor common.Address) error {
	return s.With(ctx, "withSupervisor", supervisor)
}

func (s *GovernanceSession) WithVoterClassAddress(ctx context.Context, voterClass common.Address) error {
	return s.With(ctx, "withVoterClassAddress", voterClass)
}

func (s *GovernanceSession) WithMinimumDuration(ctx context.Context, blocks uint64) error {
	return s.With(ctx, "withMinimumDuration", new(big.Int).SetUint64(blocks))
}

// EncodeName converts an ASCII name to the bytes32 form builder programs store.
func EncodeName(name string) ([32]byte, error) {
	var out [32]byte
	if len(name) > len(out) {
		return out, services.Wrap(services.ErrConfiguration, GovernanceBuilderDescriptor, "withName",
			fmt.Sprintf("name %q exceeds 32 bytes", name), nil)
	}
	for i := 0; i < len(name); i++ {
		if name[i] > 0x7f {
			return out, services.Wrap(services.ErrConfiguration, GovernanceBuilderDescriptor, "withName",
				fmt.Sprintf("name %q is not ASCII", name), nil)
		}
	}
	copy(out[:], name)
	return out, nil
}

// GovernancePlan lists the attributes of one governance build. Empty optional
// attributes are skipped.
type GovernancePlan struct {
	Name            string
	URL             string
	Description     string
	MinimumDuration uint64
	Supervisor      common.Address
	VoterClass      common.Address
}

// Validate checks the attributes that would otherwise only fail part way
// through a started session.
func (p GovernancePlan) Validate() error {
	if _, err := EncodeName(p.Name); err != nil {
		return err
	}
	return nil
}

// Build runs a complete governance build. The plan is validated before the
// session starts. Any failed step abandons the session and is returned; steps
// already applied stay on-chain.
func (b *GovernanceBuilder) Build(ctx context.Context, plan GovernancePlan) (common.Address, error) {
	if err := plan.Validate(); err != nil {
		return common.Address{}, err
	}
	name, err := b.Name(ctx)
	if err != nil {
		return common.Address{}, err
	}
	b.logger.Info("connected to governance builder", logging.String("builder_name", name), logging.Address("builder", b.program.Address()))

	session, err := b.Start(ctx)
	if err != nil {
		return common.Address{}, err
	}

	steps := []func() error{}
	if plan.Name != "" {
		steps = append(steps, func() error { return session.WithName(ctx, plan.Name) })
	}
	if plan.URL != "" {
		steps = append(steps, func() error { return session.WithURL(ctx, plan.URL) })
	}
	if plan.Description != "" {
		steps = append(steps, func() error { return session.WithDescription(ctx, plan.Description) })
	}
	if plan.MinimumDuration > 0 {
		steps = append(steps, func() error { return session.WithMinimumDuration(ctx, plan.MinimumDuration) })
	}
	steps = append(steps,
		func() error { return session.WithSupervisor(ctx, plan.Supervisor) },
		func() error { return session.WithVoterClassAddress(ctx, plan.VoterClass) },
	)
	for _, step := range steps {
		if err := step(); err != nil {
			session.Abandon()
			return common.Address{}, err
		}
	}

	return session.Build(ctx)
}
