package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"collective/internal/contract"
	"collective/internal/ledger"
	"collective/internal/logging"
	"collective/internal/services"
)

// Target describes one builder program: the method that opens a staging
// session, the method that finalizes it, and the event carrying the result.
type Target struct {
	Program      *contract.Program
	StartMethod  string
	BuildMethod  string
	CreatedEvent string
	AddressField string
}

// Registry tracks which builder programs have an open session in this process
// and every address a build has produced.
type Registry struct {
	mu     sync.Mutex
	active map[common.Address]struct{}
	issued map[common.Address]common.Address
	logger *slog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		active: make(map[common.Address]struct{}),
		issued: make(map[common.Address]common.Address),
		logger: logging.NewComponentLogger(logger, "builder"),
	}
}

// Start opens a staging session on the target's program. A program has at most
// one session at a time because its staging state is shared on-chain.
func (r *Registry) Start(ctx context.Context, target Target) (*Session, error) {
	addr := target.Program.Address()
	r.mu.Lock()
	if _, busy := r.active[addr]; busy {
		r.mu.Unlock()
		return nil, services.Wrap(services.ErrLifecycleViolation, target.Program.Name(), target.StartMethod,
			"a session is already active on "+addr.Hex(), nil)
	}
	r.active[addr] = struct{}{}
	r.mu.Unlock()

	if _, err := target.Program.Send(ctx, target.StartMethod); err != nil {
		r.release(addr)
		return nil, err
	}
	r.logger.Info("builder session started",
		logging.String(logging.FieldProgram, target.Program.Name()),
		logging.Address("builder", addr),
	)
	return &Session{registry: r, target: target, logger: r.logger}, nil
}

func (r *Registry) release(addr common.Address) {
	r.mu.Lock()
	delete(r.active, addr)
	r.mu.Unlock()
}

func (r *Registry) issue(builder, built common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prior, seen := r.issued[built]; seen {
		return fmt.Errorf("address %s was already built by %s", built.Hex(), prior.Hex())
	}
	r.issued[built] = builder
	return nil
}

type sessionState int

const (
	stateStarted sessionState = iota
	stateBuilt
	stateAbandoned
)

func (s sessionState) String() string {
	switch s {
	case stateStarted:
		return "started"
	case stateBuilt:
		return "built"
	case stateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Step is one applied attribute.
type Step struct {
	Method string
	Args   []any
	TxHash common.Hash
}

// Session is an exclusive staging session on a builder program. Each step is
// its own transaction; nothing is rolled back when a later step fails.
type Session struct {
	registry *Registry
	target   Target
	logger   *slog.Logger

	mu    sync.Mutex
	state sessionState
	steps []Step
}

// With applies one attribute. On failure the session stays open so the caller
// can retry the step or Abandon the run.
func (s *Session) With(ctx context.Context, method string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(method); err != nil {
		return err
	}
	receipt, err := s.target.Program.Send(ctx, method, args...)
	if err != nil {
		logging.WarnWithContext(s.logger, "builder step failed", "builder_step",
			logging.String(logging.FieldProgram, s.target.Program.Name()),
			logging.String(logging.FieldMethod, method),
			logging.Int("applied_steps", len(s.steps)),
			logging.String(logging.FieldErrorHint, "retry the step or abandon the session; applied steps are not rolled back"),
			logging.Error(err),
		)
		return err
	}
	s.steps = append(s.steps, Step{Method: method, Args: args, TxHash: receipt.TxHash})
	s.logger.Info("builder step applied",
		logging.String(logging.FieldProgram, s.target.Program.Name()),
		logging.String(logging.FieldMethod, method),
		logging.Hash("tx_hash", receipt.TxHash),
	)
	return nil
}

// Build finalizes the session and returns the created address. The session is
// consumed whether or not the build succeeds.
func (s *Session) Build(ctx context.Context) (common.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(s.target.BuildMethod); err != nil {
		return common.Address{}, err
	}
	s.state = stateBuilt
	builderAddr := s.target.Program.Address()
	defer s.registry.release(builderAddr)

	receipt, err := s.target.Program.Send(ctx, s.target.BuildMethod)
	if err != nil {
		return common.Address{}, err
	}
	built, err := ledger.ExtractAddress(receipt, s.target.CreatedEvent, s.target.AddressField)
	if err != nil {
		if errors.Is(err, services.ErrMissingEvent) {
			return common.Address{}, services.Wrap(services.ErrBuildIncomplete, s.target.Program.Name(), s.target.BuildMethod,
				"transaction "+receipt.TxHash.Hex(), err)
		}
		return common.Address{}, err
	}
	if err := s.registry.issue(builderAddr, built); err != nil {
		return common.Address{}, services.Wrap(services.ErrLifecycleViolation, s.target.Program.Name(), s.target.BuildMethod, "", err)
	}
	s.logger.Info("builder session built",
		logging.String(logging.FieldProgram, s.target.Program.Name()),
		logging.Address("created", built),
		logging.Int("steps", len(s.steps)),
	)
	return built, nil
}

// Abandon releases the session without building. On-chain staging state from
// applied steps is left as is.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateStarted {
		return
	}
	s.state = stateAbandoned
	s.registry.release(s.target.Program.Address())
	s.logger.Info("builder session abandoned",
		logging.String(logging.FieldProgram, s.target.Program.Name()),
		logging.Int("applied_steps", len(s.steps)),
	)
}

// Steps returns the attributes applied so far.
func (s *Session) Steps() []Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Step, len(s.steps))
	copy(out, s.steps)
	return out
}

func (s *Session) usable(method string) error {
	if s.state == stateStarted {
		return nil
	}
	return services.Wrap(services.ErrLifecycleViolation, s.target.Program.Name(), method,
		"session is "+s.state.String(), nil)
}
