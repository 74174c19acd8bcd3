package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"collective/internal/logging"
	"collective/internal/services"
)

// Governance is the subset of a governance instance the coordinator drives.
type Governance interface {
	Propose(ctx context.Context) (uint64, error)
	Configure(ctx context.Context, proposalID, quorum, duration uint64) error
	OpenVote(ctx context.Context, proposalID uint64) error
	IsOpen(ctx context.Context, proposalID uint64) (bool, error)
	EndVote(ctx context.Context, proposalID uint64) error
	VoteSucceeded(ctx context.Context, proposalID uint64) (bool, error)
	VoteFor(ctx context.Context, proposalID uint64) error
	VoteAgainst(ctx context.Context, proposalID uint64) error
	AbstainFromVote(ctx context.Context, proposalID uint64) error
	VoteForWithTokenID(ctx context.Context, proposalID, tokenID uint64) error
	VoteAgainstWithTokenID(ctx context.Context, proposalID, tokenID uint64) error
	AbstainWithTokenID(ctx context.Context, proposalID, tokenID uint64) error
}

// Storage reads the proposal data a governance instance keeps.
type Storage interface {
	QuorumRequired(ctx context.Context, proposalID uint64) (uint64, error)
	VoteDuration(ctx context.Context, proposalID uint64) (uint64, error)
	StartBlock(ctx context.Context, proposalID uint64) (uint64, error)
	EndBlock(ctx context.Context, proposalID uint64) (uint64, error)
}

// Proposal is what the coordinator knows about its proposal. Open status and
// outcome are never cached; they are read when needed.
type Proposal struct {
	ID         uint64
	Quorum     uint64
	Duration   uint64
	StartBlock uint64
	EndBlock   uint64
	State      State
}

// Plan describes one full proposal run. A non-nil TokenID casts the vote with
// that single voter class token instead of every token the wallet holds.
type Plan struct {
	Quorum   uint64
	Duration uint64
	Vote     Choice
	TokenID  *uint64
}

// Result is the outcome of a completed run.
type Result struct {
	Proposal Proposal
	Passed   bool
}

// Options configures a Coordinator.
type Options struct {
	PollInterval time.Duration
	MaxPollSleep time.Duration
	WaitTimeout  time.Duration
	// RefreshEndBlock re-reads endBlock on every pass of the end wait instead
	// of treating it as fixed once configured.
	RefreshEndBlock bool
	Sleep           SleepFunc
	Now             func() time.Time
	Logger          *slog.Logger
}

// Coordinator drives a single proposal from creation to outcome. Each step
// checks the proposal's state and refuses to run out of order.
type Coordinator struct {
	gov     Governance
	storage Storage
	heights HeightSource
	waiter  *Waiter
	refresh bool
	logger  *slog.Logger

	mu       sync.Mutex
	proposal Proposal
}

// New constructs a coordinator for one proposal.
func New(gov Governance, storage Storage, heights HeightSource, opts Options) *Coordinator {
	logger := logging.NewComponentLogger(opts.Logger, "lifecycle")
	return &Coordinator{
		gov:     gov,
		storage: storage,
		heights: heights,
		waiter: NewWaiter(heights, WaitOptions{
			Interval: opts.PollInterval,
			MaxSleep: opts.MaxPollSleep,
			Timeout:  opts.WaitTimeout,
			Sleep:    opts.Sleep,
			Now:      opts.Now,
			Logger:   logger,
		}),
		refresh: opts.RefreshEndBlock,
		logger:  logger,
	}
}

// Proposal returns a snapshot of the proposal.
func (c *Coordinator) Proposal() Proposal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.proposal
}

func (c *Coordinator) require(step string, want State) (Proposal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.proposal.State != want {
		return c.proposal, services.Wrap(services.ErrLifecycleViolation, "", step,
			fmt.Sprintf("proposal %d is %s, %s requires %s", c.proposal.ID, c.proposal.State.Label(), step, want.Label()), nil)
	}
	return c.proposal, nil
}

func (c *Coordinator) update(fn func(p *Proposal)) {
	c.mu.Lock()
	fn(&c.proposal)
	c.mu.Unlock()
}

// Propose creates the proposal.
func (c *Coordinator) Propose(ctx context.Context) (uint64, error) {
	if _, err := c.require("propose", StateNone); err != nil {
		return 0, err
	}
	id, err := c.gov.Propose(ctx)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, services.Wrap(services.ErrProposalCreation, "", "propose", "proposal id 0", nil)
	}
	c.update(func(p *Proposal) {
		p.ID = id
		p.State = StateCreated
	})
	c.logger.Info("proposal created", logging.Uint64(logging.FieldProposalID, id))
	return id, nil
}

// Configure sets quorum and duration with a single send, then reads both back.
func (c *Coordinator) Configure(ctx context.Context, quorum, duration uint64) error {
	p, err := c.require("configure", StateCreated)
	if err != nil {
		return err
	}
	if err := c.gov.Configure(ctx, p.ID, quorum, duration); err != nil {
		return err
	}
	c.update(func(p *Proposal) { p.State = StateConfigured })

	actualQuorum, err := c.storage.QuorumRequired(ctx, p.ID)
	if err != nil {
		return err
	}
	actualDuration, err := c.storage.VoteDuration(ctx, p.ID)
	if err != nil {
		return err
	}
	c.update(func(p *Proposal) {
		p.Quorum = actualQuorum
		p.Duration = actualDuration
	})
	c.logger.Info("new vote",
		logging.Uint64(logging.FieldProposalID, p.ID),
		logging.Uint64("quorum", actualQuorum),
		logging.Uint64("duration", actualDuration),
	)
	return nil
}

// AwaitStart reads the start block and waits until the ledger reaches it.
func (c *Coordinator) AwaitStart(ctx context.Context) error {
	p, err := c.require("await start", StateConfigured)
	if err != nil {
		return err
	}
	start, err := c.storage.StartBlock(ctx, p.ID)
	if err != nil {
		return err
	}
	c.update(func(p *Proposal) {
		p.StartBlock = start
		p.State = StatePendingStart
	})
	return c.awaitStart(ctx, start)
}

func (c *Coordinator) awaitStart(ctx context.Context, start uint64) error {
	height, err := c.waiter.Until(ctx, start, "start")
	if err != nil {
		return err
	}
	c.logger.Debug("start block reached", logging.Uint64("height", height), logging.Uint64("start_block", start))
	return nil
}

// Open opens the vote. The height is read again first, and openVote is never
// sent before the start block.
func (c *Coordinator) Open(ctx context.Context) error {
	p, err := c.require("open", StatePendingStart)
	if err != nil {
		return err
	}
	height, err := c.heights.BlockHeight(ctx)
	if err != nil {
		return err
	}
	if height < p.StartBlock {
		return services.Wrap(services.ErrLifecycleViolation, "", "openVote",
			fmt.Sprintf("height %d is before start block %d", height, p.StartBlock), nil)
	}
	if err := c.gov.OpenVote(ctx, p.ID); err != nil {
		return err
	}
	c.update(func(p *Proposal) { p.State = StateOpen })
	c.logger.Info("voting is open", logging.Uint64(logging.FieldProposalID, p.ID), logging.Uint64("height", height))
	return nil
}

// Vote casts the wallet's vote on the open proposal.
func (c *Coordinator) Vote(ctx context.Context, choice Choice) error {
	return c.cast(ctx, choice, nil)
}

func (c *Coordinator) cast(ctx context.Context, choice Choice, tokenID *uint64) error {
	p, err := c.require("vote", StateOpen)
	if err != nil {
		return err
	}
	switch {
	case choice == ChoiceNone || choice == "":
		return nil
	case tokenID == nil && choice == ChoiceFor:
		err = c.gov.VoteFor(ctx, p.ID)
	case tokenID == nil && choice == ChoiceAgainst:
		err = c.gov.VoteAgainst(ctx, p.ID)
	case tokenID == nil && choice == ChoiceAbstain:
		err = c.gov.AbstainFromVote(ctx, p.ID)
	case tokenID != nil && choice == ChoiceFor:
		err = c.gov.VoteForWithTokenID(ctx, p.ID, *tokenID)
	case tokenID != nil && choice == ChoiceAgainst:
		err = c.gov.VoteAgainstWithTokenID(ctx, p.ID, *tokenID)
	case tokenID != nil && choice == ChoiceAbstain:
		err = c.gov.AbstainWithTokenID(ctx, p.ID, *tokenID)
	default:
		return services.Wrap(services.ErrConfiguration, "", "vote", fmt.Sprintf("unknown choice %q", choice), nil)
	}
	if err != nil {
		return err
	}
	attrs := []any{logging.Uint64(logging.FieldProposalID, p.ID), logging.String("choice", string(choice))}
	if tokenID != nil {
		attrs = append(attrs, logging.Uint64("token_id", *tokenID))
	}
	c.logger.Info("vote cast", attrs...)
	return nil
}

// AwaitEnd waits until the vote may be closed: the ledger reports it closed,
// or the height has passed the end block. The wait timeout bounds the whole
// phase, including a moving end block and an instance that stays open at it.
func (c *Coordinator) AwaitEnd(ctx context.Context) error {
	p, err := c.require("await end", StateOpen)
	if err != nil {
		return err
	}
	end, err := c.storage.EndBlock(ctx, p.ID)
	if err != nil {
		return err
	}
	c.update(func(p *Proposal) {
		p.EndBlock = end
		p.State = StatePendingEnd
	})

	deadline := c.waiter.Deadline()
	for {
		open, err := c.gov.IsOpen(ctx, p.ID)
		if err != nil {
			return err
		}
		if !open {
			c.logger.Info("vote no longer open", logging.Uint64(logging.FieldProposalID, p.ID))
			return nil
		}
		height, err := c.heights.BlockHeight(ctx)
		if err != nil {
			return err
		}
		switch {
		case height > end:
			c.logger.Info("end block passed", logging.Uint64("height", height), logging.Uint64("end_block", end))
			return nil
		case height < end:
			if _, err := c.waiter.UntilDeadline(ctx, end, "end", deadline); err != nil {
				return err
			}
		default:
			if err := c.waiter.PauseDeadline(ctx, "end", deadline); err != nil {
				return err
			}
		}
		if c.refresh {
			if end, err = c.storage.EndBlock(ctx, p.ID); err != nil {
				return err
			}
			c.update(func(p *Proposal) { p.EndBlock = end })
		}
	}
}

// Close ends the vote.
func (c *Coordinator) Close(ctx context.Context) error {
	p, err := c.require("close", StatePendingEnd)
	if err != nil {
		return err
	}
	if err := c.gov.EndVote(ctx, p.ID); err != nil {
		return err
	}
	c.update(func(p *Proposal) { p.State = StateClosed })
	c.logger.Info("vote closed", logging.Uint64(logging.FieldProposalID, p.ID))
	return nil
}

// Outcome reads whether the closed vote succeeded.
func (c *Coordinator) Outcome(ctx context.Context) (bool, error) {
	p, err := c.require("outcome", StateClosed)
	if err != nil {
		return false, err
	}
	return c.gov.VoteSucceeded(ctx, p.ID)
}

// Run drives a fresh proposal through every step.
func (c *Coordinator) Run(ctx context.Context, plan Plan) (Result, error) {
	id, err := c.Propose(ctx)
	if err != nil {
		return Result{}, err
	}
	ctx = services.WithProposalID(ctx, id)
	c.logger = logging.WithContext(ctx, c.logger)

	if err := c.Configure(ctx, plan.Quorum, plan.Duration); err != nil {
		return Result{Proposal: c.Proposal()}, err
	}
	if err := c.AwaitStart(ctx); err != nil {
		return Result{Proposal: c.Proposal()}, err
	}
	if err := c.Open(ctx); err != nil {
		return Result{Proposal: c.Proposal()}, err
	}
	if err := c.cast(ctx, plan.Vote, plan.TokenID); err != nil {
		return Result{Proposal: c.Proposal()}, err
	}
	if err := c.AwaitEnd(ctx); err != nil {
		return Result{Proposal: c.Proposal()}, err
	}
	if err := c.Close(ctx); err != nil {
		return Result{Proposal: c.Proposal()}, err
	}
	passed, err := c.Outcome(ctx)
	if err != nil {
		return Result{Proposal: c.Proposal()}, err
	}
	if passed {
		c.logger.Info("The measure has passed")
	} else {
		c.logger.Info("The measure has failed")
	}
	return Result{Proposal: c.Proposal(), Passed: passed}, nil
}
