package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"collective/internal/config"
	"collective/internal/governance"
	"collective/internal/lifecycle"
	"collective/internal/logging"
	"collective/internal/services"
)

func newVoteCommand(ctx *commandContext) *cobra.Command {
	var quorum uint64
	var duration uint64
	var choice string
	var tokenID uint64

	cmd := &cobra.Command{
		Use:   "vote",
		Short: "Propose, configure, open, vote on and close a measure",
		RunE: func(cmd *cobra.Command, args []string) error {
			require := func(cfg *config.Config) error {
				if cmd.Flags().Changed("quorum") {
					cfg.Vote.Quorum = quorum
				}
				if cmd.Flags().Changed("duration") {
					cfg.Vote.Duration = duration
				}
				if cmd.Flags().Changed("vote") {
					cfg.Vote.Choice = choice
				}
				if _, ok := lifecycle.ParseChoice(cfg.Vote.Choice); !ok {
					return fmt.Errorf("%w: --vote must be one of none, for, against, abstain (got %q)", services.ErrConfiguration, cfg.Vote.Choice)
				}
				return cfg.RequireVote()
			}
			return ctx.runWorkflow(cmd, "vote", require, func(s *session) error {
				gov, storage, err := bindGovernance(s)
				if err != nil {
					return err
				}
				vote, _ := lifecycle.ParseChoice(s.cfg.Vote.Choice)
				plan := lifecycle.Plan{
					Quorum:   s.cfg.Vote.Quorum,
					Duration: s.cfg.Vote.Duration,
					Vote:     vote,
				}
				if cmd.Flags().Changed("token-id") {
					plan.TokenID = &tokenID
				}

				coordinator := lifecycle.New(gov, storage, s.client, lifecycleOptions(s))
				result, err := coordinator.Run(s.ctx, plan)
				if err != nil {
					return err
				}

				outcome := "failed"
				if result.Passed {
					outcome = "passed"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Proposal %d %s (start block %d, end block %d)\n",
					result.Proposal.ID, outcome, result.Proposal.StartBlock, result.Proposal.EndBlock)
				return nil
			})
		},
	}
	cmd.Flags().Uint64Var(&quorum, "quorum", 0, "Votes required (default vote.quorum)")
	cmd.Flags().Uint64Var(&duration, "duration", 0, "Voting window in blocks (default vote.duration)")
	cmd.Flags().StringVar(&choice, "vote", "", "Vote to cast while open: none, for, against, abstain (default vote.choice)")
	cmd.Flags().Uint64Var(&tokenID, "token-id", 0, "Vote with this single voter class token instead of every token held")
	return cmd
}

// bindGovernance binds the configured governance instance and its storage and
// logs both identities.
func bindGovernance(s *session) (*governance.Governance, *governance.Storage, error) {
	gov, err := governance.Bind(s.binder, s.cfg.Contracts.GovernanceAddress, s.logger)
	if err != nil {
		return nil, nil, err
	}
	name, err := gov.Name(s.ctx)
	if err != nil {
		return nil, nil, err
	}
	version, err := gov.Version(s.ctx)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("governance bound",
		logging.String("governance_name", name),
		logging.Uint64("governance_version", version),
		logging.Address("governance", gov.Address()),
	)

	storage, err := gov.Storage(s.ctx)
	if err != nil {
		return nil, nil, err
	}
	storageName, err := storage.Name(s.ctx)
	if err != nil {
		return nil, nil, err
	}
	storageVersion, err := storage.Version(s.ctx)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("storage bound",
		logging.String("storage_name", storageName),
		logging.Uint64("storage_version", storageVersion),
		logging.Address("storage", storage.Address()),
	)
	return gov, storage, nil
}

func lifecycleOptions(s *session) lifecycle.Options {
	return lifecycle.Options{
		PollInterval:    s.cfg.PollInterval(),
		MaxPollSleep:    s.cfg.MaxPollSleep(),
		WaitTimeout:     s.cfg.WaitTimeout(),
		RefreshEndBlock: s.cfg.Workflow.RefreshEndBlock,
		Logger:          s.logger,
	}
}

// proposalStatus is the read-only view printed by the status command.
type proposalStatus struct {
	ProposalID uint64 `json:"proposal_id"`
	Quorum     uint64 `json:"quorum"`
	Duration   uint64 `json:"duration"`
	StartBlock uint64 `json:"start_block"`
	EndBlock   uint64 `json:"end_block"`
	Height     uint64 `json:"height"`
	Open       bool   `json:"open"`
	Outcome    string `json:"outcome"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status <proposal-id>",
		Short: "Show the stored parameters and outcome of a proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id uint64
			require := func(cfg *config.Config) (err error) {
				if id, err = parseProposalID(args[0]); err != nil {
					return err
				}
				return cfg.RequireGovernanceInstance()
			}
			return ctx.runWorkflow(cmd, "status", require, func(s *session) error {
				s.ctx = services.WithProposalID(s.ctx, id)
				gov, storage, err := bindGovernance(s)
				if err != nil {
					return err
				}
				status, err := readStatus(s, gov, storage, id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), status)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderFields("Field", status.fields(), true))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func (p proposalStatus) fields() []field {
	return []field{
		{"Proposal", strconv.FormatUint(p.ProposalID, 10)},
		{"Quorum", strconv.FormatUint(p.Quorum, 10)},
		{"Duration", strconv.FormatUint(p.Duration, 10)},
		{"Start block", strconv.FormatUint(p.StartBlock, 10)},
		{"End block", strconv.FormatUint(p.EndBlock, 10)},
		{"Current block", strconv.FormatUint(p.Height, 10)},
		{"Open", yesNo(p.Open)},
		{"Outcome", p.Outcome},
	}
}

// parseProposalID accepts the positive decimal ids propose returns.
func parseProposalID(arg string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(arg), 10, 64)
	if err != nil || id == 0 {
		return 0, services.Wrap(services.ErrConfiguration, "", "", fmt.Sprintf("invalid proposal id %q", arg), nil)
	}
	return id, nil
}

func readStatus(s *session, gov *governance.Governance, storage *governance.Storage, id uint64) (proposalStatus, error) {
	status := proposalStatus{ProposalID: id}
	var err error
	if status.Quorum, err = storage.QuorumRequired(s.ctx, id); err != nil {
		return status, err
	}
	if status.Duration, err = storage.VoteDuration(s.ctx, id); err != nil {
		return status, err
	}
	if status.StartBlock, err = storage.StartBlock(s.ctx, id); err != nil {
		return status, err
	}
	if status.EndBlock, err = storage.EndBlock(s.ctx, id); err != nil {
		return status, err
	}
	if status.Height, err = s.client.BlockHeight(s.ctx); err != nil {
		return status, err
	}
	if status.Open, err = gov.IsOpen(s.ctx, id); err != nil {
		return status, err
	}

	switch {
	case status.Open:
		status.Outcome = "voting"
	default:
		passed, err := gov.VoteSucceeded(s.ctx, id)
		switch {
		case errors.Is(err, services.ErrRejectedExecution):
			// The program refuses the outcome read until the vote has ended.
			status.Outcome = "undecided"
		case err != nil:
			return status, err
		case passed:
			status.Outcome = "passed"
		default:
			status.Outcome = "failed"
		}
	}
	return status, nil
}
