package main

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"collective/internal/builder"
	"collective/internal/config"
	"collective/internal/logging"
	"collective/internal/services"
	"collective/internal/voterclass"
)

// newCreateGovernanceCommand creates a voter class when none is configured and
// otherwise builds a governance instance supervised by the wallet.
func newCreateGovernanceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "create-governance",
		Short: "Create a voter class, or a governance instance once a voter class is configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Contracts.VoterClass) == "" {
				return ctx.runWorkflow(cmd, "create-voter-class", (*config.Config).RequireVoterClass, func(s *session) error {
					s.logger.Info("building voter class")
					_, err := createVoterClass(s, cfg.Contracts.TokenContract, cfg.Governance.VoterWeight)
					return err
				})
			}
			return ctx.runWorkflow(cmd, "create-governance", (*config.Config).RequireGovernance, func(s *session) error {
				s.logger.Info("building governance contract")
				_, err := buildGovernance(cmd, s, governanceFlags{})
				return err
			})
		},
	}
}

func newVoterClassCommand(ctx *commandContext) *cobra.Command {
	var project string
	var weight uint64

	cmd := &cobra.Command{
		Use:   "voter-class",
		Short: "Create an ERC-721 voter class",
		RunE: func(cmd *cobra.Command, args []string) error {
			require := func(cfg *config.Config) error {
				if project != "" {
					if !common.IsHexAddress(project) {
						return fmt.Errorf("%w: --project %q is not a ledger address", services.ErrConfiguration, project)
					}
					cfg.Contracts.TokenContract = project
				}
				if cmd.Flags().Changed("weight") {
					cfg.Governance.VoterWeight = weight
				}
				return cfg.RequireVoterClass()
			}
			return ctx.runWorkflow(cmd, "voter-class", require, func(s *session) error {
				_, err := createVoterClass(s, s.cfg.Contracts.TokenContract, s.cfg.Governance.VoterWeight)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "ERC-721 token contract (default contracts.token_contract)")
	cmd.Flags().Uint64Var(&weight, "weight", 1, "Voting weight per token (default governance.voter_weight)")
	return cmd
}

func createVoterClass(s *session, project string, weight uint64) (common.Address, error) {
	program, err := s.binder.Bind(voterclass.Descriptor, s.cfg.Contracts.VoterFactory)
	if err != nil {
		return common.Address{}, err
	}
	if weight == 0 {
		weight = 1
	}
	class, err := voterclass.New(program, s.logger).CreateERC721(s.ctx, common.HexToAddress(project), weight)
	if err != nil {
		return common.Address{}, err
	}
	s.logger.Info("voter class created", logging.Address("voter_class", class))
	return class, nil
}

type governanceFlags struct {
	name            string
	url             string
	description     string
	minimumDuration uint64
	changed         func(string) bool
}

func newGovernanceCommand(ctx *commandContext) *cobra.Command {
	governanceCmd := &cobra.Command{
		Use:   "governance",
		Short: "Governance builder operations",
	}
	governanceCmd.AddCommand(newGovernanceBuildCommand(ctx))
	return governanceCmd
}

func newGovernanceBuildCommand(ctx *commandContext) *cobra.Command {
	var flags governanceFlags

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a governance instance with explicit attributes",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.changed = cmd.Flags().Changed
			return ctx.runWorkflow(cmd, "governance-build", (*config.Config).RequireGovernance, func(s *session) error {
				_, err := buildGovernance(cmd, s, flags)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&flags.name, "name", "", "Governance name, at most 32 ASCII bytes (default governance.name)")
	cmd.Flags().StringVar(&flags.url, "url", "", "Governance URL (default governance.url)")
	cmd.Flags().StringVar(&flags.description, "description", "", "Governance description (default governance.description)")
	cmd.Flags().Uint64Var(&flags.minimumDuration, "minimum-duration", 0, "Minimum vote duration in blocks (default governance.minimum_duration)")
	return cmd
}

func buildGovernance(cmd *cobra.Command, s *session, flags governanceFlags) (common.Address, error) {
	program, err := s.binder.Bind(builder.GovernanceBuilderDescriptor, s.cfg.Contracts.BuilderAddress)
	if err != nil {
		return common.Address{}, err
	}

	plan := builder.GovernancePlan{
		Name:            s.cfg.Governance.Name,
		URL:             s.cfg.Governance.URL,
		Description:     s.cfg.Governance.Description,
		MinimumDuration: s.cfg.Governance.MinimumDuration,
		Supervisor:      s.client.From(),
		VoterClass:      common.HexToAddress(s.cfg.Contracts.VoterClass),
	}
	if s.cfg.Governance.Supervisor != "" {
		plan.Supervisor = common.HexToAddress(s.cfg.Governance.Supervisor)
	}
	if flags.changed != nil {
		if flags.changed("name") {
			plan.Name = flags.name
		}
		if flags.changed("url") {
			plan.URL = flags.url
		}
		if flags.changed("description") {
			plan.Description = flags.description
		}
		if flags.changed("minimum-duration") {
			plan.MinimumDuration = flags.minimumDuration
		}
	}

	gb := builder.NewGovernanceBuilder(program, builder.NewRegistry(s.logger), s.logger)
	created, err := gb.Build(s.ctx, plan)
	if err != nil {
		return common.Address{}, err
	}
	s.logger.Info("governance contract created", logging.Address("governance", created))
	fmt.Fprintf(cmd.OutOrStdout(), "Governance contract created at %s\n", created.Hex())
	return created, nil
}
