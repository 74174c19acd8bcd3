package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"collective/internal/builder"
	"collective/internal/config"
	"collective/internal/logging"
)

func newCreateTreasuryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "create-treasury",
		Short: "Build a treasury with the configured approvers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runWorkflow(cmd, "create-treasury", (*config.Config).RequireTreasury, func(s *session) error {
				program, err := s.binder.Bind(builder.TreasuryBuilderDescriptor, s.cfg.Contracts.TreasuryBuilderAddress)
				if err != nil {
					return err
				}
				tb := builder.NewTreasuryBuilder(program, builder.NewRegistry(s.logger), s.logger)
				created, err := tb.Build(s.ctx, builder.TreasuryPlan{
					Approvers:        s.cfg.Treasury.Approvers,
					MinimumApprovals: s.cfg.Treasury.MinimumApprovals,
					TimeLockDelay:    s.cfg.Treasury.TimeLockDelay,
				})
				if err != nil {
					return err
				}
				s.logger.Info("treasury created", logging.Address("treasury", created))
				fmt.Fprintf(cmd.OutOrStdout(), "Treasury created at %s\n", created.Hex())
				return nil
			})
		},
	}
}
