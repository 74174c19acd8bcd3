package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"collective/internal/config"
	"collective/internal/governance"
	"collective/internal/logging"
)

// newCreateCollectiveCommand creates governance, storage and meta storage in
// a single System.create send. The token contract is the ERC-721 whose holders
// form the membership.
func newCreateCollectiveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "create-collective",
		Short: "Create a complete collective through the system factory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runWorkflow(cmd, "create-collective", (*config.Config).RequireCollective, func(s *session) error {
				program, err := s.binder.Bind(governance.SystemDescriptor, s.cfg.Contracts.SystemAddress)
				if err != nil {
					return err
				}
				created, err := governance.NewSystem(program, s.logger).Create(s.ctx, governance.CollectivePlan{
					Name:        s.cfg.Governance.Name,
					URL:         s.cfg.Governance.URL,
					Description: s.cfg.Governance.Description,
					ERC721:      common.HexToAddress(s.cfg.Contracts.TokenContract),
					Quorum:      s.cfg.Vote.Quorum,
				})
				if err != nil {
					return err
				}
				s.logger.Info("collective created",
					logging.Address("governance", created.Governance),
					logging.Address("storage", created.Storage),
					logging.Address("meta_storage", created.Meta),
				)
				fmt.Fprintln(cmd.OutOrStdout(), renderFields("Contract", []field{
					{"Governance", created.Governance.Hex()},
					{"Storage", created.Storage.Hex()},
					{"Meta storage", created.Meta.Hex()},
				}, false))
				return nil
			})
		},
	}
}
