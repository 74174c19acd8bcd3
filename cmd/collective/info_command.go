package main

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/spf13/cobra"

	"collective/internal/config"
)

func newInfoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the wallet, chain and governance instance in use",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runWorkflow(cmd, "info", (*config.Config).RequireGovernanceInstance, func(s *session) error {
				gov, storage, err := bindGovernance(s)
				if err != nil {
					return err
				}
				govName, err := gov.Name(s.ctx)
				if err != nil {
					return err
				}
				govVersion, err := gov.Version(s.ctx)
				if err != nil {
					return err
				}
				storageName, err := storage.Name(s.ctx)
				if err != nil {
					return err
				}
				storageVersion, err := storage.Version(s.ctx)
				if err != nil {
					return err
				}
				height, err := s.client.BlockHeight(s.ctx)
				if err != nil {
					return err
				}

				chain := "unknown"
				if source, ok := s.client.(interface{ ChainID() *big.Int }); ok && source.ChainID() != nil {
					chain = source.ChainID().String()
				}

				fmt.Fprintln(cmd.OutOrStdout(), renderFields("Item", []field{
					{"Wallet", s.client.From().Hex()},
					{"Chain", chain},
					{"Block", strconv.FormatUint(height, 10)},
					{"Governance", fmt.Sprintf("%s v%d (%s)", govName, govVersion, gov.Address().Hex())},
					{"Storage", fmt.Sprintf("%s v%d (%s)", storageName, storageVersion, storage.Address().Hex())},
				}, false))
				return nil
			})
		},
	}
}
