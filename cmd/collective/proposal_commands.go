package main

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"collective/internal/config"
	"collective/internal/governance"
	"collective/internal/logging"
	"collective/internal/services"
)

// newCancelCommand withdraws a proposal that was never opened.
func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <proposal-id>",
		Short: "Cancel a proposal that has not been opened",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id uint64
			require := func(cfg *config.Config) (err error) {
				if id, err = parseProposalID(args[0]); err != nil {
					return err
				}
				return cfg.RequireGovernanceInstance()
			}
			return ctx.runWorkflow(cmd, "cancel", require, func(s *session) error {
				s.ctx = services.WithProposalID(s.ctx, id)
				gov, err := governance.Bind(s.binder, s.cfg.Contracts.GovernanceAddress, s.logger)
				if err != nil {
					return err
				}
				if err := gov.Cancel(s.ctx, id); err != nil {
					return err
				}
				s.logger.Info("proposal cancelled", logging.Uint64(logging.FieldProposalID, id))
				fmt.Fprintf(cmd.OutOrStdout(), "Proposal %d cancelled\n", id)
				return nil
			})
		},
	}
}

type attachFlags struct {
	target       string
	value        string
	signature    string
	calldata     string
	scheduleTime uint64
}

// transaction validates the flags into the call a passed proposal executes.
func (f attachFlags) transaction() (governance.Transaction, error) {
	invalid := func(format string, args ...any) (governance.Transaction, error) {
		return governance.Transaction{}, services.Wrap(services.ErrConfiguration, "", "attachTransaction", fmt.Sprintf(format, args...), nil)
	}
	if !common.IsHexAddress(f.target) {
		return invalid("--target %q is not a ledger address", f.target)
	}
	value, ok := new(big.Int).SetString(strings.TrimSpace(f.value), 10)
	if !ok || value.Sign() < 0 {
		return invalid("--value %q is not a non-negative wei amount", f.value)
	}
	var calldata []byte
	if f.calldata != "" {
		decoded, err := hexutil.Decode(f.calldata)
		if err != nil {
			return invalid("--calldata %q is not 0x-prefixed hex", f.calldata)
		}
		calldata = decoded
	}
	return governance.Transaction{
		Target:       common.HexToAddress(f.target),
		Value:        value,
		Signature:    f.signature,
		Calldata:     calldata,
		ScheduleTime: f.scheduleTime,
	}, nil
}

// newAttachCommand attaches a transaction to a configured, unopened proposal.
func newAttachCommand(ctx *commandContext) *cobra.Command {
	var flags attachFlags

	cmd := &cobra.Command{
		Use:   "attach <proposal-id>",
		Short: "Attach a transaction for a proposal to execute once it passes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id uint64
			var tx governance.Transaction
			require := func(cfg *config.Config) (err error) {
				if id, err = parseProposalID(args[0]); err != nil {
					return err
				}
				if tx, err = flags.transaction(); err != nil {
					return err
				}
				return cfg.RequireGovernanceInstance()
			}
			return ctx.runWorkflow(cmd, "attach", require, func(s *session) error {
				s.ctx = services.WithProposalID(s.ctx, id)
				gov, err := governance.Bind(s.binder, s.cfg.Contracts.GovernanceAddress, s.logger)
				if err != nil {
					return err
				}
				if err := gov.AttachTransaction(s.ctx, id, tx); err != nil {
					return err
				}
				s.logger.Info("transaction attached",
					logging.Uint64(logging.FieldProposalID, id),
					logging.Address("target", tx.Target),
					logging.String("signature", tx.Signature),
				)
				fmt.Fprintf(cmd.OutOrStdout(), "Transaction to %s attached to proposal %d\n", tx.Target.Hex(), id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&flags.target, "target", "", "Address the transaction calls")
	cmd.Flags().StringVar(&flags.value, "value", "0", "Wei sent with the transaction")
	cmd.Flags().StringVar(&flags.signature, "signature", "", "Function signature, for example transfer(address,uint256)")
	cmd.Flags().StringVar(&flags.calldata, "calldata", "", "ABI encoded arguments as 0x-prefixed hex")
	cmd.Flags().Uint64Var(&flags.scheduleTime, "schedule-time", 0, "Earliest execution time in seconds since the epoch")
	return cmd
}
