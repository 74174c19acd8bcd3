package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"collective/internal/logging"
	"collective/internal/preflight"
)

// newDoctorCommand runs the preflight checks. It loads configuration itself
// so a broken config is reported as a failed check instead of aborting.
func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:         "doctor",
		Short:       "Check configuration, descriptors, lock directory and ledger connectivity",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderBanner("Collective doctor", colorize) {
				fmt.Fprintln(out, line)
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				fmt.Fprintln(out, renderCheck("Configuration", checkFailed, err.Error(), colorize))
				return &reportedError{err: err}
			}

			var heights preflight.HeightSource
			if !offline {
				client, closeClient, err := ctx.dial(cmd.Context(), cfg, logging.NewNop())
				if err == nil {
					defer closeClient()
					heights = client
				} else {
					fmt.Fprintln(out, renderCheck("Ledger dial", checkFailed, err.Error(), colorize))
				}
			}

			results := preflight.RunAll(cmd.Context(), cfg, heights)
			for _, result := range results {
				fmt.Fprintln(out, renderCheckResult(result, offline, colorize))
			}
			if failedChecks(results, offline) {
				return &reportedError{err: fmt.Errorf("preflight checks failed")}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the ledger connectivity check")
	return cmd
}

func failedChecks(results []preflight.Result, offline bool) bool {
	for _, result := range results {
		if result.Passed || (offline && result.Name == preflight.LedgerCheck) {
			continue
		}
		return true
	}
	return false
}
