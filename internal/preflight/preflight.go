package preflight

import (
	"context"
	"strings"

	"collective/internal/builder"
	"collective/internal/config"
	"collective/internal/contract"
	"collective/internal/governance"
	"collective/internal/voterclass"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}

// RequiredDescriptors lists the descriptors the configured addresses need.
func RequiredDescriptors(cfg *config.Config) []string {
	var names []string
	if strings.TrimSpace(cfg.Contracts.GovernanceAddress) != "" {
		names = append(names, governance.GovernanceDescriptor, governance.StrategyDescriptor, governance.StorageDescriptor)
	}
	if strings.TrimSpace(cfg.Contracts.BuilderAddress) != "" {
		names = append(names, builder.GovernanceBuilderDescriptor)
	}
	if strings.TrimSpace(cfg.Contracts.TreasuryBuilderAddress) != "" {
		names = append(names, builder.TreasuryBuilderDescriptor)
	}
	if strings.TrimSpace(cfg.Contracts.VoterFactory) != "" {
		names = append(names, voterclass.Descriptor)
	}
	if strings.TrimSpace(cfg.Contracts.SystemAddress) != "" {
		names = append(names, governance.SystemDescriptor)
	}
	return names
}

// RunAll executes every preflight check. heights may be nil when no ledger
// connection could be made; the ledger check then fails.
func RunAll(ctx context.Context, cfg *config.Config, heights HeightSource) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckConfig(cfg.Validate),
		CheckDirectoryAccess("Descriptor directory", cfg.Contracts.ABIPath),
	}
	if results[len(results)-1].Passed {
		results = append(results, CheckDescriptors(contract.NewLoader(cfg.Contracts.ABIPath), RequiredDescriptors(cfg)))
	}
	results = append(results,
		CheckLockDirectory(cfg.Workflow.LockDir),
		CheckLedger(ctx, heights),
	)
	return results
}
