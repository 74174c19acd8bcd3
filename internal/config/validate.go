package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"collective/internal/services"
)

// configurationError marks a message as ErrConfiguration. Causes passed with
// %w stay in the chain.
func configurationError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{services.ErrConfiguration}, args...)...)
}

// Validate ensures the configuration is usable by every workflow.
func (c *Config) Validate() error {
	if err := c.validateLedger(); err != nil {
		return err
	}
	if err := c.validateContracts(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateVote(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateLedger() error {
	parsed, err := url.Parse(c.Ledger.RPCURL)
	if err != nil || parsed.Scheme == "" {
		return configurationError("ledger.rpc_url %q is not a valid endpoint URL", c.Ledger.RPCURL)
	}
	switch parsed.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return configurationError("ledger.rpc_url scheme %q is not supported (use http, https, ws or wss)", parsed.Scheme)
	}
	if c.Ledger.PrivateKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/collective/config.toml"
		}
		return configurationError("ledger.private_key is required. Set PRIVATE_KEY env var or edit %s (create with 'collective config init')", defaultPath)
	}
	if len(c.Ledger.PrivateKey) != 64 {
		return configurationError("ledger.private_key must be 32 bytes of hex")
	}
	if _, err := hex.DecodeString(c.Ledger.PrivateKey); err != nil {
		return configurationError("ledger.private_key must be 32 bytes of hex")
	}
	if c.Ledger.Gas == 0 {
		return configurationError("ledger.gas must be positive")
	}
	if c.Ledger.GasPriceGwei < 0 {
		return configurationError("ledger.gas_price_gwei must be >= 0")
	}
	if c.Ledger.ChainID < 0 {
		return configurationError("ledger.chain_id must be >= 0")
	}
	if c.Ledger.ReadsPerSecond < 0 {
		return configurationError("ledger.reads_per_second must be >= 0")
	}
	return nil
}

func (c *Config) validateContracts() error {
	if c.Contracts.ABIPath == "" {
		return configurationError("contracts.abi_path is required. Set ABI_PATH env var to the interface descriptor directory")
	}
	fields := map[string]string{
		"contracts.voter_factory":            c.Contracts.VoterFactory,
		"contracts.voter_class":              c.Contracts.VoterClass,
		"contracts.governance_address":       c.Contracts.GovernanceAddress,
		"contracts.builder_address":          c.Contracts.BuilderAddress,
		"contracts.treasury_builder_address": c.Contracts.TreasuryBuilderAddress,
		"contracts.system_address":           c.Contracts.SystemAddress,
		"contracts.token_contract":           c.Contracts.TokenContract,
	}
	for name, value := range fields {
		if value != "" && !common.IsHexAddress(value) {
			return configurationError("%s %q is not a ledger address", name, value)
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.PollIntervalMS <= 0 {
		return configurationError("workflow.poll_interval_ms must be positive")
	}
	return nil
}

func (c *Config) validateVote() error {
	switch c.Vote.Choice {
	case "none", "for", "against", "abstain":
		return nil
	default:
		return configurationError("vote.choice must be one of none, for, against, abstain (got %q)", c.Vote.Choice)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return configurationError("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return configurationError("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}

func requireAddress(name, env, value string) error {
	if value == "" {
		return configurationError("%s is required. Set %s env var or edit the config file", name, env)
	}
	return nil
}

// RequireVoterClass checks the settings needed to create a voter class.
func (c *Config) RequireVoterClass() error {
	if err := requireAddress("contracts.voter_factory", "VOTER_FACTORY", c.Contracts.VoterFactory); err != nil {
		return err
	}
	return requireAddress("contracts.token_contract", "TOKEN_CONTRACT", c.Contracts.TokenContract)
}

// RequireGovernance checks the settings needed to build a governance instance.
func (c *Config) RequireGovernance() error {
	if err := requireAddress("contracts.builder_address", "BUILDER_ADDRESS", c.Contracts.BuilderAddress); err != nil {
		return err
	}
	if err := requireAddress("contracts.voter_class", "VOTER_CLASS", c.Contracts.VoterClass); err != nil {
		return err
	}
	if c.Governance.Supervisor != "" && !common.IsHexAddress(c.Governance.Supervisor) {
		return configurationError("governance.supervisor %q is not a ledger address", c.Governance.Supervisor)
	}
	if len(c.Governance.Name) > 32 {
		return configurationError("governance.name must be at most 32 bytes")
	}
	return nil
}

// RequireTreasury checks the settings needed to build a treasury. Individual
// approver entries are validated by the treasury workflow itself so the error
// names the offending position.
func (c *Config) RequireTreasury() error {
	if err := requireAddress("contracts.treasury_builder_address", "TREASURY_BUILDER_ADDRESS", c.Contracts.TreasuryBuilderAddress); err != nil {
		return err
	}
	if len(c.Treasury.Approvers) == 0 {
		return configurationError("treasury.approvers must list at least one approver")
	}
	if c.Treasury.MinimumApprovals == 0 {
		return configurationError("treasury.minimum_approvals must be positive")
	}
	return nil
}

// RequireGovernanceInstance checks the settings needed to read an existing
// governance instance.
func (c *Config) RequireGovernanceInstance() error {
	return requireAddress("contracts.governance_address", "CONTRACT_ADDRESS", c.Contracts.GovernanceAddress)
}

// RequireVote checks the settings needed to run a proposal lifecycle.
func (c *Config) RequireVote() error {
	if err := requireAddress("contracts.governance_address", "CONTRACT_ADDRESS", c.Contracts.GovernanceAddress); err != nil {
		return err
	}
	if c.Vote.Quorum == 0 {
		return configurationError("vote.quorum must be positive")
	}
	if c.Vote.Duration == 0 {
		return configurationError("vote.duration must be positive")
	}
	return nil
}

// RequireCollective checks the settings needed for a one-shot collective creation.
func (c *Config) RequireCollective() error {
	if err := requireAddress("contracts.system_address", "SYSTEM_ADDRESS", c.Contracts.SystemAddress); err != nil {
		return err
	}
	if err := requireAddress("contracts.token_contract", "TOKEN_CONTRACT", c.Contracts.TokenContract); err != nil {
		return err
	}
	if c.Vote.Quorum == 0 {
		return configurationError("vote.quorum must be positive")
	}
	if strings.TrimSpace(c.Governance.Name) == "" {
		return configurationError("governance.name is required to create a collective")
	}
	return nil
}
