package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeLedger(); err != nil {
		return err
	}
	if err := c.normalizeContracts(); err != nil {
		return err
	}
	c.normalizeGovernance()
	c.normalizeTreasury()
	c.normalizeVote()
	if err := c.normalizeWorkflow(); err != nil {
		return err
	}
	return c.normalizeLogging()
}

// lookupEnv fills target from the named variable only when the config left it empty.
func lookupEnv(target *string, name string) {
	if strings.TrimSpace(*target) != "" {
		return
	}
	if value, ok := os.LookupEnv(name); ok {
		*target = value
	}
}

func (c *Config) normalizeLedger() error {
	if value, ok := os.LookupEnv("RPC_URL"); ok && strings.TrimSpace(value) != "" &&
		(c.Ledger.RPCURL == "" || c.Ledger.RPCURL == defaultRPCURL) {
		c.Ledger.RPCURL = value
	}
	c.Ledger.RPCURL = strings.TrimSpace(c.Ledger.RPCURL)
	if c.Ledger.RPCURL == "" {
		c.Ledger.RPCURL = defaultRPCURL
	}

	lookupEnv(&c.Ledger.PrivateKey, "PRIVATE_KEY")
	c.Ledger.PrivateKey = strings.TrimPrefix(strings.TrimSpace(c.Ledger.PrivateKey), "0x")

	if value, ok := os.LookupEnv("GAS"); ok && strings.TrimSpace(value) != "" && c.Ledger.Gas == defaultGas {
		gas, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return configurationError("GAS: %q is not a gas amount", value)
		}
		c.Ledger.Gas = gas
	}
	if value, ok := os.LookupEnv("GAS_PRICE"); ok && strings.TrimSpace(value) != "" && c.Ledger.GasPriceGwei == 0 {
		price, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return configurationError("GAS_PRICE: %q is not a gwei amount", value)
		}
		c.Ledger.GasPriceGwei = price
	}

	if c.Ledger.ReceiptPollIntervalMS <= 0 {
		c.Ledger.ReceiptPollIntervalMS = defaultReceiptPollIntervalMS
	}
	if c.Ledger.ReceiptTimeoutSeconds <= 0 {
		c.Ledger.ReceiptTimeoutSeconds = defaultReceiptTimeoutSeconds
	}
	if c.Ledger.ReadRetryAttempts <= 0 {
		c.Ledger.ReadRetryAttempts = 1
	}
	return nil
}

func (c *Config) normalizeContracts() error {
	lookupEnv(&c.Contracts.ABIPath, "ABI_PATH")
	lookupEnv(&c.Contracts.VoterFactory, "VOTER_FACTORY")
	lookupEnv(&c.Contracts.VoterClass, "VOTER_CLASS")
	lookupEnv(&c.Contracts.GovernanceAddress, "CONTRACT_ADDRESS")
	lookupEnv(&c.Contracts.BuilderAddress, "BUILDER_ADDRESS")
	lookupEnv(&c.Contracts.TreasuryBuilderAddress, "TREASURY_BUILDER_ADDRESS")
	lookupEnv(&c.Contracts.SystemAddress, "SYSTEM_ADDRESS")
	lookupEnv(&c.Contracts.TokenContract, "TOKEN_CONTRACT")

	for _, field := range []*string{
		&c.Contracts.VoterFactory,
		&c.Contracts.VoterClass,
		&c.Contracts.GovernanceAddress,
		&c.Contracts.BuilderAddress,
		&c.Contracts.TreasuryBuilderAddress,
		&c.Contracts.SystemAddress,
		&c.Contracts.TokenContract,
	} {
		*field = strings.TrimSpace(*field)
	}

	var err error
	if c.Contracts.ABIPath, err = expandPath(strings.TrimSpace(c.Contracts.ABIPath)); err != nil {
		return fmt.Errorf("contracts.abi_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeGovernance() {
	c.Governance.Name = strings.TrimSpace(c.Governance.Name)
	c.Governance.URL = strings.TrimSpace(c.Governance.URL)
	c.Governance.Description = strings.TrimSpace(c.Governance.Description)
	c.Governance.Supervisor = strings.TrimSpace(c.Governance.Supervisor)
	if c.Governance.VoterWeight == 0 {
		c.Governance.VoterWeight = defaultVoterWeight
	}
}

// normalizeTreasury keeps empty approver entries so the treasury workflow can
// reject them by position.
func (c *Config) normalizeTreasury() {
	if len(c.Treasury.Approvers) == 0 {
		if value, ok := os.LookupEnv("TREASURY_APPROVER"); ok && strings.TrimSpace(value) != "" {
			c.Treasury.Approvers = strings.Split(value, ",")
		}
	}
	seen := make(map[string]struct{}, len(c.Treasury.Approvers))
	approvers := make([]string, 0, len(c.Treasury.Approvers))
	for _, approver := range c.Treasury.Approvers {
		approver = strings.TrimSpace(approver)
		if approver != "" {
			if _, dup := seen[approver]; dup {
				continue
			}
			seen[approver] = struct{}{}
		}
		approvers = append(approvers, approver)
	}
	c.Treasury.Approvers = approvers
}

func (c *Config) normalizeVote() {
	c.Vote.Choice = strings.ToLower(strings.TrimSpace(c.Vote.Choice))
	if c.Vote.Choice == "" {
		c.Vote.Choice = defaultVoteChoice
	}
}

func (c *Config) normalizeWorkflow() error {
	if c.Workflow.MaxPollSleepMS < 0 {
		c.Workflow.MaxPollSleepMS = 0
	}
	if c.Workflow.WaitTimeoutSeconds < 0 {
		c.Workflow.WaitTimeoutSeconds = 0
	}
	if strings.TrimSpace(c.Workflow.LockDir) == "" {
		c.Workflow.LockDir = defaultLockDir()
	}
	var err error
	if c.Workflow.LockDir, err = expandPath(strings.TrimSpace(c.Workflow.LockDir)); err != nil {
		return fmt.Errorf("workflow.lock_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	var err error
	if c.Logging.Dir, err = expandPath(strings.TrimSpace(c.Logging.Dir)); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	return nil
}
