package testsupport

import (
	"path/filepath"
	"testing"

	"collective/internal/config"
)

// TestKey is a throwaway secp256k1 key used by every test identity.
const TestKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

// TestAccount is the address derived from TestKey.
const TestAccount = "0x71562b71999873DB5b286dF957af199Ec94617F7"

// Well-known program addresses used across tests.
const (
	GovernanceAddress      = "0x00000000000000000000000000000000000000a1"
	BuilderAddress         = "0x00000000000000000000000000000000000000b1"
	TreasuryBuilderAddress = "0x00000000000000000000000000000000000000b2"
	VoterFactoryAddress    = "0x00000000000000000000000000000000000000c1"
	VoterClassAddress      = "0x00000000000000000000000000000000000000c2"
	SystemAddress          = "0x00000000000000000000000000000000000000d1"
	StorageAddress         = "0x00000000000000000000000000000000000000e1"
	TokenAddress           = "0x00000000000000000000000000000000000000f1"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a valid config rooted in a per-test temp directory with
// descriptors written to its abi directory and every program address filled in.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Ledger.RPCURL = "http://127.0.0.1:8545"
	cfgVal.Ledger.PrivateKey = TestKey
	cfgVal.Ledger.ChainID = 1337
	cfgVal.Contracts.ABIPath = filepath.Join(base, "abi")
	cfgVal.Contracts.GovernanceAddress = GovernanceAddress
	cfgVal.Contracts.BuilderAddress = BuilderAddress
	cfgVal.Contracts.TreasuryBuilderAddress = TreasuryBuilderAddress
	cfgVal.Contracts.VoterFactory = VoterFactoryAddress
	cfgVal.Contracts.VoterClass = VoterClassAddress
	cfgVal.Contracts.SystemAddress = SystemAddress
	cfgVal.Contracts.TokenContract = TokenAddress
	cfgVal.Workflow.PollIntervalMS = 1
	cfgVal.Workflow.MaxPollSleepMS = 5
	cfgVal.Workflow.LockDir = filepath.Join(base, "locks")
	cfgVal.Logging.Dir = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	WriteDescriptors(t, cfgVal.Contracts.ABIPath)

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithApprovers sets the treasury approver list.
func WithApprovers(approvers ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Treasury.Approvers = approvers
	}
}

// WithoutVoterClass clears the configured voter class address.
func WithoutVoterClass() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Contracts.VoterClass = ""
	}
}

// WithLogDir routes file logging into the test's temp directory.
func WithLogDir() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Logging.Dir = filepath.Join(b.baseDir, "logs")
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Contracts.ABIPath)
}
