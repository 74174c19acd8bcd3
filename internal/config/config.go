package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Ledger contains RPC endpoint, signing, and transaction settings.
type Ledger struct {
	RPCURL                string  `toml:"rpc_url"`
	PrivateKey            string  `toml:"private_key"`
	ChainID               int64   `toml:"chain_id"`
	Gas                   uint64  `toml:"gas"`
	GasPriceGwei          float64 `toml:"gas_price_gwei"`
	ReceiptPollIntervalMS int     `toml:"receipt_poll_interval_ms"`
	ReceiptTimeoutSeconds int     `toml:"receipt_timeout_seconds"`
	ReadRetryAttempts     int     `toml:"read_retry_attempts"`
	ReadsPerSecond        float64 `toml:"reads_per_second"`
}

// Contracts contains the interface descriptor directory and on-chain program addresses.
type Contracts struct {
	ABIPath                string `toml:"abi_path"`
	VoterFactory           string `toml:"voter_factory"`
	VoterClass             string `toml:"voter_class"`
	GovernanceAddress      string `toml:"governance_address"`
	BuilderAddress         string `toml:"builder_address"`
	TreasuryBuilderAddress string `toml:"treasury_builder_address"`
	SystemAddress          string `toml:"system_address"`
	TokenContract          string `toml:"token_contract"`
}

// Governance contains the attributes applied when building a governance instance.
type Governance struct {
	Name            string `toml:"name"`
	URL             string `toml:"url"`
	Description     string `toml:"description"`
	Supervisor      string `toml:"supervisor"`
	MinimumDuration uint64 `toml:"minimum_duration"`
	VoterWeight     uint64 `toml:"voter_weight"`
}

// Treasury contains the attributes applied when building a treasury.
type Treasury struct {
	Approvers        []string `toml:"approvers"`
	MinimumApprovals uint64   `toml:"minimum_approvals"`
	TimeLockDelay    uint64   `toml:"time_lock_delay"`
}

// Vote contains the parameters of a proposal lifecycle run.
type Vote struct {
	Quorum   uint64 `toml:"quorum"`
	Duration uint64 `toml:"duration"`
	Choice   string `toml:"choice"`
}

// Workflow contains polling cadence and wait ceilings for block-paced waits.
type Workflow struct {
	PollIntervalMS     int    `toml:"poll_interval_ms"`
	MaxPollSleepMS     int    `toml:"max_poll_sleep_ms"`
	WaitTimeoutSeconds int    `toml:"wait_timeout_seconds"`
	RefreshEndBlock    bool   `toml:"refresh_end_block"`
	LockDir            string `toml:"lock_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	Dir    string `toml:"dir"`
}

// Config encapsulates all configuration values for the Collective CLI.
//
// Configuration sections by subsystem:
//   - Ledger: RPC endpoint, signing key, gas ceiling and receipt polling
//   - Contracts: descriptor directory and program addresses
//   - Governance: attributes for governance builds
//   - Treasury: approver list and treasury parameters
//   - Vote: quorum, duration and optional ballot for lifecycle runs
//   - Workflow: block polling cadence and wait ceilings
//   - Logging: log format, level, and directory
type Config struct {
	Ledger     Ledger     `toml:"ledger"`
	Contracts  Contracts  `toml:"contracts"`
	Governance Governance `toml:"governance"`
	Treasury   Treasury   `toml:"treasury"`
	Vote       Vote       `toml:"vote"`
	Workflow   Workflow   `toml:"workflow"`
	Logging    Logging    `toml:"logging"`
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// Path is an explicit config file; empty searches the default locations.
	Path string
	// EnvFile is a dotenv file loaded before environment fallbacks apply.
	// Empty means ".env" in the working directory; a missing file is ignored.
	EnvFile string
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/collective/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	return LoadWithOptions(LoadOptions{Path: path})
}

// LoadWithOptions is Load with control over the dotenv source.
func LoadWithOptions(opts LoadOptions) (*Config, string, bool, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, "", false, configurationError("load env file: %w", err)
	}

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(opts.Path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, configurationError("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, configurationError("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func loadEnvFile(path string) error {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = ".env"
	}
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return err
	}
	// godotenv.Load never overrides variables already present in the process environment.
	return godotenv.Load(expanded)
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, configurationError("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("collective.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the lock and log directories used at runtime.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Workflow.LockDir, c.Logging.Dir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PollInterval returns the per-block polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workflow.PollIntervalMS) * time.Millisecond
}

// MaxPollSleep returns the ceiling for a single polling sleep (zero means uncapped).
func (c *Config) MaxPollSleep() time.Duration {
	return time.Duration(c.Workflow.MaxPollSleepMS) * time.Millisecond
}

// WaitTimeout returns the overall ceiling for a block wait (zero means unbounded).
func (c *Config) WaitTimeout() time.Duration {
	return time.Duration(c.Workflow.WaitTimeoutSeconds) * time.Second
}

// ReceiptPollInterval returns how often a submitted transaction is checked for a receipt.
func (c *Config) ReceiptPollInterval() time.Duration {
	return time.Duration(c.Ledger.ReceiptPollIntervalMS) * time.Millisecond
}

// ReceiptTimeout bounds how long a submitted transaction is awaited.
func (c *Config) ReceiptTimeout() time.Duration {
	return time.Duration(c.Ledger.ReceiptTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultLockDir() string {
	if base, ok := os.LookupEnv("XDG_STATE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "collective", "locks")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.local/state/collective/locks"
	}
	return filepath.Join(home, ".local", "state", "collective", "locks")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
