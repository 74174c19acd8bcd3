package config

const (
	defaultRPCURL                = "wss://localhost:8545"
	defaultGas                   = 470000
	defaultReceiptPollIntervalMS = 1000
	defaultReceiptTimeoutSeconds = 600
	defaultReadRetryAttempts     = 5
	defaultReadsPerSecond        = 10
	defaultPollIntervalMS        = 2000
	defaultMaxPollSleepMS        = 60000
	defaultQuorum                = 1
	defaultVoteDuration          = 5
	defaultVoteChoice            = "none"
	defaultVoterWeight           = 1
	defaultMinimumApprovals      = 1
	defaultTimeLockDelay         = 86400
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Ledger: Ledger{
			RPCURL:                defaultRPCURL,
			Gas:                   defaultGas,
			ReceiptPollIntervalMS: defaultReceiptPollIntervalMS,
			ReceiptTimeoutSeconds: defaultReceiptTimeoutSeconds,
			ReadRetryAttempts:     defaultReadRetryAttempts,
			ReadsPerSecond:        defaultReadsPerSecond,
		},
		Governance: Governance{
			VoterWeight: defaultVoterWeight,
		},
		Treasury: Treasury{
			MinimumApprovals: defaultMinimumApprovals,
			TimeLockDelay:    defaultTimeLockDelay,
		},
		Vote: Vote{
			Quorum:   defaultQuorum,
			Duration: defaultVoteDuration,
			Choice:   defaultVoteChoice,
		},
		Workflow: Workflow{
			PollIntervalMS: defaultPollIntervalMS,
			MaxPollSleepMS: defaultMaxPollSleepMS,
			LockDir:        defaultLockDir(),
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
