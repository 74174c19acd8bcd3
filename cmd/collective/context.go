package main

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"collective/internal/config"
	"collective/internal/contract"
	"collective/internal/ledger"
	"collective/internal/logging"
	"collective/internal/services"
)

// dialFunc connects the signing identity to the ledger. The returned func
// releases the connection.
type dialFunc func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ledger.Client, func(), error)

type commandContext struct {
	configFlag   *string
	envFileFlag  *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	dial      dialFunc
	logOutput io.Writer
}

func newCommandContext(configFlag, envFileFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		envFileFlag:  envFileFlag,
		logLevelFlag: logLevelFlag,
		dial:         dialLedger,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.LoadWithOptions(config.LoadOptions{
			Path:    flagValue(c.configFlag),
			EnvFile: flagValue(c.envFileFlag),
		})
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) newLogger(cfg *config.Config) (*slog.Logger, error) {
	level := flagValue(c.logLevelFlag)
	if c.logOutput == nil {
		return logging.NewFromConfig(cfg, level)
	}
	if level == "" && cfg != nil {
		level = cfg.Logging.Level
	}
	format := "console"
	if cfg != nil {
		format = cfg.Logging.Format
	}
	return logging.New(logging.Options{Level: level, Format: format, Writer: c.logOutput})
}

// session is everything a workflow command needs once configuration has been
// validated and the ledger is connected.
type session struct {
	ctx    context.Context
	cfg    *config.Config
	logger *slog.Logger
	client ledger.Client
	binder *contract.Binder
}

// runWorkflow validates the workflow's settings before any connection is
// made, connects, and runs fn. A failure is logged once with its taxonomy kind.
func (c *commandContext) runWorkflow(cmd *cobra.Command, workflow string, require func(*config.Config) error, fn func(*session) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.newLogger(cfg)
	if err != nil {
		return err
	}

	ctx := services.WithRunID(cmd.Context(), uuid.NewString())
	ctx = services.WithWorkflow(ctx, workflow)
	logger = logging.WithContext(ctx, logger)

	fail := func(err error) error {
		logging.ErrorWithContext(logger, workflow+" failed", "workflow_failed",
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldErrorHint, errorHint(err)),
			logging.Error(err),
		)
		return &reportedError{err: err}
	}

	if require != nil {
		if err := require(cfg); err != nil {
			return fail(err)
		}
	}

	client, closeClient, err := c.dial(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	defer closeClient()
	logger.Info("wallet connected", logging.Address("wallet", client.From()))

	s := &session{
		ctx:    ctx,
		cfg:    cfg,
		logger: logger,
		client: client,
		binder: contract.NewBinder(contract.NewLoader(cfg.Contracts.ABIPath), client, cfg.Ledger.Gas, logger),
	}
	if err := fn(s); err != nil {
		return fail(err)
	}
	return nil
}

func dialLedger(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ledger.Client, func(), error) {
	identity, err := ledger.LoadIdentity(cfg.Ledger.PrivateKey)
	if err != nil {
		return nil, nil, err
	}
	client, err := ledger.Dial(ctx, identity, ledger.OptionsFromConfig(cfg, logger))
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}

// reportedError marks an error that has already been logged.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }

func (e *reportedError) Unwrap() error { return e.err }

func errorHint(err error) string {
	switch services.Kind(err) {
	case "configuration":
		return "check the config file and environment variables"
	case "descriptor_load":
		return "check contracts.abi_path and the descriptor files"
	case "bind":
		return "check the program address and that its descriptor matches the deployed program"
	case "transport":
		return "check ledger.rpc_url and that the node is reachable; a send may still have been mined"
	case "rejected_execution":
		return "the ledger rejected the transaction; check gas, balance and program state before retrying"
	case "build_incomplete", "proposal_creation", "creation", "missing_event":
		return "the receipt lacked the expected event; inspect the transaction on the ledger"
	case "lifecycle_violation":
		return "the operation was invoked out of order"
	case "wait_timeout":
		return "raise workflow.wait_timeout_seconds or check block production"
	default:
		return "see the error for details"
	}
}

func flagValue(flag *string) string {
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(*flag)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
