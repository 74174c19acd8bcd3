package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"

	"collective/internal/config"
	"collective/internal/logging"
	"collective/internal/services"
)

// Client is the ledger surface the binder depends on.
type Client interface {
	// BlockHeight returns the latest block number.
	BlockHeight(ctx context.Context) (uint64, error)
	// Call evaluates calldata against the latest state without a transaction.
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	// Send signs, submits and waits for the receipt of one transaction. A
	// reverted transaction returns its receipt together with an
	// ErrRejectedExecution error.
	Send(ctx context.Context, to common.Address, data []byte, gasLimit uint64) (*types.Receipt, error)
	// From is the address sends are signed by.
	From() common.Address
}

// backend is the subset of ethclient.Client the EthClient drives.
type backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// Options configures an EthClient.
type Options struct {
	RPCURL              string
	ChainID             int64
	GasPriceGwei        float64
	ReceiptPollInterval time.Duration
	ReceiptTimeout      time.Duration
	ReadRetryAttempts   int
	// RetryInitialInterval seeds the exponential backoff between read attempts.
	RetryInitialInterval time.Duration
	ReadsPerSecond       float64
	LockDir              string
	Logger               *slog.Logger
}

// OptionsFromConfig maps the [ledger] and [workflow] sections onto client options.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		RPCURL:               cfg.Ledger.RPCURL,
		ChainID:              cfg.Ledger.ChainID,
		GasPriceGwei:         cfg.Ledger.GasPriceGwei,
		ReceiptPollInterval:  cfg.ReceiptPollInterval(),
		ReceiptTimeout:       cfg.ReceiptTimeout(),
		ReadRetryAttempts:    cfg.Ledger.ReadRetryAttempts,
		RetryInitialInterval: 500 * time.Millisecond,
		ReadsPerSecond:       cfg.Ledger.ReadsPerSecond,
		LockDir:              cfg.Workflow.LockDir,
		Logger:               logger,
	}
}

// EthClient implements Client over a go-ethereum RPC connection. It is safe for
// concurrent use; sends from its identity are serialized.
type EthClient struct {
	backend  backend
	identity *Identity
	chainID  *big.Int
	signer   types.Signer
	limiter  *rate.Limiter
	seq      *sequencer
	opts     Options
	logger   *slog.Logger
}

// Dial connects to the configured endpoint and binds the signing identity.
func Dial(ctx context.Context, identity *Identity, opts Options) (*EthClient, error) {
	conn, err := ethclient.DialContext(ctx, opts.RPCURL)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "ledger", "dial", opts.RPCURL, err)
	}
	client, err := newEthClient(ctx, conn, identity, opts)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return client, nil
}

func newEthClient(ctx context.Context, b backend, identity *Identity, opts Options) (*EthClient, error) {
	if identity == nil {
		return nil, services.Wrap(services.ErrConfiguration, "ledger", "connect", "identity is required", nil)
	}
	if opts.ReceiptPollInterval <= 0 {
		opts.ReceiptPollInterval = time.Second
	}
	if opts.ReceiptTimeout <= 0 {
		opts.ReceiptTimeout = 10 * time.Minute
	}
	if opts.ReadRetryAttempts <= 0 {
		opts.ReadRetryAttempts = 1
	}
	if opts.RetryInitialInterval <= 0 {
		opts.RetryInitialInterval = 500 * time.Millisecond
	}
	limit := rate.Inf
	if opts.ReadsPerSecond > 0 {
		limit = rate.Limit(opts.ReadsPerSecond)
	}

	seq, err := newSequencer(opts.LockDir, identity.Address().Hex())
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "ledger", "connect", "send lock", err)
	}

	c := &EthClient{
		backend:  b,
		identity: identity,
		limiter:  rate.NewLimiter(limit, 1),
		seq:      seq,
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "ledger"),
	}

	if opts.ChainID > 0 {
		c.chainID = big.NewInt(opts.ChainID)
	} else {
		id, err := retryRead(ctx, c, "chainId", func(ctx context.Context) (*big.Int, error) {
			return c.backend.ChainID(ctx)
		})
		if err != nil {
			return nil, err
		}
		c.chainID = id
	}
	c.signer = types.LatestSignerForChainID(c.chainID)
	c.logger.Debug("ledger connected",
		logging.String("rpc_url", opts.RPCURL),
		logging.String("chain_id", c.chainID.String()),
		logging.Address("from", identity.Address()),
	)
	return c, nil
}

// From returns the signing address.
func (c *EthClient) From() common.Address {
	return c.identity.Address()
}

// ChainID returns the chain the client signs for.
func (c *EthClient) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Close releases the RPC connection.
func (c *EthClient) Close() {
	c.backend.Close()
}

// BlockHeight returns the latest block number.
func (c *EthClient) BlockHeight(ctx context.Context) (uint64, error) {
	return retryRead(ctx, c, "blockNumber", c.backend.BlockNumber)
}

// Call evaluates calldata against the latest block. Reverts are ErrRejectedExecution.
func (c *EthClient) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{From: c.From(), To: &to, Data: data}
	return retryRead(ctx, c, "call", func(ctx context.Context) ([]byte, error) {
		return c.backend.CallContract(ctx, msg, nil)
	})
}

// Send signs and submits one transaction, then waits for its receipt. Sends
// are never retried. Submission and receipt inspection ignore the caller's
// cancellation, and a submission whose reply was lost still has its receipt
// looked up before the send is reported as failed.
func (c *EthClient) Send(ctx context.Context, to common.Address, data []byte, gasLimit uint64) (*types.Receipt, error) {
	release, err := c.seq.acquire(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "ledger", "send", "identity busy", err)
	}
	defer release()

	tx, submitErr, err := c.submit(ctx, to, data, gasLimit)
	if err != nil {
		return nil, err
	}
	if submitErr != nil {
		c.logger.Warn("transaction submission outcome unknown, awaiting receipt",
			logging.Hash("tx_hash", tx.Hash()),
			logging.Uint64("nonce", tx.Nonce()),
			logging.Error(submitErr),
		)
	} else {
		c.logger.Debug("transaction submitted",
			logging.Hash("tx_hash", tx.Hash()),
			logging.Address("to", to),
			logging.Uint64("nonce", tx.Nonce()),
			logging.Uint64("gas_limit", gasLimit),
		)
	}

	receipt, err := c.awaitReceipt(ctx, tx.Hash())
	if err != nil {
		if submitErr != nil {
			return nil, services.Wrap(services.ErrTransport, "ledger", "send",
				fmt.Sprintf("submit transaction %s", tx.Hash().Hex()), errors.Join(submitErr, err))
		}
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, services.Wrap(services.ErrRejectedExecution, "ledger", "send",
			fmt.Sprintf("transaction %s reverted (gas used %d of %d)", tx.Hash().Hex(), receipt.GasUsed, gasLimit), nil)
	}
	return receipt, nil
}

// submit signs and hands the transaction to the node. A node rejection is
// returned as err. Any other submission failure is ambiguous, since the node
// may hold the transaction, and comes back as submitErr alongside the signed tx.
func (c *EthClient) submit(ctx context.Context, to common.Address, data []byte, gasLimit uint64) (tx *types.Transaction, submitErr error, err error) {
	nonce, err := retryRead(ctx, c, "pendingNonce", func(ctx context.Context) (uint64, error) {
		return c.backend.PendingNonceAt(ctx, c.From())
	})
	if err != nil {
		return nil, nil, err
	}
	gasPrice, err := c.gasPrice(ctx)
	if err != nil {
		return nil, nil, err
	}

	unsigned := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(unsigned, c.signer, c.identity.key)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrConfiguration, "ledger", "sign", "", err)
	}
	if err := c.backend.SendTransaction(context.WithoutCancel(ctx), signed); err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			return nil, nil, services.Wrap(services.ErrRejectedExecution, "ledger", "send", "node rejected transaction", err)
		}
		return signed, err, nil
	}
	return signed, nil, nil
}

func (c *EthClient) gasPrice(ctx context.Context) (*big.Int, error) {
	if c.opts.GasPriceGwei > 0 {
		wei, _ := new(big.Float).Mul(big.NewFloat(c.opts.GasPriceGwei), big.NewFloat(1e9)).Int(nil)
		return wei, nil
	}
	return retryRead(ctx, c, "gasPrice", c.backend.SuggestGasPrice)
}

// awaitReceipt polls for the receipt on a context that ignores the caller's
// cancellation. Once a transaction is submitted its receipt is always inspected.
func (c *EthClient) awaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(c.opts.ReceiptPollInterval)
	defer ticker.Stop()
	for {
		receipt, err := c.backend.TransactionReceipt(waitCtx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			c.logger.Debug("receipt poll failed", logging.Hash("tx_hash", hash), logging.Error(err))
		}
		select {
		case <-waitCtx.Done():
			return nil, services.Wrap(services.ErrTransport, "ledger", "receipt",
				fmt.Sprintf("transaction %s not mined within %s", hash.Hex(), c.opts.ReceiptTimeout), waitCtx.Err())
		case <-ticker.C:
		}
	}
}

// retryRead runs an idempotent read under the rate limiter, retrying transport
// failures with exponential backoff.
func retryRead[T any](ctx context.Context, c *EthClient, method string, read func(context.Context) (T, error)) (T, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.opts.RetryInitialInterval
	policy.MaxInterval = 30 * time.Second

	attempts := c.opts.ReadRetryAttempts
	if attempts > math.MaxInt32 {
		attempts = math.MaxInt32
	}

	value, err := backoff.Retry(ctx, func() (T, error) {
		var zero T
		if err := c.limiter.Wait(ctx); err != nil {
			return zero, backoff.Permanent(services.Wrap(services.ErrTransport, "ledger", method, "rate limiter", err))
		}
		value, err := read(ctx)
		if err == nil {
			return value, nil
		}
		classified := classifyRead(method, err)
		if !services.Retryable(classified) || ctx.Err() != nil {
			return zero, backoff.Permanent(classified)
		}
		return zero, classified
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Debug("ledger read retry", logging.String("method", method), logging.Duration("next", next), logging.Error(err))
		}),
	)
	if err != nil && !errors.Is(err, services.ErrTransport) && !errors.Is(err, services.ErrRejectedExecution) {
		// backoff reports cancellation with the bare context error
		err = services.Wrap(services.ErrTransport, "ledger", method, "", err)
	}
	return value, err
}

func classifyRead(method string, err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return services.Wrap(services.ErrRejectedExecution, "ledger", method, "node rejected call", err)
	}
	return services.Wrap(services.ErrTransport, "ledger", method, "", err)
}
