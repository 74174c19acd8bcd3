package ledger

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"collective/internal/services"
)

const testKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

type rpcError struct {
	code int
	msg  string
}

func (e rpcError) Error() string  { return e.msg }
func (e rpcError) ErrorCode() int { return e.code }

type fakeBackend struct {
	mu            sync.Mutex
	height        uint64
	heightErrs    []error
	callErr       error
	callResult    []byte
	calls         int
	nonce         uint64
	sendErr       error
	deliverOnErr  bool
	onSend        func()
	sent          []*types.Transaction
	receiptMisses int
	status        uint64
}

func (f *fakeBackend) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.heightErrs) > 0 {
		err := f.heightErrs[0]
		f.heightErrs = f.heightErrs[1:]
		return 0, err
	}
	return f.height, nil
}

func (f *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.callResult, f.callErr
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(7), nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if f.onSend != nil {
		f.onSend()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil && !f.deliverOnErr {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return f.sendErr
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	known := false
	for _, tx := range f.sent {
		if tx.Hash() == hash {
			known = true
		}
	}
	if !known {
		return nil, ethereum.NotFound
	}
	if f.receiptMisses > 0 {
		f.receiptMisses--
		return nil, ethereum.NotFound
	}
	return &types.Receipt{TxHash: hash, Status: f.status, GasUsed: 21000, BlockNumber: big.NewInt(12)}, nil
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return big.NewInt(1337), nil }

func (f *fakeBackend) Close() {}

func newTestClient(t *testing.T, b *fakeBackend, mutate func(*Options)) *EthClient {
	t.Helper()
	identity, err := LoadIdentity(testKey)
	if err != nil {
		t.Fatalf("LoadIdentity: %v", err)
	}
	opts := Options{
		ReceiptPollInterval:  time.Millisecond,
		ReceiptTimeout:       time.Second,
		ReadRetryAttempts:    3,
		RetryInitialInterval: time.Millisecond,
		LockDir:              t.TempDir(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	client, err := newEthClient(context.Background(), b, identity, opts)
	if err != nil {
		t.Fatalf("newEthClient: %v", err)
	}
	return client
}

func TestBlockHeightRetriesTransportFailures(t *testing.T) {
	b := &fakeBackend{height: 1010, heightErrs: []error{errors.New("connection reset"), errors.New("eof")}}
	client := newTestClient(t, b, nil)

	height, err := client.BlockHeight(context.Background())
	if err != nil {
		t.Fatalf("BlockHeight: %v", err)
	}
	if height != 1010 {
		t.Fatalf("expected 1010, got %d", height)
	}
}

func TestBlockHeightGivesUpAfterAttempts(t *testing.T) {
	b := &fakeBackend{heightErrs: []error{errors.New("a"), errors.New("b"), errors.New("c"), errors.New("d")}}
	client := newTestClient(t, b, nil)

	_, err := client.BlockHeight(context.Background())
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestCallRevertIsNotRetried(t *testing.T) {
	b := &fakeBackend{callErr: rpcError{code: 3, msg: "execution reverted"}}
	client := newTestClient(t, b, nil)

	_, err := client.Call(context.Background(), common.HexToAddress("0x01"), []byte{1})
	if !errors.Is(err, services.ErrRejectedExecution) {
		t.Fatalf("expected rejected execution, got %v", err)
	}
	if b.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", b.calls)
	}
}

func TestChainIDQueriedWhenNotConfigured(t *testing.T) {
	client := newTestClient(t, &fakeBackend{}, nil)
	if client.ChainID().Int64() != 1337 {
		t.Fatalf("expected queried chain id, got %s", client.ChainID())
	}
	configured := newTestClient(t, &fakeBackend{}, func(o *Options) { o.ChainID = 5 })
	if configured.ChainID().Int64() != 5 {
		t.Fatalf("expected configured chain id, got %s", configured.ChainID())
	}
}

func TestSendSignsAndWaitsForReceipt(t *testing.T) {
	b := &fakeBackend{nonce: 4, receiptMisses: 2, status: types.ReceiptStatusSuccessful}
	client := newTestClient(t, b, func(o *Options) { o.GasPriceGwei = 2 })
	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	receipt, err := client.Send(context.Background(), to, []byte{0xde, 0xad}, 470000)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if len(b.sent) != 1 {
		t.Fatalf("expected one submitted transaction, got %d", len(b.sent))
	}
	tx := b.sent[0]
	if tx.Nonce() != 4 || tx.Gas() != 470000 || *tx.To() != to {
		t.Fatalf("unexpected transaction fields nonce=%d gas=%d to=%s", tx.Nonce(), tx.Gas(), tx.To())
	}
	if tx.GasPrice().Cmp(big.NewInt(2_000_000_000)) != 0 {
		t.Fatalf("expected 2 gwei gas price, got %s", tx.GasPrice())
	}
	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1337)), tx)
	if err != nil {
		t.Fatalf("recover sender: %v", err)
	}
	if sender != client.From() {
		t.Fatalf("expected sender %s, got %s", client.From(), sender)
	}
}

func TestSendRevertedReceipt(t *testing.T) {
	b := &fakeBackend{status: types.ReceiptStatusFailed}
	client := newTestClient(t, b, nil)

	receipt, err := client.Send(context.Background(), common.HexToAddress("0x01"), nil, 100000)
	if !errors.Is(err, services.ErrRejectedExecution) {
		t.Fatalf("expected rejected execution, got %v", err)
	}
	if receipt == nil || receipt.GasUsed != 21000 {
		t.Fatalf("expected reverted receipt to be returned, got %+v", receipt)
	}
}

func TestSendClassifiesSubmissionFailures(t *testing.T) {
	rejected := newTestClient(t, &fakeBackend{sendErr: rpcError{code: -32000, msg: "intrinsic gas too low"}}, nil)
	if _, err := rejected.Send(context.Background(), common.HexToAddress("0x01"), nil, 1); !errors.Is(err, services.ErrRejectedExecution) {
		t.Fatalf("expected node rejection, got %v", err)
	}

	lost := errors.New("broken pipe")
	transport := newTestClient(t, &fakeBackend{sendErr: lost}, func(o *Options) { o.ReceiptTimeout = 20 * time.Millisecond })
	_, err := transport.Send(context.Background(), common.HexToAddress("0x01"), nil, 1)
	if !errors.Is(err, services.ErrTransport) || !errors.Is(err, lost) {
		t.Fatalf("expected transport error carrying the submission failure, got %v", err)
	}
}

func TestSendAwaitsReceiptWhenSubmitReplyIsLost(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := &fakeBackend{status: types.ReceiptStatusSuccessful, sendErr: context.Canceled, deliverOnErr: true, onSend: cancel}
	client := newTestClient(t, b, nil)

	receipt, err := client.Send(ctx, common.HexToAddress("0x01"), nil, 100000)
	if err != nil {
		t.Fatalf("expected the delivered transaction's receipt, got %v", err)
	}
	if receipt == nil || receipt.TxHash != b.sent[0].Hash() {
		t.Fatalf("expected receipt for the delivered transaction, got %+v", receipt)
	}
	if len(b.sent) != 1 {
		t.Fatalf("expected exactly one delivered transaction, got %d", len(b.sent))
	}
}

func TestSendInspectsReceiptAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := &fakeBackend{receiptMisses: 3, status: types.ReceiptStatusSuccessful, onSend: cancel}
	client := newTestClient(t, b, nil)

	receipt, err := client.Send(ctx, common.HexToAddress("0x01"), nil, 100000)
	if err != nil {
		t.Fatalf("expected receipt despite cancellation, got %v", err)
	}
	if receipt == nil {
		t.Fatal("expected receipt")
	}
}

func TestSequencerExcludesOtherHolders(t *testing.T) {
	dir := t.TempDir()
	first, err := newSequencer(dir, "0xAbC")
	if err != nil {
		t.Fatalf("newSequencer: %v", err)
	}
	second, err := newSequencer(dir, "0xabc")
	if err != nil {
		t.Fatalf("newSequencer: %v", err)
	}

	release, err := first.acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := second.acquire(ctx); err == nil {
		t.Fatal("expected second holder to be refused while the lock is held")
	}
	release()

	again, err := second.acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	again()
}
