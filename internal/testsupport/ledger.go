package testsupport

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"collective/internal/services"
)

// ReadFunc answers a read call with the method's outputs.
type ReadFunc func(args []any) ([]any, error)

// SendFunc mines a send and returns the events it emits. Returning an error
// fails the send before a receipt exists.
type SendFunc func(args []any) ([]EmittedEvent, error)

// EmittedEvent is an event a SendFunc emits from the program that was called,
// or from From when set.
type EmittedEvent struct {
	Name   string
	Fields map[string]any
	From   common.Address
}

// SentCall records one send in issue order.
type SentCall struct {
	To     common.Address
	Method string
	Args   []any
	Height uint64
}

type handlerKey struct {
	address common.Address
	method  string
}

// FakeLedger is a scripted ledger.Client. Calldata is decoded with the
// registered descriptors, so tests exercise the real encoding on both sides.
type FakeLedger struct {
	t         testing.TB
	mu        sync.Mutex
	from      common.Address
	programs  map[common.Address][]abi.ABI
	reads     map[handlerKey]ReadFunc
	sends     map[handlerKey]SendFunc
	readCount map[string]int
	height    func() uint64
	sent      []SentCall
	nonce     uint64
}

// NewFakeLedger returns an empty fake at height zero signing as TestAccount.
func NewFakeLedger(t testing.TB) *FakeLedger {
	return &FakeLedger{
		t:         t,
		from:      common.HexToAddress(TestAccount),
		programs:  make(map[common.Address][]abi.ABI),
		reads:     make(map[handlerKey]ReadFunc),
		sends:     make(map[handlerKey]SendFunc),
		readCount: make(map[string]int),
		height:    func() uint64 { return 0 },
	}
}

// Register places the named descriptors at address. Several descriptors may
// share an address, as Governance and VoteStrategy do.
func (f *FakeLedger) Register(address string, names ...string) *FakeLedger {
	f.mu.Lock()
	defer f.mu.Unlock()
	addr := common.HexToAddress(address)
	for _, name := range names {
		f.programs[addr] = append(f.programs[addr], MustABI(f.t, name))
	}
	return f
}

// OnRead installs the answer for method at address.
func (f *FakeLedger) OnRead(address, method string, fn ReadFunc) *FakeLedger {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads[handlerKey{common.HexToAddress(address), method}] = fn
	return f
}

// Returns is a ReadFunc that always answers with values.
func Returns(values ...any) ReadFunc {
	return func([]any) ([]any, error) { return values, nil }
}

// OnSend installs the behaviour of method at address. Sends without a handler
// succeed and emit nothing.
func (f *FakeLedger) OnSend(address, method string, fn SendFunc) *FakeLedger {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends[handlerKey{common.HexToAddress(address), method}] = fn
	return f
}

// Emits is a SendFunc that always emits one event.
func Emits(name string, fields map[string]any) SendFunc {
	return func([]any) ([]EmittedEvent, error) {
		return []EmittedEvent{{Name: name, Fields: fields}}, nil
	}
}

// SetHeight fixes the reported block height.
func (f *FakeLedger) SetHeight(h uint64) {
	f.SetHeightFunc(func() uint64 { return h })
}

// SetHeightFunc scripts the reported block height.
func (f *FakeLedger) SetHeightFunc(fn func() uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.height = fn
}

// Sent returns a copy of the sends issued so far.
func (f *FakeLedger) Sent() []SentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SentCall, len(f.sent))
	copy(out, f.sent)
	return out
}

// SentMethods returns the method names of every send in order.
func (f *FakeLedger) SentMethods() []string {
	sent := f.Sent()
	out := make([]string, len(sent))
	for i, call := range sent {
		out[i] = call.Method
	}
	return out
}

// ReadCount reports how many times method was read across all programs.
func (f *FakeLedger) ReadCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readCount[method]
}

// From implements ledger.Client.
func (f *FakeLedger) From() common.Address { return f.from }

// BlockHeight implements ledger.Client.
func (f *FakeLedger) BlockHeight(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, services.Wrap(services.ErrTransport, "ledger", "blockNumber", "", err)
	}
	f.mu.Lock()
	fn := f.height
	f.mu.Unlock()
	return fn(), nil
}

// Call implements ledger.Client.
func (f *FakeLedger) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, services.Wrap(services.ErrTransport, "ledger", "call", "", err)
	}
	method, args, err := f.decode(to, data)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	fn, ok := f.reads[handlerKey{to, method.RawName}]
	f.readCount[method.RawName]++
	f.mu.Unlock()
	if !ok {
		return nil, services.Wrap(services.ErrRejectedExecution, "ledger", "call", "no read scripted for "+method.RawName, nil)
	}
	values, err := fn(args)
	if err != nil {
		return nil, err
	}
	out, err := method.Outputs.Pack(values...)
	if err != nil {
		f.t.Fatalf("fake ledger: pack %s outputs: %v", method.RawName, err)
	}
	return out, nil
}

// Send implements ledger.Client.
func (f *FakeLedger) Send(_ context.Context, to common.Address, data []byte, gasLimit uint64) (*types.Receipt, error) {
	method, args, err := f.decode(to, data)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	heightFn := f.height
	f.mu.Unlock()
	height := heightFn()

	f.mu.Lock()
	f.sent = append(f.sent, SentCall{To: to, Method: method.RawName, Args: args, Height: height})
	f.nonce++
	nonce := f.nonce
	fn := f.sends[handlerKey{to, method.RawName}]
	f.mu.Unlock()

	var emitted []EmittedEvent
	if fn != nil {
		emitted, err = fn(args)
		if err != nil {
			return nil, err
		}
	}

	logs := make([]*types.Log, 0, len(emitted))
	for _, ev := range emitted {
		source := ev.From
		if source == (common.Address{}) {
			source = to
		}
		logs = append(logs, f.packEvent(source, ev))
	}
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      crypto.Keccak256Hash(to.Bytes(), new(big.Int).SetUint64(nonce).Bytes()),
		GasUsed:     gasLimit / 2,
		BlockNumber: new(big.Int).SetUint64(height),
		Logs:        logs,
	}, nil
}

func (f *FakeLedger) decode(to common.Address, data []byte) (*abi.Method, []any, error) {
	f.mu.Lock()
	programs := f.programs[to]
	f.mu.Unlock()
	if len(data) < 4 {
		return nil, nil, services.Wrap(services.ErrRejectedExecution, "ledger", "call", "calldata too short", nil)
	}
	for _, parsed := range programs {
		method, err := parsed.MethodById(data[:4])
		if err != nil {
			continue
		}
		args, err := method.Inputs.Unpack(data[4:])
		if err != nil {
			f.t.Fatalf("fake ledger: unpack %s inputs: %v", method.RawName, err)
		}
		return method, args, nil
	}
	return nil, nil, services.Wrap(services.ErrRejectedExecution, "ledger", "call",
		fmt.Sprintf("no program at %s answers selector %x", to.Hex(), data[:4]), nil)
}

func (f *FakeLedger) packEvent(source common.Address, ev EmittedEvent) *types.Log {
	f.mu.Lock()
	programs := f.programs[source]
	f.mu.Unlock()
	for _, parsed := range programs {
		def, ok := parsed.Events[ev.Name]
		if !ok {
			continue
		}
		topics := []common.Hash{def.ID}
		var values []any
		for _, input := range def.Inputs {
			value, ok := ev.Fields[input.Name]
			if !ok {
				f.t.Fatalf("fake ledger: event %s missing field %s", ev.Name, input.Name)
			}
			if input.Indexed {
				hashed, err := abi.MakeTopics([]any{value})
				if err != nil {
					f.t.Fatalf("fake ledger: topic %s.%s: %v", ev.Name, input.Name, err)
				}
				topics = append(topics, hashed[0][0])
				continue
			}
			values = append(values, value)
		}
		data, err := def.Inputs.NonIndexed().Pack(values...)
		if err != nil {
			f.t.Fatalf("fake ledger: pack event %s: %v", ev.Name, err)
		}
		return &types.Log{Address: source, Topics: topics, Data: data}
	}
	f.t.Fatalf("fake ledger: no program at %s declares event %s", source.Hex(), ev.Name)
	return nil
}

// ErrScripted is returned by Fail.
var ErrScripted = errors.New("scripted failure")

// Fail is a SendFunc that fails with marker wrapping ErrScripted.
func Fail(marker error) SendFunc {
	return func([]any) ([]EmittedEvent, error) {
		return nil, fmt.Errorf("%w: %w", marker, ErrScripted)
	}
}
