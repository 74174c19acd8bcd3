package contract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"collective/internal/ledger"
	"collective/internal/logging"
	"collective/internal/services"
)

// Binder turns descriptor names and addresses into callable programs.
type Binder struct {
	loader   *Loader
	client   ledger.Client
	gasLimit uint64
	logger   *slog.Logger
}

// NewBinder constructs a binder. gasLimit is the default ceiling for every send.
func NewBinder(loader *Loader, client ledger.Client, gasLimit uint64, logger *slog.Logger) *Binder {
	return &Binder{
		loader:   loader,
		client:   client,
		gasLimit: gasLimit,
		logger:   logging.NewComponentLogger(logger, "binder"),
	}
}

// Client returns the ledger client programs are bound to.
func (b *Binder) Client() ledger.Client {
	return b.client
}

// Bind loads the named descriptor and binds it at address. Binding performs no
// ledger round trip; an address with no program behind it surfaces on first use.
func (b *Binder) Bind(name, address string) (*Program, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return nil, services.Wrap(services.ErrBind, name, "", fmt.Sprintf("%q is not a ledger address", address), nil)
	}
	return b.BindAddress(name, common.HexToAddress(address))
}

// BindAddress is Bind for an already parsed address.
func (b *Binder) BindAddress(name string, address common.Address) (*Program, error) {
	desc, err := b.loader.Load(name)
	if err != nil {
		return nil, err
	}
	return &Program{
		desc:     desc,
		address:  address,
		client:   b.client,
		gasLimit: b.gasLimit,
		logger:   b.logger.With(logging.String(logging.FieldProgram, name), logging.Address("address", address)),
	}, nil
}

// Program is a descriptor bound to an address and a ledger client.
type Program struct {
	desc     *Descriptor
	address  common.Address
	client   ledger.Client
	gasLimit uint64
	logger   *slog.Logger
}

// Name returns the descriptor name.
func (p *Program) Name() string { return p.desc.Name }

// Address returns the program address.
func (p *Program) Address() common.Address { return p.address }

// Descriptor returns the shared descriptor.
func (p *Program) Descriptor() *Descriptor { return p.desc }

// WithGasLimit returns a copy of the program that sends with a different gas ceiling.
func (p *Program) WithGasLimit(limit uint64) *Program {
	clone := *p
	clone.gasLimit = limit
	return &clone
}

// Call runs a read-only method and returns its decoded outputs. Calls have no
// side effects and may be repeated freely.
func (p *Program) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	method = p.resolve(method, len(args))
	data, err := p.pack(method, args)
	if err != nil {
		return nil, err
	}
	out, err := p.client.Call(ctx, p.address, data)
	if err != nil {
		return nil, p.annotate(method, args, err)
	}
	values, err := p.desc.ABI.Unpack(method, out)
	if err != nil {
		return nil, services.Wrap(services.ErrBind, p.Name(), method,
			fmt.Sprintf("decode result at %s (no program or interface mismatch)", p.address.Hex()), err)
	}
	return values, nil
}

// Send submits a state-changing method and returns the mined receipt with the
// events the descriptor knows about decoded in emission order.
func (p *Program) Send(ctx context.Context, method string, args ...any) (*ledger.Receipt, error) {
	method = p.resolve(method, len(args))
	data, err := p.pack(method, args)
	if err != nil {
		return nil, err
	}
	raw, err := p.client.Send(ctx, p.address, data, p.gasLimit)
	var receipt *ledger.Receipt
	if raw != nil {
		receipt = ledger.NewReceipt(raw, p.decodeLogs(raw.Logs))
	}
	if err != nil {
		return receipt, p.annotate(method, args, err)
	}
	p.logger.Debug("program send mined",
		logging.String(logging.FieldMethod, method),
		logging.Hash("tx_hash", receipt.TxHash),
		logging.Uint64("gas_used", receipt.GasUsed),
		logging.Int("events", len(receipt.Events)),
	)
	return receipt, nil
}

// resolve picks the overload of method taking argc arguments. The ABI parser
// names later overloads voteFor0, voteFor1 and so on; callers use the declared name.
func (p *Program) resolve(method string, argc int) string {
	if m, ok := p.desc.ABI.Methods[method]; ok && len(m.Inputs) == argc {
		return method
	}
	for key, m := range p.desc.ABI.Methods {
		if m.RawName == method && len(m.Inputs) == argc {
			return key
		}
	}
	return method
}

func (p *Program) pack(method string, args []any) ([]byte, error) {
	if _, ok := p.desc.ABI.Methods[method]; !ok {
		return nil, services.Wrap(services.ErrBind, p.Name(), method, "method not in descriptor", nil)
	}
	data, err := p.desc.ABI.Pack(method, args...)
	if err != nil {
		return nil, services.Wrap(services.ErrBind, p.Name(), method, "arguments "+formatArgs(args), err)
	}
	return data, nil
}

func (p *Program) annotate(method string, args []any, err error) error {
	return fmt.Errorf("%s.%s(%s) at %s: %w", p.Name(), method, formatArgs(args), p.address.Hex(), err)
}

func (p *Program) decodeLogs(logs []*types.Log) []ledger.Event {
	events := make([]ledger.Event, 0, len(logs))
	for _, lg := range logs {
		if lg == nil || len(lg.Topics) == 0 {
			continue
		}
		ev, err := p.desc.ABI.EventByID(lg.Topics[0])
		if err != nil {
			continue
		}
		fields := make(map[string]any, len(ev.Inputs))
		if err := ev.Inputs.UnpackIntoMap(fields, lg.Data); err != nil {
			p.logger.Debug("event decode failed", logging.String("event", ev.RawName), logging.Error(err))
			continue
		}
		var indexed abi.Arguments
		for _, input := range ev.Inputs {
			if input.Indexed {
				indexed = append(indexed, input)
			}
		}
		if len(indexed) > 0 {
			if err := abi.ParseTopicsIntoMap(fields, indexed, lg.Topics[1:]); err != nil {
				p.logger.Debug("event topic decode failed", logging.String("event", ev.RawName), logging.Error(err))
				continue
			}
		}
		events = append(events, ledger.Event{Name: ev.RawName, Address: lg.Address, Fields: fields})
	}
	return events
}

func formatArgs(args []any) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case common.Address:
			parts[i] = v.Hex()
		case [32]byte:
			parts[i] = strings.TrimRight(string(v[:]), "\x00")
		default:
			parts[i] = fmt.Sprint(v)
		}
	}
	return strings.Join(parts, ", ")
}
