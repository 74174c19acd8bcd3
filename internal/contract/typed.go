package contract

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"collective/internal/ledger"
	"collective/internal/services"
)

func (p *Program) single(ctx context.Context, method string, args []any) (any, error) {
	values, err := p.Call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, services.Wrap(services.ErrBind, p.Name(), method, "method returns no value", nil)
	}
	return values[0], nil
}

func (p *Program) convertError(method string, err error) error {
	return services.Wrap(services.ErrBind, p.Name(), method, fmt.Sprintf("unexpected result: %v", err), nil)
}

// CallUint64 reads a method whose first output is an unsigned integer.
func (p *Program) CallUint64(ctx context.Context, method string, args ...any) (uint64, error) {
	v, err := p.single(ctx, method, args)
	if err != nil {
		return 0, err
	}
	n, err := ledger.AsUint64(v)
	if err != nil {
		return 0, p.convertError(method, err)
	}
	return n, nil
}

// CallBool reads a method whose first output is a bool.
func (p *Program) CallBool(ctx context.Context, method string, args ...any) (bool, error) {
	v, err := p.single(ctx, method, args)
	if err != nil {
		return false, err
	}
	b, err := ledger.AsBool(v)
	if err != nil {
		return false, p.convertError(method, err)
	}
	return b, nil
}

// CallString reads a method whose first output is a string or bytes32.
func (p *Program) CallString(ctx context.Context, method string, args ...any) (string, error) {
	v, err := p.single(ctx, method, args)
	if err != nil {
		return "", err
	}
	s, err := ledger.AsString(v)
	if err != nil {
		return "", p.convertError(method, err)
	}
	return s, nil
}

// CallAddress reads a method whose first output is an address.
func (p *Program) CallAddress(ctx context.Context, method string, args ...any) (common.Address, error) {
	v, err := p.single(ctx, method, args)
	if err != nil {
		return common.Address{}, err
	}
	a, err := ledger.AsAddress(v)
	if err != nil {
		return common.Address{}, p.convertError(method, err)
	}
	return a, nil
}
