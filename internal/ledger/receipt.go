package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"collective/internal/services"
)

// Event is one decoded event from a receipt. Fields holds every named
// argument, indexed or not.
type Event struct {
	Name    string
	Address common.Address
	Fields  map[string]any
}

// Receipt is the outcome of a mined send. It is not modified after it is returned.
type Receipt struct {
	TxHash      common.Hash
	Succeeded   bool
	GasUsed     uint64
	BlockNumber uint64
	Events      []Event
}

// NewReceipt builds a Receipt from the node's receipt and the events decoded from its logs.
func NewReceipt(raw *types.Receipt, events []Event) *Receipt {
	r := &Receipt{Events: events}
	if raw == nil {
		return r
	}
	r.TxHash = raw.TxHash
	r.Succeeded = raw.Status == types.ReceiptStatusSuccessful
	r.GasUsed = raw.GasUsed
	if raw.BlockNumber != nil && raw.BlockNumber.IsUint64() {
		r.BlockNumber = raw.BlockNumber.Uint64()
	}
	return r
}

// Event returns the first event with the given name. Programs that emit the
// same event twice in one transaction are read by their first emission.
func (r *Receipt) Event(name string) (Event, bool) {
	if r == nil {
		return Event{}, false
	}
	for _, ev := range r.Events {
		if ev.Name == name {
			return ev, true
		}
	}
	return Event{}, false
}

// Extract returns a named field of a named event, or an ErrMissingEvent error.
func Extract(r *Receipt, event, field string) (any, error) {
	ev, ok := r.Event(event)
	if !ok {
		return nil, fmt.Errorf("%w: event %s not in receipt %s", services.ErrMissingEvent, event, txLabel(r))
	}
	value, ok := ev.Fields[field]
	if !ok || value == nil {
		return nil, fmt.Errorf("%w: event %s has no field %s", services.ErrMissingEvent, event, field)
	}
	return value, nil
}

// ExtractAddress is Extract for address fields. The zero address counts as absent.
func ExtractAddress(r *Receipt, event, field string) (common.Address, error) {
	value, err := Extract(r, event, field)
	if err != nil {
		return common.Address{}, err
	}
	addr, err := AsAddress(value)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: event %s field %s: %v", services.ErrMissingEvent, event, field, err)
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: event %s field %s is the zero address", services.ErrMissingEvent, event, field)
	}
	return addr, nil
}

// ExtractUint64 is Extract for unsigned integer fields.
func ExtractUint64(r *Receipt, event, field string) (uint64, error) {
	value, err := Extract(r, event, field)
	if err != nil {
		return 0, err
	}
	n, err := AsUint64(value)
	if err != nil {
		return 0, fmt.Errorf("%w: event %s field %s: %v", services.ErrMissingEvent, event, field, err)
	}
	return n, nil
}

func txLabel(r *Receipt) string {
	if r == nil {
		return "<none>"
	}
	return r.TxHash.Hex()
}

