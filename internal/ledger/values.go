package ledger

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AsUint64 converts a decoded ABI value to uint64.
func AsUint64(value any) (uint64, error) {
	switch v := value.(type) {
	case *big.Int:
		if v == nil || v.Sign() < 0 || !v.IsUint64() {
			return 0, fmt.Errorf("value %v does not fit in uint64", v)
		}
		return v.Uint64(), nil
	case uint64:
		return v, nil
	case uint32:
		return uint64(v), nil
	case uint16:
		return uint64(v), nil
	case uint8:
		return uint64(v), nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("value %d is negative", v)
		}
		return uint64(v), nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("value %d is negative", v)
		}
		return uint64(v), nil
	default:
		return 0, fmt.Errorf("value of type %T is not an integer", value)
	}
}

// AsAddress converts a decoded ABI value to an address.
func AsAddress(value any) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		if v == nil {
			return common.Address{}, fmt.Errorf("nil address")
		}
		return *v, nil
	case string:
		if !common.IsHexAddress(v) {
			return common.Address{}, fmt.Errorf("%q is not an address", v)
		}
		return common.HexToAddress(v), nil
	default:
		return common.Address{}, fmt.Errorf("value of type %T is not an address", value)
	}
}

// AsBool converts a decoded ABI value to bool.
func AsBool(value any) (bool, error) {
	v, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("value of type %T is not a bool", value)
	}
	return v, nil
}

// AsString converts a decoded ABI string or bytes32 value to a string. bytes32
// values are right padded with zero bytes, which are dropped.
func AsString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), nil
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), nil
	default:
		return "", fmt.Errorf("value of type %T is not a string", value)
	}
}
