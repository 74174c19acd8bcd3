package ledger

import (
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"collective/internal/services"
)

// Identity is the signing account every send is issued from.
type Identity struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// LoadIdentity parses a hex private key (with or without 0x).
func LoadIdentity(hexKey string) (*Identity, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if trimmed == "" {
		return nil, services.Wrap(services.ErrConfiguration, "ledger", "identity", "private key is empty", nil)
	}
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		// the parse error can echo key material; keep it out of the message
		return nil, services.Wrap(services.ErrConfiguration, "ledger", "identity", "private key is not a valid secp256k1 key", nil)
	}
	return &Identity{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// Address returns the account address derived from the key.
func (i *Identity) Address() common.Address {
	if i == nil {
		return common.Address{}
	}
	return i.address
}
