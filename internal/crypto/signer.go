package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// TxSigner is the signing identity transactions are sent from. It is
// injected into the ledger gateway at construction.
type TxSigner interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// KeySigner signs with a local secp256k1 private key.
type KeySigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewKeySigner wraps an already parsed private key.
func NewKeySigner(pk *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}
}

// NewKeySignerFromHex parses a hex-encoded key (0x prefix optional).
func NewKeySignerFromHex(privateKeyHex string) (*KeySigner, error) {
	keyHex := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return NewKeySigner(pk), nil
}

// Address returns the account derived from the private key.
func (s *KeySigner) Address() common.Address {
	return s.address
}

// SignTx signs tx for chainID using the latest signer rules for that chain.
func (s *KeySigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: sign tx: %w", err)
	}
	return signed, nil
}

// Compile-time interface check.
var _ TxSigner = (*KeySigner)(nil)
