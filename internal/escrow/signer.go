package escrow

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// signer holds the ECDSA secp256k1 key a shard uses to drive its escrow
// contract, and the chain id it signs transactions for (EIP-155).
type signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
}

// newSigner parses a hex-encoded private key (with or without a 0x prefix)
// and derives the checksummed address that controls it.
func newSigner(privateKeyHex string, chainID *big.Int) (*signer, error) {
	if len(privateKeyHex) >= 2 && privateKeyHex[:2] == "0x" {
		privateKeyHex = privateKeyHex[2:]
	}

	raw, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}

	privKey, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	pubKey, ok := privKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("error casting public key to ECDSA")
	}

	return &signer{
		privateKey: privKey,
		address:    crypto.PubkeyToAddress(*pubKey),
		chainID:    new(big.Int).Set(chainID),
	}, nil
}

func (s *signer) Address() common.Address {
	return s.address
}

// signTransaction signs tx with EIP-155 replay protection for s.chainID.
func (s *signer) signTransaction(tx *types.Transaction) (*types.Transaction, error) {
	eip155Signer := types.NewEIP155Signer(s.chainID)
	signed, err := types.SignTx(tx, eip155Signer, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("transaction signing failed: %w", err)
	}
	return signed, nil
}
