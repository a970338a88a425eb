// Package adapters implements the external-world boundary spec.md §6
// names: a user-supplied wallet, the chain RPC endpoint, and a relayer
// HTTP service. None of it touches private key material directly — the
// Wallet capability is a caller-supplied implementation (typically a
// browser extension or hardware wallet bridge); this package only
// defines the interface and a go-ethereum-backed local signer used by
// the CLI and tests.
package adapters

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Wallet is the capability spec.md §6 requires of whatever holds the
// user's EVM key: produce an address, sign an arbitrary message (used for
// the one-time identity derivation in internal/identity), and sign+send a
// transaction built by an adapter.
type Wallet interface {
	Address() common.Address
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error)
}

// LocalWallet is a go-ethereum-backed Wallet that signs with an in-process
// ECDSA key — used by the CLI when a hardware/browser signer isn't wired
// up, and by tests.
type LocalWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
	sender  func(ctx context.Context, tx *types.Transaction) (common.Hash, error)
}

// NewLocalWallet wraps a raw ECDSA key. sender performs the actual
// eth_sendRawTransaction call; it is injected so LocalWallet stays
// decoupled from a specific ChainRPC implementation.
func NewLocalWallet(key *ecdsa.PrivateKey, sender func(ctx context.Context, tx *types.Transaction) (common.Hash, error)) *LocalWallet {
	return &LocalWallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		sender:  sender,
	}
}

func (w *LocalWallet) Address() common.Address { return w.address }

// SignMessage signs message with the EIP-191 personal-message prefix, the
// format a browser wallet's eth_sign / personal_sign would also produce,
// so internal/identity.Derive sees the same signature shape regardless of
// which Wallet implementation called it.
func (w *LocalWallet) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	prefixed := textHash(message)
	sig, err := crypto.Sign(prefixed, w.key)
	if err != nil {
		return nil, fmt.Errorf("adapters: signing message: %w", err)
	}
	return sig, nil
}

func (w *LocalWallet) SendTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(tx.ChainId()), w.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("adapters: signing transaction: %w", err)
	}
	return w.sender(ctx, signed)
}

// textHash reproduces go-ethereum's accounts.TextHash without importing
// the accounts package solely for this one helper.
func textHash(data []byte) []byte {
	msg := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(data), data)
	return crypto.Keccak256([]byte(msg))
}
