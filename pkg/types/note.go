package types

import (
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// LegacyDefaultSymbol is the token symbol assumed for notes persisted
// before the pool tagged every note with an explicit token_address
// (spec.md §9, Open Questions).
const LegacyDefaultSymbol = "DOGE"

// Note is a shielded UTXO: the client's view of one pool leaf. Fields
// mirror spec.md §3 exactly; owner_pubkey/blinding/commitment are BN254
// scalar field elements.
type Note struct {
	Amount        *uint256.Int
	TokenAddress  common.Address
	TokenSymbol   string
	TokenDecimals uint8

	OwnerPubkey fr.Element
	Blinding    fr.Element
	Commitment  fr.Element

	// LeafIndex is nil until the commitment has been observed inserted
	// on-chain; its absence marks the note "pending insertion".
	LeafIndex *uint64

	CreatedAt time.Time
}

// Spendable reports whether the note may be used as a transaction input:
// it must have a confirmed leaf index and a strictly positive amount.
func (n *Note) Spendable() bool {
	return n.LeafIndex != nil && n.Amount != nil && !n.Amount.IsZero()
}

// EffectiveTokenKey returns the token this note should be grouped under for
// balance purposes. Notes with the zero token address fall back to the
// symbol, defaulting to LegacyDefaultSymbol when the symbol is empty.
func (n *Note) EffectiveTokenKey() string {
	if n.TokenAddress != (common.Address{}) {
		return n.TokenAddress.Hex()
	}
	if n.TokenSymbol != "" {
		return n.TokenSymbol
	}
	return LegacyDefaultSymbol
}

// Clone returns a deep-enough copy for safe handoff across the Note
// Store's mutex boundary (the Amount pointer and LeafIndex pointer are not
// shared with the original).
func (n *Note) Clone() *Note {
	cp := *n
	if n.Amount != nil {
		cp.Amount = new(uint256.Int).Set(n.Amount)
	}
	if n.LeafIndex != nil {
		li := *n.LeafIndex
		cp.LeafIndex = &li
	}
	return &cp
}
