package types

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Identity is the deterministic key material derived once per wallet on
// first unlock (spec.md §3). SpendingKey authorizes nullifier production;
// ViewingKey allows trial-decryption of memos; AddressPubkey is the
// on-chain-facing owner public key embedded in every note commitment the
// wallet owns.
type Identity struct {
	SpendingKey  fr.Element
	ViewingKey   fr.Element
	AddressPubkey fr.Element

	// EncryptionPrivateKey/EncryptionPublicKey are a Curve25519 pair used
	// for memo encryption (internal/memo), derived alongside the field
	// elements above from the same wallet signature.
	EncryptionPrivateKey [32]byte
	EncryptionPublicKey  [32]byte

	// Address is the shielded address string: "zdoge:" + encoded
	// (AddressPubkey, EncryptionPublicKey, checksum).
	Address string
}
