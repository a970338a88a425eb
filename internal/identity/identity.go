// Package identity derives the deterministic (spending key, viewing key,
// shielded address) triple from a wallet signature, the way the teacher's
// internal/zkp/nullifier.go derives a nullifier key from a spending key —
// generalized from one domain-tagged hash to the three spec.md §4.2 needs.
package identity

import (
	"crypto/sha256"
	"fmt"
	"math/big"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/notfartdev/zdoge-shielded-core/internal/field"
	"github.com/notfartdev/zdoge-shielded-core/pkg/types"
)

// CanonicalMessage is the fixed message a wallet signs to derive an
// identity (spec.md §4.2).
func CanonicalMessage(chainID *big.Int, poolAddress string) string {
	return fmt.Sprintf("Shielded Pool Identity v1 | %s | %s", chainID.String(), poolAddress)
}

// Derive builds an Identity from the raw bytes of a wallet signature over
// CanonicalMessage. Fails with types.ErrBadSignature if the signature is
// shorter than 32 bytes (spec.md §4.2).
func Derive(signature []byte) (*types.Identity, error) {
	if len(signature) < 32 {
		return nil, types.ErrBadSignature
	}

	secret := field.FromBytes(hash32(signature))

	spendingKey := field.MiMCK([]field.Fr{field.TagSpendingKey(), secret})
	viewingKey := field.MiMCK([]field.Fr{field.TagViewingKey(), secret})
	addressPubkey := field.MiMCK([]field.Fr{field.TagAddressPubkey(), spendingKey})

	encPriv, encPub, err := deriveEncryptionKeyPair(signature)
	if err != nil {
		return nil, fmt.Errorf("identity: deriving encryption keypair: %w", err)
	}

	id := &types.Identity{
		SpendingKey:          spendingKey,
		ViewingKey:           viewingKey,
		AddressPubkey:        addressPubkey,
		EncryptionPrivateKey: encPriv,
		EncryptionPublicKey:  encPub,
	}

	addr, err := EncodeAddress(addressPubkey, encPub)
	if err != nil {
		return nil, fmt.Errorf("identity: encoding address: %w", err)
	}
	id.Address = addr

	return id, nil
}

func hash32(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

// deriveEncryptionKeyPair derives a Curve25519 key pair for memo
// encryption from the same wallet signature, via HKDF with a domain-
// separated info string so it can never collide with the MiMC-derived
// spending/viewing material.
func deriveEncryptionKeyPair(signature []byte) (priv, pub [32]byte, err error) {
	kdf := hkdf.New(sha256.New, signature, nil, []byte("zdoge.identity.encryption.v1"))
	if _, err = readFull(kdf, priv[:]); err != nil {
		return priv, pub, err
	}

	// Curve25519 scalar clamping.
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64

	curve25519.ScalarBaseMult(&pub, &priv)
	return priv, pub, nil
}

func readFull(r interface{ Read([]byte) (int, error) }, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, fmt.Errorf("identity: short read deriving key material")
		}
	}
	return total, nil
}
