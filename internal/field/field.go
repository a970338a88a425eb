// Package field implements BN254 scalar field arithmetic and the MiMC
// sponge hash used throughout the shielded pool: commitments, nullifiers,
// Merkle nodes and identity derivation are all field elements produced by
// the same sponge the deployed circuits use.
package field

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ErrOutOfRange is returned when a byte string or integer does not fit in
// the BN254 scalar field.
var ErrOutOfRange = errors.New("field: value is not a canonical element of the scalar field")

// Fr is an element of the BN254 scalar field. All hashes, commitments,
// nullifiers and Merkle nodes are carried as Fr.
type Fr = fr.Element

// FromBytes reduces a big-endian 32-byte string into the field. It never
// fails: gnark-crypto's SetBytes reduces modulo p, matching the circuit's
// own input normalization.
func FromBytes(b []byte) Fr {
	var out Fr
	out.SetBytes(b)
	return out
}

// ToBytes serializes a field element to big-endian 32 bytes.
func ToBytes(x Fr) [32]byte {
	return x.Bytes()
}

// FromUint256 converts a u256 EVM integer to a field element, reducing
// modulo the scalar field if the value exceeds it (amounts are validated
// to be below the modulus before this is ever exercised on a real note).
func FromUint256(v *uint256.Int) Fr {
	var out Fr
	b := v.Bytes32()
	out.SetBytes(b[:])
	return out
}

// FromAddress maps a 20-byte EVM address into the field by left-padding to
// 32 bytes, matching how the circuit absorbs `token_address`.
func FromAddress(addr common.Address) Fr {
	var padded [32]byte
	copy(padded[12:], addr.Bytes())
	var out Fr
	out.SetBytes(padded[:])
	return out
}

// FromUint64 lifts a small integer (leaf indices, flags) into the field.
func FromUint64(v uint64) Fr {
	var out Fr
	out.SetUint64(v)
	return out
}

// FromBigInt converts an arbitrary non-negative integer into the field.
// Returns ErrOutOfRange if the value is negative or exceeds the modulus.
func FromBigInt(v *big.Int) (Fr, error) {
	var out Fr
	if v.Sign() < 0 {
		return out, ErrOutOfRange
	}
	modulus := fr.Modulus()
	if v.Cmp(modulus) >= 0 {
		return out, ErrOutOfRange
	}
	out.SetBigInt(v)
	return out, nil
}

// Random draws a uniformly random field element using a CSPRNG, used for
// note blinding factors.
func Random() (Fr, error) {
	var out Fr
	_, err := out.SetRandom()
	return out, err
}

// Equal reports whether two field elements are the same canonical value.
func Equal(a, b Fr) bool {
	return a.Equal(&b)
}

// IsZero reports whether x is the additive identity — used to detect the
// conventional "zero note" change output.
func IsZero(x Fr) bool {
	return x.IsZero()
}
