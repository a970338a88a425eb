package identity

import (
	"encoding/binary"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/notfartdev/zdoge-shielded-core/internal/field"
	"github.com/notfartdev/zdoge-shielded-core/pkg/types"
)

// AddressPrefix is the permanent wire prefix for a shielded address
// (spec.md §6).
const AddressPrefix = "zdoge:"

const addressVersion = 1

// EncodeAddress renders the permanent shielded receive address:
// "zdoge:" + base58(version || address_pubkey || encryption_pubkey || checksum).
func EncodeAddress(addressPubkey fr.Element, encryptionPubkey [32]byte) (string, error) {
	pkBytes := addressPubkey.Bytes()

	payload := make([]byte, 0, 1+32+32+4)
	payload = append(payload, addressVersion)
	payload = append(payload, pkBytes[:]...)
	payload = append(payload, encryptionPubkey[:]...)

	checksum := addressChecksum(payload)
	payload = append(payload, checksum...)

	return AddressPrefix + base58.Encode(payload), nil
}

// DecodeAddress validates and parses a shielded address string.
func DecodeAddress(address string) (addressPubkey fr.Element, encryptionPubkey [32]byte, err error) {
	if !strings.HasPrefix(address, AddressPrefix) {
		return addressPubkey, encryptionPubkey, types.ErrInvalidAddress
	}

	payload := base58.Decode(strings.TrimPrefix(address, AddressPrefix))
	if len(payload) != 1+32+32+4 {
		return addressPubkey, encryptionPubkey, types.ErrInvalidAddress
	}

	version := payload[0]
	if version != addressVersion {
		return addressPubkey, encryptionPubkey, types.ErrUnsupportedVersion
	}

	body := payload[:len(payload)-4]
	wantChecksum := payload[len(payload)-4:]
	gotChecksum := addressChecksum(body)
	for i := range gotChecksum {
		if gotChecksum[i] != wantChecksum[i] {
			return addressPubkey, encryptionPubkey, types.ErrChecksumMismatch
		}
	}

	addressPubkey = field.FromBytes(payload[1:33])
	copy(encryptionPubkey[:], payload[33:65])
	return addressPubkey, encryptionPubkey, nil
}

// addressChecksum is a 4-byte integrity tag over the address payload,
// derived from the MiMC sponge so it shares the system's single hash
// primitive instead of pulling in a second hash function just for this.
func addressChecksum(payload []byte) []byte {
	sum := field.MiMCK([]field.Fr{field.FromBytes(payload)})
	b := sum.Bytes()
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, binary.BigEndian.Uint32(b[:4]))
	return out
}
