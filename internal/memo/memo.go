// Package memo implements the ECIES-style memo encryption spec.md §4.9
// describes: the sender seals the plaintext note opening for a recipient's
// encryption public key, so anyone who is not that recipient gains nothing
// from observing the ciphertext on-chain or at a relayer. The shape follows
// the teacher's internal/zkp/pedersen.go split between a public commitment
// and the private opening it hides, but the hiding primitive here is
// NaCl/box (Curve25519 + XSalsa20-Poly1305) rather than a Pedersen blinding.
package memo

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/crypto/nacl/box"

	"github.com/notfartdev/zdoge-shielded-core/internal/field"
	"github.com/notfartdev/zdoge-shielded-core/pkg/types"
)

// magic tags a memo ciphertext so TryDecrypt can fail fast on a memo that
// was never meant for this viewing key, before spending a scalar-mult on
// it (spec.md §4.9 "trial decryption" note).
const magic = uint32(0x5a444d31) // "ZDM1"

// Payload is the plaintext a memo carries: everything the recipient needs
// to reconstruct the Note once its commitment is seen inserted on-chain.
type Payload struct {
	Amount        string `json:"amount"` // hex, uint256
	TokenAddress  string `json:"token_address"`
	TokenSymbol   string `json:"token_symbol"`
	TokenDecimals uint8  `json:"token_decimals"`
	OwnerPubkey   string `json:"owner_pubkey"` // hex, field element
	Blinding      string `json:"blinding"`     // hex, field element
	Text          string `json:"text,omitempty"`
}

// EncryptTo seals payload for recipientEncPub. The ciphertext embeds a
// fresh ephemeral keypair and nonce so the sender's own encryption key
// never has to be revealed or even exist beyond this call.
func EncryptTo(recipientEncPub [32]byte, payload *Payload) ([]byte, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("memo: marshaling payload: %w", err)
	}

	ephPub, ephPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("memo: generating ephemeral key: %w", err)
	}

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("memo: generating nonce: %w", err)
	}

	sealed := box.Seal(nil, plaintext, &nonce, &recipientEncPub, ephPriv)

	// magic(4) || ephemeral_pubkey(32) || nonce(24) || sealed
	out := make([]byte, 0, 4+32+24+len(sealed))
	var magicBuf [4]byte
	binary.BigEndian.PutUint32(magicBuf[:], magic)
	out = append(out, magicBuf[:]...)
	out = append(out, ephPub[:]...)
	out = append(out, nonce[:]...)
	out = append(out, sealed...)
	return out, nil
}

// TryDecrypt attempts to open a memo ciphertext with recipientEncPriv.
// It returns (nil, nil) — not an error — when the magic prefix or box
// authentication fails, since every viewing key trial-decrypts every
// memo on-chain and a mismatch is the overwhelmingly common case, not a
// cryptographic fault (spec.md §4.9).
func TryDecrypt(recipientEncPriv [32]byte, ciphertext []byte) (*Payload, error) {
	if len(ciphertext) < 4+32+24 {
		return nil, nil
	}
	if binary.BigEndian.Uint32(ciphertext[:4]) != magic {
		return nil, nil
	}

	var ephPub [32]byte
	copy(ephPub[:], ciphertext[4:36])
	var nonce [24]byte
	copy(nonce[:], ciphertext[36:60])
	sealed := ciphertext[60:]

	plaintext, ok := box.Open(nil, sealed, &nonce, &ephPub, &recipientEncPriv)
	if !ok {
		return nil, nil
	}

	var p Payload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		// Magic and box auth both passed but the plaintext doesn't parse:
		// that is a genuine corruption, not a routine non-match.
		return nil, fmt.Errorf("memo: %w: malformed payload", types.ErrCryptoInvariant)
	}
	return &p, nil
}

// OwnerPubkeyField parses Payload.OwnerPubkey back into a field element,
// used by callers reconstructing a Note from a decrypted memo.
func OwnerPubkeyField(p *Payload) (field.Fr, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(p.OwnerPubkey, "0x"))
	if err != nil {
		return field.Fr{}, fmt.Errorf("memo: decoding owner_pubkey: %w", err)
	}
	return field.FromBytes(raw), nil
}
