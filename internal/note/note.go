// Package note implements the shareable-string and JSON serialization of a
// Note (spec.md §4.3), generalizing the teacher's zerocash-shaped
// commitment fields (see other_examples zerocash Note/NewNote) to the
// spec's multi-token shape.
package note

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/btcsuite/btcutil/base58"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/notfartdev/zdoge-shielded-core/internal/field"
	"github.com/notfartdev/zdoge-shielded-core/pkg/types"
)

// ShareablePrefix is the magic prefix for a note exported as a single
// string (spec.md §6).
const ShareablePrefix = "zdoge-note-v1-"

const shareableVersion = 1

// New constructs a Note, computing its commitment from the provided
// secret fields. Two notes built from the same
// (ownerPubkey, amount, token, blinding) tuple always share a commitment
// (spec.md §3 invariant).
func New(ownerPubkey fr.Element, amount *uint256.Int, token common.Address, symbol string, decimals uint8, blinding fr.Element) *types.Note {
	tokenFr := field.FromAddress(token)
	amountFr := field.FromUint256(amount)
	commitment := field.Commit(ownerPubkey, amountFr, tokenFr, blinding)

	return &types.Note{
		Amount:        new(uint256.Int).Set(amount),
		TokenAddress:  token,
		TokenSymbol:   symbol,
		TokenDecimals: decimals,
		OwnerPubkey:   ownerPubkey,
		Blinding:      blinding,
		Commitment:    commitment,
		CreatedAt:     time.Now(),
	}
}

// ToShareableString serializes a note to the spec.md §6 wire format:
// magic prefix + base58(version || amount || token_address || blinding ||
// owner_pubkey || checksum).
func ToShareableString(n *types.Note) (string, error) {
	if n.Amount == nil {
		return "", fmt.Errorf("note: %w", types.ErrInvalidAmount)
	}

	amountBytes := n.Amount.Bytes32()
	blindingBytes := n.Blinding.Bytes()
	ownerBytes := n.OwnerPubkey.Bytes()

	payload := make([]byte, 0, 1+32+20+32+32+4)
	payload = append(payload, shareableVersion)
	payload = append(payload, amountBytes[:]...)
	payload = append(payload, n.TokenAddress.Bytes()...)
	payload = append(payload, blindingBytes[:]...)
	payload = append(payload, ownerBytes[:]...)

	checksum := shareableChecksum(payload)
	payload = append(payload, checksum...)

	return ShareablePrefix + base58.Encode(payload), nil
}

// FromShareableString parses the wire format produced by ToShareableString.
// Unknown versions return types.ErrUnsupportedVersion. The resulting note
// has no LeafIndex; the caller must confirm it against chain state before
// treating it as spendable.
func FromShareableString(s string) (*types.Note, error) {
	const headerLen = 1 + 32 + 20 + 32 + 32
	if len(s) < len(ShareablePrefix) || s[:len(ShareablePrefix)] != ShareablePrefix {
		return nil, fmt.Errorf("note: %w: missing magic prefix", types.ErrUnsupportedVersion)
	}

	payload := base58.Decode(s[len(ShareablePrefix):])
	if len(payload) != headerLen+4 {
		return nil, fmt.Errorf("note: %w: wrong payload length", types.ErrUnsupportedVersion)
	}

	version := payload[0]
	if version != shareableVersion {
		return nil, fmt.Errorf("note: %w: version %d", types.ErrUnsupportedVersion, version)
	}

	body, wantChecksum := payload[:headerLen], payload[headerLen:]
	gotChecksum := shareableChecksum(body)
	for i := range gotChecksum {
		if gotChecksum[i] != wantChecksum[i] {
			return nil, fmt.Errorf("note: %w", types.ErrChecksumMismatch)
		}
	}

	offset := 1
	amount := new(uint256.Int).SetBytes(payload[offset : offset+32])
	offset += 32
	tokenAddr := common.BytesToAddress(payload[offset : offset+20])
	offset += 20
	blinding := field.FromBytes(payload[offset : offset+32])
	offset += 32
	owner := field.FromBytes(payload[offset : offset+32])

	tokenFr := field.FromAddress(tokenAddr)
	amountFr := field.FromUint256(amount)
	commitment := field.Commit(owner, amountFr, tokenFr, blinding)

	return &types.Note{
		Amount:       amount,
		TokenAddress: tokenAddr,
		OwnerPubkey:  owner,
		Blinding:     blinding,
		Commitment:   commitment,
		CreatedAt:    time.Now(),
	}, nil
}

func shareableChecksum(payload []byte) []byte {
	sum := field.MiMCK([]field.Fr{field.FromBytes(payload)})
	b := sum.Bytes()
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, binary.BigEndian.Uint32(b[:4]))
	return out
}

// jsonNote is the JSON-at-the-boundary form for wallet backup/restore
// (spec.md §4.3, §6). Field elements and the u256 amount are hex-encoded.
type jsonNote struct {
	Amount        string `json:"amount"`
	TokenAddress  string `json:"tokenAddress"`
	TokenSymbol   string `json:"tokenSymbol,omitempty"`
	TokenDecimals uint8  `json:"tokenDecimals,omitempty"`
	OwnerPubkey   string `json:"ownerPubkey"`
	Blinding      string `json:"blinding"`
	Commitment    string `json:"commitment"`
	LeafIndex     *uint64 `json:"leafIndex,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ToJSON serializes a note for wallet backup (spec.md §6).
func ToJSON(n *types.Note) ([]byte, error) {
	ownerBytes := n.OwnerPubkey.Bytes()
	blindingBytes := n.Blinding.Bytes()
	commitmentBytes := n.Commitment.Bytes()

	jn := jsonNote{
		Amount:        n.Amount.Hex(),
		TokenAddress:  n.TokenAddress.Hex(),
		TokenSymbol:   n.TokenSymbol,
		TokenDecimals: n.TokenDecimals,
		OwnerPubkey:   fmt.Sprintf("0x%x", ownerBytes),
		Blinding:      fmt.Sprintf("0x%x", blindingBytes),
		Commitment:    fmt.Sprintf("0x%x", commitmentBytes),
		LeafIndex:     n.LeafIndex,
		CreatedAt:     n.CreatedAt,
	}
	return json.Marshal(jn)
}

// FromJSON parses the wallet-backup JSON form of a note. The commitment
// recomputed from the decoded fields must match the stored commitment, or
// ErrCryptoInvariant is returned — a corrupted backup must never be
// silently accepted.
func FromJSON(data []byte) (*types.Note, error) {
	var jn jsonNote
	if err := json.Unmarshal(data, &jn); err != nil {
		return nil, fmt.Errorf("note: %w", err)
	}

	amount, err := hexToUint256(jn.Amount)
	if err != nil {
		return nil, fmt.Errorf("note: amount: %w", err)
	}
	tokenAddr := common.HexToAddress(jn.TokenAddress)
	owner, err := hexToFr(jn.OwnerPubkey)
	if err != nil {
		return nil, fmt.Errorf("note: ownerPubkey: %w", err)
	}
	blinding, err := hexToFr(jn.Blinding)
	if err != nil {
		return nil, fmt.Errorf("note: blinding: %w", err)
	}
	storedCommitment, err := hexToFr(jn.Commitment)
	if err != nil {
		return nil, fmt.Errorf("note: commitment: %w", err)
	}

	tokenFr := field.FromAddress(tokenAddr)
	amountFr := field.FromUint256(amount)
	recomputed := field.Commit(owner, amountFr, tokenFr, blinding)
	if !field.Equal(recomputed, storedCommitment) {
		return nil, fmt.Errorf("note: %w: commitment does not match decoded fields", types.ErrCryptoInvariant)
	}

	return &types.Note{
		Amount:        amount,
		TokenAddress:  tokenAddr,
		TokenSymbol:   jn.TokenSymbol,
		TokenDecimals: jn.TokenDecimals,
		OwnerPubkey:   owner,
		Blinding:      blinding,
		Commitment:    storedCommitment,
		LeafIndex:     jn.LeafIndex,
		CreatedAt:     jn.CreatedAt,
	}, nil
}

func hexToUint256(s string) (*uint256.Int, error) {
	v, err := uint256.FromHex(s)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func hexToFr(s string) (fr.Element, error) {
	var out fr.Element
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	out.SetBytes(b)
	return out, nil
}
