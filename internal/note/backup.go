package note

import (
	"encoding/json"
	"fmt"

	"github.com/notfartdev/zdoge-shielded-core/pkg/types"
)

// BackupVersion tags the wallet_backup JSON envelope (spec.md §4.3, §6).
const BackupVersion = 1

// Backup is the JSON-at-the-boundary shape of a full wallet export:
// identity address (the private key material itself never leaves the
// process unencrypted — internal/persistence seals it before this is
// written to disk or handed to the host) plus every known note.
type Backup struct {
	Version int        `json:"version"`
	Address string     `json:"address"`
	Notes   []jsonNote `json:"notes"`
}

// Serialize builds the JSON backup envelope for an identity's address and
// note set.
func Serialize(address string, notes []*types.Note) ([]byte, error) {
	jn := make([]jsonNote, 0, len(notes))
	for _, n := range notes {
		ownerBytes := n.OwnerPubkey.Bytes()
		blindingBytes := n.Blinding.Bytes()
		commitmentBytes := n.Commitment.Bytes()
		jn = append(jn, jsonNote{
			Amount:        n.Amount.Hex(),
			TokenAddress:  n.TokenAddress.Hex(),
			TokenSymbol:   n.TokenSymbol,
			TokenDecimals: n.TokenDecimals,
			OwnerPubkey:   fmt.Sprintf("0x%x", ownerBytes),
			Blinding:      fmt.Sprintf("0x%x", blindingBytes),
			Commitment:    fmt.Sprintf("0x%x", commitmentBytes),
			LeafIndex:     n.LeafIndex,
			CreatedAt:     n.CreatedAt,
		})
	}

	b := Backup{Version: BackupVersion, Address: address, Notes: jn}
	return json.Marshal(b)
}

// Deserialize parses a wallet_restore payload back into a note set,
// rejecting unknown versions.
func Deserialize(data []byte) (address string, notes []*types.Note, err error) {
	var b Backup
	if err := json.Unmarshal(data, &b); err != nil {
		return "", nil, fmt.Errorf("note: backup: %w", err)
	}
	if b.Version != BackupVersion {
		return "", nil, fmt.Errorf("note: backup: %w: version %d", types.ErrUnsupportedVersion, b.Version)
	}

	out := make([]*types.Note, 0, len(b.Notes))
	for _, jn := range b.Notes {
		raw, err := json.Marshal(jn)
		if err != nil {
			return "", nil, err
		}
		n, err := FromJSON(raw)
		if err != nil {
			return "", nil, err
		}
		out = append(out, n)
	}
	return b.Address, out, nil
}
