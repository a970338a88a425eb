package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/notfartdev/zdoge-shielded-core/internal/note"
	"github.com/notfartdev/zdoge-shielded-core/internal/store"
)

// wireSnapshot is the plaintext, JSON-marshalable shape of a
// store.Snapshot; both backends seal this blob before writing it out.
type wireSnapshot struct {
	WalletAddress string            `json:"walletAddress"`
	Notes         []json.RawMessage `json:"notes"`
	ArchivedNotes []json.RawMessage `json:"archivedNotes"`
}

func marshalSnapshot(snap *store.Snapshot) ([]byte, error) {
	w := wireSnapshot{WalletAddress: snap.WalletAddress}
	for _, n := range snap.Notes {
		raw, err := note.ToJSON(n)
		if err != nil {
			return nil, fmt.Errorf("persistence: marshaling note: %w", err)
		}
		w.Notes = append(w.Notes, raw)
	}
	for _, n := range snap.ArchivedNotes {
		raw, err := note.ToJSON(n)
		if err != nil {
			return nil, fmt.Errorf("persistence: marshaling archived note: %w", err)
		}
		w.ArchivedNotes = append(w.ArchivedNotes, raw)
	}
	return json.Marshal(w)
}

func unmarshalSnapshot(data []byte) (*store.Snapshot, error) {
	var w wireSnapshot
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("persistence: decoding snapshot: %w", err)
	}

	snap := &store.Snapshot{WalletAddress: w.WalletAddress}
	for _, raw := range w.Notes {
		n, err := note.FromJSON(raw)
		if err != nil {
			return nil, err
		}
		snap.Notes = append(snap.Notes, n)
	}
	for _, raw := range w.ArchivedNotes {
		n, err := note.FromJSON(raw)
		if err != nil {
			return nil, err
		}
		snap.ArchivedNotes = append(snap.ArchivedNotes, n)
	}
	return snap, nil
}
