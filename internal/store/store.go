// Package store implements the single-writer Note Store (spec.md §4.5),
// grounded on the teacher's internal/zkp/nullifier.go NullifierStore split
// (in-memory cache over a pluggable persistent backend) and the mutex
// discipline of internal/mempool/mempool.go.
package store

import (
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/notfartdev/zdoge-shielded-core/internal/merkle"
	"github.com/notfartdev/zdoge-shielded-core/pkg/types"
)

// Persistence is the capability the Note Store delegates durability to
// (spec.md §4.5). Save receives the full snapshot after every mutation;
// on error the mutation is rolled back in memory.
type Persistence interface {
	Load() (*Snapshot, error)
	Save(snapshot *Snapshot) error
}

// Snapshot is the opaque state a Persistence implementation stores.
type Snapshot struct {
	WalletAddress string
	Notes         []*types.Note
	ArchivedNotes []*types.Note
}

// Store is the single-writer collection of owned notes plus the secondary
// indexes spec.md §4.5 names: by token, by leaf index, by spent/unspent.
type Store struct {
	mu sync.Mutex

	walletAddress string
	notes         map[fr.Element]*types.Note // commitment -> note, unspent + pending
	archived      map[fr.Element]*types.Note // commitment -> note, spent
	byLeafIndex   map[uint64]fr.Element

	persist Persistence
}

// New constructs a Store bound to a Persistence backend, loading any
// existing snapshot for walletAddress.
func New(walletAddress string, persist Persistence) (*Store, error) {
	s := &Store{
		walletAddress: walletAddress,
		notes:         make(map[fr.Element]*types.Note),
		archived:      make(map[fr.Element]*types.Note),
		byLeafIndex:   make(map[uint64]fr.Element),
		persist:       persist,
	}

	snap, err := persist.Load()
	if err != nil {
		return nil, types.NewOpError("store.New", types.KindPersistence, err)
	}
	if snap != nil {
		for _, n := range snap.Notes {
			s.notes[n.Commitment] = n
			if n.LeafIndex != nil {
				s.byLeafIndex[*n.LeafIndex] = n.Commitment
			}
		}
		for _, n := range snap.ArchivedNotes {
			s.archived[n.Commitment] = n
		}
	}
	return s, nil
}

func (s *Store) snapshotLocked() *Snapshot {
	notes := make([]*types.Note, 0, len(s.notes))
	for _, n := range s.notes {
		notes = append(notes, n)
	}
	archived := make([]*types.Note, 0, len(s.archived))
	for _, n := range s.archived {
		archived = append(archived, n)
	}
	return &Snapshot{WalletAddress: s.walletAddress, Notes: notes, ArchivedNotes: archived}
}

// AddPending inserts a note without a leaf index — a just-built shield,
// transfer-change, or swap output awaiting chain confirmation.
func (s *Store) AddPending(n *types.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.notes[n.Commitment]
	s.notes[n.Commitment] = n

	if err := s.persist.Save(s.snapshotLocked()); err != nil {
		if existed {
			s.notes[n.Commitment] = prev
		} else {
			delete(s.notes, n.Commitment)
		}
		return types.NewOpError("store.AddPending", types.KindPersistence, err)
	}
	return nil
}

// Confirm sets leafIndex once the commitment is observed inserted
// on-chain at root. Re-observing the same (commitment, leafIndex) is a
// no-op (spec.md §5 idempotence guarantee for discovery replays).
func (s *Store) Confirm(commitment fr.Element, leafIndex uint64, root fr.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notes[commitment]
	if !ok {
		return types.NewOpError("store.Confirm", types.KindCryptoInvariant, types.ErrCryptoInvariant)
	}
	if n.LeafIndex != nil {
		if *n.LeafIndex == leafIndex {
			return nil // idempotent re-observation
		}
		// leaf_index, once set, is immutable (spec.md §3 invariant).
		return types.NewOpError("store.Confirm", types.KindCryptoInvariant, types.ErrCryptoInvariant)
	}

	prevLeaf := n.LeafIndex
	li := leafIndex
	n.LeafIndex = &li
	s.byLeafIndex[leafIndex] = commitment

	if err := s.persist.Save(s.snapshotLocked()); err != nil {
		n.LeafIndex = prevLeaf
		delete(s.byLeafIndex, leafIndex)
		return types.NewOpError("store.Confirm", types.KindPersistence, err)
	}
	return nil
}

// MarkSpent moves a note from the active set into the archive once its
// nullifier has been revealed on-chain.
func (s *Store) MarkSpent(commitment fr.Element, nullifier fr.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notes[commitment]
	if !ok {
		return nil // already archived or never ours; idempotent
	}

	delete(s.notes, commitment)
	if n.LeafIndex != nil {
		delete(s.byLeafIndex, *n.LeafIndex)
	}
	s.archived[commitment] = n

	if err := s.persist.Save(s.snapshotLocked()); err != nil {
		s.notes[commitment] = n
		if n.LeafIndex != nil {
			s.byLeafIndex[*n.LeafIndex] = commitment
		}
		delete(s.archived, commitment)
		return types.NewOpError("store.MarkSpent", types.KindPersistence, err)
	}
	return nil
}

// RemoveDoubleSpent unconditionally removes a note whose nullifier the
// contract rejected as already spent (spec.md §7 "Already-spent" kind):
// the Note Store drops it and continues rather than retrying.
func (s *Store) RemoveDoubleSpent(commitment fr.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notes[commitment]
	if !ok {
		return nil
	}
	delete(s.notes, commitment)
	if n.LeafIndex != nil {
		delete(s.byLeafIndex, *n.LeafIndex)
	}
	if err := s.persist.Save(s.snapshotLocked()); err != nil {
		s.notes[commitment] = n
		if n.LeafIndex != nil {
			s.byLeafIndex[*n.LeafIndex] = commitment
		}
		return types.NewOpError("store.RemoveDoubleSpent", types.KindPersistence, err)
	}
	return nil
}

// Balance sums unspent, spendable amounts matching token — by address
// when present, otherwise by symbol, defaulting legacy notes to "DOGE"
// (spec.md §4.5, §9).
func (s *Store) Balance(tokenKey string) *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := uint256.NewInt(0)
	for _, n := range s.notes {
		if !n.Spendable() {
			continue
		}
		if n.EffectiveTokenKey() == tokenKey {
			total = new(uint256.Int).Add(total, n.Amount)
		}
	}
	return total
}

// NotesForToken returns every unspent note (spendable or pending) matching
// tokenKey, in no particular order — the Spend Planner sorts as needed.
func (s *Store) NotesForToken(tokenKey string) []*types.Note {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*types.Note
	for _, n := range s.notes {
		if n.EffectiveTokenKey() == tokenKey {
			out = append(out, n.Clone())
		}
	}
	return out
}

// AllNotes returns every unspent note across all tokens.
func (s *Store) AllNotes() []*types.Note {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*types.Note, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, n.Clone())
	}
	return out
}

// ByLeafIndex looks up the commitment known to occupy a leaf, used by the
// discovery loop to detect re-observations.
func (s *Store) ByLeafIndex(leafIndex uint64) (fr.Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byLeafIndex[leafIndex]
	return c, ok
}

// Has reports whether commitment is currently tracked (pending or
// confirmed, unspent).
func (s *Store) Has(commitment fr.Element) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.notes[commitment]
	return ok
}

// PathSource resolves a Merkle path for a confirmed note, used by witness
// builders. It is a thin adapter kept here (rather than in internal/merkle)
// so the Note Store and Merkle Engine locks are never nested (spec.md §5).
type PathSource interface {
	Path(leafIndex uint64) (*merkle.Path, error)
	Root() fr.Element
	IsKnownRoot(root fr.Element) bool
}

// TokenKeyForAddress is a small convenience matching Note.EffectiveTokenKey
// for callers that only have a raw address, not a Note.
func TokenKeyForAddress(addr common.Address) string {
	if addr == (common.Address{}) {
		return types.LegacyDefaultSymbol
	}
	return addr.Hex()
}
