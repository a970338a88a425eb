package store

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/notfartdev/zdoge-shielded-core/internal/field"
	"github.com/notfartdev/zdoge-shielded-core/internal/note"
	"github.com/notfartdev/zdoge-shielded-core/pkg/types"
)

// memPersist is an in-memory Persistence used only by tests; it can be
// told to fail the next Save to exercise rollback.
type memPersist struct {
	snap    *Snapshot
	failNext bool
}

func (m *memPersist) Load() (*Snapshot, error) { return m.snap, nil }
func (m *memPersist) Save(s *Snapshot) error {
	if m.failNext {
		m.failNext = false
		return errors.New("simulated persistence failure")
	}
	m.snap = s
	return nil
}

func testNote(amount uint64) *types.Note {
	owner := field.FromUint64(1)
	blinding := field.FromUint64(2)
	return note.New(owner, uint256.NewInt(amount), common.Address{}, "DOGE", 18, blinding)
}

func TestAddPendingAndBalance(t *testing.T) {
	s, err := New("zdoge:test", &memPersist{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n := testNote(50)
	if err := s.AddPending(n); err != nil {
		t.Fatalf("AddPending: %v", err)
	}
	bal := s.Balance(types.LegacyDefaultSymbol)
	if bal.Uint64() != 50 {
		t.Fatalf("expected balance 50, got %s", bal.String())
	}
}

func TestAddPendingRollsBackOnPersistenceFailure(t *testing.T) {
	p := &memPersist{}
	s, _ := New("zdoge:test", p)
	p.failNext = true

	n := testNote(50)
	if err := s.AddPending(n); err == nil {
		t.Fatalf("expected a persistence error")
	}
	if s.Has(n.Commitment) {
		t.Fatalf("note should have been rolled back after a failed save")
	}
}

func TestConfirmIsImmutableAndIdempotent(t *testing.T) {
	s, _ := New("zdoge:test", &memPersist{})
	n := testNote(10)
	s.AddPending(n)

	if err := s.Confirm(n.Commitment, 3, field.FromUint64(0)); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	// Re-observing the same leaf index is a no-op.
	if err := s.Confirm(n.Commitment, 3, field.FromUint64(0)); err != nil {
		t.Fatalf("idempotent Confirm: %v", err)
	}
	// A different leaf index for an already-confirmed note is an invariant violation.
	if err := s.Confirm(n.Commitment, 4, field.FromUint64(0)); err == nil {
		t.Fatalf("expected an error when changing a confirmed leaf index")
	}
}

func TestMarkSpentMovesToArchive(t *testing.T) {
	s, _ := New("zdoge:test", &memPersist{})
	n := testNote(10)
	s.AddPending(n)

	if err := s.MarkSpent(n.Commitment, field.FromUint64(123)); err != nil {
		t.Fatalf("MarkSpent: %v", err)
	}
	if s.Has(n.Commitment) {
		t.Fatalf("note should no longer be active once spent")
	}
	if s.Balance(types.LegacyDefaultSymbol).Sign() != 0 {
		t.Fatalf("spent note should not count toward balance")
	}
}

func TestNotesForTokenFiltersByToken(t *testing.T) {
	s, _ := New("zdoge:test", &memPersist{})
	dogeNote := testNote(10)
	other := note.New(field.FromUint64(1), uint256.NewInt(20), common.HexToAddress("0x01"), "WDOGE", 18, field.FromUint64(3))
	s.AddPending(dogeNote)
	s.AddPending(other)

	dogeNotes := s.NotesForToken(types.LegacyDefaultSymbol)
	if len(dogeNotes) != 1 {
		t.Fatalf("expected 1 DOGE note, got %d", len(dogeNotes))
	}
}
