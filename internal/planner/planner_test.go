package planner

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/notfartdev/zdoge-shielded-core/internal/field"
	"github.com/notfartdev/zdoge-shielded-core/internal/note"
	"github.com/notfartdev/zdoge-shielded-core/pkg/types"
)

// flatFee is a fixed fee schedule used to keep test expectations simple
// and independent of pkg/types.RelayerQuote's decimal machinery.
type flatFee struct {
	fee uint64
}

func (f flatFee) Fee(_ *uint256.Int) *uint256.Int { return uint256.NewInt(f.fee) }

func confirmedNote(amount uint64, leafIndex uint64) *types.Note {
	n := note.New(field.FromUint64(1), uint256.NewInt(amount), common.Address{}, "DOGE", 18, field.FromUint64(2))
	n.LeafIndex = &leafIndex
	return n
}

// TestPlanSingleNoteCoversAmount covers the spec.md §8 scenario: a single
// confirmed note large enough to cover amount plus fee plans as one input
// with the remainder as change.
func TestPlanSingleNoteCoversAmount(t *testing.T) {
	notes := []*types.Note{confirmedNote(1000, 0)}
	p, err := Plan(notes, uint256.NewInt(100), flatFee{fee: 5})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(p.Inputs) != 1 {
		t.Fatalf("expected a single-note plan, got %d inputs", len(p.Inputs))
	}
	if p.ChangeAmount.Uint64() != 895 {
		t.Fatalf("expected change 895, got %s", p.ChangeAmount.String())
	}
}

// TestPlanTwoNoteCombination covers a two-note combination when no single
// note suffices.
func TestPlanTwoNoteCombination(t *testing.T) {
	notes := []*types.Note{confirmedNote(60, 0), confirmedNote(60, 1)}
	p, err := Plan(notes, uint256.NewInt(100), flatFee{fee: 5})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(p.Inputs) != 2 {
		t.Fatalf("expected a two-note plan, got %d inputs", len(p.Inputs))
	}
}

func TestPlanInsufficientBalance(t *testing.T) {
	notes := []*types.Note{confirmedNote(10, 0)}
	if _, err := Plan(notes, uint256.NewInt(100), flatFee{fee: 5}); err == nil {
		t.Fatalf("expected ErrInsufficientBalance")
	}
}

func TestPlanDustOnly(t *testing.T) {
	notes := []*types.Note{confirmedNote(1, 0)} // amount <= minFee
	if _, err := Plan(notes, uint256.NewInt(100), flatFee{fee: 5}); err == nil {
		t.Fatalf("expected ErrNoteDustOnly")
	}
}

// TestConsolidatePath covers the spec.md §8 consolidation scenario: every
// eligible note becomes its own single-input unshield batch, largest first.
func TestConsolidatePath(t *testing.T) {
	notes := []*types.Note{
		confirmedNote(10, 0),
		confirmedNote(30, 1),
		confirmedNote(20, 2),
	}
	batches := Consolidate(notes, flatFee{fee: 1})
	if len(batches) != 3 {
		t.Fatalf("expected one batch per note, got %d", len(batches))
	}
	for _, b := range batches {
		if len(b) != 1 {
			t.Fatalf("expected single-note batches, got %d notes", len(b))
		}
	}
	if batches[0][0].Amount.Uint64() != 30 {
		t.Fatalf("expected largest-first ordering, got %s", batches[0][0].Amount.String())
	}
}

func TestMaxSendableAccountsForFee(t *testing.T) {
	notes := []*types.Note{confirmedNote(1000, 0)}
	max := MaxSendable(notes, flatFee{fee: 5})
	if max.Uint64() != 995 {
		t.Fatalf("expected max sendable 995, got %s", max.String())
	}
}
