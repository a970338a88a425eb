package witness

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/notfartdev/zdoge-shielded-core/internal/field"
	"github.com/notfartdev/zdoge-shielded-core/internal/merkle"
	"github.com/notfartdev/zdoge-shielded-core/internal/note"
	"github.com/notfartdev/zdoge-shielded-core/pkg/types"
)

// fakeResolver lets builder tests control KnownRoots/Path without a live
// merkle.Tree.
type fakeResolver struct {
	tree *merkle.Tree
}

func (f fakeResolver) Path(leafIndex uint64) (*merkle.Path, error) { return f.tree.Path(leafIndex) }
func (f fakeResolver) KnownRoots() []field.Fr                      { return f.tree.KnownRoots() }
func (f fakeResolver) Root() field.Fr                              { return f.tree.Root() }

func TestShieldAssignmentSatisfiesCommitment(t *testing.T) {
	owner := field.FromUint64(1)
	blinding := field.FromUint64(2)
	n := note.New(owner, uint256.NewInt(10), common.Address{}, "DOGE", 18, blinding)

	assignment := ShieldAssignment(n)
	if assignment.Commitment.(*big.Int).Cmp(frBig(n.Commitment)) != 0 {
		t.Fatalf("shield assignment commitment does not match the note's commitment")
	}
}

func TestTransferAssignmentSingleInput(t *testing.T) {
	tree := merkle.New()
	owner := field.FromUint64(1)
	spendingKey := field.FromUint64(42)
	blinding := field.FromUint64(3)

	in := note.New(owner, uint256.NewInt(100), common.Address{}, "DOGE", 18, blinding)
	idx, _, err := tree.Insert(in.Commitment)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	in.LeafIndex = &idx

	recipient := note.New(field.FromUint64(9), uint256.NewInt(90), common.Address{}, "DOGE", 18, field.FromUint64(5))
	change := note.New(owner, uint256.NewInt(5), common.Address{}, "DOGE", 18, field.FromUint64(6))

	resolver := fakeResolver{tree: tree}
	assignment, err := TransferAssignment([]*types.Note{in}, spendingKey, recipient, change, big.NewInt(5), resolver)
	if err != nil {
		t.Fatalf("TransferAssignment: %v", err)
	}

	expectedNullifier := field.Nullify(in.Commitment, idx, spendingKey)
	if assignment.Nullifier1.(*big.Int).Cmp(frBig(expectedNullifier)) != 0 {
		t.Fatalf("nullifier mismatch in built assignment")
	}
}

func TestTransferAssignmentRejectsTooManyInputs(t *testing.T) {
	resolver := fakeResolver{tree: merkle.New()}
	_, err := TransferAssignment(make([]*types.Note, 3), field.FromUint64(1), nil, nil, big.NewInt(0), resolver)
	if err == nil {
		t.Fatalf("expected an error for more than two inputs")
	}
}
