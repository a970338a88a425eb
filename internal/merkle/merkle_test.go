package merkle

import (
	"testing"

	"github.com/notfartdev/zdoge-shielded-core/internal/field"
)

// TestInsertAndVerifyPath freezes testable property 3 from spec.md §8:
// for any insertion sequence and any inserted index, the extracted path
// verifies against the resulting root.
func TestInsertAndVerifyPath(t *testing.T) {
	tree := New()

	leaves := make([]field.Fr, 5)
	for i := range leaves {
		leaves[i] = field.FromUint64(uint64(100 + i))
		idx, _, err := tree.Insert(leaves[i])
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if idx != uint64(i) {
			t.Fatalf("expected leaf index %d, got %d", i, idx)
		}
	}

	root := tree.Root()
	for i, leaf := range leaves {
		path, err := tree.Path(uint64(i))
		if err != nil {
			t.Fatalf("Path(%d): %v", i, err)
		}
		if !Verify(leaf, path, root) {
			t.Fatalf("path for leaf %d did not verify against the current root", i)
		}
	}
}

func TestPathUnknownLeaf(t *testing.T) {
	tree := New()
	tree.Insert(field.FromUint64(1))
	if _, err := tree.Path(5); err == nil {
		t.Fatalf("expected an error for an unknown leaf index")
	}
}

// TestRootHistoryWindow freezes testable property 4: a proof built
// against any of the last 500 roots still verifies as "known".
func TestRootHistoryWindow(t *testing.T) {
	tree := New()

	var firstRoot field.Fr
	for i := 0; i < 10; i++ {
		_, root, _ := tree.Insert(field.FromUint64(uint64(i)))
		if i == 0 {
			firstRoot = root
		}
	}

	if !tree.IsKnownRoot(firstRoot) {
		t.Fatalf("root from early in the insertion sequence should still be in the window")
	}
}

func TestRootHistoryEviction(t *testing.T) {
	tree := New()

	_, firstRoot, _ := tree.Insert(field.FromUint64(0))

	for i := 1; i < RootHistorySize+10; i++ {
		tree.Insert(field.FromUint64(uint64(i)))
	}

	if tree.IsKnownRoot(firstRoot) {
		t.Fatalf("root older than the 500-root window should have aged out")
	}
}

func TestTreeFull(t *testing.T) {
	// Exercising 2^20 inserts is too slow for a unit test; instead verify
	// the bounds check directly against a tree whose counter is forced to
	// the maximum.
	tree := New()
	tree.nextLeafIndex = uint64(1) << Depth
	if _, _, err := tree.Insert(field.FromUint64(1)); err == nil {
		t.Fatalf("expected ErrMerkleFull once the tree is at capacity")
	}
}

func TestReconcileMatchesChainRoot(t *testing.T) {
	reference := New()
	var events []ChainEvent
	for i := 0; i < 4; i++ {
		c := field.FromUint64(uint64(900 + i))
		idx, _, _ := reference.Insert(c)
		events = append(events, ChainEvent{LeafIndex: idx, Commitment: c})
	}

	replica := New()
	if err := replica.Reconcile(events, reference.Root()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
}

func TestReconcileDetectsDesync(t *testing.T) {
	replica := New()
	events := []ChainEvent{
		{LeafIndex: 1, Commitment: field.FromUint64(1)}, // wrong starting index
	}
	if err := replica.Reconcile(events, field.FromUint64(0)); err == nil {
		t.Fatalf("expected a desync error for an out-of-order event")
	}
}
