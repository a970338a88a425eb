// Package merkle implements the fixed-depth MiMC commitment tree
// (spec.md §4.4), generalized from the teacher's internal/zkp/merkle.go
// CommitmentTree: same incremental-insert/path-extraction shape, but
// hashed with the MiMC sponge instead of SHA-256 (to match the deployed
// circuits) and carrying a bounded root history instead of a single root.
package merkle

import (
	"sync"

	"github.com/notfartdev/zdoge-shielded-core/internal/field"
	"github.com/notfartdev/zdoge-shielded-core/pkg/types"
)

// Depth is the fixed tree depth from spec.md §3 (~1,048,576 leaves).
const Depth = 20

// RootHistorySize is the number of trailing roots remembered so a proof
// built against a slightly stale root still verifies (spec.md §3, §4.4).
const RootHistorySize = 500

// Path is the sibling hash / bit decomposition needed to prove a leaf's
// membership (spec.md §4.4).
type Path struct {
	Siblings [Depth]field.Fr
	// Bits[i] is 0 if the node at level i is a left child, 1 if right.
	Bits [Depth]uint8
	LeafIndex uint64
}

// Tree is an incremental, fixed-depth MiMC Merkle tree over note
// commitments.
type Tree struct {
	mu sync.Mutex

	nextLeafIndex uint64
	// nodes[level][index] holds every node written so far; level 0 is the
	// leaf level. Unwritten nodes read as the precomputed zero-subtree
	// constant for that level.
	nodes []map[uint64]field.Fr
	zeros [Depth + 1]field.Fr

	roots []field.Fr // ring buffer-ish slice, oldest first, capped at RootHistorySize
}

// New creates an empty tree with precomputed zero-subtree constants.
func New() *Tree {
	t := &Tree{
		nodes: make([]map[uint64]field.Fr, Depth+1),
	}
	for i := range t.nodes {
		t.nodes[i] = make(map[uint64]field.Fr)
	}

	t.zeros[0] = field.TagMerkleZeroLeaf()
	for level := 1; level <= Depth; level++ {
		t.zeros[level] = field.MiMC2(t.zeros[level-1], t.zeros[level-1])
	}

	t.roots = append(t.roots, t.zeros[Depth])
	return t
}

func (t *Tree) nodeAt(level int, index uint64) field.Fr {
	if v, ok := t.nodes[level][index]; ok {
		return v
	}
	return t.zeros[level]
}

// Insert appends commitment at the next free index, matching the pool
// contract's nextLeafIndex counter (spec.md §4.4 ordering contract).
// Returns the assigned leaf index and the new root.
func (t *Tree) Insert(commitment field.Fr) (uint64, field.Fr, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	maxLeaves := uint64(1) << Depth
	if t.nextLeafIndex >= maxLeaves {
		return 0, field.Fr{}, types.ErrMerkleFull
	}

	index := t.nextLeafIndex
	t.nextLeafIndex++

	t.nodes[0][index] = commitment

	current := commitment
	currentIndex := index
	for level := 0; level < Depth; level++ {
		var parent field.Fr
		if currentIndex%2 == 0 {
			sibling := t.nodeAt(level, currentIndex+1)
			parent = field.MiMC2(current, sibling)
		} else {
			sibling := t.nodeAt(level, currentIndex-1)
			parent = field.MiMC2(sibling, current)
		}
		currentIndex /= 2
		current = parent
		t.nodes[level+1][currentIndex] = current
	}

	t.pushRoot(current)
	return index, current, nil
}

func (t *Tree) pushRoot(root field.Fr) {
	t.roots = append(t.roots, root)
	if len(t.roots) > RootHistorySize {
		t.roots = t.roots[len(t.roots)-RootHistorySize:]
	}
}

// Root returns the current tree root.
func (t *Tree) Root() field.Fr {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.roots[len(t.roots)-1]
}

// KnownRoots returns the last RootHistorySize roots, oldest first.
func (t *Tree) KnownRoots() []field.Fr {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]field.Fr, len(t.roots))
	copy(out, t.roots)
	return out
}

// IsKnownRoot reports whether root is within the known-roots window
// (spec.md §3, testable property 4).
func (t *Tree) IsKnownRoot(root field.Fr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.roots {
		if field.Equal(r, root) {
			return true
		}
	}
	return false
}

// Size returns the number of leaves inserted so far.
func (t *Tree) Size() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nextLeafIndex
}

// Path returns the Merkle path for leafIndex. Fails with
// types.ErrMerkleUnknownLeaf if the leaf was never inserted locally.
func (t *Tree) Path(leafIndex uint64) (*Path, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if leafIndex >= t.nextLeafIndex {
		return nil, types.ErrMerkleUnknownLeaf
	}

	p := &Path{LeafIndex: leafIndex}
	currentIndex := leafIndex
	for level := 0; level < Depth; level++ {
		if currentIndex%2 == 0 {
			p.Siblings[level] = t.nodeAt(level, currentIndex+1)
			p.Bits[level] = 0
		} else {
			p.Siblings[level] = t.nodeAt(level, currentIndex-1)
			p.Bits[level] = 1
		}
		currentIndex /= 2
	}
	return p, nil
}

// Verify checks that path, applied to leaf, reproduces expectedRoot —
// testable property 3 in spec.md §8. It does not require a live Tree: a
// witness builder can verify a path it received from a peer.
func Verify(leaf field.Fr, path *Path, expectedRoot field.Fr) bool {
	current := leaf
	for level := 0; level < Depth; level++ {
		if path.Bits[level] == 0 {
			current = field.MiMC2(current, path.Siblings[level])
		} else {
			current = field.MiMC2(path.Siblings[level], current)
		}
	}
	return field.Equal(current, expectedRoot)
}

// ChainEvent is a (leaf_index, commitment) pair observed from pool event
// logs, the input shape reconcile consumes (spec.md §4.4).
type ChainEvent struct {
	LeafIndex  uint64
	Commitment field.Fr
}

// Reconcile replays chain events in order and asserts the locally computed
// root matches latestChainRoot afterward. Events must arrive in strictly
// ascending LeafIndex order (spec.md §4.4 ordering contract); an
// out-of-order or duplicate event is a desync, not silently ignored.
func (t *Tree) Reconcile(events []ChainEvent, latestChainRoot field.Fr) error {
	for _, ev := range events {
		t.mu.Lock()
		expected := t.nextLeafIndex
		t.mu.Unlock()

		if ev.LeafIndex != expected {
			return types.ErrMerkleDesync
		}
		if _, _, err := t.Insert(ev.Commitment); err != nil {
			return err
		}
	}

	if !field.Equal(t.Root(), latestChainRoot) {
		return types.ErrMerkleDesync
	}
	return nil
}
