// Package witness builds Groth16 circuits and witnesses for the four
// shielded operations (spec.md §4.8): shield, transfer, unshield, swap.
// The circuit style — a CircuitManager compiling per-operation circuits
// and producing ProofData — is carried over from the teacher's
// internal/zkp/circuits.go CircuitManager; the constraints themselves are
// generalized from its simplified TransactionCircuit (value conservation)
// plus internal/zkp/merkle.go's path-verification shape, reimplemented in
// gnark's std/hash/mimc gadget so the in-circuit hash matches the
// off-circuit internal/field sponge exactly.
package witness

import (
	"github.com/consensys/gnark/frontend"
	gmimc "github.com/consensys/gnark/std/hash/mimc"
)

// mimcSum hashes inputs in-circuit with the same sponge construction
// internal/field.MiMCK uses off-circuit (absorb then Sum), so a
// commitment or nullifier computed outside the circuit and one computed
// inside it always agree.
func mimcSum(api frontend.API, inputs ...frontend.Variable) (frontend.Variable, error) {
	h, err := gmimc.NewMiMC(api)
	if err != nil {
		return nil, err
	}
	h.Write(inputs...)
	return h.Sum(), nil
}

// merkleDepth mirrors internal/merkle.Depth; duplicated as a constant here
// (rather than imported) because circuit field sizes must be compile-time
// constants and internal/merkle intentionally has no gnark dependency.
const merkleDepth = 20

// verifyMerklePath asserts that walking leaf up through siblings,
// steered by bits (0 = leaf is the left child, 1 = right), reaches root.
// Mirrors internal/merkle.Verify's off-circuit logic.
func verifyMerklePath(api frontend.API, leaf frontend.Variable, siblings, bits [merkleDepth]frontend.Variable, root frontend.Variable) error {
	current := leaf
	for level := 0; level < merkleDepth; level++ {
		left, err := apiSelect(api, bits[level], siblings[level], current)
		if err != nil {
			return err
		}
		right, err := apiSelect(api, bits[level], current, siblings[level])
		if err != nil {
			return err
		}
		h, err := mimcSum(api, left, right)
		if err != nil {
			return err
		}
		current = h
	}
	api.AssertIsEqual(current, root)
	return nil
}

// apiSelect returns whenOne if bit==1 and whenZero if bit==0 — matching
// verifyMerklePath's need for "current on the left when bit==0, on the
// right when bit==1". Implemented via api.Select for clarity.
func apiSelect(api frontend.API, bit, whenOne, whenZero frontend.Variable) (frontend.Variable, error) {
	return api.Select(bit, whenOne, whenZero), nil
}
