package witness

import (
	"github.com/consensys/gnark/frontend"
)

// ShieldCircuit proves a deposit note is correctly formed: the public
// commitment opens to the declared (public) amount and token under a
// hidden owner key and blinding (spec.md §4.8 shield row).
type ShieldCircuit struct {
	// Public inputs.
	Commitment frontend.Variable `gnark:",public"`
	Amount     frontend.Variable `gnark:",public"`
	Token      frontend.Variable `gnark:",public"`

	// Secret inputs.
	OwnerPubkey frontend.Variable
	Blinding    frontend.Variable
}

func (c *ShieldCircuit) Define(api frontend.API) error {
	commitment, err := mimcSum(api, tagCommitment, c.OwnerPubkey, c.Amount, c.Token, c.Blinding)
	if err != nil {
		return err
	}
	api.AssertIsEqual(commitment, c.Commitment)
	return nil
}

// input is one spent note's private opening plus its Merkle membership
// witness, shared by TransferCircuit, UnshieldCircuit and SwapCircuit.
type input struct {
	OwnerPubkey frontend.Variable
	SpendingKey frontend.Variable
	Amount      frontend.Variable
	Token       frontend.Variable
	Blinding    frontend.Variable
	LeafIndex   frontend.Variable
	Siblings    [merkleDepth]frontend.Variable
	Bits        [merkleDepth]frontend.Variable
}

// verifyInput recomputes an input's commitment, checks its Merkle
// membership against root, and returns the nullifier it must match
// publicly — the shared core of every spend circuit below.
func verifyInput(api frontend.API, in input, root frontend.Variable) (commitment, nullifier frontend.Variable, err error) {
	commitment, err = mimcSum(api, tagCommitment, in.OwnerPubkey, in.Amount, in.Token, in.Blinding)
	if err != nil {
		return nil, nil, err
	}
	if err := verifyMerklePath(api, commitment, in.Siblings, in.Bits, root); err != nil {
		return nil, nil, err
	}
	nullifier, err = mimcSum(api, tagNullifier, commitment, in.LeafIndex, in.SpendingKey)
	if err != nil {
		return nil, nil, err
	}
	return commitment, nullifier, nil
}

// output is one produced note's opening; its commitment is asserted
// equal to a public OutputCommitment slot by the enclosing circuit.
type output struct {
	OwnerPubkey frontend.Variable
	Amount      frontend.Variable
	Token       frontend.Variable
	Blinding    frontend.Variable
}

func commitOutput(api frontend.API, out output) (frontend.Variable, error) {
	return mimcSum(api, tagCommitment, out.OwnerPubkey, out.Amount, out.Token, out.Blinding)
}

// TransferCircuit spends up to two input notes of the same token and
// produces a recipient output and a change output, enforcing value
// conservation and a relayer fee (spec.md §4.8 transfer row, §4.6 change
// policy). A fully-used first input and an unused second input is
// modeled by the second input's amount (and therefore nullifier) being
// zero, matching the teacher's zero-valued slot convention.
type TransferCircuit struct {
	MerkleRoot         frontend.Variable `gnark:",public"`
	Nullifier1         frontend.Variable `gnark:",public"`
	Nullifier2         frontend.Variable `gnark:",public"`
	RecipientCommitment frontend.Variable `gnark:",public"`
	ChangeCommitment   frontend.Variable `gnark:",public"`
	Fee                frontend.Variable `gnark:",public"`
	Token              frontend.Variable `gnark:",public"`

	Input1  input
	Input2  input
	Recipient output
	Change    output
}

func (c *TransferCircuit) Define(api frontend.API) error {
	_, n1, err := verifyInput(api, c.Input1, c.MerkleRoot)
	if err != nil {
		return err
	}
	_, n2, err := verifyInput(api, c.Input2, c.MerkleRoot)
	if err != nil {
		return err
	}
	api.AssertIsEqual(n1, c.Nullifier1)
	api.AssertIsEqual(n2, c.Nullifier2)

	recipientCommit, err := commitOutput(api, c.Recipient)
	if err != nil {
		return err
	}
	changeCommit, err := commitOutput(api, c.Change)
	if err != nil {
		return err
	}
	api.AssertIsEqual(recipientCommit, c.RecipientCommitment)
	api.AssertIsEqual(changeCommit, c.ChangeCommitment)

	inSum := api.Add(c.Input1.Amount, c.Input2.Amount)
	outSum := api.Add(c.Recipient.Amount, c.Change.Amount)
	api.AssertIsEqual(inSum, api.Add(outSum, c.Fee))

	return nil
}

// UnshieldCircuit spends up to two input notes and withdraws a public
// amount to an EVM recipient, with a single change output (spec.md §4.8
// unshield row).
type UnshieldCircuit struct {
	MerkleRoot       frontend.Variable `gnark:",public"`
	Nullifier1       frontend.Variable `gnark:",public"`
	Nullifier2       frontend.Variable `gnark:",public"`
	WithdrawAmount   frontend.Variable `gnark:",public"`
	Recipient        frontend.Variable `gnark:",public"` // EVM address, field-packed
	ChangeCommitment frontend.Variable `gnark:",public"`
	Fee              frontend.Variable `gnark:",public"`

	Input1 input
	Input2 input
	Change output
}

func (c *UnshieldCircuit) Define(api frontend.API) error {
	_, n1, err := verifyInput(api, c.Input1, c.MerkleRoot)
	if err != nil {
		return err
	}
	_, n2, err := verifyInput(api, c.Input2, c.MerkleRoot)
	if err != nil {
		return err
	}
	api.AssertIsEqual(n1, c.Nullifier1)
	api.AssertIsEqual(n2, c.Nullifier2)

	changeCommit, err := commitOutput(api, c.Change)
	if err != nil {
		return err
	}
	api.AssertIsEqual(changeCommit, c.ChangeCommitment)

	inSum := api.Add(c.Input1.Amount, c.Input2.Amount)
	api.AssertIsEqual(inSum, api.Add(api.Add(c.WithdrawAmount, c.Fee), c.Change.Amount))

	return nil
}

// SwapCircuit spends input notes of TokenIn and produces a recipient
// output of TokenOut at a router-quoted rate plus a TokenIn change
// output, binding the trade to a caller-supplied AmountOut rather than
// re-deriving a price in-circuit (spec.md §4.8 swap row; AmountOut is a
// public input, not something the circuit computes).
type SwapCircuit struct {
	MerkleRoot       frontend.Variable `gnark:",public"`
	Nullifier1       frontend.Variable `gnark:",public"`
	Nullifier2       frontend.Variable `gnark:",public"`
	TokenIn          frontend.Variable `gnark:",public"`
	TokenOut         frontend.Variable `gnark:",public"`
	AmountIn         frontend.Variable `gnark:",public"`
	AmountOut        frontend.Variable `gnark:",public"`
	MinOut           frontend.Variable `gnark:",public"`
	OutCommitment    frontend.Variable `gnark:",public"`
	ChangeCommitment frontend.Variable `gnark:",public"`
	Fee              frontend.Variable `gnark:",public"`

	Input1 input
	Input2 input
	Out    output
	Change output
}

func (c *SwapCircuit) Define(api frontend.API) error {
	_, n1, err := verifyInput(api, c.Input1, c.MerkleRoot)
	if err != nil {
		return err
	}
	_, n2, err := verifyInput(api, c.Input2, c.MerkleRoot)
	if err != nil {
		return err
	}
	api.AssertIsEqual(n1, c.Nullifier1)
	api.AssertIsEqual(n2, c.Nullifier2)

	outCommit, err := commitOutput(api, c.Out)
	if err != nil {
		return err
	}
	changeCommit, err := commitOutput(api, c.Change)
	if err != nil {
		return err
	}
	api.AssertIsEqual(outCommit, c.OutCommitment)
	api.AssertIsEqual(changeCommit, c.ChangeCommitment)

	api.AssertIsEqual(c.Out.Token, c.TokenOut)
	api.AssertIsEqual(c.Change.Token, c.TokenIn)
	api.AssertIsEqual(c.Out.Amount, c.AmountOut)
	api.AssertIsLessOrEqual(c.MinOut, c.AmountOut)

	inSum := api.Add(c.Input1.Amount, c.Input2.Amount)
	api.AssertIsEqual(inSum, api.Add(api.Add(c.AmountIn, c.Change.Amount), c.Fee))

	return nil
}
