package witness

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/notfartdev/zdoge-shielded-core/internal/field"
	"github.com/notfartdev/zdoge-shielded-core/internal/merkle"
	"github.com/notfartdev/zdoge-shielded-core/pkg/types"
)

// MaxRootRetries is the number of older roots a stale-root retry may
// walk back through. The builders in this package always build against
// the resolver's current root and do not walk back themselves.
const MaxRootRetries = 5

// PathResolver is what a builder needs from the client's Merkle replica:
// a path for a confirmed leaf and the set of roots recent enough that a
// proof built against them would still be accepted on-chain.
type PathResolver interface {
	Path(leafIndex uint64) (*merkle.Path, error)
	KnownRoots() []field.Fr
	Root() field.Fr
}

func frBig(x field.Fr) *big.Int {
	var out big.Int
	x.BigInt(&out)
	return &out
}

func addrBig(a common.Address) *big.Int {
	return frBig(field.FromAddress(a))
}

func buildInput(n *types.Note, spendingKey field.Fr, path *merkle.Path) input {
	var in input
	in.OwnerPubkey = frBig(n.OwnerPubkey)
	in.SpendingKey = frBig(spendingKey)
	in.Amount = frBig(field.FromUint256(n.Amount))
	in.Token = addrBig(n.TokenAddress)
	in.Blinding = frBig(n.Blinding)
	in.LeafIndex = frBig(field.FromUint64(*n.LeafIndex))
	for i := 0; i < merkleDepth; i++ {
		in.Siblings[i] = frBig(path.Siblings[i])
		in.Bits[i] = new(big.Int).SetUint64(uint64(path.Bits[i]))
	}
	return in
}

// zeroInput fills the unused second input slot for a single-note spend —
// its amount is zero, so it contributes nothing to value conservation,
// and its nullifier is still computed and exposed publicly (matching
// whatever the contract expects for an unused slot), never reused across
// transactions because LeafIndex/OwnerPubkey are also zero.
func zeroInput() input {
	zero := new(big.Int)
	in := input{OwnerPubkey: zero, SpendingKey: zero, Amount: zero, Token: zero, Blinding: zero, LeafIndex: zero}
	for i := 0; i < merkleDepth; i++ {
		in.Siblings[i] = frBig(field.TagMerkleZeroLeaf())
		in.Bits[i] = zero
	}
	return in
}

func buildOutput(n *types.Note) output {
	return output{
		OwnerPubkey: frBig(n.OwnerPubkey),
		Amount:      frBig(field.FromUint256(n.Amount)),
		Token:       addrBig(n.TokenAddress),
		Blinding:    frBig(n.Blinding),
	}
}

// ShieldAssignment builds the full witness for a deposit of note.
func ShieldAssignment(n *types.Note) *ShieldCircuit {
	return &ShieldCircuit{
		Commitment:  frBig(n.Commitment),
		Amount:      frBig(field.FromUint256(n.Amount)),
		Token:       addrBig(n.TokenAddress),
		OwnerPubkey: frBig(n.OwnerPubkey),
		Blinding:    frBig(n.Blinding),
	}
}

// nullifierOf mirrors internal/field.Nullify, used by builders to fill in
// the public Nullifier slots without re-deriving them inside Define.
func nullifierOf(n *types.Note, spendingKey field.Fr) field.Fr {
	return field.Nullify(n.Commitment, *n.LeafIndex, spendingKey)
}

// TransferAssignment builds a TransferCircuit witness for spending one or
// two confirmed input notes (inputs[1] may be nil for a single-note
// spend) into a recipient note and a change note, against resolver's
// current root. Returns types.ErrStaleRoot only when the resolver reports
// no known roots; it does not retry against older roots.
func TransferAssignment(inputs []*types.Note, spendingKey field.Fr, recipient, change *types.Note, fee *big.Int, resolver PathResolver) (*TransferCircuit, error) {
	if len(inputs) == 0 || len(inputs) > 2 {
		return nil, types.ErrCryptoInvariant
	}

	root := resolver.Root()

	in1, err := resolvedInput(inputs[0], spendingKey, resolver)
	if err != nil {
		return nil, err
	}
	n1 := nullifierOf(inputs[0], spendingKey)

	in2 := zeroInput()
	n2 := field.Fr{}
	if len(inputs) == 2 {
		in2, err = resolvedInput(inputs[1], spendingKey, resolver)
		if err != nil {
			return nil, err
		}
		n2 = nullifierOf(inputs[1], spendingKey)
	}

	return &TransferCircuit{
		MerkleRoot:          frBig(root),
		Nullifier1:          frBig(n1),
		Nullifier2:          frBig(n2),
		RecipientCommitment: frBig(recipient.Commitment),
		ChangeCommitment:    frBig(change.Commitment),
		Fee:                 fee,
		Token:                addrBig(inputs[0].TokenAddress),
		Input1:               in1,
		Input2:               in2,
		Recipient:            buildOutput(recipient),
		Change:               buildOutput(change),
	}, nil
}

// UnshieldAssignment mirrors TransferAssignment for a withdrawal: the
// recipient slot becomes a plain public (amount, EVM address) pair
// instead of a shielded output commitment.
func UnshieldAssignment(inputs []*types.Note, spendingKey field.Fr, withdrawAmount *big.Int, evmRecipient common.Address, change *types.Note, fee *big.Int, resolver PathResolver) (*UnshieldCircuit, error) {
	if len(inputs) == 0 || len(inputs) > 2 {
		return nil, types.ErrCryptoInvariant
	}

	root := resolver.Root()

	in1, err := resolvedInput(inputs[0], spendingKey, resolver)
	if err != nil {
		return nil, err
	}
	n1 := nullifierOf(inputs[0], spendingKey)

	in2 := zeroInput()
	n2 := field.Fr{}
	if len(inputs) == 2 {
		in2, err = resolvedInput(inputs[1], spendingKey, resolver)
		if err != nil {
			return nil, err
		}
		n2 = nullifierOf(inputs[1], spendingKey)
	}

	return &UnshieldCircuit{
		MerkleRoot:       frBig(root),
		Nullifier1:       frBig(n1),
		Nullifier2:       frBig(n2),
		WithdrawAmount:   withdrawAmount,
		Recipient:        addrBig(evmRecipient),
		ChangeCommitment: frBig(change.Commitment),
		Fee:              fee,
		Input1:           in1,
		Input2:           in2,
		Change:           buildOutput(change),
	}, nil
}

// SwapAssignment builds a SwapCircuit witness spending amountIn of TokenIn
// notes for a router-quoted TokenOut amount (out.Amount, asserted no
// smaller than minOut), with change returned in TokenIn.
func SwapAssignment(inputs []*types.Note, spendingKey field.Fr, out, change *types.Note, tokenIn, tokenOut common.Address, amountIn, minOut, fee *big.Int, resolver PathResolver) (*SwapCircuit, error) {
	if len(inputs) == 0 || len(inputs) > 2 {
		return nil, types.ErrCryptoInvariant
	}

	root := resolver.Root()

	in1, err := resolvedInput(inputs[0], spendingKey, resolver)
	if err != nil {
		return nil, err
	}
	n1 := nullifierOf(inputs[0], spendingKey)

	in2 := zeroInput()
	n2 := field.Fr{}
	if len(inputs) == 2 {
		in2, err = resolvedInput(inputs[1], spendingKey, resolver)
		if err != nil {
			return nil, err
		}
		n2 = nullifierOf(inputs[1], spendingKey)
	}

	return &SwapCircuit{
		MerkleRoot:       frBig(root),
		Nullifier1:       frBig(n1),
		Nullifier2:       frBig(n2),
		TokenIn:          addrBig(tokenIn),
		TokenOut:         addrBig(tokenOut),
		AmountIn:         amountIn,
		AmountOut:        frBig(field.FromUint256(out.Amount)),
		MinOut:           minOut,
		OutCommitment:    frBig(out.Commitment),
		ChangeCommitment: frBig(change.Commitment),
		Fee:              fee,
		Input1:           in1,
		Input2:           in2,
		Out:              buildOutput(out),
		Change:           buildOutput(change),
	}, nil
}

// resolvedInput fetches n's current Merkle path from resolver. It fails
// with types.ErrMerkleUnknownLeaf for a note without a leaf index, passes
// through any Path error, and fails with types.ErrStaleRoot only when
// resolver.KnownRoots() is empty; the path's root is not compared against
// the known-roots window.
func resolvedInput(n *types.Note, spendingKey field.Fr, resolver PathResolver) (input, error) {
	if n.LeafIndex == nil {
		return input{}, types.ErrMerkleUnknownLeaf
	}
	path, err := resolver.Path(*n.LeafIndex)
	if err != nil {
		return input{}, err
	}
	known := resolver.KnownRoots()
	if len(known) == 0 {
		return input{}, types.ErrStaleRoot
	}
	return buildInput(n, spendingKey, path), nil
}
