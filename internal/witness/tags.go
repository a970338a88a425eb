package witness

import (
	"math/big"

	"github.com/consensys/gnark/frontend"

	"github.com/notfartdev/zdoge-shielded-core/internal/field"
)

// tagCommitment and tagNullifier are the same domain-separation constants
// internal/field.MiMCK absorbs off-circuit, lifted to big.Int so they can
// be used as constant operands inside a circuit's Define. Keeping them as
// package vars (computed once, from the same source of truth) is what
// guarantees a circuit and the Note Store agree on one commitment scheme.
var (
	tagCommitment frontend.Variable
	tagNullifier  frontend.Variable
)

func init() {
	tagCommitment = frElementToBigInt(field.TagCommitment())
	tagNullifier = frElementToBigInt(field.TagNullifier())
}

func frElementToBigInt(x field.Fr) *big.Int {
	var out big.Int
	x.BigInt(&out)
	return &out
}
