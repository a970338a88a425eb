package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// RelayerQuote is the advisory fee schedule a relayer publishes
// (spec.md §3). FeePercent is a base-10 rational (decimal.Decimal), not a
// float, so fee(x) = max(MinFee, x * FeePercent) never loses precision near
// the minimum-fee boundary — the exact bug spec.md §9 calls out as the
// thing to fix, not reproduce.
type RelayerQuote struct {
	Available      bool
	RelayerAddress common.Address
	FeePercent     decimal.Decimal
	MinFee         *uint256.Int
}

// Fee computes max(MinFee, amount * FeePercent) in the integer domain:
// FeePercent is applied via decimal.Decimal arithmetic and the result is
// rounded up to the nearest base unit before comparison, so the relayer
// never receives less than FeePercent of the requested amount.
func (q RelayerQuote) Fee(amount *uint256.Int) *uint256.Int {
	amountDec := decimal.NewFromBigInt(amount.ToBig(), 0)
	feeDec := amountDec.Mul(q.FeePercent).Ceil()

	fee, overflow := uint256.FromBig(feeDec.BigInt())
	if overflow {
		fee = uint256.NewInt(0).Sub(uint256.NewInt(0), uint256.NewInt(1)) // saturate to max; never expected in practice
	}

	if fee.Lt(q.MinFee) {
		return new(uint256.Int).Set(q.MinFee)
	}
	return fee
}
