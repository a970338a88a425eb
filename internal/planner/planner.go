// Package planner implements the Spend Planner (spec.md §4.6): given a
// set of owned notes for one token and a target amount, it selects inputs
// and computes change the way a transaction builder would, generalized
// from the teacher's internal/zkp/transaction.go input/output assembly
// (which picks UTXOs and balances them against a fee) onto shielded notes
// and a relayer-quoted fee schedule instead of a flat miner fee.
package planner

import (
	"sort"

	"github.com/holiman/uint256"

	"github.com/notfartdev/zdoge-shielded-core/pkg/types"
)

// MaxInputs bounds how many notes a single transfer/unshield circuit can
// consume, matching the fixed-arity circuits in internal/witness
// (spec.md §4.8 names exactly two input slots per circuit).
const MaxInputs = 2

// FeeSchedule is the minimal surface the planner needs from a relayer
// quote — kept decoupled from pkg/types.RelayerQuote so the planner can be
// exercised with a fixed fee in tests without constructing a full quote.
type FeeSchedule interface {
	Fee(amount *uint256.Int) *uint256.Int
}

// Plan is the chosen input set, recipient amount, computed fee and change
// for one spend.
type Plan struct {
	Inputs      []*types.Note
	SendAmount  *uint256.Int
	Fee         *uint256.Int
	ChangeAmount *uint256.Int // zero means the conventional "zero note" change output
}

// spendableDustFiltered returns notes with Spendable()==true and amount
// strictly greater than the schedule's minimum fee — the dust rule
// (spec.md §4.6): a note too small to ever clear its own fee is excluded
// from candidate selection rather than silently consumed at a loss.
func spendableDustFiltered(notes []*types.Note, fees FeeSchedule) []*types.Note {
	minFee := fees.Fee(uint256.NewInt(0))
	out := make([]*types.Note, 0, len(notes))
	for _, n := range notes {
		if !n.Spendable() {
			continue
		}
		if n.Amount.Cmp(minFee) <= 0 {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Plan selects inputs for sending amount of one token, given the caller's
// current notes for that token and the fee schedule in effect. It tries,
// in order: the smallest single note that covers amount+fee; then every
// pair among the eight smallest candidates, keeping the pair that leaves
// the least change. Returns types.ErrInvalidAmount for a zero amount,
// types.ErrNoteDustOnly if no note survives the dust/spendable filter, and
// types.ErrInsufficientBalance if no single note or searched pair covers
// amount+fee. It does not check amount against a minimum and never
// returns types.ErrAmountBelowMinimum.
func Plan(notes []*types.Note, amount *uint256.Int, fees FeeSchedule) (*Plan, error) {
	if amount.IsZero() {
		return nil, types.ErrInvalidAmount
	}

	candidates := spendableDustFiltered(notes, fees)
	if len(candidates) == 0 && len(notes) > 0 {
		return nil, types.ErrNoteDustOnly
	}

	// Smallest-first: choosing the smallest note that still covers the
	// request preserves larger notes and minimizes fragmentation
	// (spec.md §4.7).
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Amount.Cmp(candidates[j].Amount) < 0
	})

	// Single-note attempt: the first (smallest) sufficient note wins.
	for _, n := range candidates {
		fee := fees.Fee(amount)
		need := new(uint256.Int).Add(amount, fee)
		if n.Amount.Cmp(need) >= 0 {
			change := new(uint256.Int).Sub(n.Amount, need)
			return &Plan{Inputs: []*types.Note{n}, SendAmount: amount, Fee: fee, ChangeAmount: change}, nil
		}
	}

	// Two-note attempt (MaxInputs == 2): try every pair, preferring the
	// smallest sufficient pair so change is minimized.
	var best *Plan
	for i := 0; i < len(candidates) && i < MaxInputs*4; i++ {
		for j := i + 1; j < len(candidates) && j < MaxInputs*4; j++ {
			sum := new(uint256.Int).Add(candidates[i].Amount, candidates[j].Amount)
			fee := fees.Fee(amount)
			need := new(uint256.Int).Add(amount, fee)
			if sum.Cmp(need) < 0 {
				continue
			}
			change := new(uint256.Int).Sub(sum, need)
			if best == nil || change.Cmp(best.ChangeAmount) < 0 {
				best = &Plan{Inputs: []*types.Note{candidates[i], candidates[j]}, SendAmount: amount, Fee: fee, ChangeAmount: change}
			}
		}
	}
	if best != nil {
		return best, nil
	}

	return nil, types.ErrInsufficientBalance
}

// MaxSendable returns the largest amount a single Plan call could send
// given notes and fees — the balance a wallet UI should quote as "max",
// which is strictly less than the raw note sum once fees are subtracted.
func MaxSendable(notes []*types.Note, fees FeeSchedule) *uint256.Int {
	candidates := spendableDustFiltered(notes, fees)
	if len(candidates) == 0 {
		return uint256.NewInt(0)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Amount.Cmp(candidates[j].Amount) > 0
	})

	// Largest single note, fee deducted.
	largest := new(uint256.Int).Set(candidates[0].Amount)
	best := maxSendFromGross(largest, fees)

	if len(candidates) >= 2 {
		pair := new(uint256.Int).Add(candidates[0].Amount, candidates[1].Amount)
		if v := maxSendFromGross(pair, fees); v.Cmp(best) > 0 {
			best = v
		}
	}
	return best
}

// maxSendFromGross solves send = gross - fee(send) by binary search over
// the fee curve: fee(x) is monotonic non-decreasing in x, so a simple
// bisection converges in a handful of iterations without needing to
// invert the (possibly table-driven) fee function analytically.
func maxSendFromGross(gross *uint256.Int, fees FeeSchedule) *uint256.Int {
	lo := uint256.NewInt(0)
	hi := new(uint256.Int).Set(gross)
	for i := 0; i < 256; i++ {
		if lo.Cmp(hi) >= 0 {
			break
		}
		mid := new(uint256.Int).Add(lo, hi)
		mid.Rsh(mid, 1)
		// Bias mid upward so lo/hi converge even when (lo+hi) truncates down.
		mid.AddUint64(mid, 1)
		if mid.Cmp(hi) > 0 {
			mid.Set(hi)
		}
		fee := fees.Fee(mid)
		total := new(uint256.Int).Add(mid, fee)
		if total.Cmp(gross) <= 0 {
			lo.Set(mid)
		} else {
			hi.Sub(mid, uint256.NewInt(1))
		}
	}
	return lo
}

// Consolidate returns the order of one-note-per-transaction unshields
// spec.md §4.7's Plan::Consolidate sequences when no single (or two-note)
// plan covers a request but the notes' combined value, net of each note's
// own fee, does: every eligible note becomes its own single-input unshield
// batch, largest first, so the biggest notes settle first.
func Consolidate(notes []*types.Note, fees FeeSchedule) [][]*types.Note {
	candidates := spendableDustFiltered(notes, fees)
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Amount.Cmp(candidates[j].Amount) > 0
	})

	batches := make([][]*types.Note, len(candidates))
	for i, n := range candidates {
		batches[i] = []*types.Note{n}
	}
	return batches
}

// MaxConsolidated sums amount-fee(amount) over every eligible note — the
// "max_cumulative" figure spec.md §4.7 says the planner exposes for
// consolidation UX, distinct from MaxSendable's single-note constraint.
func MaxConsolidated(notes []*types.Note, fees FeeSchedule) *uint256.Int {
	candidates := spendableDustFiltered(notes, fees)
	total := uint256.NewInt(0)
	for _, n := range candidates {
		fee := fees.Fee(n.Amount)
		if fee.Cmp(n.Amount) >= 0 {
			continue
		}
		net := new(uint256.Int).Sub(n.Amount, fee)
		total.Add(total, net)
	}
	return total
}
