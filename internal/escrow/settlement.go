package escrow

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Settlement is the split of a pot between the fee vault and the winner.
type Settlement struct {
	TotalPot uint64
	Fee      uint64
	Payout   uint64
}

// ComputeSettlement splits 2*stake into fee and payout. Every step is
// checked and fails with ErrMathOverflow if the result does not fit in a
// uint64. Fee + Payout == TotalPot for every successful call.
func ComputeSettlement(stake, feeBps uint64) (Settlement, error) {
	if feeBps > BpsDenominator {
		return Settlement{}, fmt.Errorf("fee bps %d above %d: %w", feeBps, BpsDenominator, ErrMathOverflow)
	}

	pot, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(stake), uint256.NewInt(2))
	if overflow || !pot.IsUint64() {
		return Settlement{}, fmt.Errorf("total pot for stake %d: %w", stake, ErrMathOverflow)
	}

	scaled, overflow := new(uint256.Int).MulOverflow(pot, uint256.NewInt(feeBps))
	if overflow {
		return Settlement{}, fmt.Errorf("fee numerator: %w", ErrMathOverflow)
	}

	fee := new(uint256.Int).Div(scaled, uint256.NewInt(BpsDenominator))
	if !fee.IsUint64() {
		return Settlement{}, fmt.Errorf("fee: %w", ErrMathOverflow)
	}

	payout, underflow := new(uint256.Int).SubOverflow(pot, fee)
	if underflow {
		return Settlement{}, fmt.Errorf("payout: %w", ErrMathOverflow)
	}

	return Settlement{
		TotalPot: pot.Uint64(),
		Fee:      fee.Uint64(),
		Payout:   payout.Uint64(),
	}, nil
}
