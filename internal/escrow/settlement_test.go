package escrow

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSettlement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		stake   uint64
		feeBps  uint64
		want    Settlement
		wantErr error
	}{
		{name: "scenario_a", stake: 1000, feeBps: FeeBps, want: Settlement{TotalPot: 2000, Fee: 300, Payout: 1700}},
		{name: "smallest_stake_truncates_fee", stake: 1, feeBps: FeeBps, want: Settlement{TotalPot: 2, Fee: 0, Payout: 2}},
		{name: "truncation", stake: 7, feeBps: FeeBps, want: Settlement{TotalPot: 14, Fee: 2, Payout: 12}},
		{name: "zero_fee", stake: 500, feeBps: 0, want: Settlement{TotalPot: 1000, Fee: 0, Payout: 1000}},
		{name: "full_fee", stake: 500, feeBps: BpsDenominator, want: Settlement{TotalPot: 1000, Fee: 1000, Payout: 0}},
		{name: "largest_stake", stake: math.MaxUint64 / 2, feeBps: FeeBps, want: Settlement{
			TotalPot: 18446744073709551614,
			Fee:      2767011611056432742,
			Payout:   15679732462653118872,
		}},
		{name: "pot_overflow", stake: math.MaxUint64/2 + 1, feeBps: FeeBps, wantErr: ErrMathOverflow},
		{name: "fee_bps_out_of_range", stake: 10, feeBps: BpsDenominator + 1, wantErr: ErrMathOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ComputeSettlement(tt.stake, tt.feeBps)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeSettlement_SplitIsExact(t *testing.T) {
	t.Parallel()

	stakes := []uint64{1, 2, 3, 9, 10, 333, 1000, 6667, 123_456_789, 1 << 40, math.MaxUint64 / 2}
	for _, stake := range stakes {
		got, err := ComputeSettlement(stake, FeeBps)
		require.NoError(t, err, "stake %d", stake)

		assert.Equal(t, 2*stake, got.TotalPot, "stake %d", stake)
		assert.Equal(t, got.TotalPot, got.Fee+got.Payout, "stake %d", stake)
		assert.LessOrEqual(t, got.Fee, got.TotalPot, "stake %d", stake)
	}

	for stake := uint64(1); stake <= 5000; stake++ {
		got, err := ComputeSettlement(stake, FeeBps)
		require.NoError(t, err)
		require.Equal(t, 2*stake*FeeBps/BpsDenominator, got.Fee, "stake %d", stake)
	}
}
