package escrow

import (
	"fmt"
	"math/bits"
)

type TransferKind string

const (
	TransferStake   TransferKind = "stake"
	TransferFee     TransferKind = "fee"
	TransferPayout  TransferKind = "payout"
	TransferRefund  TransferKind = "refund"
	TransferReserve TransferKind = "reserve"
)

// Transfer is one debit from From followed by one credit to To.
type Transfer struct {
	From   Identity
	To     Identity
	Amount uint64
	Kind   TransferKind
}

// Vault is an in-memory snapshot of a match's custody balance. Transitions
// replay their plan against it so a plan that would overdraw the vault or
// leave funds behind never reaches storage.
type Vault struct {
	Address Identity
	Balance uint64
}

func (v *Vault) debit(amount uint64) error {
	if amount > v.Balance {
		return fmt.Errorf("debit %d from vault holding %d: %w", amount, v.Balance, ErrInsufficientFunds)
	}

	v.Balance -= amount

	return nil
}

func (v *Vault) credit(amount uint64) error {
	sum, err := addChecked(v.Balance, amount)
	if err != nil {
		return fmt.Errorf("credit vault: %w", err)
	}

	v.Balance = sum

	return nil
}

// pay moves amount out of the vault and appends the transfer to plan.
// Zero amounts produce no transfer.
func (v *Vault) pay(plan []Transfer, to Identity, amount uint64, kind TransferKind) ([]Transfer, error) {
	if amount == 0 {
		return plan, nil
	}

	err := v.debit(amount)
	if err != nil {
		return nil, err
	}

	return append(plan, Transfer{From: v.Address, To: to, Amount: amount, Kind: kind}), nil
}

// sweep pays whatever is left to the given identity.
func (v *Vault) sweep(plan []Transfer, to Identity) ([]Transfer, error) {
	return v.pay(plan, to, v.Balance, TransferReserve)
}

func addChecked(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%d + %d: %w", a, b, ErrMathOverflow)
	}

	return sum, nil
}

func saturatingAdd(ts, secs int64) int64 {
	sum := ts + secs
	if secs > 0 && sum < ts {
		return 1<<63 - 1
	}

	return sum
}
