package escrow

import (
	"fmt"

	"github.com/google/uuid"
)

type State uint8

const (
	StateWaitingForB State = iota + 1
	StateActive
	StateSettled
	StateRefunded
	StateCancelled
)

var stateNames = map[State]string{
	StateWaitingForB: "waiting_for_b",
	StateActive:      "active",
	StateSettled:     "settled",
	StateRefunded:    "refunded",
	StateCancelled:   "cancelled",
}

func (s State) String() string {
	name, ok := stateNames[s]
	if !ok {
		return fmt.Sprintf("state(%d)", uint8(s))
	}

	return name
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateSettled || s == StateRefunded || s == StateCancelled
}

func ParseState(raw string) (State, error) {
	for s, name := range stateNames {
		if name == raw {
			return s, nil
		}
	}

	return 0, fmt.Errorf("unknown match state %q", raw)
}

func (s State) MarshalText() ([]byte, error) {
	if _, ok := stateNames[s]; !ok {
		return nil, fmt.Errorf("unknown match state %d", uint8(s))
	}

	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}

// Match is one wager. PlayerB is empty exactly while the match waits for
// an opponent; SettleDeadlineTS is zero until then as well.
type Match struct {
	ID               uuid.UUID
	PlayerA          Identity
	PlayerB          Identity
	Stake            uint64
	State            State
	CreatedAt        int64
	JoinExpiryTS     int64
	SettleDeadlineTS int64
	Vault            Identity
	Reserve          uint64
}

// Outcome describes a closed match: its final snapshot and every transfer
// that emptied the vault.
type Outcome struct {
	Match     Match
	Winner    Identity
	Fee       uint64
	Payout    uint64
	Transfers []Transfer
	ClosedAt  int64
}

// NewMatch opens a match for playerA and returns the deposit plan that
// moves the stake (and the configured vault reserve) into the vault.
func NewMatch(cfg *Config, id uuid.UUID, playerA Identity, stake uint64, joinExpirySecs, now int64) (*Match, []Transfer, error) {
	if cfg == nil {
		return nil, nil, ErrConfigNotInitialized
	}

	if stake == 0 {
		return nil, nil, ErrInvalidStake
	}

	if joinExpirySecs < 0 {
		return nil, nil, fmt.Errorf("join expiry %ds: %w", joinExpirySecs, ErrInvalidWindow)
	}

	if !validParticipant(playerA) {
		return nil, nil, fmt.Errorf("player a %q: %w", playerA, ErrInvalidIdentity)
	}

	vault := Vault{Address: DeriveVault(id)}

	err := vault.credit(stake)
	if err != nil {
		return nil, nil, fmt.Errorf("deposit stake: %w", err)
	}

	err = vault.credit(cfg.VaultReserve)
	if err != nil {
		return nil, nil, fmt.Errorf("deposit reserve: %w", err)
	}

	plan := []Transfer{{From: playerA, To: vault.Address, Amount: stake, Kind: TransferStake}}
	if cfg.VaultReserve > 0 {
		plan = append(plan, Transfer{From: playerA, To: vault.Address, Amount: cfg.VaultReserve, Kind: TransferReserve})
	}

	m := &Match{
		ID:           id,
		PlayerA:      playerA,
		Stake:        stake,
		State:        StateWaitingForB,
		CreatedAt:    now,
		JoinExpiryTS: saturatingAdd(now, joinExpirySecs),
		Vault:        vault.Address,
		Reserve:      cfg.VaultReserve,
	}

	return m, plan, nil
}

// Join commits playerB's stake and starts the settlement window.
func (m *Match) Join(playerB Identity, settleWindowSecs, now int64, vaultBalance uint64) ([]Transfer, error) {
	err := m.checkVault()
	if err != nil {
		return nil, err
	}

	err = m.requireState(StateWaitingForB)
	if err != nil {
		return nil, err
	}

	if now > m.JoinExpiryTS {
		return nil, fmt.Errorf("now %d after join expiry %d: %w", now, m.JoinExpiryTS, ErrJoinExpired)
	}

	if !validParticipant(playerB) {
		return nil, fmt.Errorf("player b %q: %w", playerB, ErrInvalidIdentity)
	}

	if settleWindowSecs < 0 {
		return nil, fmt.Errorf("settle window %ds: %w", settleWindowSecs, ErrInvalidWindow)
	}

	vault := m.vault(vaultBalance)

	err = vault.credit(m.Stake)
	if err != nil {
		return nil, fmt.Errorf("deposit stake: %w", err)
	}

	m.PlayerB = playerB
	m.State = StateActive
	m.SettleDeadlineTS = saturatingAdd(now, settleWindowSecs)

	return []Transfer{{From: playerB, To: m.Vault, Amount: m.Stake, Kind: TransferStake}}, nil
}

// Settle pays the fee to the fee vault and the rest of the pot to winner.
// Anything left in the vault afterwards goes back to player A.
func (m *Match) Settle(cfg *Config, caller, winner Identity, vaultBalance uint64, now int64) (*Outcome, error) {
	err := m.authorityGuard(cfg, caller)
	if err != nil {
		return nil, err
	}

	err = m.requireState(StateActive)
	if err != nil {
		return nil, err
	}

	if winner.IsZero() || (winner != m.PlayerA && winner != m.PlayerB) {
		return nil, fmt.Errorf("winner %q: %w", winner, ErrInvalidWinner)
	}

	split, err := ComputeSettlement(m.Stake, cfg.FeeBps)
	if err != nil {
		return nil, fmt.Errorf("compute settlement: %w", err)
	}

	vault := m.vault(vaultBalance)

	plan, err := vault.pay(nil, cfg.FeeVault, split.Fee, TransferFee)
	if err != nil {
		return nil, fmt.Errorf("pay fee: %w", err)
	}

	plan, err = vault.pay(plan, winner, split.Payout, TransferPayout)
	if err != nil {
		return nil, fmt.Errorf("pay winner: %w", err)
	}

	out, err := m.close(StateSettled, &vault, plan, now)
	if err != nil {
		return nil, err
	}

	out.Winner = winner
	out.Fee = split.Fee
	out.Payout = split.Payout

	return out, nil
}

// CancelUnjoined lets player A recover the deposit once nobody joined in
// time.
func (m *Match) CancelUnjoined(caller Identity, vaultBalance uint64, now int64) (*Outcome, error) {
	err := m.checkVault()
	if err != nil {
		return nil, err
	}

	if caller.IsZero() || caller != m.PlayerA {
		return nil, fmt.Errorf("caller %q is not player a: %w", caller, ErrUnauthorized)
	}

	err = m.requireState(StateWaitingForB)
	if err != nil {
		return nil, err
	}

	if now <= m.JoinExpiryTS {
		return nil, fmt.Errorf("now %d not after join expiry %d: %w", now, m.JoinExpiryTS, ErrJoinNotExpired)
	}

	vault := m.vault(vaultBalance)

	plan, err := vault.pay(nil, m.PlayerA, m.Stake, TransferRefund)
	if err != nil {
		return nil, fmt.Errorf("refund player a: %w", err)
	}

	return m.close(StateCancelled, &vault, plan, now)
}

// CancelActive is the server authority's abort. On an unjoined match the
// whole vault returns to player A; on an active match playerB must name
// the stored opponent, who gets the stake back before A receives the rest.
func (m *Match) CancelActive(cfg *Config, caller, playerB Identity, vaultBalance uint64, now int64) (*Outcome, error) {
	err := m.authorityGuard(cfg, caller)
	if err != nil {
		return nil, err
	}

	vault := m.vault(vaultBalance)

	var plan []Transfer

	switch m.State {
	case StateWaitingForB:
		plan, err = vault.pay(nil, m.PlayerA, m.Stake, TransferRefund)
		if err != nil {
			return nil, fmt.Errorf("refund player a: %w", err)
		}

	case StateActive:
		if playerB.IsZero() || playerB != m.PlayerB {
			return nil, fmt.Errorf("player b %q: %w", playerB, ErrInvalidPlayerB)
		}

		plan, err = vault.pay(nil, m.PlayerB, m.Stake, TransferRefund)
		if err != nil {
			return nil, fmt.Errorf("refund player b: %w", err)
		}

		plan, err = vault.pay(plan, m.PlayerA, m.Stake, TransferRefund)
		if err != nil {
			return nil, fmt.Errorf("refund player a: %w", err)
		}

	default:
		return nil, fmt.Errorf("cancel in state %s: %w", m.State, ErrInvalidState)
	}

	return m.close(StateCancelled, &vault, plan, now)
}

// TimeoutRefund unwinds an active match nobody settled before the
// deadline. Any caller may trigger it and no fee is taken.
func (m *Match) TimeoutRefund(vaultBalance uint64, now int64) (*Outcome, error) {
	err := m.checkVault()
	if err != nil {
		return nil, err
	}

	err = m.requireState(StateActive)
	if err != nil {
		return nil, err
	}

	if now <= m.SettleDeadlineTS {
		return nil, fmt.Errorf("now %d not after settle deadline %d: %w", now, m.SettleDeadlineTS, ErrSettlementDeadlineNotReached)
	}

	vault := m.vault(vaultBalance)

	plan, err := vault.pay(nil, m.PlayerA, m.Stake, TransferRefund)
	if err != nil {
		return nil, fmt.Errorf("refund player a: %w", err)
	}

	plan, err = vault.pay(plan, m.PlayerB, m.Stake, TransferRefund)
	if err != nil {
		return nil, fmt.Errorf("refund player b: %w", err)
	}

	return m.close(StateRefunded, &vault, plan, now)
}

// expectedVaultBalance is what the vault must hold in the current state.
func (m *Match) expectedVaultBalance() (uint64, error) {
	switch m.State {
	case StateWaitingForB:
		return addChecked(m.Stake, m.Reserve)
	case StateActive:
		pot, err := addChecked(m.Stake, m.Stake)
		if err != nil {
			return 0, err
		}

		return addChecked(pot, m.Reserve)
	default:
		return 0, nil
	}
}

func (m *Match) close(state State, vault *Vault, plan []Transfer, now int64) (*Outcome, error) {
	plan, err := vault.sweep(plan, m.PlayerA)
	if err != nil {
		return nil, fmt.Errorf("sweep vault: %w", err)
	}

	m.State = state

	return &Outcome{
		Match:     *m,
		Transfers: plan,
		ClosedAt:  now,
	}, nil
}

func (m *Match) vault(balance uint64) Vault {
	return Vault{Address: m.Vault, Balance: balance}
}

func (m *Match) requireState(want State) error {
	if m.State != want {
		return fmt.Errorf("match %s is %s, want %s: %w", m.ID, m.State, want, ErrInvalidState)
	}

	return nil
}

// checkVault rejects a record whose vault binding does not derive from its
// own id; such a record cannot authorize transfers out of any vault.
func (m *Match) checkVault() error {
	if m.Vault != DeriveVault(m.ID) {
		return fmt.Errorf("vault %q not derived from match %s: %w", m.Vault, m.ID, ErrUnauthorized)
	}

	return nil
}

func (m *Match) authorityGuard(cfg *Config, caller Identity) error {
	if cfg == nil {
		return ErrConfigNotInitialized
	}

	err := m.checkVault()
	if err != nil {
		return err
	}

	return cfg.requireServerAuthority(caller)
}
