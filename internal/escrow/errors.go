package escrow

import "errors"

var (
	ErrUnauthorized                 = errors.New("unauthorized")
	ErrInvalidState                 = errors.New("invalid state transition")
	ErrInvalidStake                 = errors.New("stake must be positive")
	ErrInvalidWinner                = errors.New("winner must be player a or player b")
	ErrInvalidPlayerB               = errors.New("player b does not match match state")
	ErrJoinExpired                  = errors.New("join window expired")
	ErrJoinNotExpired               = errors.New("join window not expired")
	ErrSettlementDeadlineNotReached = errors.New("settlement deadline not reached")
	ErrMathOverflow                 = errors.New("math overflow")

	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInvalidWindow        = errors.New("window length must not be negative")
	ErrInvalidIdentity      = errors.New("invalid identity")
	ErrConfigNotInitialized = errors.New("config not initialized")
	ErrConfigExists         = errors.New("config already initialized")
	ErrMatchNotFound        = errors.New("match not found")
)

// reasons is ordered: the first sentinel matched wins, so wrapped
// combinations such as InvalidState+MatchNotFound report invalid_state.
var reasons = []struct {
	err  error
	code string
}{
	{ErrUnauthorized, "unauthorized"},
	{ErrInvalidState, "invalid_state"},
	{ErrInvalidStake, "invalid_stake"},
	{ErrInvalidWinner, "invalid_winner"},
	{ErrInvalidPlayerB, "invalid_player_b"},
	{ErrJoinExpired, "join_expired"},
	{ErrJoinNotExpired, "join_not_expired"},
	{ErrSettlementDeadlineNotReached, "settlement_deadline_not_reached"},
	{ErrMathOverflow, "math_overflow"},
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrInvalidWindow, "invalid_window"},
	{ErrInvalidIdentity, "invalid_identity"},
	{ErrConfigNotInitialized, "config_not_initialized"},
	{ErrConfigExists, "config_exists"},
	{ErrMatchNotFound, "match_not_found"},
}

// Reason returns a stable snake_case code for err, "ok" for nil and
// "internal" for anything outside the escrow taxonomy.
func Reason(err error) string {
	if err == nil {
		return "ok"
	}

	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.code
		}
	}

	return "internal"
}
