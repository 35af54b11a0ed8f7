package escrow

import "fmt"

const (
	// FeeBps is the protocol fee, fixed at deployment.
	FeeBps uint64 = 1500
	// BpsDenominator is 100% in basis points.
	BpsDenominator uint64 = 10_000
)

// Config is the deployment singleton. It is written once and read by
// every transition.
type Config struct {
	Admin           Identity
	ServerAuthority Identity
	FeeBps          uint64
	FeeVault        Identity
	// VaultReserve is deposited by player A on creation on top of the
	// stake and returned to player A when the match closes.
	VaultReserve uint64
	CreatedAt    int64
}

func NewConfig(admin, serverAuthority, feeVault Identity, vaultReserve uint64, now int64) (*Config, error) {
	for _, f := range []struct {
		name string
		id   Identity
	}{
		{"admin", admin},
		{"server authority", serverAuthority},
		{"fee vault", feeVault},
	} {
		if !validParticipant(f.id) {
			return nil, fmt.Errorf("%s %q: %w", f.name, f.id, ErrInvalidIdentity)
		}
	}

	return &Config{
		Admin:           admin,
		ServerAuthority: serverAuthority,
		FeeBps:          FeeBps,
		FeeVault:        feeVault,
		VaultReserve:    vaultReserve,
		CreatedAt:       now,
	}, nil
}

func (c *Config) requireServerAuthority(caller Identity) error {
	if caller.IsZero() || caller != c.ServerAuthority {
		return fmt.Errorf("caller %q is not the server authority: %w", caller, ErrUnauthorized)
	}

	return nil
}
