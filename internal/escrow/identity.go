package escrow

import (
	"encoding/hex"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

const (
	vaultPrefix       = "vault:"
	maxIdentityLength = 128
)

var vaultSeed = []byte("vault")

// Identity is an opaque participant or account identifier. Authentication
// happens upstream; the core only compares identities.
type Identity string

// ParseIdentity validates a caller-supplied identity. Vault identities are
// rejected because they are only ever derived, never supplied.
func ParseIdentity(raw string) (Identity, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty identity: %w", ErrInvalidIdentity)
	}

	if len(s) > maxIdentityLength {
		return "", fmt.Errorf("identity longer than %d bytes: %w", maxIdentityLength, ErrInvalidIdentity)
	}

	if strings.HasPrefix(s, vaultPrefix) {
		return "", fmt.Errorf("vault identity %q: %w", s, ErrInvalidIdentity)
	}

	return Identity(s), nil
}

func (id Identity) String() string { return string(id) }

func (id Identity) IsZero() bool { return id == "" }

// IsVault reports whether id names a match vault.
func (id Identity) IsVault() bool { return strings.HasPrefix(string(id), vaultPrefix) }

// DeriveVault returns the custody account of a match. The identity is
// keccak256("vault" || matchID), so the vault is located and authorized
// from the match alone and no key material is stored.
func DeriveVault(matchID uuid.UUID) Identity {
	sum := ethcrypto.Keccak256(vaultSeed, matchID[:])

	return Identity(vaultPrefix + hex.EncodeToString(sum))
}

func validParticipant(id Identity) bool {
	return !id.IsZero() && !id.IsVault()
}
