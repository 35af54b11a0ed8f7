package settings

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fastprodman/pvpescrow/internal/escrow"
)

var (
	ErrNotInitialized = errors.New("config not initialized")
	ErrAlreadyExists  = errors.New("config already initialized")
)

// Settings stores the deployment config singleton. There is no update
// path: the row is written once.
type Settings interface {
	Insert(tx *sql.Tx, cfg escrow.Config) error
	Get(ctx context.Context) (escrow.Config, error)
	// GetTx reads the config with a shared lock so it cannot change under
	// a running transition.
	GetTx(tx *sql.Tx) (escrow.Config, error)
}
