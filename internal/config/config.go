package config

import "time"

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN,notEmpty"`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" envDefault:"30m"`
	// AppName is reported to the server as application_name.
	AppName string `env:"PG_APP_NAME" envDefault:"pvpescrow"`
}

// AuthConfig holds the HS256 secret used to verify caller bearer tokens.
type AuthConfig struct {
	JWTSecret string        `env:"AUTH_JWT_SECRET,notEmpty"`
	Issuer    string        `env:"AUTH_JWT_ISSUER" envDefault:"pvpescrow"`
	Leeway    time.Duration `env:"AUTH_JWT_LEEWAY" envDefault:"30s"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	Burst             int     `env:"RATE_LIMIT_BURST" envDefault:"40"`
}

// EscrowConfig carries deployment parameters of the escrow core.
type EscrowConfig struct {
	VaultReserve uint64 `env:"ESCROW_VAULT_RESERVE" envDefault:"0"`
}

type KeeperConfig struct {
	Enabled   bool          `env:"KEEPER_ENABLED" envDefault:"true"`
	Interval  time.Duration `env:"KEEPER_INTERVAL" envDefault:"30s"`
	BatchSize int           `env:"KEEPER_BATCH_SIZE" envDefault:"50"`
	// Caller is the identity recorded as the trigger of keeper refunds.
	Caller string `env:"KEEPER_CALLER" envDefault:"keeper"`
}

// HTTPConfig bounds every phase of a client connection to the API.
type HTTPConfig struct {
	Port              uint16        `env:"APP_PORT" envDefault:"8080"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
}
