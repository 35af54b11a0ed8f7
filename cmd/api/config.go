package main

import (
	"log/slog"
	"time"

	"github.com/fastprodman/pvpescrow/internal/config"
	"github.com/fastprodman/pvpescrow/internal/infra/logging"
)

type apiConfig struct {
	LogLevel        slog.Level    `env:"APP_LOG_LEVEL" envDefault:"INFO"`
	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	HTTP            config.HTTPConfig
	Log             logging.FileConfig
	Postgres        config.PostgresConfig
	Auth            config.AuthConfig
	RateLimit       config.RateLimitConfig
	Escrow          config.EscrowConfig
	Keeper          config.KeeperConfig
}
