package api

import (
	"net"
	"net/http"
	"strconv"

	"github.com/fastprodman/pvpescrow/internal/config"
)

// NewServer creates and returns a configured *http.Server for the escrow API.
func NewServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(int(cfg.Port))),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}
