package api

import (
	"net/http"
	"time"

	"github.com/angelmondragon/sharedlists-backend/pkg/config"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
)

// NewServer wraps handler in an http.Server bound to the configured port.
// Read and write timeouts stay unset because live channel connections are long lived.
func NewServer(cfg config.AppConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
}
