package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"kycgate/internal/platform/config"
)

// New builds the API server. Read and write timeouts come from config since
// a submission carries three images; net/http errors go to the slog handler.
func New(cfg config.Server, handler http.Handler, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       2 * cfg.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
}
