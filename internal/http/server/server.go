package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dropDatabas3/toolgate/internal/config"
	"github.com/dropDatabas3/toolgate/internal/observability/logger"
)

const shutdownTimeout = 10 * time.Second

// NewHTTPServer aplica los timeouts de config.
func NewHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h,
		ReadTimeout:       config.Dur(cfg.Server.ReadTimeout, 15*time.Second),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      config.Dur(cfg.Server.WriteTimeout, 15*time.Second),
		IdleTimeout:       60 * time.Second,
	}
}

// Run sirve hasta que ctx se cancele y luego hace shutdown ordenado.
func Run(ctx context.Context, srv *http.Server) error {
	log := logger.From(ctx).With(logger.Component("http"))
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Info("shutting down")
	if err := srv.Shutdown(shCtx); err != nil {
		return err
	}
	return <-errCh
}
