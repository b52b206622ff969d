package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/geodata-search/internal/core/config"
	"github.com/mohammed-shakir/geodata-search/internal/core/health"
	middleware "github.com/mohammed-shakir/geodata-search/internal/core/middleware"
	"github.com/mohammed-shakir/geodata-search/internal/core/router"
	"github.com/mohammed-shakir/geodata-search/internal/metrics"
)

type Deps struct {
	Search router.SearchHandler
	// nil disables the /snapshots routes
	Snapshots router.SnapshotReader
	// mounted on the main router unless it has its own listener
	Metrics *metrics.Provider
	Ready   map[string]health.Checker
}

func NewRouter(logger *slog.Logger, d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(d.Ready))
	if d.Metrics != nil && d.Metrics.Mounted() {
		r.Get(d.Metrics.Path(), d.Metrics.Handler().ServeHTTP)
	}
	r.Get("/search", router.HandleSearch(logger, d.Search))
	if d.Snapshots != nil {
		r.Get("/snapshots", router.HandleSnapshotList(logger, d.Snapshots))
		r.Get("/snapshots/{key}", router.HandleSnapshot(logger, d.Snapshots))
	}
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, d Deps) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(logger, d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// fallback tiers can page through many upstream requests
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
