package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/circulation-backend/internal/app/overdue"
	"github.com/heartmarshall/circulation-backend/internal/config"
	"github.com/heartmarshall/circulation-backend/internal/transport/middleware"
	"github.com/heartmarshall/circulation-backend/internal/transport/rest"
)

// Run is the application entry point. It loads configuration, opens storage,
// then serves HTTP and runs the overdue scanner until ctx is cancelled.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Log)

	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
		slog.String("storage", cfg.Storage.Driver),
	)

	svc, err := Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	return Serve(ctx, cfg, logger, svc)
}

// Serve runs the HTTP server and the overdue scanner side by side. It returns
// after both have stopped.
func Serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, svc *Services) error {
	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      NewHandler(cfg, logger, svc),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	scanner := overdue.NewScanner(logger, svc.Lending, cfg.Lending.OverdueScanInterval)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()

		logger.Info("shutting down http server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return scanner.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("application stopped")
	return nil
}

// NewHandler builds the routed HTTP handler wrapped in the middleware chain.
func NewHandler(cfg *config.Config, logger *slog.Logger, svc *Services) http.Handler {
	router := rest.NewRouter(
		rest.NewCatalogHandler(svc.Catalog, svc.Lending, logger),
		rest.NewLoanHandler(svc.Lending, logger),
		rest.NewHealthHandler(svc.Storage, cfg.Storage.Driver, BuildVersion()),
	)

	return middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.CORS(cfg.CORS),
	)(router)
}
