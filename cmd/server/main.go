package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/cinemagames-backend/internal/config"
	"github.com/DoyleJ11/cinemagames-backend/internal/engine"
	"github.com/DoyleJ11/cinemagames-backend/internal/export"
	"github.com/DoyleJ11/cinemagames-backend/internal/httpapi"
	"github.com/DoyleJ11/cinemagames-backend/internal/hub"
	"github.com/DoyleJ11/cinemagames-backend/internal/logging"
	"github.com/DoyleJ11/cinemagames-backend/internal/storage"
	"github.com/DoyleJ11/cinemagames-backend/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	store, err := storage.Open(ctx, cfg.Storage.URI, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	exporter := export.New(store,
		export.WithPrefix(cfg.Storage.Prefix),
		export.WithMaxRetries(cfg.Export.MaxRetries),
		export.WithTimeout(cfg.Export.Timeout),
		export.WithLogger(logger),
	)

	h := hub.NewHub(context.Background(),
		hub.WithRules(engine.Rules{StrictUsernames: cfg.StrictUsernames}),
		hub.WithLogger(logger),
	)

	table := ws.NewTable(logger)
	router := ws.NewRouter(h, table, exporter, logger)
	wsHandler := ws.Handler(router, ws.Options{
		OriginPatterns: cfg.HTTP.AllowedOrigins,
		WriteTimeout:   cfg.WS.WriteTimeout,
		ReadLimit:      cfg.WS.ReadLimit,
	}, logger)

	// Build the router *with* the hub injected
	apiSrv := &http.Server{
		Addr: cfg.HTTP.Listen,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Hub:            h,
			Conns:          table,
			WS:             wsHandler,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			Logger:         logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	servers := []*http.Server{apiSrv}
	if cfg.WS.Listen != "" {
		servers = append(servers, &http.Server{
			Addr:              cfg.WS.Listen,
			Handler:           wsHandler,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		eg.Go(func() error {
			logger.Info("listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	eg.Go(func() error {
		<-egCtx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		var errs error
		for _, srv := range servers {
			errs = multierr.Append(errs, srv.Shutdown(shutdownCtx))
		}
		h.Shutdown()
		errs = multierr.Append(errs, exporter.Close(shutdownCtx))
		errs = multierr.Append(errs, store.Close())
		return errs
	})

	if err := eg.Wait(); err != nil {
		logger.Error("server stopped", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
