// Command proctord serves the evaluation scheduling API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ahrav/go-proctor/internal/api"
	"github.com/ahrav/go-proctor/internal/bootstrap"
	"github.com/ahrav/go-proctor/internal/catalog"
	"github.com/ahrav/go-proctor/internal/config"
	"github.com/ahrav/go-proctor/internal/worker"
	"github.com/ahrav/go-proctor/pkg/events"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "proctord: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load("proctord", args)
	if err != nil {
		return err
	}
	logger := config.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("failed to close backends", "error", err)
		}
	}()

	instance := api.Instance{ID: bootstrap.InstanceID(), Name: bootstrap.InstanceName("proctord")}
	srv := api.New(res.Store, catalog.New(res.Store, res.Redis, cfg.Redis.CatalogTTL)).
		WithPublisher(events.NewPublisher(res.Events, api.EventSource)).
		WithConcurrency(cfg.Concurrency).
		WithInstance(instance)

	if cfg.Temporal.HostPort != "" {
		tc, err := worker.Dial(ctx, cfg.Temporal, logger)
		if err != nil {
			return err
		}
		defer tc.Close()
		srv.WithStarter(worker.NewStarter(tc, cfg.Temporal.TaskQueue))
	}

	return serve(ctx, cfg.HTTP, srv.Handler(), logger.With("instance", instance.Name))
}

func serve(ctx context.Context, cfg config.HTTPConfig, h http.Handler, logger *slog.Logger) error {
	httpSrv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", "addr", cfg.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
