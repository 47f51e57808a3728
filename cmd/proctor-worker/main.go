// Command proctor-worker runs the Temporal worker executing bulk
// registration workflows.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/go-proctor/internal/bootstrap"
	"github.com/ahrav/go-proctor/internal/config"
	"github.com/ahrav/go-proctor/internal/worker"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "proctor-worker: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load("proctor-worker", args)
	if err != nil {
		return err
	}
	if cfg.Temporal.HostPort == "" {
		return errors.New("temporal-host is required")
	}
	logger := config.NewLogger(cfg.Log, os.Stderr).With("instance", bootstrap.InstanceName("worker"))
	slog.SetDefault(logger)

	ctx := context.Background()
	res, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("failed to close backends", "error", err)
		}
	}()

	tc, err := worker.Dial(ctx, cfg.Temporal, logger)
	if err != nil {
		return err
	}
	defer tc.Close()

	w := worker.New(tc, cfg.Temporal, worker.Dependencies{
		Registrations: res.Store,
		Enrollments:   res.Store,
		Events:        res.Events,
	})
	logger.Info("worker starting", "task_queue", cfg.Temporal.TaskQueue, "store", cfg.Store)
	if err := w.Run(sdkworker.InterruptCh()); err != nil {
		return fmt.Errorf("run worker: %w", err)
	}
	return nil
}
