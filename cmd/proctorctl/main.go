// Command proctorctl inspects and operates on scheduled evaluations directly
// against the configured data store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/ahrav/go-proctor/internal/bootstrap"
	"github.com/ahrav/go-proctor/internal/catalog"
	"github.com/ahrav/go-proctor/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp(os.Stdout, os.Stderr).run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "proctorctl: %v\n", err)
		os.Exit(1)
	}
}

// app holds the state shared by every subcommand.
type app struct {
	cfg    *config.Config
	out    io.Writer
	errOut io.Writer

	res     *bootstrap.Resources
	catalog *catalog.Catalog
}

func newApp(out, errOut io.Writer) *app {
	return &app{cfg: config.DefaultConfig(), out: out, errOut: errOut}
}

func (a *app) run(ctx context.Context, args []string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	rootFlags := flag.NewFlagSet("proctorctl", flag.ContinueOnError)
	rootFlags.SetOutput(a.errOut)
	rootFlags.String("config", "", "JSON config file (optional)")
	config.RegisterFlags(rootFlags, a.cfg)

	root := &ffcli.Command{
		Name:       "proctorctl",
		ShortUsage: "proctorctl [flags] <subcommand> [flags] [args...]",
		FlagSet:    rootFlags,
		Options:    config.Options(),
		Subcommands: []*ffcli.Command{
			a.evaluationsCmd(),
			a.reconcileCmd(),
			a.keysCmd(),
			a.registerCmd(),
			a.gradeCmd(),
			a.parseCmd(),
			a.catalogCmd(),
		},
		Exec: func(context.Context, []string) error { return flag.ErrHelp },
	}
	defer a.close()
	return root.ParseAndRun(ctx, args)
}

// open connects the configured backends on first use.
func (a *app) open(ctx context.Context) error {
	if a.res != nil {
		return nil
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	logger := config.NewLogger(a.cfg.Log, a.errOut)
	slog.SetDefault(logger)

	res, err := bootstrap.Open(ctx, a.cfg, logger)
	if err != nil {
		return err
	}
	a.res = res
	a.catalog = catalog.New(res.Store, res.Redis, a.cfg.Redis.CatalogTTL)
	return nil
}

func (a *app) close() {
	if a.res == nil {
		return
	}
	if err := a.res.Close(); err != nil {
		fmt.Fprintf(a.errOut, "close backends: %v\n", err)
	}
	a.res = nil
}
