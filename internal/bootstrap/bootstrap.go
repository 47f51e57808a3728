// Package bootstrap opens the backends selected by a config.Config: the
// data store, the Redis client, and the event sink shared by the server and
// the worker.
package bootstrap

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"

	"github.com/nats-io/nuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	hashids "github.com/speps/go-hashids"

	"github.com/ahrav/go-proctor/internal/api"
	"github.com/ahrav/go-proctor/internal/catalog"
	"github.com/ahrav/go-proctor/internal/config"
	"github.com/ahrav/go-proctor/internal/store/memory"
	"github.com/ahrav/go-proctor/internal/store/postgres"
	"github.com/ahrav/go-proctor/internal/store/remote"
	"github.com/ahrav/go-proctor/pkg/events"
)

// Backend is a complete data service.
type Backend interface {
	api.Store
	catalog.Source
}

// Resources are the opened backends of a process.
type Resources struct {
	Store  Backend
	Redis  redis.UniversalClient
	Events events.EventSink

	closers []func() error
}

// Open connects every backend cfg enables. On error everything opened so far
// is closed.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Resources, error) {
	r := &Resources{}
	store, err := r.openStore(ctx, cfg)
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	r.Store = store

	if cfg.Redis.Enabled() {
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			_ = r.Close()
			return nil, pkgerrors.Wrapf(err, "ping redis %s", cfg.Redis.Addr)
		}
		r.Redis = client
		r.closers = append(r.closers, client.Close)
	}

	switch {
	case r.Redis != nil && cfg.Redis.EventStream != "":
		r.Events = events.NewRedisStreamSink(r.Redis, cfg.Redis.EventStream, cfg.Redis.EventMaxLen)
	default:
		r.Events = events.NewLogSink(logger)
	}

	logger.InfoContext(ctx, "backends opened",
		"store", cfg.Store,
		"redis", cfg.Redis.Enabled(),
		"event_stream", cfg.Redis.EventStream)
	return r, nil
}

func (r *Resources) openStore(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.Store {
	case config.StorePostgres:
		s, err := postgres.Open(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, s.Close)
		if cfg.Database.AutoMigrate {
			if err := s.Migrate(ctx); err != nil {
				return nil, err
			}
		}
		return s, nil

	case config.StoreRemote:
		return remote.New(cfg.Remote.BaseURL, remote.Options{
			Token:             cfg.Remote.Token,
			Timeout:           cfg.Remote.Timeout,
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
			Retry:             cfg.Retry,
		})

	default:
		s := memory.New()
		if cfg.Seed == "" {
			return s, nil
		}
		f, err := os.Open(cfg.Seed)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "open seed file")
		}
		defer f.Close()
		if err := s.SeedJSON(f); err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Close releases every opened backend in reverse order.
func (r *Resources) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// InstanceID returns a unique id for this process.
func InstanceID() string { return nuid.Next() }

// InstanceName returns a short random name for this process, prefixed with
// prefix. It falls back to prefix alone when no name can be generated.
func InstanceName(prefix string) string {
	n, err := rand.Int(rand.Reader, big.NewInt(10_000_000))
	if err != nil {
		return prefix
	}
	hd := hashids.NewData()
	hd.Salt = "go-proctor instance names"
	hd.MinLength = 5
	h, err := hashids.NewWithData(hd)
	if err != nil {
		return prefix
	}
	name, err := h.EncodeInt64([]int64{n.Int64()})
	if err != nil {
		return prefix
	}
	return fmt.Sprintf("%s-%s", prefix, name)
}
