// Package catalog serves read-only reference data (sites, cycles, sections,
// careers, and section cycles) through a Redis cache-aside layer in front of
// the data service.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ahrav/go-proctor/internal/domain"
)

// KeyPrefix prefixes every cache key written by Catalog.
const KeyPrefix = "proctor:catalog:"

// Source is the authoritative catalog. Empty listings may be reported as
// domain.ErrNotFound.
type Source interface {
	ListSites(ctx context.Context) ([]domain.Site, error)
	ListCycles(ctx context.Context) ([]domain.Cycle, error)
	ListSections(ctx context.Context) ([]domain.Section, error)
	ListCareers(ctx context.Context) ([]domain.Career, error)
	// ListSectionCycles lists the section cycles of cycleID, or all of them
	// when cycleID is zero.
	ListSectionCycles(ctx context.Context, cycleID int64) ([]domain.SectionCycle, error)
	SectionCycle(ctx context.Context, id int64) (domain.SectionCycle, error)
}

// Stats counts cache outcomes.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Errors int64 `json:"errors"`
}

// Catalog reads through to a Source, caching results in Redis for ttl.
// A nil client disables caching. Redis failures are logged and the Source
// is used directly.
type Catalog struct {
	source Source
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger

	hits     atomic.Int64
	misses   atomic.Int64
	failures atomic.Int64
}

// New creates a Catalog.
func New(source Source, client redis.UniversalClient, ttl time.Duration) *Catalog {
	return &Catalog{
		source: source,
		client: client,
		ttl:    ttl,
		logger: slog.Default().With("component", "catalog"),
	}
}

// Stats returns the cache counters.
func (c *Catalog) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Errors: c.failures.Load()}
}

// Sites lists the sites. A missing listing is empty.
func (c *Catalog) Sites(ctx context.Context) ([]domain.Site, error) {
	return cachedList(ctx, c, "sites", c.source.ListSites)
}

// Cycles lists the academic cycles. A missing listing is empty.
func (c *Catalog) Cycles(ctx context.Context) ([]domain.Cycle, error) {
	return cachedList(ctx, c, "cycles", c.source.ListCycles)
}

// Sections lists the sections. A missing listing is empty.
func (c *Catalog) Sections(ctx context.Context) ([]domain.Section, error) {
	return cachedList(ctx, c, "sections", c.source.ListSections)
}

// Careers lists the careers. A missing listing is empty.
func (c *Catalog) Careers(ctx context.Context) ([]domain.Career, error) {
	return cachedList(ctx, c, "careers", c.source.ListCareers)
}

// SectionCycles lists the section cycles of cycleID; zero lists all.
func (c *Catalog) SectionCycles(ctx context.Context, cycleID int64) ([]domain.SectionCycle, error) {
	return cachedList(ctx, c, "section-cycles:"+strconv.FormatInt(cycleID, 10),
		func(ctx context.Context) ([]domain.SectionCycle, error) {
			return c.source.ListSectionCycles(ctx, cycleID)
		})
}

// SectionCycle returns section cycle id. It satisfies section.Lookup.
func (c *Catalog) SectionCycle(ctx context.Context, id int64) (domain.SectionCycle, error) {
	key := KeyPrefix + "section-cycle:" + strconv.FormatInt(id, 10)
	var sc domain.SectionCycle
	if c.get(ctx, key, &sc) {
		return sc, nil
	}
	sc, err := c.source.SectionCycle(ctx, id)
	if err != nil {
		return domain.SectionCycle{}, err
	}
	c.set(ctx, key, sc)
	return sc, nil
}

// Invalidate drops every cached catalog entry.
func (c *Catalog) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, KeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan catalog keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete catalog keys: %w", err)
	}
	return nil
}

func cachedList[T any](ctx context.Context, c *Catalog, name string, load func(context.Context) ([]T, error)) ([]T, error) {
	key := KeyPrefix + name
	var items []T
	if c.get(ctx, key, &items) {
		return items, nil
	}
	items, err := load(ctx)
	if items, err = domain.NotFoundAsEmpty(items, err); err != nil {
		return nil, fmt.Errorf("list %s: %w", name, err)
	}
	c.set(ctx, key, items)
	return items, nil
}

// get decodes the cached value of key into dst and reports a hit.
func (c *Catalog) get(ctx context.Context, key string, dst any) bool {
	if c.client == nil {
		return false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		c.misses.Add(1)
		return false
	case err != nil:
		c.failures.Add(1)
		c.logger.WarnContext(ctx, "catalog cache read failed", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.failures.Add(1)
		c.logger.WarnContext(ctx, "discarding corrupt catalog entry", "key", key, "error", err)
		_ = c.client.Del(ctx, key).Err()
		return false
	}
	c.hits.Add(1)
	return true
}

func (c *Catalog) set(ctx context.Context, key string, v any) {
	if c.client == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.WarnContext(ctx, "catalog entry not cacheable", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.failures.Add(1)
		c.logger.WarnContext(ctx, "catalog cache write failed", "key", key, "error", err)
	}
}
