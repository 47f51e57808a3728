package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-proctor/internal/domain"
)

type fakeSource struct {
	sites  []domain.Site
	cycles []domain.SectionCycle
	calls  int
	err    error
}

func (f *fakeSource) ListSites(context.Context) ([]domain.Site, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.sites) == 0 {
		return nil, domain.ErrNotFound
	}
	return f.sites, nil
}

func (f *fakeSource) ListCycles(context.Context) ([]domain.Cycle, error) {
	f.calls++
	return nil, domain.ErrNotFound
}

func (f *fakeSource) ListSections(context.Context) ([]domain.Section, error) {
	f.calls++
	return []domain.Section{{ID: 1, Name: "A"}}, nil
}

func (f *fakeSource) ListCareers(context.Context) ([]domain.Career, error) {
	f.calls++
	return []domain.Career{{ID: 1, Name: "Engineering"}}, nil
}

func (f *fakeSource) ListSectionCycles(_ context.Context, cycleID int64) ([]domain.SectionCycle, error) {
	f.calls++
	var out []domain.SectionCycle
	for _, sc := range f.cycles {
		if cycleID == 0 || sc.CycleID == cycleID {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (f *fakeSource) SectionCycle(_ context.Context, id int64) (domain.SectionCycle, error) {
	f.calls++
	for _, sc := range f.cycles {
		if sc.ID == id {
			return sc, nil
		}
	}
	return domain.SectionCycle{}, domain.ErrNotFound
}

func TestCatalog_WithoutCache(t *testing.T) {
	src := &fakeSource{
		sites:  []domain.Site{{ID: 1, Name: "North"}},
		cycles: []domain.SectionCycle{{ID: 5, CycleID: 2, Name: "2A"}, {ID: 6, CycleID: 3, Name: "3A"}},
	}
	c := New(src, nil, time.Minute)
	ctx := context.Background()

	sites, err := c.Sites(ctx)
	require.NoError(t, err)
	assert.Equal(t, src.sites, sites)

	cycles, err := c.Cycles(ctx)
	require.NoError(t, err)
	assert.Empty(t, cycles)
	assert.NotNil(t, cycles)

	scs, err := c.SectionCycles(ctx, 3)
	require.NoError(t, err)
	require.Len(t, scs, 1)
	assert.Equal(t, int64(6), scs[0].ID)

	sc, err := c.SectionCycle(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "2A", sc.Name)

	_, err = c.SectionCycle(ctx, 99)
	require.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, Stats{}, c.Stats())
	require.NoError(t, c.Invalidate(ctx))
}

func TestCatalog_SourceErrorPropagates(t *testing.T) {
	src := &fakeSource{err: &domain.RemoteError{Op: "list sites", Status: 503}}
	_, err := New(src, nil, time.Minute).Sites(context.Background())
	require.ErrorIs(t, err, domain.ErrRemote)
}

func TestCatalog_FallsThroughWhenRedisIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	src := &fakeSource{sites: []domain.Site{{ID: 1, Name: "North"}}}
	c := New(src, client, time.Minute)

	sites, err := c.Sites(context.Background())
	require.NoError(t, err)
	assert.Len(t, sites, 1)
	assert.Equal(t, 1, src.calls)

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Errors)
	assert.Zero(t, stats.Hits)
}

func TestCatalog_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &fakeSource{err: context.Canceled}
	_, err := New(src, nil, time.Minute).Sites(ctx)
	require.True(t, errors.Is(err, context.Canceled))
}
