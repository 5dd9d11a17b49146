package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	personacore "github.com/sigmaris/persona-core-go"
)

// ══════════════════════════════════════════════
// RedisStore tests (miniredis)
// ══════════════════════════════════════════════

func openTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func TestRedis_LoadLatestMissing(t *testing.T) {
	s, _ := openTestRedis(t)
	_, err := s.LoadLatest(context.Background(), "nope")
	assert.True(t, errors.Is(err, personacore.ErrNotFound))
}

func TestRedis_SaveRoundTrip(t *testing.T) {
	s, mr := openTestRedis(t)
	ctx := context.Background()

	rec := testRecord("sess-1", 0.45)
	require.NoError(t, s.Save(ctx, rec))
	assert.NotEmpty(t, rec.ID)

	got, err := s.LoadLatest(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Traits, got.Traits)
	assert.Equal(t, rec.Reflection, got.Reflection)
	assert.Equal(t, rec.MetaSummary, got.MetaSummary)

	// One list element per save, under the default prefix.
	assert.Equal(t, 1, len(mr.Keys()))
	assert.Contains(t, mr.Keys(), "persona:sess-1:records")
}

func TestRedis_LoadLatestReturnsNewestAppend(t *testing.T) {
	s, _ := openTestRedis(t)
	ctx := context.Background()

	for _, calm := range []float64{0.40, 0.50, 0.62} {
		require.NoError(t, s.Save(ctx, testRecord("sess-1", calm)))
	}

	got, err := s.LoadLatest(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 0.62, got.Traits.Calm)

	history, err := s.History(ctx, "sess-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 0.40, history[0].Traits.Calm)
}

func TestRedis_HistoryLimitKeepsNewest(t *testing.T) {
	s, _ := openTestRedis(t)
	ctx := context.Background()

	for _, calm := range []float64{0.1, 0.2, 0.3, 0.4} {
		require.NoError(t, s.Save(ctx, testRecord("sess-1", calm)))
	}

	history, err := s.History(ctx, "sess-1", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 0.3, history[0].Traits.Calm)
	assert.Equal(t, 0.4, history[1].Traits.Calm)
}

func TestRedis_GrowthLog(t *testing.T) {
	s, _ := openTestRedis(t)
	ctx := context.Background()
	now := time.Now()

	prev := personacore.DefaultTraits()
	traits := personacore.TraitVector{Calm: 0.52, Empathy: 0.54, Curiosity: 0.5}
	require.NoError(t, s.AppendGrowth(ctx, personacore.NewGrowthLogEntry("sess-1", traits, prev, now)))
	require.NoError(t, s.AppendGrowth(ctx, personacore.NewGrowthLogEntry("sess-1", traits, traits, now)))

	log, err := s.GrowthLog(ctx, "sess-1", 0)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.InDelta(t, 0.02, log[0].Delta.Calm, 1e-9)
	assert.Equal(t, personacore.TraitVector{}, log[1].Delta)

	tail, err := s.GrowthLog(ctx, "sess-1", 1)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, log[1].ID, tail[0].ID)
}

func TestRedis_PruneHistory(t *testing.T) {
	s, _ := openTestRedis(t)
	ctx := context.Background()
	now := time.Now()

	for _, calm := range []float64{0.1, 0.2, 0.3, 0.4, 0.5} {
		rec := testRecord("sess-1", calm)
		require.NoError(t, s.Save(ctx, rec))
		require.NoError(t, s.AppendGrowth(ctx, personacore.NewGrowthLogEntry("sess-1", rec.Traits, rec.Traits, now)))
	}

	require.NoError(t, s.PruneHistory(ctx, "sess-1", 2))

	history, err := s.History(ctx, "sess-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 0.5, history[1].Traits.Calm, "prune must keep the latest row")

	log, err := s.GrowthLog(ctx, "sess-1", 0)
	require.NoError(t, err)
	assert.Len(t, log, 2)
}

func TestRedis_CustomPrefixIsolation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	a := NewRedisStore(client, RedisStoreConfig{Prefix: "tenant-a"})
	b := NewRedisStore(client, RedisStoreConfig{Prefix: "tenant-b"})
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, testRecord("sess-1", 0.3)))

	_, err := b.LoadLatest(ctx, "sess-1")
	assert.True(t, errors.Is(err, personacore.ErrNotFound), "prefixes must not share keys")

	got, err := a.LoadLatest(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 0.3, got.Traits.Calm)
}

func TestRedis_ServerDownSurfacesError(t *testing.T) {
	s, mr := openTestRedis(t)
	mr.Close()

	_, err := s.LoadLatest(context.Background(), "sess-1")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, personacore.ErrNotFound), "transport errors must not read as absence")
}
