package dedup

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DorusKeijzer/Woonitor/internal/logger"
)

func testTracker(t *testing.T) *Tracker {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewTracker(client, logger.NewNop())
}

func TestTrackerAdd(t *testing.T) {
	tracker := testTracker(t)
	ctx := context.Background()

	const url = "https://www.funda.nl/detail/koop/tilburg/huis-1/12345678/"

	added, err := tracker.Add(ctx, url)
	require.NoError(t, err)
	assert.True(t, added, "first add should report new")

	added, err = tracker.Add(ctx, url)
	require.NoError(t, err)
	assert.False(t, added, "second add should report seen")
}

func TestTrackerContains(t *testing.T) {
	tracker := testTracker(t)
	ctx := context.Background()

	ok, err := tracker.Contains(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = tracker.Add(ctx, "known")
	require.NoError(t, err)

	ok, err = tracker.Contains(ctx, "known")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTrackerSizeAndClear(t *testing.T) {
	tracker := testTracker(t)
	ctx := context.Background()

	for _, url := range []string{"a", "b", "c"} {
		_, err := tracker.Add(ctx, url)
		require.NoError(t, err)
	}

	n, err := tracker.Size(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	require.NoError(t, tracker.Clear(ctx))

	n, err = tracker.Size(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// A cleared set starts accepting everything again.
	added, err := tracker.Add(ctx, "a")
	require.NoError(t, err)
	assert.True(t, added)
}
