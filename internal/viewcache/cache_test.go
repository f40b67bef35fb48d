package viewcache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetSetInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	_, err := c.Get(ctx, ViewProjects)
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, ViewProjects, []byte(`[1]`), time.Minute))
	require.NoError(t, c.Set(ctx, ViewProjects+":org-1", []byte(`[2]`), time.Minute))
	require.NoError(t, c.Set(ctx, ViewOrganizations, []byte(`[3]`), time.Minute))

	got, err := c.Get(ctx, ViewProjects)
	require.NoError(t, err)
	assert.Equal(t, `[1]`, string(got))

	require.NoError(t, c.Invalidate(ctx, ViewProjects))
	_, err = c.Get(ctx, ViewProjects)
	assert.ErrorIs(t, err, ErrMiss)
	_, err = c.Get(ctx, ViewProjects+":org-1")
	assert.ErrorIs(t, err, ErrMiss)

	_, err = c.Get(ctx, ViewOrganizations)
	assert.NoError(t, err)
}

func TestMemoryExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemory()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))
	now = now.Add(2 * time.Second)
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestNewWithoutRedisURLIsMemory(t *testing.T) {
	c, err := New(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "memory", c.Mode())
}

// Runs against a live server only when SASHI_TEST_REDIS_URL is set.
func TestRedisRoundTrip(t *testing.T) {
	url := os.Getenv("SASHI_TEST_REDIS_URL")
	if url == "" {
		t.Skip("SASHI_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	ctx := context.Background()
	c := NewRedis(client, "sashi:test:"+uuid.NewString()+":")

	require.NoError(t, c.Set(ctx, ViewOrganizations, []byte("x"), time.Minute))
	got, err := c.Get(ctx, ViewOrganizations)
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))

	require.NoError(t, c.Invalidate(ctx, ViewOrganizations))
	_, err = c.Get(ctx, ViewOrganizations)
	assert.ErrorIs(t, err, ErrMiss)
}
