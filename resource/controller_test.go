package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Queries(t *testing.T) {
	c := NewController(Config{MaxConcurrentQueries: 2})

	require.NoError(t, c.AcquireQuery(context.Background()))
	require.NoError(t, c.AcquireQuery(context.Background()))
	assert.Equal(t, int64(2), c.ActiveQueries())

	// Third slot is not available
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireQuery(ctx), context.DeadlineExceeded)
	assert.Equal(t, int64(2), c.ActiveQueries())

	c.ReleaseQuery()
	require.NoError(t, c.AcquireQuery(context.Background()))
	assert.Equal(t, int64(2), c.ActiveQueries())
}

func TestController_Unlimited(t *testing.T) {
	c := NewController(Config{})

	for range 100 {
		require.NoError(t, c.AcquireQuery(context.Background()))
	}
	assert.Equal(t, int64(100), c.ActiveQueries())
	require.NoError(t, c.AcquireWrite(context.Background(), 1_000_000))
	require.NoError(t, c.AcquireIO(context.Background(), 1<<30))
}

func TestController_Nil(t *testing.T) {
	var c *Controller

	require.NoError(t, c.AcquireQuery(context.Background()))
	c.ReleaseQuery()
	require.NoError(t, c.AcquireWrite(context.Background(), 10))
	require.NoError(t, c.AcquireIO(context.Background(), 10))
	assert.Equal(t, Config{}, c.Config())
	assert.Zero(t, c.ActiveQueries())
}

func TestController_WriteLimit(t *testing.T) {
	c := NewController(Config{WriteRecordsPerSec: 1, WriteBurst: 5})

	// The burst is available immediately.
	require.NoError(t, c.AcquireWrite(context.Background(), 5))

	// The bucket is now empty; the next record would wait about a second.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, c.AcquireWrite(ctx, 1))
}

func TestController_LargeBatchesAreSplit(t *testing.T) {
	c := NewController(Config{WriteRecordsPerSec: 1000, WriteBurst: 10})

	// 15 records exceed the burst but complete after a short wait.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.AcquireWrite(ctx, 15))
}
