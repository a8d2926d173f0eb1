//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-analyst/pkg/testhelpers"
)

func TestRedisStore_Integration(t *testing.T) {
	r := testhelpers.GetTestRedis(t)
	ctx := context.Background()

	s := NewRedisStore(r.Client, "test:"+t.Name()+":", time.Minute)

	_, ok, err := s.Get(ctx, "models/SKU_1_h")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "models/SKU_1_h", []byte("m1")))
	require.NoError(t, s.Put(ctx, "forecasts/SKU_1_h_30", []byte("f1")))
	require.NoError(t, s.Put(ctx, "models/SKU_2_h", []byte("m2")))

	data, ok, err := s.Get(ctx, "models/SKU_1_h")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "m1", string(data))

	ttl, err := r.Client.TTL(ctx, "test:"+t.Name()+":models/SKU_1_h").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, s.DeletePrefix(ctx, "models/SKU_1_"))
	_, ok, _ = s.Get(ctx, "models/SKU_1_h")
	assert.False(t, ok)
	_, ok, _ = s.Get(ctx, "models/SKU_2_h")
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "forecasts/SKU_1_h_30"))
	_, ok, _ = s.Get(ctx, "forecasts/SKU_1_h_30")
	assert.False(t, ok)
}
