package bigcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider(t *testing.T) {
	ctx := context.Background()
	_, err := New(ctx, Config{})
	require.Error(t, err)

	p, err := New(ctx, Config{LifeWindow: time.Hour, MaxEntrySize: 256, HardMaxCacheSizeMB: 8})
	require.NoError(t, err)
	defer p.Close(ctx)

	_, hit, err := p.Get(ctx, "retain:app:editor")
	require.NoError(t, err)
	assert.False(t, hit)

	ok, err := p.Set(ctx, "retain:app:editor", []byte("snap"), 0)
	require.NoError(t, err)
	assert.True(t, ok)

	got, hit, err := p.Get(ctx, "retain:app:editor")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []byte("snap"), got)

	require.NoError(t, p.Del(ctx, "retain:app:editor"))
	require.NoError(t, p.Del(ctx, "retain:app:editor"), "missing keys are not an error")
	_, hit, _ = p.Get(ctx, "retain:app:editor")
	assert.False(t, hit)
}
