package ristretto

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider(t *testing.T) {
	ctx := context.Background()
	_, err := New(Config{})
	require.Error(t, err)

	p, err := New(Config{NumCounters: 1000, MaxCost: 1 << 20, BufferItems: 64, Metrics: true})
	require.NoError(t, err)
	defer p.Close(ctx)

	ok, err := p.Set(ctx, "retain:app:editor", []byte("snap"), 0)
	require.NoError(t, err)
	require.True(t, ok)

	// visible right after Set returns
	got, hit, err := p.Get(ctx, "retain:app:editor")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []byte("snap"), got)
	assert.NotNil(t, p.Metrics())

	require.NoError(t, p.Del(ctx, "retain:app:editor"))
	p.c.Wait()
	_, hit, _ = p.Get(ctx, "retain:app:editor")
	assert.False(t, hit)
}
