package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/retainstate"
	"github.com/unkn0wn-root/retainstate/codec"
	"github.com/unkn0wn-root/retainstate/config"
	"github.com/unkn0wn-root/retainstate/epoch"
	"github.com/unkn0wn-root/retainstate/snapshot"
)

const sampleYAML = `
namespace: app:test
codec: cbor
max_decode: 4096
ttl: 24h
provider:
  kind: sqlite
  sqlite:
    path: ":memory:"
epochs:
  kind: local
  prune_interval: 1m
  retention: 72h
`

func TestFromYAML(t *testing.T) {
	c, err := config.FromYAML([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "app:test", c.Namespace)
	assert.Equal(t, "cbor", c.Codec)
	assert.Equal(t, 4096, c.MaxDecode)
	assert.Equal(t, 24*time.Hour, c.TTL.Std())
	assert.Equal(t, "sqlite", c.Provider.Kind)
	assert.Equal(t, ":memory:", c.Provider.SQLite.Path)
	assert.Equal(t, time.Minute, c.Epochs.PruneInterval.Std())
	assert.Equal(t, 72*time.Hour, c.Epochs.Retention.Std())
}

func TestFromJSON(t *testing.T) {
	c, err := config.FromJSON([]byte(`{
		"namespace": "app",
		"ttl": "90s",
		"provider": {"kind": "ristretto", "ristretto": {"num_counters": 1000, "max_cost": 1048576, "buffer_items": 64}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, c.TTL.Std())
	assert.Equal(t, int64(1000), c.Provider.Ristretto.NumCounters)

	_, err = config.FromJSON([]byte(`{"namespace": "app", "ttl": 5, "provider": {"kind": "redis"}}`))
	assert.Error(t, err, "numeric durations are rejected")
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	yml := filepath.Join(dir, "retain.yaml")
	require.NoError(t, os.WriteFile(yml, []byte(sampleYAML), 0o600))
	c, err := config.FromFile(yml)
	require.NoError(t, err)
	assert.Equal(t, "app:test", c.Namespace)

	js := filepath.Join(dir, "retain.json")
	require.NoError(t, os.WriteFile(js, []byte(`{"namespace":"n","provider":{"kind":"redis"}}`), 0o600))
	c, err = config.FromFile(js)
	require.NoError(t, err)
	assert.Equal(t, "redis", c.Provider.Kind)

	_, err = config.FromFile(filepath.Join(dir, "retain.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		msg  string
	}{
		{name: "namespace", cfg: config.Config{Provider: config.ProviderConfig{Kind: "redis"}}, msg: "namespace is required"},
		{name: "codec", cfg: config.Config{Namespace: "n", Codec: "xml", Provider: config.ProviderConfig{Kind: "redis"}}, msg: `unknown codec "xml"`},
		{name: "provider kind", cfg: config.Config{Namespace: "n"}, msg: "provider.kind is required"},
		{name: "unknown provider", cfg: config.Config{Namespace: "n", Provider: config.ProviderConfig{Kind: "memcached"}}, msg: `unknown provider kind "memcached"`},
		{name: "bigcache window", cfg: config.Config{Namespace: "n", Provider: config.ProviderConfig{Kind: "bigcache"}}, msg: "life_window"},
		{name: "ristretto sizes", cfg: config.Config{Namespace: "n", Provider: config.ProviderConfig{Kind: "ristretto"}}, msg: "num_counters"},
		{name: "sqlite path", cfg: config.Config{Namespace: "n", Provider: config.ProviderConfig{Kind: "sqlite"}}, msg: "path is required"},
		{name: "epochs", cfg: config.Config{Namespace: "n", Provider: config.ProviderConfig{Kind: "redis"}, Epochs: config.EpochConfig{Kind: "etcd"}}, msg: `unknown epoch store kind "etcd"`},
		{name: "negative ttl", cfg: config.Config{Namespace: "n", TTL: -1, Provider: config.ProviderConfig{Kind: "redis"}}, msg: "ttl must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestBuild_SQLite(t *testing.T) {
	ctx := context.Background()
	c, err := config.FromYAML([]byte(sampleYAML))
	require.NoError(t, err)

	opts, err := c.Build(ctx, config.Deps{})
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, opts.TTL)
	assert.IsType(t, codec.Limit[any]{}, opts.Codec)
	assert.IsType(t, &epoch.Local{}, opts.Epochs)

	p, err := snapshot.New(opts)
	require.NoError(t, err)
	defer p.Close(ctx)

	src := retainstate.New(retainstate.Options{})
	src.RestoreValues(map[string][]any{"title": {"draft"}})
	require.NoError(t, p.Persist(ctx, "editor", src))

	dst := retainstate.New(retainstate.Options{})
	n, err := p.Restore(ctx, "editor", dst)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []any{"draft"}, dst.RetainedValues()["title"])
}

func TestBuild_Codecs(t *testing.T) {
	for _, kind := range []string{"", "json", "cbor", "msgpack", "proto"} {
		c := config.Config{
			Namespace: "n",
			Codec:     kind,
			Provider:  config.ProviderConfig{Kind: "ristretto", Ristretto: config.RistrettoConfig{NumCounters: 100, MaxCost: 1 << 20, BufferItems: 64}},
		}
		opts, err := c.Build(context.Background(), config.Deps{})
		require.NoError(t, err, kind)
		b, err := opts.Codec.Encode("v")
		require.NoError(t, err, kind)
		v, err := opts.Codec.Decode(b)
		require.NoError(t, err, kind)
		assert.Equal(t, "v", v, kind)
		require.NoError(t, opts.Provider.Close(context.Background()))
	}
}

func TestBuild_RedisNeedsClientOrAddr(t *testing.T) {
	c := config.Config{Namespace: "n", Provider: config.ProviderConfig{Kind: "redis"}}
	_, err := c.Build(context.Background(), config.Deps{})
	assert.ErrorContains(t, err, "redis.addr")

	c.Redis.Addr = "127.0.0.1:0"
	c.Epochs.Kind = "redis"
	opts, err := c.Build(context.Background(), config.Deps{})
	require.NoError(t, err)
	assert.IsType(t, &epoch.Redis{}, opts.Epochs)
	require.NoError(t, opts.Epochs.Close(context.Background()))
	require.NoError(t, opts.Provider.Close(context.Background()))
}
