package config

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/retainstate"
	"github.com/unkn0wn-root/retainstate/codec"
	"github.com/unkn0wn-root/retainstate/epoch"
	pr "github.com/unkn0wn-root/retainstate/provider"
	"github.com/unkn0wn-root/retainstate/provider/bigcache"
	"github.com/unkn0wn-root/retainstate/provider/redis"
	"github.com/unkn0wn-root/retainstate/provider/ristretto"
	"github.com/unkn0wn-root/retainstate/provider/sqlite"
	"github.com/unkn0wn-root/retainstate/snapshot"
)

// Deps are runtime collaborators that do not belong in a file.
type Deps struct {
	// Redis is used by redis providers and epoch stores. If nil, a client is created
	// from Config.Redis and closed when the persister closes.
	Redis  goredis.UniversalClient
	Logger retainstate.Logger
	Hooks  retainstate.Hooks
}

// Build opens the configured provider and epoch store. The returned options own
// them; pass them to snapshot.New and Close the persister when done.
func (c Config) Build(ctx context.Context, deps Deps) (snapshot.Options, error) {
	if err := c.Validate(); err != nil {
		return snapshot.Options{}, err
	}

	cd, err := c.codec()
	if err != nil {
		return snapshot.Options{}, err
	}

	client, owned := deps.Redis, false
	if client == nil && c.needsRedis() {
		if c.Redis.Addr == "" {
			return snapshot.Options{}, errors.New("config: redis.addr is required without a client")
		}
		client = goredis.NewClient(&goredis.Options{Addr: c.Redis.Addr, Password: c.Redis.Password, DB: c.Redis.DB})
		owned = true
	}

	store, err := c.provider(ctx, client, owned)
	if err != nil {
		if owned {
			_ = client.Close()
		}
		return snapshot.Options{}, err
	}

	var epochs epoch.Store
	switch c.Epochs.Kind {
	case "redis":
		epochs = epoch.NewRedisWithTTL(client, c.Namespace, c.Epochs.TTL.Std())
		if owned && c.Provider.Kind != "redis" {
			epochs = closingEpochs{Store: epochs, client: client}
		}
	default:
		epochs = epoch.NewLocal(c.Epochs.PruneInterval.Std(), c.Epochs.Retention.Std())
	}

	return snapshot.Options{
		Namespace: c.Namespace,
		Provider:  store,
		Codec:     cd,
		Epochs:    epochs,
		TTL:       c.TTL.Std(),
		Logger:    deps.Logger,
		Hooks:     deps.Hooks,
	}, nil
}

func (c Config) codec() (codec.Codec[any], error) {
	var cd codec.Codec[any]
	switch c.Codec {
	case "", "json":
		cd = codec.JSON[any]{}
	case "cbor":
		cb, err := codec.NewCBOR[any](true)
		if err != nil {
			return nil, fmt.Errorf("config: cbor codec: %w", err)
		}
		cd = cb
	case "msgpack":
		cd = codec.Msgpack[any]{}
	case "proto":
		cd = codec.ProtoValue{}
	}
	if c.MaxDecode > 0 {
		cd = codec.Limit[any]{Inner: cd, MaxDecode: c.MaxDecode}
	}
	return cd, nil
}

func (c Config) provider(ctx context.Context, client goredis.UniversalClient, owned bool) (pr.Provider, error) {
	switch c.Provider.Kind {
	case "bigcache":
		b := c.Provider.BigCache
		return bigcache.New(ctx, bigcache.Config{
			LifeWindow:         b.LifeWindow.Std(),
			CleanWindow:        b.CleanWindow.Std(),
			MaxEntrySize:       b.MaxEntrySize,
			HardMaxCacheSizeMB: b.HardMaxMB,
		})
	case "ristretto":
		r := c.Provider.Ristretto
		return ristretto.New(ristretto.Config{NumCounters: r.NumCounters, MaxCost: r.MaxCost, BufferItems: r.BufferItems})
	case "sqlite":
		return sqlite.New(c.Provider.SQLite.Path)
	case "redis":
		return redis.New(redis.Config{Client: client, CloseClient: owned})
	default:
		return nil, fmt.Errorf("config: unknown provider kind %q", c.Provider.Kind)
	}
}

// closingEpochs closes a client created by Build that no provider owns.
type closingEpochs struct {
	epoch.Store
	client goredis.UniversalClient
}

func (e closingEpochs) Close(ctx context.Context) error {
	return errors.Join(e.Store.Close(ctx), e.client.Close())
}
