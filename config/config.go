// Package config describes the durable snapshot stack in a YAML or JSON file and
// builds ready snapshot.Options from it.
//
//	namespace: app:prod
//	codec: cbor
//	max_decode: 1048576
//	ttl: 24h
//	provider:
//	  kind: redis
//	redis:
//	  addr: localhost:6379
//	epochs:
//	  kind: redis
//	  ttl: 168h
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts Go duration strings ("90s", "24h") in both YAML and JSON.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	return d.parse(s)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type Config struct {
	Namespace string   `yaml:"namespace" json:"namespace"`
	Codec     string   `yaml:"codec" json:"codec"`           // json (default), cbor, msgpack, proto
	MaxDecode int      `yaml:"max_decode" json:"max_decode"` // per-value limit in bytes; 0 = unlimited
	TTL       Duration `yaml:"ttl" json:"ttl"`

	Provider ProviderConfig `yaml:"provider" json:"provider"`
	Epochs   EpochConfig    `yaml:"epochs" json:"epochs"`
	Redis    RedisConfig    `yaml:"redis" json:"redis"`
}

type ProviderConfig struct {
	Kind      string          `yaml:"kind" json:"kind"` // bigcache, ristretto, redis, sqlite
	BigCache  BigCacheConfig  `yaml:"bigcache" json:"bigcache"`
	Ristretto RistrettoConfig `yaml:"ristretto" json:"ristretto"`
	SQLite    SQLiteConfig    `yaml:"sqlite" json:"sqlite"`
}

type BigCacheConfig struct {
	LifeWindow   Duration `yaml:"life_window" json:"life_window"`
	CleanWindow  Duration `yaml:"clean_window" json:"clean_window"`
	MaxEntrySize int      `yaml:"max_entry_size" json:"max_entry_size"`
	HardMaxMB    int      `yaml:"hard_max_mb" json:"hard_max_mb"`
}

type RistrettoConfig struct {
	NumCounters int64 `yaml:"num_counters" json:"num_counters"`
	MaxCost     int64 `yaml:"max_cost" json:"max_cost"`
	BufferItems int64 `yaml:"buffer_items" json:"buffer_items"`
}

type SQLiteConfig struct {
	Path string `yaml:"path" json:"path"`
}

type EpochConfig struct {
	Kind          string   `yaml:"kind" json:"kind"` // local (default), redis
	TTL           Duration `yaml:"ttl" json:"ttl"`   // redis only
	PruneInterval Duration `yaml:"prune_interval" json:"prune_interval"`
	Retention     Duration `yaml:"retention" json:"retention"`
}

// RedisConfig is used when Build gets no client in Deps.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
}

// FromFile loads configuration from a file, auto-detecting format by extension.
// Supported extensions: .yaml, .yml, .json
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// FromYAML parses and validates YAML data.
func FromYAML(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return c, c.Validate()
}

// FromJSON parses and validates JSON data.
func FromJSON(data []byte) (Config, error) {
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return c, c.Validate()
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	if c.Namespace == "" {
		errs = append(errs, errors.New("namespace is required"))
	}
	switch c.Codec {
	case "", "json", "cbor", "msgpack", "proto":
	default:
		errs = append(errs, fmt.Errorf("unknown codec %q", c.Codec))
	}
	if c.MaxDecode < 0 {
		errs = append(errs, errors.New("max_decode must not be negative"))
	}
	if c.TTL < 0 {
		errs = append(errs, errors.New("ttl must not be negative"))
	}

	switch c.Provider.Kind {
	case "bigcache":
		if c.Provider.BigCache.LifeWindow <= 0 {
			errs = append(errs, errors.New("provider.bigcache.life_window must be positive"))
		}
	case "ristretto":
		r := c.Provider.Ristretto
		if r.NumCounters <= 0 || r.MaxCost <= 0 || r.BufferItems <= 0 {
			errs = append(errs, errors.New("provider.ristretto needs num_counters, max_cost and buffer_items"))
		}
	case "sqlite":
		if c.Provider.SQLite.Path == "" {
			errs = append(errs, errors.New("provider.sqlite.path is required"))
		}
	case "redis":
	case "":
		errs = append(errs, errors.New("provider.kind is required"))
	default:
		errs = append(errs, fmt.Errorf("unknown provider kind %q", c.Provider.Kind))
	}

	switch c.Epochs.Kind {
	case "", "local", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown epoch store kind %q", c.Epochs.Kind))
	}
	return errors.Join(errs...)
}

func (c Config) needsRedis() bool {
	return c.Provider.Kind == "redis" || c.Epochs.Kind == "redis"
}
