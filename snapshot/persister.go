// Package snapshot writes a host's retained values to a durable byte store so they
// survive process death, and restores them into a fresh registry on the next start.
//
// Snapshots are one-shot: a successful Restore deletes the stored bytes. Each snapshot
// carries the host key's epoch at write time; Discard advances the epoch so snapshots
// written before a permanent destroy are never restored.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/unkn0wn-root/retainstate"
	"github.com/unkn0wn-root/retainstate/codec"
	"github.com/unkn0wn-root/retainstate/epoch"
	"github.com/unkn0wn-root/retainstate/internal/util"
	"github.com/unkn0wn-root/retainstate/internal/wire"
	pr "github.com/unkn0wn-root/retainstate/provider"
)

// ErrClosed is returned by every Persister operation after Close.
var ErrClosed = errors.New("snapshot: persister closed")

// Reasons passed to Hooks.SnapshotRejected.
const (
	RejectCorrupt     = "corrupt"
	RejectStaleEpoch  = "stale_epoch"
	RejectValueDecode = "value_decode"
)

// Exporter is the read side of a registry (Host or Registry).
type Exporter interface {
	RetainedValues() map[string][]any
}

// Importer is the write side of a registry (Host or Registry).
type Importer interface {
	RestoreValues(values map[string][]any)
}

type Options struct {
	// Namespace isolates snapshots of different applications sharing one store.
	Namespace string

	// Provider is the durable byte store (required).
	Provider pr.Provider

	// Codec encodes each retained value (required). Values must survive a round trip
	// through it, so dynamic codecs (codec.JSON[any], codec.CBOR[any], ...) fit best.
	Codec codec.Codec[any]

	// Epochs fences snapshots against permanent destroys. If nil, epoch.NewLocal is used.
	Epochs epoch.Store

	// TTL for stored snapshots. 0 means no expiry where supported.
	TTL time.Duration

	Logger retainstate.Logger // if nil, NopLogger is used
	Hooks  retainstate.Hooks  // if nil, NopHooks is used
}

type Persister struct {
	ns     string
	store  pr.Provider
	codec  codec.Codec[any]
	epochs epoch.Store
	ttl    time.Duration
	log    retainstate.Logger
	hooks  retainstate.Hooks

	mu     sync.RWMutex
	closed bool
}

func New(opts Options) (*Persister, error) {
	if opts.Namespace == "" {
		return nil, errors.New("snapshot: namespace is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("snapshot: provider is required")
	}
	if opts.Codec == nil {
		return nil, errors.New("snapshot: codec is required")
	}
	if opts.TTL < 0 {
		return nil, errors.New("snapshot: negative TTL")
	}
	p := &Persister{
		ns:     opts.Namespace,
		store:  opts.Provider,
		codec:  opts.Codec,
		epochs: opts.Epochs,
		ttl:    opts.TTL,
		log:    opts.Logger,
		hooks:  opts.Hooks,
	}
	if p.epochs == nil {
		p.epochs = epoch.NewLocal(0, 0)
	}
	if p.log == nil {
		p.log = retainstate.NopLogger{}
	}
	if p.hooks == nil {
		p.hooks = retainstate.NopHooks{}
	}
	return p, nil
}

func (p *Persister) key(hostKey string) string {
	return util.StorageKey("retain:"+p.ns, hostKey)
}

// Persist writes every retained value of src under hostKey, replacing any earlier
// snapshot. An empty registry removes the stored snapshot instead.
func (p *Persister) Persist(ctx context.Context, hostKey string, src Exporter) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	values := src.RetainedValues()
	if len(values) == 0 {
		return p.store.Del(ctx, p.key(hostKey))
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	slots := make([]wire.Slot, 0, len(keys))
	total := 0
	for _, k := range keys {
		enc := make([][]byte, 0, len(values[k]))
		for i, v := range values[k] {
			b, err := p.codec.Encode(v)
			if err != nil {
				return fmt.Errorf("snapshot: encode %q[%d]: %w", k, i, err)
			}
			enc = append(enc, b)
		}
		total += len(enc)
		slots = append(slots, wire.Slot{Key: k, Values: enc})
	}

	ep, err := p.epochs.Current(ctx, hostKey)
	if err != nil {
		return fmt.Errorf("snapshot: read epoch: %w", err)
	}
	b, err := wire.EncodeSnapshot(ep, slots)
	if err != nil {
		return err
	}
	ok, err := p.store.Set(ctx, p.key(hostKey), b, p.ttl)
	if err != nil {
		return fmt.Errorf("snapshot: write: %w", err)
	}
	if !ok {
		p.log.Warn("snapshot rejected by provider", retainstate.Fields{"host": hostKey, "bytes": len(b)})
		return fmt.Errorf("snapshot: provider rejected %d bytes for %q", len(b), hostKey)
	}
	p.log.Debug("snapshot persisted", retainstate.Fields{"host": hostKey, "epoch": ep, "keys": len(slots), "values": total})
	return nil
}

// Restore appends the snapshot stored under hostKey into dst and deletes it.
// It returns the number of values restored. A missing snapshot restores nothing;
// corrupt, stale or undecodable snapshots are deleted and restore nothing.
func (p *Persister) Restore(ctx context.Context, hostKey string, dst Importer) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return 0, ErrClosed
	}

	k := p.key(hostKey)
	b, ok, err := p.store.Get(ctx, k)
	if err != nil {
		return 0, fmt.Errorf("snapshot: read: %w", err)
	}
	if !ok {
		return 0, nil
	}

	ep, slots, err := wire.DecodeSnapshot(b)
	if err != nil {
		return 0, p.reject(ctx, hostKey, k, RejectCorrupt, err)
	}
	cur, err := p.epochs.Current(ctx, hostKey)
	if err != nil {
		return 0, fmt.Errorf("snapshot: read epoch: %w", err)
	}
	if ep != cur {
		return 0, p.reject(ctx, hostKey, k, RejectStaleEpoch, fmt.Errorf("epoch %d, current %d", ep, cur))
	}

	values := make(map[string][]any, len(slots))
	n := 0
	for _, s := range slots {
		vals := make([]any, 0, len(s.Values))
		for _, raw := range s.Values {
			v, err := p.codec.Decode(raw)
			if err != nil {
				return 0, p.reject(ctx, hostKey, k, RejectValueDecode, fmt.Errorf("key %q: %w", s.Key, err))
			}
			vals = append(vals, v)
		}
		values[s.Key] = append(values[s.Key], vals...)
		n += len(vals)
	}

	// one-shot: a second restore of the same bytes would duplicate values
	if err := p.store.Del(ctx, k); err != nil {
		return 0, fmt.Errorf("snapshot: delete after read: %w", err)
	}
	dst.RestoreValues(values)
	p.log.Debug("snapshot restored", retainstate.Fields{"host": hostKey, "epoch": ep, "keys": len(values), "values": n})
	return n, nil
}

// reject deletes an unusable snapshot. Only a failed delete is reported to the caller.
func (p *Persister) reject(ctx context.Context, hostKey, storageKey, reason string, cause error) error {
	p.log.Warn("snapshot dropped", retainstate.Fields{"host": hostKey, "reason": reason, "err": cause})
	p.hooks.SnapshotRejected(hostKey, reason)
	if err := p.store.Del(ctx, storageKey); err != nil {
		return fmt.Errorf("snapshot: delete rejected snapshot: %w", err)
	}
	return nil
}

// Discard advances the host key's epoch and deletes its snapshot. Call it when the
// host is permanently destroyed; a copy of the snapshot that outlives the delete
// (replica, backup) is still refused on restore.
func (p *Persister) Discard(ctx context.Context, hostKey string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	ep, err := p.epochs.Advance(ctx, hostKey)
	if err != nil {
		return fmt.Errorf("snapshot: advance epoch: %w", err)
	}
	if err := p.store.Del(ctx, p.key(hostKey)); err != nil {
		return fmt.Errorf("snapshot: delete: %w", err)
	}
	p.log.Debug("snapshot discarded", retainstate.Fields{"host": hostKey, "epoch": ep})
	return nil
}

// Close releases the epoch store and the provider. Safe to call multiple times.
func (p *Persister) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return errors.Join(p.epochs.Close(ctx), p.store.Close(ctx))
}
