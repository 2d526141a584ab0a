// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/retainstate"
//	"github.com/unkn0wn-root/retainstate/hooks/async"
//	"github.com/unkn0wn-root/retainstate/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    ConsumeEvery: 100, // sample logs: ~every 100th consume
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	host, _ := retainstate.NewHost(retainstate.HostOptions{
//	    Key:    "editor",
//	    Frames: loop,
//	    Hooks:  hooks, // or `raw` if you don’t want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/retainstate"
)

// Hooks moves event delivery off the registry's goroutine. Events are dropped when
// the queue is full or after Close.
type Hooks struct {
	inner   retainstate.Hooks
	q       chan func()
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ retainstate.Hooks = (*Hooks)(nil)

func New(inner retainstate.Hooks, workers, qlen int) *Hooks {
	if inner == nil {
		inner = retainstate.NopHooks{}
	}
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Safe to call multiple times.
func (h *Hooks) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.q)
	h.mu.Unlock()
	h.wg.Wait()
}

// Dropped reports how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) ValueSaved(k string, n int)          { h.try(func() { h.inner.ValueSaved(k, n) }) }
func (h *Hooks) ValueConsumed(k string)              { h.try(func() { h.inner.ValueConsumed(k) }) }
func (h *Hooks) ConsumeMissed(k string)              { h.try(func() { h.inner.ConsumeMissed(k) }) }
func (h *Hooks) UnclaimedForgotten(keys, values int) { h.try(func() { h.inner.UnclaimedForgotten(keys, values) }) }
func (h *Hooks) SaveSkipped(id string)               { h.try(func() { h.inner.SaveSkipped(id) }) }
func (h *Hooks) ProviderFailed(k string, err error)  { h.try(func() { h.inner.ProviderFailed(k, err) }) }
func (h *Hooks) SnapshotRejected(hk, r string)       { h.try(func() { h.inner.SnapshotRejected(hk, r) }) }
