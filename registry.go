package retainstate

import (
	"sort"
	"sync"
)

type registration struct {
	id       uint64
	gen      uint64
	provider ValueProvider
}

type registry struct {
	log   Logger
	hooks Hooks

	mu        sync.Mutex
	nextID    uint64
	gen       uint64                    // bumped when the owning host instance is torn down
	providers map[string][]registration // live entries, registration order
	retained  map[string][]any          // saved values, save order; consumed from the front
}

var _ Registry = (*registry)(nil)

func newRegistry(opts Options) *registry {
	return &registry{
		log:       coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:     coalesce[Hooks](opts.Hooks, NopHooks{}),
		providers: make(map[string][]registration),
		retained:  make(map[string][]any),
	}
}

type entry struct {
	r    *registry
	key  string
	id   uint64
	once sync.Once
}

func (e *entry) Unregister() {
	e.once.Do(func() { e.r.unregister(e.key, e.id) })
}

func (r *registry) RegisterValue(key string, provider ValueProvider) Entry {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.providers[key] = append(r.providers[key], registration{id: id, gen: r.gen, provider: provider})
	r.mu.Unlock()
	return &entry{r: r, key: key, id: id}
}

func (r *registry) unregister(key string, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	regs := r.providers[key]
	for i, reg := range regs {
		if reg.id != id {
			continue
		}
		// copy so a save batch holding the old slice is not disturbed
		next := make([]registration, 0, len(regs)-1)
		next = append(next, regs[:i]...)
		next = append(next, regs[i+1:]...)
		r.providers[key] = next
		return
	}
}

func (r *registry) ConsumeValue(key string) (any, bool) {
	r.mu.Lock()
	vals := r.retained[key]
	if len(vals) == 0 {
		r.mu.Unlock()
		r.hooks.ConsumeMissed(key)
		return nil, false
	}
	v := vals[0]
	if len(vals) == 1 {
		delete(r.retained, key)
	} else {
		vals[0] = nil
		r.retained[key] = vals[1:]
	}
	r.mu.Unlock()
	r.hooks.ValueConsumed(key)
	return v, true
}

func (r *registry) SaveValue(key string) error {
	return r.save([]string{key})
}

func (r *registry) SaveAll() error {
	r.mu.Lock()
	keys := make([]string, 0, len(r.providers))
	for k, regs := range r.providers {
		if r.hasCurrent(regs) {
			keys = append(keys, k)
		}
	}
	r.mu.Unlock()
	// stable batch order; failures are reported for the same key every time
	sort.Strings(keys)
	return r.save(keys)
}

type savedSlot struct {
	key    string
	values []any
}

// current returns the registrations of the live generation. Older ones already
// contributed to the save made when their instance was torn down.
// Callers hold r.mu.
func (r *registry) current(regs []registration) []registration {
	out := regs[:0:0]
	for _, reg := range regs {
		if reg.gen == r.gen {
			out = append(out, reg)
		}
	}
	return out
}

// Callers hold r.mu.
func (r *registry) hasCurrent(regs []registration) bool {
	for _, reg := range regs {
		if reg.gen == r.gen {
			return true
		}
	}
	return false
}

// nextGeneration marks every live registration as belonging to a torn-down instance.
func (r *registry) nextGeneration() {
	r.mu.Lock()
	r.gen++
	r.mu.Unlock()
}

// save runs every provider under keys outside the lock, then commits all results at
// once. A failing provider aborts the batch before anything is committed.
func (r *registry) save(keys []string) error {
	type pending struct {
		key  string
		regs []registration
	}
	batch := make([]pending, 0, len(keys))
	r.mu.Lock()
	for _, k := range keys {
		if regs := r.current(r.providers[k]); len(regs) > 0 {
			batch = append(batch, pending{key: k, regs: regs})
		}
	}
	r.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	staged := make([]savedSlot, 0, len(batch))
	for _, p := range batch {
		vals := make([]any, 0, len(p.regs))
		for _, reg := range p.regs {
			v, err := invoke(reg.provider)
			if err != nil {
				r.log.Warn("save aborted (provider failed)", Fields{"key": p.key, "err": err})
				r.hooks.ProviderFailed(p.key, err)
				return &ProviderError{Key: p.key, Err: err}
			}
			vals = append(vals, v)
		}
		staged = append(staged, savedSlot{key: p.key, values: vals})
	}

	r.mu.Lock()
	for _, s := range staged {
		r.retained[s.key] = append(r.retained[s.key], s.values...)
	}
	r.mu.Unlock()

	for _, s := range staged {
		r.hooks.ValueSaved(s.key, len(s.values))
	}
	r.log.Debug("saved retained values", Fields{"keys": len(staged)})
	return nil
}

func invoke(p ValueProvider) (any, error) {
	if p == nil {
		return nil, nil
	}
	return p()
}

func (r *registry) ForgetUnclaimedValues() {
	r.mu.Lock()
	keys, values := len(r.retained), 0
	for _, vals := range r.retained {
		values += len(vals)
	}
	r.retained = make(map[string][]any)
	stale := 0
	for k, regs := range r.providers {
		live := r.current(regs)
		stale += len(regs) - len(live)
		if len(live) == 0 {
			delete(r.providers, k)
		} else {
			r.providers[k] = live
		}
	}
	r.mu.Unlock()

	if stale > 0 {
		r.log.Debug("dropped registrations of previous generation", Fields{"count": stale})
	}
	if values == 0 {
		return
	}
	r.log.Debug("forgot unclaimed retained values", Fields{"keys": keys, "values": values})
	r.hooks.UnclaimedForgotten(keys, values)
}

// clear drops retained values and live registrations without saving.
// Entries handed out earlier become inert.
func (r *registry) clear() {
	r.mu.Lock()
	r.retained = make(map[string][]any)
	r.providers = make(map[string][]registration)
	r.mu.Unlock()
	r.log.Debug("registry cleared", nil)
}

func (r *registry) RetainedValues() map[string][]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]any, len(r.retained))
	for k, vals := range r.retained {
		out[k] = append([]any(nil), vals...)
	}
	return out
}

func (r *registry) RestoreValues(values map[string][]any) {
	if len(values) == 0 {
		return
	}
	r.mu.Lock()
	for k, vals := range values {
		if len(vals) == 0 {
			continue
		}
		r.retained[k] = append(r.retained[k], vals...)
	}
	r.mu.Unlock()
}
