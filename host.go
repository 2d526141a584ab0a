package retainstate

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrAttached is returned by Host.Attach while the previous instance is still attached.
var ErrAttached = errors.New("retainstate: host instance still attached")

// Instance identifies one attachment cycle of a host (one UI recreation).
type Instance struct {
	ID    string // random per cycle
	Cycle uint64 // 1 for the first attach
}

// CanRetainChecker answers whether the given host instance's state will still be
// needed after the teardown in progress. It is asked exactly once per save decision.
type CanRetainChecker interface {
	CanRetain(inst Instance) bool
}

// CanRetainFunc adapts a function to CanRetainChecker.
type CanRetainFunc func(inst Instance) bool

func (f CanRetainFunc) CanRetain(inst Instance) bool { return f(inst) }

// FrameScheduler runs fn once, on the render sequence, after the frame in progress
// (or the next one) completes. cancel prevents a callback that has not run yet.
type FrameScheduler interface {
	AfterNextFrame(fn func()) (cancel func())
}

// Phase is the host's position in the attach / settle cycle.
type Phase int

const (
	PhaseFresh    Phase = iota // nothing attached; retained values wait for the next pass
	PhaseAttached              // consumers are running; settle sweep pending
	PhaseSettled               // first frame completed; unclaimed values forgotten
)

func (p Phase) String() string {
	switch p {
	case PhaseFresh:
		return "fresh"
	case PhaseAttached:
		return "attached"
	case PhaseSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// HostOptions configure a Host. Frames is required.
type HostOptions struct {
	Key     string           // logical host key, used in logs and by Hosts
	Frames  FrameScheduler   // required
	Checker CanRetainChecker // if nil, every instance is retainable
	Logger  Logger           // if nil, NopLogger is used
	Hooks   Hooks            // if nil, NopHooks is used
}

// Host owns one Registry for its whole lifetime, across any number of recreations of
// the consumers that use it. Registry operations are passed straight through.
type Host struct {
	key     string
	reg     *registry
	frames  FrameScheduler
	checker CanRetainChecker
	log     Logger
	hooks   Hooks

	// sweepMu orders the settle sweep against detach saves. Never acquired with mu held.
	sweepMu sync.Mutex

	mu          sync.Mutex
	phase       Phase
	cycle       uint64
	current     *Attachment
	cancelSweep func()
	destroyed   bool
}

var _ Registry = (*Host)(nil)

func NewHost(opts HostOptions) (*Host, error) {
	if opts.Frames == nil {
		return nil, errors.New("retainstate: frame scheduler is required")
	}
	h := &Host{
		key:    opts.Key,
		frames: opts.Frames,
		log:    coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:  coalesce[Hooks](opts.Hooks, NopHooks{}),
	}
	h.reg = newRegistry(Options{Logger: h.log, Hooks: h.hooks})
	if opts.Checker != nil {
		h.checker = opts.Checker
	} else {
		h.checker = CanRetainFunc(func(Instance) bool { return true })
	}
	return h, nil
}

func (h *Host) Key() string { return h.key }

func (h *Host) Phase() Phase {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.phase
}

// Attach starts a new attachment cycle and schedules its one settle sweep.
func (h *Host) Attach() (*Attachment, error) {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return nil, ErrHostDestroyed
	}
	if h.current != nil {
		h.mu.Unlock()
		return nil, ErrAttached
	}
	h.cycle++
	att := &Attachment{host: h, inst: Instance{ID: uuid.NewString(), Cycle: h.cycle}}
	h.current = att
	h.phase = PhaseAttached
	h.mu.Unlock()

	cancel := h.frames.AfterNextFrame(func() { h.settle(att) })

	h.mu.Lock()
	if h.current == att && h.phase == PhaseAttached {
		h.cancelSweep = cancel
		cancel = nil
	}
	h.mu.Unlock()
	if cancel != nil {
		// detached or settled before we got here
		cancel()
	}

	h.log.Debug("host attached", Fields{"host": h.key, "instance": att.inst.ID, "cycle": att.inst.Cycle})
	return att, nil
}

// settle runs the sweep without holding mu, so hooks and loggers may call back into
// the host.
func (h *Host) settle(att *Attachment) {
	h.sweepMu.Lock()
	defer h.sweepMu.Unlock()

	h.mu.Lock()
	if h.current != att || h.phase != PhaseAttached {
		h.mu.Unlock()
		return
	}
	h.phase = PhaseSettled
	h.cancelSweep = nil
	h.mu.Unlock()

	h.reg.ForgetUnclaimedValues()
}

func (h *Host) detach(att *Attachment, used bool) error {
	h.mu.Lock()
	if att.detached {
		h.mu.Unlock()
		return nil
	}
	att.detached = true
	if h.current == att {
		h.current = nil
		h.phase = PhaseFresh
		if h.cancelSweep != nil {
			h.cancelSweep()
			h.cancelSweep = nil
		}
	}
	destroyed := h.destroyed
	h.mu.Unlock()

	if destroyed {
		return nil
	}
	// a sweep already past its phase check finishes before this save lands
	h.sweepMu.Lock()
	defer h.sweepMu.Unlock()
	// registrations made by this instance die with it, whatever the checker says
	defer h.reg.nextGeneration()
	if !h.checker.CanRetain(att.inst) {
		h.log.Info("save skipped (instance not retainable)", Fields{"host": h.key, "instance": att.inst.ID, "used": used})
		h.hooks.SaveSkipped(att.inst.ID)
		return nil
	}
	h.log.Debug("host detaching, saving", Fields{"host": h.key, "instance": att.inst.ID, "used": used})
	return h.reg.SaveAll()
}

// OnPermanentDestroy drops every retained value and registration without saving.
// The host cannot be attached again.
func (h *Host) OnPermanentDestroy() {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return
	}
	h.destroyed = true
	if h.cancelSweep != nil {
		h.cancelSweep()
		h.cancelSweep = nil
	}
	if h.current != nil {
		h.current.detached = true
		h.current = nil
	}
	h.phase = PhaseFresh
	h.mu.Unlock()

	h.reg.clear()
	h.log.Debug("host permanently destroyed", Fields{"host": h.key})
}

func (h *Host) ConsumeValue(key string) (any, bool)                    { return h.reg.ConsumeValue(key) }
func (h *Host) RegisterValue(key string, provider ValueProvider) Entry { return h.reg.RegisterValue(key, provider) }
func (h *Host) SaveValue(key string) error                             { return h.reg.SaveValue(key) }
func (h *Host) SaveAll() error                                         { return h.reg.SaveAll() }
func (h *Host) ForgetUnclaimedValues()                                 { h.reg.ForgetUnclaimedValues() }
func (h *Host) RetainedValues() map[string][]any                       { return h.reg.RetainedValues() }
func (h *Host) RestoreValues(values map[string][]any)                  { h.reg.RestoreValues(values) }

// Attachment is the handle a UI collaborator holds for one attachment cycle.
// Exactly one of its detach callbacks takes effect; later calls are no-ops.
type Attachment struct {
	host     *Host
	inst     Instance
	detached bool // guarded by host.mu
}

func (a *Attachment) Instance() Instance { return a.inst }

// OnDetachedWithoutUse is called when the attachment is discarded before it was ever
// composed (abandoned).
func (a *Attachment) OnDetachedWithoutUse() error { return a.host.detach(a, false) }

// OnDetachedAfterUse is called when the attachment is discarded after having been
// composed (forgotten).
func (a *Attachment) OnDetachedAfterUse() error { return a.host.detach(a, true) }
