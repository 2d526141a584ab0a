package sloghooks

import (
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/retainstate"
	"github.com/unkn0wn-root/retainstate/internal/util"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SaveEvery    uint64
	ConsumeEvery uint64
	MissEvery    uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
	// Log retained keys verbatim. Keys are redacted unless set.
	PlainKeys bool
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	saveCtr    atomic.Uint64
	consumeCtr atomic.Uint64
	missCtr    atomic.Uint64
}

var _ retainstate.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.PlainKeys {
		return k
	}
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	return util.Redact(k)
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) ValueSaved(key string, count int) {
	if h.l == nil || !sample(h.opts.SaveEvery, &h.saveCtr) {
		return
	}
	h.l.Debug("retainstate.value_saved",
		"key", h.redact(key),
		"count", count)
}

func (h *Hooks) ValueConsumed(key string) {
	if h.l == nil || !sample(h.opts.ConsumeEvery, &h.consumeCtr) {
		return
	}
	h.l.Debug("retainstate.value_consumed",
		"key", h.redact(key))
}

func (h *Hooks) ConsumeMissed(key string) {
	if h.l == nil || !sample(h.opts.MissEvery, &h.missCtr) {
		return
	}
	h.l.Debug("retainstate.consume_missed",
		"key", h.redact(key))
}

func (h *Hooks) UnclaimedForgotten(keys, values int) {
	if h.l == nil {
		return
	}
	h.l.Info("retainstate.unclaimed_forgotten",
		"keys", keys,
		"values", values)
}

func (h *Hooks) SaveSkipped(instanceID string) {
	if h.l == nil {
		return
	}
	h.l.Info("retainstate.save_skipped",
		"instance", instanceID)
}

func (h *Hooks) ProviderFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("retainstate.provider_failed",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) SnapshotRejected(hostKey, reason string) {
	if h.l == nil {
		return
	}
	h.l.Warn("retainstate.snapshot_rejected",
		"host", h.redact(hostKey),
		"reason", reason)
}
