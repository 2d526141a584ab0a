// Package otelhooks counts registry events with OpenTelemetry metrics.
package otelhooks

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/unkn0wn-root/retainstate"
)

type Options struct {
	// MeterProvider to create instruments from. If nil, the global provider is used.
	MeterProvider metric.MeterProvider
	// KeyAttribute adds the retained key as a "key" attribute. Leave off when keys
	// are unbounded (for example, derived from item IDs).
	KeyAttribute bool
}

type Hooks struct {
	withKey bool

	saved     metric.Int64Counter
	consumed  metric.Int64Counter
	missed    metric.Int64Counter
	forgotten metric.Int64Counter
	skipped   metric.Int64Counter
	failed    metric.Int64Counter
	rejected  metric.Int64Counter
	ctx       context.Context
	noAttrs   metric.AddOption
}

var _ retainstate.Hooks = (*Hooks)(nil)

// New creates the counters. It fails only if the meter rejects an instrument.
func New(opts Options) (*Hooks, error) {
	mp := opts.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter("github.com/unkn0wn-root/retainstate")

	h := &Hooks{withKey: opts.KeyAttribute, ctx: context.Background(), noAttrs: metric.WithAttributes()}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&h.saved, "retainstate.values.saved", "Values appended to retained slots by saves"},
		{&h.consumed, "retainstate.values.consumed", "Retained values handed to consumers"},
		{&h.missed, "retainstate.consume.misses", "Consume calls that found nothing"},
		{&h.forgotten, "retainstate.values.forgotten", "Unclaimed values dropped by the settle sweep"},
		{&h.skipped, "retainstate.saves.skipped", "Teardowns whose save was declined by the checker"},
		{&h.failed, "retainstate.provider.failures", "Save batches aborted by a failing provider"},
		{&h.rejected, "retainstate.snapshots.rejected", "Durable snapshots dropped on restore"},
	}
	for _, c := range counters {
		ctr, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
		*c.dst = ctr
	}
	return h, nil
}

func (h *Hooks) keyAttr(key string) metric.AddOption {
	if !h.withKey {
		return h.noAttrs
	}
	return metric.WithAttributes(attribute.String("key", key))
}

func (h *Hooks) ValueSaved(key string, count int) {
	h.saved.Add(h.ctx, int64(count), h.keyAttr(key))
}

func (h *Hooks) ValueConsumed(key string) { h.consumed.Add(h.ctx, 1, h.keyAttr(key)) }
func (h *Hooks) ConsumeMissed(key string) { h.missed.Add(h.ctx, 1, h.keyAttr(key)) }

func (h *Hooks) UnclaimedForgotten(_, values int) {
	h.forgotten.Add(h.ctx, int64(values))
}

func (h *Hooks) SaveSkipped(string) { h.skipped.Add(h.ctx, 1) }

func (h *Hooks) ProviderFailed(key string, _ error) {
	h.failed.Add(h.ctx, 1, h.keyAttr(key))
}

func (h *Hooks) SnapshotRejected(_, reason string) {
	h.rejected.Add(h.ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
