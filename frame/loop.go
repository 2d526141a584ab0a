// Package frame provides a cooperative render sequence: work posted to a Loop runs
// one task at a time, and after-frame callbacks fire once the frame's work is done.
//
// usage:
//
//	loop := frame.New()
//	host, _ := retainstate.NewHost(retainstate.HostOptions{Frames: loop})
//	go loop.Run(ctx, 16*time.Millisecond)
//	loop.Post(func() { /* compose */ })
package frame

import (
	"context"
	"sync"
	"time"
)

type callback struct {
	fn        func()
	cancelled bool
	fired     bool
}

// Loop is a single-consumer frame queue. Post and AfterNextFrame are safe from any
// goroutine; tasks and callbacks always run on the goroutine calling RunFrame.
type Loop struct {
	mu     sync.Mutex
	tasks  []func()
	after  []*callback
	frames uint64
}

func New() *Loop { return &Loop{} }

// Post queues render work for the next (or current) frame.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()
}

// AfterNextFrame queues fn to run once, after the posted work of the frame in progress
// (or the next frame) completes. Callbacks queued by an after-frame callback wait for
// the following frame.
func (l *Loop) AfterNextFrame(fn func()) (cancel func()) {
	cb := &callback{fn: fn}
	l.mu.Lock()
	l.after = append(l.after, cb)
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		cb.cancelled = true
		l.mu.Unlock()
	}
}

// RunFrame drains posted work, including work posted while the frame runs, then fires
// the after-frame callbacks that were due.
func (l *Loop) RunFrame() {
	for {
		l.mu.Lock()
		if len(l.tasks) == 0 {
			break
		}
		task := l.tasks[0]
		l.tasks[0] = nil
		l.tasks = l.tasks[1:]
		l.mu.Unlock()
		task()
	}
	due := l.after
	l.after = nil
	l.frames++
	l.mu.Unlock()

	for _, cb := range due {
		l.mu.Lock()
		run := !cb.cancelled && !cb.fired && cb.fn != nil
		cb.fired = true
		l.mu.Unlock()
		if run {
			cb.fn()
		}
	}
}

// Frames returns the number of completed frames.
func (l *Loop) Frames() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames
}

// Pending reports queued work and after-frame callbacks (cancelled ones included).
func (l *Loop) Pending() (tasks, callbacks int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks), len(l.after)
}

// Run drives a frame every interval until ctx is done.
func (l *Loop) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.RunFrame()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
