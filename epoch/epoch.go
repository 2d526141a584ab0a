// Package epoch keeps a monotonically increasing epoch per host key. A durable
// snapshot records the epoch it was written under and is only restored while that
// epoch is still current; permanently destroying a host advances it, fencing off
// every snapshot written before.
package epoch

import (
	"context"
	"time"
)

// Store abstracts where epochs live.
// Use Local (default) for in-process epochs, or Redis to share them across processes
// and restarts.
type Store interface {
	// Current returns the current epoch; missing => 0.
	Current(ctx context.Context, hostKey string) (uint64, error)
	// Advance atomically increments and returns the new epoch.
	Advance(ctx context.Context, hostKey string) (uint64, error)
	// Prune drops metadata not advanced within retention (no-op for Redis).
	Prune(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
