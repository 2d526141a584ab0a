package epoch

import (
	"context"
	"sync"
	"time"
)

type localEntry struct {
	Epoch     uint64
	UpdatedAt time.Time
}

// Local keeps epochs in-process.
// With a prune interval, host keys not advanced within retention are forgotten and
// read as epoch 0 again.
type Local struct {
	mu     sync.RWMutex
	epochs map[string]localEntry
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ Store = (*Local)(nil)

func NewLocal(pruneInterval, retention time.Duration) *Local {
	s := &Local{epochs: make(map[string]localEntry)}
	if pruneInterval > 0 && retention > 0 {
		s.ticker = time.NewTicker(pruneInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.Prune(retention)
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *Local) Current(_ context.Context, hostKey string) (uint64, error) {
	s.mu.RLock()
	e := s.epochs[hostKey]
	s.mu.RUnlock()
	return e.Epoch, nil
}

func (s *Local) Advance(_ context.Context, hostKey string) (uint64, error) {
	now := time.Now()
	s.mu.Lock()
	e := s.epochs[hostKey]
	e.Epoch++
	e.UpdatedAt = now
	s.epochs[hostKey] = e
	s.mu.Unlock()
	return e.Epoch, nil
}

func (s *Local) Prune(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	for k, e := range s.epochs {
		if e.UpdatedAt.Before(cutoff) {
			delete(s.epochs, k)
		}
	}
	s.mu.Unlock()
}

// Close stops the prune loop. Safe to call multiple times.
func (s *Local) Close(_ context.Context) error {
	s.once.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			s.ticker.Stop()
			s.wg.Wait()
		}
	})
	return nil
}
