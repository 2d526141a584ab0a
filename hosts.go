package retainstate

import (
	"fmt"
	"sort"
	"sync"
)

// Hosts is the keyed set of Hosts a rebuilding UI looks its registries up in.
// Every host is created from the same template options; Key is filled per host.
type Hosts struct {
	template HostOptions

	mu    sync.RWMutex
	hosts map[string]*Host
}

func NewHosts(template HostOptions) *Hosts {
	return &Hosts{template: template, hosts: make(map[string]*Host)}
}

// GetOrCreate returns the host for key, creating it on first use.
func (s *Hosts) GetOrCreate(key string) (*Host, error) {
	s.mu.RLock()
	h, ok := s.hosts[key]
	s.mu.RUnlock()
	if ok {
		return h, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.hosts[key]; ok {
		return h, nil
	}
	opts := s.template
	opts.Key = key
	h, err := NewHost(opts)
	if err != nil {
		return nil, err
	}
	s.hosts[key] = h
	return h, nil
}

// Lookup returns the existing host for key or an error wrapping ErrNoHost.
func (s *Hosts) Lookup(key string) (*Host, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hosts[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoHost, key)
	}
	return h, nil
}

// MustLookup is like Lookup but panics when the host is missing.
func (s *Hosts) MustLookup(key string) *Host {
	h, err := s.Lookup(key)
	if err != nil {
		panic(err)
	}
	return h
}

// Destroy permanently destroys the host for key and forgets it.
// Reports whether a host existed.
func (s *Hosts) Destroy(key string) bool {
	s.mu.Lock()
	h, ok := s.hosts[key]
	delete(s.hosts, key)
	s.mu.Unlock()
	if !ok {
		return false
	}
	h.OnPermanentDestroy()
	return true
}

// Keys returns the host keys in ascending order.
func (s *Hosts) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.hosts))
	for k := range s.hosts {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

func (s *Hosts) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.hosts)
}
