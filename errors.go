package retainstate

import (
	"errors"
	"fmt"
)

var (
	// ErrNoHost is returned (or panicked with, see Hosts.MustLookup) when a consumer
	// asks for a host that was never created. Retention would silently stop working.
	ErrNoHost = errors.New("retainstate: no registry host for key")

	// ErrHostDestroyed is returned by Host.Attach after OnPermanentDestroy.
	ErrHostDestroyed = errors.New("retainstate: host permanently destroyed")
)

// ProviderError reports a provider that failed during a save batch.
// No value from the batch was committed.
type ProviderError struct {
	Key string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("save %q: provider failed: %v", e.Key, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// TypeMismatchError reports a retained value whose dynamic type does not match the
// consumer slot that claimed it. The value has been consumed regardless.
type TypeMismatchError struct {
	Key  string
	Want string
	Got  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("restore %q: retained value is %s, want %s", e.Key, e.Got, e.Want)
}
