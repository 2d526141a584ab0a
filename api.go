package retainstate

// ValueProvider produces the value to retain for a key. It is invoked only at save time.
// A returned error aborts the save batch and is surfaced to the save caller.
type ValueProvider func() (any, error)

// Entry is a single live registration returned by RegisterValue.
type Entry interface {
	// Unregister removes exactly this registration. Repeated calls are no-ops.
	Unregister()
}

// Registrar is the consumer-site facing half of a Registry.
type Registrar interface {
	ConsumeValue(key string) (any, bool)
	RegisterValue(key string, provider ValueProvider) Entry
}

// Registry is the retained-value store. Several entries may share a key; their values
// are saved in registration order and consumed FIFO.
type Registry interface {
	Registrar

	// SaveValue invokes every provider registered under key and appends the results
	// to the retained slot for key.
	SaveValue(key string) error
	// SaveAll performs SaveValue for every key with at least one provider, as one batch.
	SaveAll() error
	// ForgetUnclaimedValues drops every retained value that was not consumed.
	ForgetUnclaimedValues()

	// RetainedValues returns a copy of all retained (unconsumed) values.
	RetainedValues() map[string][]any
	// RestoreValues appends values to the retained slots, preserving their order.
	RestoreValues(values map[string][]any)
}

// Options tune a Registry. All fields are optional.
type Options struct {
	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used
}

func New(opts Options) Registry {
	return newRegistry(opts)
}
