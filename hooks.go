package retainstate

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// They are called synchronously from registry operations.
type Hooks interface {
	// Providers under key were saved; count is the number of values appended.
	ValueSaved(key string, count int)

	// A retained value was handed to a consumer.
	ValueConsumed(key string)

	// ConsumeValue found nothing under key.
	ConsumeMissed(key string)

	// The settle sweep dropped values under keys nobody reclaimed.
	UnclaimedForgotten(keys, values int)

	// The CanRetainChecker declined the save for this host instance.
	SaveSkipped(instanceID string)

	// A provider failed during a save batch; nothing from the batch was committed.
	ProviderFailed(key string, err error)

	// A durable snapshot was dropped on restore.
	// reason ∈ {"corrupt", "stale_epoch", "value_decode"}
	SnapshotRejected(hostKey, reason string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) ValueSaved(string, int)          {}
func (NopHooks) ValueConsumed(string)            {}
func (NopHooks) ConsumeMissed(string)            {}
func (NopHooks) UnclaimedForgotten(int, int)     {}
func (NopHooks) SaveSkipped(string)              {}
func (NopHooks) ProviderFailed(string, error)    {}
func (NopHooks) SnapshotRejected(string, string) {}
