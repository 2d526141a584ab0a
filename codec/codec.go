// Package codec converts retained values to and from bytes for durable snapshots.
// The registry never encodes anything itself; codecs are used by snapshot.Persister.
//
// Values round-trip through a self-describing format, so a restored value carries the
// format's natural Go shape (e.g. JSON numbers come back as float64, maps as
// map[string]any). Consumers restoring from a durable snapshot should claim them as such.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
