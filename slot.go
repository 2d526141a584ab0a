package retainstate

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sync"
)

// Slot is a typed consumer site: on creation it claims a retained value for its key
// (or computes a fresh one) and registers itself so its current value is saved on
// the next teardown.
type Slot[T any] struct {
	key      string
	restored bool
	entry    Entry

	mu sync.Mutex
	v  T
}

// Retain consumes the next retained value under key, falling back to init when there
// is none. Values that went through a dynamic snapshot codec are converted back to T:
// numbers losslessly across kinds (float64(42) -> int), maps and slices by field name
// into structs, slices and maps. A retained value that cannot be converted is
// consumed, reported as *TypeMismatchError, and not registered.
func Retain[T any](r Registrar, key string, init func() (T, error)) (*Slot[T], error) {
	s := &Slot[T]{key: key}
	if raw, ok := r.ConsumeValue(key); ok {
		v, ok := raw.(T)
		if !ok {
			v, ok = convert[T](raw)
		}
		if !ok {
			return nil, &TypeMismatchError{
				Key:  key,
				Want: fmt.Sprintf("%T", *new(T)),
				Got:  fmt.Sprintf("%T", raw),
			}
		}
		s.v, s.restored = v, true
	} else if init != nil {
		v, err := init()
		if err != nil {
			return nil, err
		}
		s.v = v
	}
	s.entry = r.RegisterValue(key, func() (any, error) { return s.Get(), nil })
	return s, nil
}

func (s *Slot[T]) Key() string { return s.key }

// Restored reports whether the value came from a previous pass.
func (s *Slot[T]) Restored() bool { return s.restored }

func (s *Slot[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v
}

func (s *Slot[T]) Set(v T) {
	s.mu.Lock()
	s.v = v
	s.mu.Unlock()
}

// Dispose is the normal (non-recreation) disposal of the consumer site.
// Already-saved values are unaffected.
func (s *Slot[T]) Dispose() { s.entry.Unregister() }

// convert turns a decoded snapshot value back into T. It refuses lossy numeric
// conversions (fractions, overflow, negative to unsigned).
func convert[T any](raw any) (T, bool) {
	var zero T
	want := reflect.TypeOf((*T)(nil)).Elem()
	if raw == nil {
		switch want.Kind() {
		case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
			return zero, true
		}
		return zero, false
	}
	rv := reflect.ValueOf(raw)
	out := reflect.New(want).Elem()

	switch {
	case isNumber(rv.Kind()) && isNumber(want.Kind()):
		if !convertNumber(rv, out) {
			return zero, false
		}
	case isComposite(want.Kind()) && isDecoded(rv.Kind()):
		b, err := json.Marshal(raw)
		if err != nil {
			return zero, false
		}
		if err := json.Unmarshal(b, out.Addr().Interface()); err != nil {
			return zero, false
		}
	default:
		return zero, false
	}
	v, ok := out.Interface().(T)
	return v, ok
}

func isNumber(k reflect.Kind) bool {
	return (k >= reflect.Int && k <= reflect.Uint64) || k == reflect.Float32 || k == reflect.Float64
}

func isComposite(k reflect.Kind) bool {
	switch k {
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array, reflect.Pointer:
		return true
	}
	return false
}

// isDecoded reports shapes dynamic codecs produce for composite values. Strings carry
// base64 []byte from JSON and ProtoValue.
func isDecoded(k reflect.Kind) bool {
	switch k {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.String:
		return true
	}
	return false
}

func convertNumber(src, dst reflect.Value) bool {
	switch dst.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		switch {
		case src.CanInt():
			n = src.Int()
		case src.CanUint():
			u := src.Uint()
			if u > math.MaxInt64 {
				return false
			}
			n = int64(u)
		default:
			f := src.Float()
			if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
				return false
			}
			n = int64(f)
		}
		if dst.OverflowInt(n) {
			return false
		}
		dst.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		var u uint64
		switch {
		case src.CanUint():
			u = src.Uint()
		case src.CanInt():
			n := src.Int()
			if n < 0 {
				return false
			}
			u = uint64(n)
		default:
			f := src.Float()
			if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 {
				return false
			}
			u = uint64(f)
		}
		if dst.OverflowUint(u) {
			return false
		}
		dst.SetUint(u)
	default:
		var f float64
		switch {
		case src.CanInt():
			f = float64(src.Int())
		case src.CanUint():
			f = float64(src.Uint())
		default:
			f = src.Float()
		}
		if dst.OverflowFloat(f) {
			return false
		}
		dst.SetFloat(f)
	}
	return true
}
