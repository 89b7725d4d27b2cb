// Package optional carries "was this key present" information through JSON
// decoding so partial updates only touch the fields a client sent.
package optional

import (
	"bytes"
	"encoding/json"
)

// Field records whether a JSON key was present, whether it held null, and
// its decoded value otherwise.
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func Of[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

func Null[T any]() Field[T] {
	return Field[T]{Set: true, Null: true}
}

// Get returns the value and true only when the key was present with a non-null value.
func (f Field[T]) Get() (T, bool) {
	if !f.Set || f.Null {
		var zero T
		return zero, false
	}
	return f.Value, true
}

// Ptr returns nil when the field is absent or null.
func (f Field[T]) Ptr() *T {
	v, ok := f.Get()
	if !ok {
		return nil
	}
	return &v
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		f.Null = true
		f.Value = zero
		return nil
	}
	f.Null = false
	return json.Unmarshal(data, &f.Value)
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Set || f.Null {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}
