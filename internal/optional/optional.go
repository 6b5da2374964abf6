// Package optional holds values that may be absent, such as interface
// settings a host platform cannot express.
package optional

import (
	"fmt"

	"github.com/speedguard/sgvpn/internal/runtimex"
)

// Value is an optional value. The zero value is equivalent to [None].
type Value[T any] struct {
	value T
	set   bool
}

// None constructs an empty value.
func None[T any]() Value[T] {
	return Value[T]{}
}

// Some constructs a set value.
func Some[T any](value T) Value[T] {
	return Value[T]{value: value, set: true}
}

// IsNone returns whether this [Value] is empty.
func (v Value[T]) IsNone() bool {
	return !v.set
}

// Unwrap returns the underlying value or panics.
func (v Value[T]) Unwrap() T {
	runtimex.Assert(v.set, "optional: unwrap of None")
	return v.value
}

// UnwrapOr returns the fallback if the [Value] is empty.
func (v Value[T]) UnwrapOr(fallback T) T {
	if !v.set {
		return fallback
	}
	return v.value
}

// String implements fmt.Stringer.
func (v Value[T]) String() string {
	if !v.set {
		return "<none>"
	}
	return fmt.Sprintf("%v", v.value)
}
