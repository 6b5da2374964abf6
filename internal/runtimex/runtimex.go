// Package runtimex contains [runtime] extensions.
package runtimex

import (
	"errors"
	"fmt"
)

// PanicIfFalse calls panic with the given message if the given statement is false.
func PanicIfFalse(stmt bool, message interface{}) {
	if !stmt {
		panic(message)
	}
}

// PanicIfTrue calls panic with the given message if the given statement is true.
func PanicIfTrue(stmt bool, message interface{}) {
	if stmt {
		panic(message)
	}
}

// Assert calls panic with the given message if the given statement is false.
var Assert = PanicIfFalse

// PanicOnError calls panic if err is not nil.
func PanicOnError(err error, message string) {
	if err != nil {
		panic(fmt.Errorf("%s: %w", message, err))
	}
}

// ErrPanic wraps a value recovered by [Catch].
var ErrPanic = errors.New("recovered panic")

// Catch runs fx and converts a panic into an error wrapping [ErrPanic]. When
// the panic value is itself an error it is wrapped as well.
func Catch(fx func() error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e, ok := r.(error); ok {
			err = fmt.Errorf("%w: %w", ErrPanic, e)
			return
		}
		err = fmt.Errorf("%w: %v", ErrPanic, r)
	}()
	return fx()
}
