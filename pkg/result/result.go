// Package result provides a two-case outcome container used to chain the
// fallible stages of the response decoding pipeline.
//
// A Result holds either a success value or a failure error, never both.
// Map and Bind apply a function to the success value and pass failures
// through untouched, so a pipeline written as a sequence of Bind calls stops
// at the first failing stage without a conditional at every call site:
//
//	body := internal.ValidateStatus(resp)
//	tree := result.Bind(body, internal.DecodeJSON)
//	iden := result.Bind(tree, internal.ParseCAPTCHAIden)
//	return iden.Unwrap()
package result

import "errors"

// errNilFailure is substituted when Failure is called with a nil error so a
// failed Result always carries an error.
var errNilFailure = errors.New("result: failure without error")

var errClosed = errors.New("result: channel closed without a result")

// Result is an immutable success-or-failure value.
// The zero value is a success holding the zero value of T.
type Result[T any] struct {
	value T
	err   error
}

// Success wraps v as a successful Result.
func Success[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Failure wraps err as a failed Result. A nil err is replaced by a generic
// error so the failure case is never empty.
func Failure[T any](err error) Result[T] {
	if err == nil {
		err = errNilFailure
	}
	return Result[T]{err: err}
}

// FromOptional converts an optional value into a Result: ok yields Success(v),
// otherwise Failure(fallback).
func FromOptional[T any](v T, ok bool, fallback error) Result[T] {
	if !ok {
		return Failure[T](fallback)
	}
	return Success(v)
}

// FromPointer is FromOptional for nil-able values.
func FromPointer[T any](p *T, fallback error) Result[*T] {
	return FromOptional(p, p != nil, fallback)
}

// From adapts a conventional (value, error) pair.
func From[T any](v T, err error) Result[T] {
	if err != nil {
		return Failure[T](err)
	}
	return Success(v)
}

// IsSuccess reports whether r holds a value.
func (r Result[T]) IsSuccess() bool { return r.err == nil }

// IsFailure reports whether r holds an error.
func (r Result[T]) IsFailure() bool { return r.err != nil }

// Value returns the success value and true, or the zero value and false.
func (r Result[T]) Value() (T, bool) {
	if r.err != nil {
		var zero T
		return zero, false
	}
	return r.value, true
}

// Err returns the failure error, or nil for a success.
func (r Result[T]) Err() error { return r.err }

// Unwrap returns r as a conventional (value, error) pair.
func (r Result[T]) Unwrap() (T, error) {
	if r.err != nil {
		var zero T
		return zero, r.err
	}
	return r.value, nil
}

// Map applies f to the success value of r. Failures pass through unchanged.
func Map[T, U any](r Result[T], f func(T) U) Result[U] {
	if r.err != nil {
		return Result[U]{err: r.err}
	}
	return Success(f(r.value))
}

// Bind applies the Result-returning f to the success value of r, flattening
// one level. Failures pass through unchanged.
func Bind[T, U any](r Result[T], f func(T) Result[U]) Result[U] {
	if r.err != nil {
		return Result[U]{err: r.err}
	}
	return f(r.value)
}
