// Package result models an operation outcome as either a value or a failure reason,
// leaving the choice of a substitute value to the caller.
package result

// Result is Ok(value) or Err(reason).
type Result[T any] struct {
	value T
	err   error
}

func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

func Err[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// From wraps a conventional (value, error) pair.
func From[T any](v T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(v)
}

func (r Result[T]) IsOk() bool { return r.err == nil }

func (r Result[T]) Err() error { return r.err }

// Unwrap returns the pair form.
func (r Result[T]) Unwrap() (T, error) {
	return r.value, r.err
}

// OrElse returns the value, or fallback when the result is an error.
func (r Result[T]) OrElse(fallback T) T {
	if r.err != nil {
		return fallback
	}
	return r.value
}

// OrElseFunc computes a substitute only when the result is an error.
func (r Result[T]) OrElseFunc(fn func(error) Result[T]) Result[T] {
	if r.err != nil {
		return fn(r.err)
	}
	return r
}
