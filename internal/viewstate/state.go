// Package viewstate models the lifecycle of a screen that loads one value.
package viewstate

import (
	"context"
	"fmt"
)

type Status int

const (
	Idle Status = iota
	Loading
	Success
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Failed:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// State is exactly one of idle, loading, success with a value, or failed
// with an error. The zero value is idle.
type State[T any] struct {
	status Status
	value  T
	err    error
}

func NewLoading[T any]() State[T] {
	return State[T]{status: Loading}
}

func NewSuccess[T any](v T) State[T] {
	return State[T]{status: Success, value: v}
}

// NewFailed panics on a nil error; a failed state always carries its cause.
func NewFailed[T any](err error) State[T] {
	if err == nil {
		panic("viewstate: failed state without error")
	}
	return State[T]{status: Failed, err: err}
}

func (s State[T]) Status() Status { return s.status }

// Value returns the loaded value and whether the state is Success.
func (s State[T]) Value() (T, bool) {
	return s.value, s.status == Success
}

func (s State[T]) Err() error { return s.err }

// Load runs fn, reporting Loading before the call and the outcome after.
// render may be nil.
func Load[T any](ctx context.Context, fn func(context.Context) (T, error), render func(State[T])) State[T] {
	if render == nil {
		render = func(State[T]) {}
	}
	render(NewLoading[T]())

	v, err := fn(ctx)
	var out State[T]
	if err != nil {
		out = NewFailed[T](err)
	} else {
		out = NewSuccess(v)
	}
	render(out)
	return out
}
