// Package stage provides the tagged result type returned by every pipeline
// stage. A stage never fails outright: it either produces a real value (OK)
// or substitutes its documented fallback (Degraded) and records why.
package stage

import "fmt"

// Status tags how a stage produced its value.
type Status string

const (
	// StatusOK means the stage produced its value from a live dependency.
	StatusOK Status = "ok"
	// StatusDegraded means the stage substituted a fallback value.
	StatusDegraded Status = "degraded"
)

// Result carries a stage's value together with its status. Value is always
// usable regardless of Status.
type Result[T any] struct {
	// Value is the produced or fallback value.
	Value T
	// Status tags whether Value is real or a fallback.
	Status Status
	// Err is the cause of degradation. Nil when Status is StatusOK, and may be
	// nil for a degraded result that fell back without an underlying error
	// (e.g. a dependency that is simply not configured).
	Err error
}

// OK wraps a successfully produced value.
func OK[T any](v T) Result[T] {
	return Result[T]{Value: v, Status: StatusOK}
}

// Degraded wraps a fallback value and the reason it was used.
func Degraded[T any](fallback T, err error) Result[T] {
	return Result[T]{Value: fallback, Status: StatusDegraded, Err: err}
}

// IsDegraded reports whether the value is a fallback.
func (r Result[T]) IsDegraded() bool {
	return r.Status == StatusDegraded
}

// Guard runs fn and converts a panic into a degraded result carrying
// fallback, so one misbehaving stage cannot take down the caller.
func Guard[T any](fallback T, fn func() Result[T]) (res Result[T]) {
	defer func() {
		if p := recover(); p != nil {
			res = Degraded(fallback, fmt.Errorf("stage: recovered panic: %v", p))
		}
	}()
	return fn()
}
