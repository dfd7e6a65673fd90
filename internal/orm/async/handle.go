package async

import "context"

// State tags which variant a Handle holds
type State int

const (
	// StateReady holds a known value and nothing outstanding
	StateReady State = iota
	// StatePendingRead holds an outstanding read
	StatePendingRead
	// StatePendingWrite holds the assigned value and its outstanding write
	StatePendingWrite
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StatePendingRead:
		return "pending-read"
	case StatePendingWrite:
		return "pending-write"
	default:
		return "unknown"
	}
}

// Handle is the value of an asynchronous field: either a read in flight, a
// write in flight together with the value being written, or a ready value.
type Handle[T any] struct {
	state State
	value T
	read  *Future[T]
	write *Future[struct{}]
}

// Ready returns a handle around a known value
func Ready[T any](value T) Handle[T] {
	return Handle[T]{state: StateReady, value: value}
}

// PendingRead returns a handle resolving to the result of read
func PendingRead[T any](read *Future[T]) Handle[T] {
	return Handle[T]{state: StatePendingRead, read: read}
}

// PendingWrite returns a handle for value whose write is in flight
func PendingWrite[T any](value T, write *Future[struct{}]) Handle[T] {
	return Handle[T]{state: StatePendingWrite, value: value, write: write}
}

// State returns the variant the handle was constructed as
func (h Handle[T]) State() State {
	return h.state
}

// Wait blocks for the handle's value. For a pending write this is the assigned
// value once the write has succeeded.
func (h Handle[T]) Wait(ctx context.Context) (T, error) {
	switch h.state {
	case StatePendingRead:
		return h.read.Wait(ctx)
	case StatePendingWrite:
		if _, err := h.write.Wait(ctx); err != nil {
			var zero T
			return zero, err
		}
	}
	return h.value, nil
}

// Await blocks until the outstanding operation in either direction completes
func (h Handle[T]) Await(ctx context.Context) error {
	_, err := h.Wait(ctx)
	return err
}

// Future returns the handle's value as a future
func (h Handle[T]) Future() *Future[T] {
	switch h.state {
	case StatePendingRead:
		return h.read
	case StatePendingWrite:
		value := h.value
		return Then(h.write, func(struct{}) (T, error) { return value, nil })
	default:
		return Resolved(h.value, nil)
	}
}
