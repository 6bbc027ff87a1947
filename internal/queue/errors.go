package queue

import "errors"

var (
	// ErrNotFound is returned when an operation targets a queue item that
	// does not exist.
	ErrNotFound = errors.New("queue item not found")

	// ErrInvalidState is returned when cancellation targets an item that has
	// already reached a terminal status.
	ErrInvalidState = errors.New("queue item is in a terminal state")
)
