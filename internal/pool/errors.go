package pool

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	// ErrShuttingDown is returned by Acquire once CloseAll has begun.
	// Not retryable.
	ErrShuttingDown = errors.New("session pool shutting down")

	// ErrExhausted is returned when the capacity bound is reached and the
	// acquisition wait budget ran out. Expected under sustained overload;
	// callers should back off and retry at a higher level.
	ErrExhausted = errors.New("session pool exhausted")
)

// ExhaustedError carries a stats snapshot so operators can tell "too much
// load" apart from "remote service is rejecting logins".
type ExhaustedError struct {
	Stats Stats
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("session pool exhausted: %s", e.Stats)
}

func (e *ExhaustedError) Unwrap() error {
	return ErrExhausted
}
