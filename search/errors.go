package search

import (
	"errors"
	"fmt"
)

var ErrNotOpen = errors.New("search session not open")

// SessionInitError means the browser or the session's tab could not be
// acquired. Nothing can run without it.
type SessionInitError struct {
	Err error
}

func (e *SessionInitError) Error() string {
	return fmt.Sprintf("session init: %v", e.Err)
}

func (e *SessionInitError) Unwrap() error { return e.Err }

// AttemptFailed wraps any failure during one search attempt. Step names the
// part of the procedure that failed.
type AttemptFailed struct {
	Term string
	Step string
	Err  error
}

func (e *AttemptFailed) Error() string {
	return fmt.Sprintf("attempt for %q failed at %s: %v", e.Term, e.Step, e.Err)
}

func (e *AttemptFailed) Unwrap() error { return e.Err }
