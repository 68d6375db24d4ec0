package domain

import (
	"errors"
	"fmt"
)

// ErrScoring marks a failure to compute a relevance score.
var ErrScoring = errors.New("relevance scoring failed")

// InsertOutcome classifies a successful call to the dedup store.
type InsertOutcome int

const (
	Inserted InsertOutcome = iota
	SkippedDuplicate
)

func (o InsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case SkippedDuplicate:
		return "skipped_duplicate"
	default:
		return "unknown"
	}
}

// SessionInitError means no browser session could be created. It aborts the run.
type SessionInitError struct {
	Err error
}

func (e *SessionInitError) Error() string {
	return fmt.Sprintf("browser session init: %v", e.Err)
}

func (e *SessionInitError) Unwrap() error {
	return e.Err
}

// FetchError is returned once every attempt for a URL has failed.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// PersistError wraps an underlying storage fault for a single posting.
type PersistError struct {
	URL string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.URL, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
