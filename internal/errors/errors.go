// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRepoFormat is returned when a repository name is not in
// 'owner/name' form.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}

// CloneError is a transport or auth failure while cloning a repository.
// NotFound distinguishes a deleted/private repository (permanent) from a
// transient failure worth retrying on the next sweep.
type CloneError struct {
	URL      string
	NotFound bool
	Output   string
}

func (e *CloneError) Error() string {
	if e.NotFound {
		return fmt.Sprintf("clone %s: repository not found", e.URL)
	}
	return fmt.Sprintf("clone %s: %s", e.URL, e.Output)
}

// TimeoutError is returned when a bounded stage exceeded its budget.
type TimeoutError struct {
	Stage  string
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s exceeded %s budget", e.Stage, e.Budget)
}

// TooLargeError is a guard rejection: the repository exceeds the ref
// count, reported size, or distinct author ceiling.
type TooLargeError struct {
	Reason string
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("repository too large: %s", e.Reason)
}

// SyncError is an ingestion-layer failure not otherwise classified.
type SyncError struct {
	Stage string
	Err   error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s: %v", e.Stage, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a CloneError classified as a
// missing or private repository.
func IsNotFound(err error) bool {
	var ce *CloneError
	return errors.As(err, &ce) && ce.NotFound
}

// IsTooLarge reports whether err is a guard rejection.
func IsTooLarge(err error) bool {
	var te *TooLargeError
	return errors.As(err, &te)
}

// IsTimeout reports whether err is a stage budget overrun.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
