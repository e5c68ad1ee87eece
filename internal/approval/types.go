package approval

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when an id is unknown, already resolved or expired.
	ErrNotFound = errors.New("approval not found or expired")

	// ErrExpired is returned by Take for an entry whose timeout elapsed before it was swept.
	ErrExpired = fmt.Errorf("%w: timed out", ErrNotFound)

	// ErrDuplicateID is returned by Put when the id is already pending.
	ErrDuplicateID = errors.New("approval id already pending")
)

// Action names a resume action. The coordinator maps it to a registered Handler.
type Action string

// Request is a pending approval.
type Request struct {
	ID        string
	Prompt    string
	Payload   any
	OnApprove Action
	OnReject  Action
	CreatedAt time.Time
}

// Status tags a Result.
type Status int

const (
	// StatusResolved means the approve branch ran successfully.
	StatusResolved Status = iota + 1
	// StatusCancelled means the reject branch ran successfully.
	StatusCancelled
	// StatusError means the resume action failed or panicked.
	StatusError
	// StatusNotFound means the id was unknown, already resolved or expired.
	StatusNotFound
)

func (s Status) String() string {
	switch s {
	case StatusResolved:
		return "resolved"
	case StatusCancelled:
		return "cancelled"
	case StatusError:
		return "error"
	case StatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Result is the outcome of Resolve. Value is set for resolved and cancelled
// results, Message for errors.
type Result struct {
	Status  Status
	Value   any
	Message string
}

// Clock supplies the current time to the store.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }
