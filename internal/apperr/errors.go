// Package apperr holds the error taxonomy shared across packages.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvariant     = errors.New("invariant violation")
)

// Remote status codes. Zero is success; anything else is a failure whose
// payload describes the problem.
const (
	StatusOK       = 0
	StatusNotFound = 404
	StatusConflict = 409
	StatusInternal = 500
)

// RemoteOperationError reports a failed remote call. Payload preserves the
// raw failure detail returned by the remote store.
type RemoteOperationError struct {
	Op      string
	Status  int
	Payload string
	Err     error
}

func (e *RemoteOperationError) Error() string {
	switch {
	case e.Err != nil && e.Payload != "":
		return fmt.Sprintf("remote %s failed (status %d): %s: %v", e.Op, e.Status, e.Payload, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("remote %s failed (status %d): %s", e.Op, e.Status, e.Payload)
	}
}

func (e *RemoteOperationError) Unwrap() error {
	return e.Err
}

// Is maps well-known statuses onto the sentinel errors. A conflict on
// create means the id is taken and also matches ErrAlreadyExists.
func (e *RemoteOperationError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == StatusNotFound
	case ErrConflict:
		return e.Status == StatusConflict
	case ErrAlreadyExists:
		return e.Status == StatusConflict && e.Op == "create"
	}
	return false
}

// Remote builds a RemoteOperationError from a status and payload.
func Remote(op string, status int, payload string) error {
	return &RemoteOperationError{Op: op, Status: status, Payload: payload}
}

// WrapRemote converts err into a RemoteOperationError unless it already is
// one (or an invariant violation, which must stay distinguishable).
func WrapRemote(op string, err error) error {
	if err == nil {
		return nil
	}
	var roe *RemoteOperationError
	if errors.As(err, &roe) || errors.Is(err, ErrInvariant) {
		return err
	}
	return &RemoteOperationError{Op: op, Status: StatusInternal, Err: err}
}

// Invariantf reports a programmer error such as a malformed payload or a
// lookup of a note that must exist.
func Invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}
