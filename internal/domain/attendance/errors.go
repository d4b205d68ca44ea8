package attendance

import (
	"errors"
	"fmt"
)

// Attendance domain errors
var (
	ErrSessionNotFound      = errors.New("attendance session not found")
	ErrSessionAlreadyClosed = errors.New("attendance session is already closed")
	ErrOpenSessionExists    = errors.New("member already has an open attendance session")
	ErrClubNotFound         = errors.New("club not found")

	ErrMemberIDRequired = errors.New("member id is required")
	ErrClubIDRequired   = errors.New("club id is required")
)

// PersistenceError reports a failed session create or close.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
