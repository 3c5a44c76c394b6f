package alert

import (
	"errors"
	"fmt"

	"github.com/trezcool/alertify/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("alert not found")
	ErrAlertExists        = errors.New("an alert already exists for this activity")
	ErrCourseMismatch     = errors.New("the alert does not belong to this course")
	ErrCompletionDisabled = errors.New("completion tracking is not enabled for this activity")
	ErrConflict           = errors.New("the alert was modified by another run")
	ErrLocked             = errors.New("the alert is being processed by another run")
	ErrNoEmail            = errors.New("recipient has no email address")
	ErrEmptyFilter        = errors.New("refusing to delete with an empty filter")
)

// RepositoryError is a storage fault while reading or writing alerts.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("alert repository: %s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// InvalidTargetError is returned when an alert's activity reference cannot be resolved.
type InvalidTargetError struct {
	AlertID    int
	CourseID   int
	ActivityID int
	Err        error
}

func (e *InvalidTargetError) Error() string {
	msg := fmt.Sprintf("alert %d: invalid activity %d in course %d", e.AlertID, e.ActivityID, e.CourseID)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidTargetError) Unwrap() error { return e.Err }

// DeliveryError is a failed send to one recipient.
type DeliveryError struct {
	AlertID   int
	Recipient user.User
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("alert %d: delivering to user %d: %v", e.AlertID, e.Recipient.ID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// SaveError is a failure to persist the advanced due date.
type SaveError struct {
	AlertID int
	Err     error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("alert %d: saving next due date: %v", e.AlertID, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }
