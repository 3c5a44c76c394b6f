package course

import (
	"context"
	"errors"

	"github.com/trezcool/alertify/core/user"
)

var (
	// errors
	ErrNotFound         = errors.New("course not found")
	ErrActivityNotFound = errors.New("activity not found")
)

// Provider reads courses, activities, enrolments and completions from the host.
type Provider interface {
	GetCourse(ctx context.Context, id int) (Course, error)
	// GetActivity returns ErrActivityNotFound for unknown or deleted activities.
	GetActivity(ctx context.Context, id int) (Activity, error)
	QueryActivities(ctx context.Context, courseID int) ([]Activity, error)
	// EnrolledUsers returns users with an active enrolment in the course.
	EnrolledUsers(ctx context.Context, courseID int) ([]user.User, error)
	// CompletedUserIDs returns the users whose completion state for the activity is "complete".
	CompletedUserIDs(ctx context.Context, activityID int) ([]int, error)
}
