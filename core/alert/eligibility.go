package alert

import (
	"context"
	"errors"

	"github.com/trezcool/alertify/core/course"
	"github.com/trezcool/alertify/core/user"
)

type (
	// Resolution is the target of an alert and who must be reminded about it.
	Resolution struct {
		Course     course.Course
		Activity   course.Activity
		Recipients []user.User
	}

	Resolver struct {
		courses course.Provider
		caps    user.CapabilityChecker
	}
)

func NewResolver(courses course.Provider, caps user.CapabilityChecker) *Resolver {
	return &Resolver{courses: courses, caps: caps}
}

// Target resolves the course and activity of a. It fails with *InvalidTargetError
// when the activity is unset, unknown or belongs to another course.
func (r *Resolver) Target(ctx context.Context, a Alert) (course.Course, course.Activity, error) {
	invalid := func(err error) error {
		return &InvalidTargetError{AlertID: a.ID, CourseID: a.CourseID, ActivityID: a.ActivityID, Err: err}
	}
	if !a.HasTarget() {
		return course.Course{}, course.Activity{}, invalid(nil)
	}

	act, err := r.courses.GetActivity(ctx, a.ActivityID)
	if err != nil {
		if errors.Is(err, course.ErrActivityNotFound) {
			return course.Course{}, course.Activity{}, invalid(err)
		}
		return course.Course{}, course.Activity{}, err
	}
	if act.CourseID != a.CourseID {
		return course.Course{}, course.Activity{}, invalid(ErrCourseMismatch)
	}

	crs, err := r.courses.GetCourse(ctx, a.CourseID)
	if err != nil {
		if errors.Is(err, course.ErrNotFound) {
			return course.Course{}, course.Activity{}, invalid(err)
		}
		return course.Course{}, course.Activity{}, err
	}
	return crs, act, nil
}

// Resolve computes the users enrolled in the course who have not completed the
// activity and are allowed to see it.
func (r *Resolver) Resolve(ctx context.Context, a Alert) (Resolution, error) {
	crs, act, err := r.Target(ctx, a)
	if err != nil {
		return Resolution{}, err
	}

	enrolled, err := r.courses.EnrolledUsers(ctx, crs.ID)
	if err != nil {
		return Resolution{}, err
	}
	completedIDs, err := r.courses.CompletedUserIDs(ctx, act.ID)
	if err != nil {
		return Resolution{}, err
	}
	completed := make(map[int]bool, len(completedIDs))
	for _, id := range completedIDs {
		completed[id] = true
	}

	scope := user.Scope{CourseID: crs.ID, ActivityID: act.ID}
	seen := make(map[int]bool, len(enrolled))
	recipients := make([]user.User, 0, len(enrolled))
	for _, usr := range enrolled {
		if seen[usr.ID] || completed[usr.ID] {
			continue
		}
		seen[usr.ID] = true

		ok, err := r.eligible(ctx, usr, crs, act, scope)
		if err != nil {
			return Resolution{}, err
		}
		if ok {
			recipients = append(recipients, usr)
		}
	}
	return Resolution{Course: crs, Activity: act, Recipients: recipients}, nil
}

func (r *Resolver) eligible(ctx context.Context, usr user.User, crs course.Course, act course.Activity, scope user.Scope) (bool, error) {
	// users who can see hidden courses are staff or observers, never students
	viewHiddenCourses, err := r.caps.HasCapability(ctx, usr, user.CapViewHiddenCourses, scope)
	if err != nil {
		return false, err
	}
	if viewHiddenCourses {
		return false, nil
	}

	if !crs.Visible && !viewHiddenCourses {
		return false, nil
	}
	if !act.Visible {
		viewHiddenActivities, err := r.caps.HasCapability(ctx, usr, user.CapViewHiddenActivities, scope)
		if err != nil {
			return false, err
		}
		if !viewHiddenActivities {
			return false, nil
		}
	}
	return true, nil
}
