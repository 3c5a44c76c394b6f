package user

import "context"

type Capability string

const (
	CapViewHiddenCourses    Capability = "moodle/course:viewhiddencourses"
	CapViewHiddenActivities Capability = "moodle/course:viewhiddenactivities"
)

// Scope locates a capability check. ActivityID may be 0 for course level checks.
type Scope struct {
	CourseID   int
	ActivityID int
}

// CapabilityChecker answers host permission questions.
type CapabilityChecker interface {
	HasCapability(ctx context.Context, usr User, capability Capability, scope Scope) (bool, error)
}

// CapabilityFunc adapts a plain function to a CapabilityChecker.
type CapabilityFunc func(ctx context.Context, usr User, capability Capability, scope Scope) (bool, error)

func (f CapabilityFunc) HasCapability(ctx context.Context, usr User, capability Capability, scope Scope) (bool, error) {
	return f(ctx, usr, capability, scope)
}
