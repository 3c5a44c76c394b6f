package alert

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/trezcool/alertify/core"
	"github.com/trezcool/alertify/core/course"
)

var nowFunc = time.Now // mockable

const invalidAlertName = "Invalid alert"

type (
	Repository interface {
		CreateAlert(ctx context.Context, a Alert) (Alert, error)
		GetAlert(ctx context.Context, id int) (Alert, error)
		// QueryAlerts applies AND operation on the set QueryFilter fields.
		QueryAlerts(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Alert, error)
		UpdateAlert(ctx context.Context, a Alert) (Alert, error)
		// AdvanceNextDue sets the due date of alert id to next only if it still equals prev,
		// otherwise it returns ErrConflict.
		AdvanceNextDue(ctx context.Context, id int, prev, next time.Time) error
		DeleteAlerts(ctx context.Context, filter DeleteFilter) (int, error)
	}

	Options struct {
		Cadence         time.Duration
		Location        *time.Location
		DefaultTemplate string
	}

	Service struct {
		repo      Repository
		courses   course.Provider
		validator *core.Validator
		opts      Options
	}
)

func NewService(repo Repository, courses course.Provider, validator *core.Validator, opts Options) *Service {
	if opts.Cadence <= 0 {
		opts.Cadence = DefaultCadence
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Service{
		repo:      repo,
		courses:   courses,
		validator: validator,
		opts:      opts,
	}
}

func (svc *Service) Location() *time.Location {
	return svc.opts.Location
}

// repoErr keeps domain errors as is and tags anything else as a storage fault.
func repoErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrNotFound, ErrConflict, ErrAlertExists, ErrEmptyFilter} {
		if errors.Is(err, known) {
			return err
		}
	}
	var rerr *RepositoryError
	if errors.As(err, &rerr) {
		return err
	}
	return &RepositoryError{Op: op, Err: err}
}

func fieldErr(field string, err error) error {
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}

func (svc *Service) Create(ctx context.Context, na NewAlert) (Alert, error) {
	if strings.TrimSpace(na.Template) == "" {
		na.Template = svc.opts.DefaultTemplate
	}
	if err := svc.validator.Struct(na); err != nil {
		return Alert{}, err
	}

	crs, err := svc.courses.GetCourse(ctx, na.CourseID)
	if err != nil {
		if errors.Is(err, course.ErrNotFound) {
			return Alert{}, fieldErr("course", err)
		}
		return Alert{}, err
	}
	act, err := svc.courses.GetActivity(ctx, na.ActivityID)
	if err != nil {
		if errors.Is(err, course.ErrActivityNotFound) {
			return Alert{}, fieldErr("cmid", err)
		}
		return Alert{}, err
	}
	if act.CourseID != crs.ID {
		return Alert{}, fieldErr("cmid", ErrCourseMismatch)
	}
	if !act.CompletionTracked {
		return Alert{}, fieldErr("cmid", ErrCompletionDisabled)
	}

	existing, err := svc.repo.QueryAlerts(ctx, QueryFilter{CourseID: crs.ID, ActivityID: act.ID})
	if err != nil {
		return Alert{}, repoErr("query", err)
	}
	if len(existing) > 0 {
		return Alert{}, fieldErr("cmid", ErrAlertExists)
	}

	now := nowFunc().UTC().Truncate(time.Microsecond)
	a, err := svc.repo.CreateAlert(ctx, Alert{
		CourseID:   crs.ID,
		ActivityID: act.ID,
		Template:   na.Template,
		Enabled:    na.Enabled,
		CreatedAt:  now,
		UpdatedAt:  now,
		NextDueAt:  now,
	})
	if errors.Is(err, ErrAlertExists) {
		return Alert{}, fieldErr("cmid", err)
	}
	return a, repoErr("create", err)
}

// Get returns the alert id. A non-zero courseID must match the alert's course.
func (svc *Service) Get(ctx context.Context, courseID, id int) (Alert, error) {
	a, err := svc.repo.GetAlert(ctx, id)
	if err != nil {
		return Alert{}, repoErr("get", err)
	}
	if courseID != 0 && a.CourseID != courseID {
		return Alert{}, ErrCourseMismatch
	}
	return a, nil
}

func (svc *Service) QueryByCourse(ctx context.Context, courseID int, enabledOnly bool) ([]Alert, error) {
	filter := QueryFilter{CourseID: courseID}
	if enabledOnly {
		enabled := true
		filter.Enabled = &enabled
	}
	alerts, err := svc.repo.QueryAlerts(ctx, filter, core.DBOrdering{Field: "id", Ascending: true})
	return alerts, repoErr("query", err)
}

// Summaries lists the course alerts with their activity names.
// Alerts without a resolvable activity are flagged invalid.
func (svc *Service) Summaries(ctx context.Context, courseID int) ([]Summary, error) {
	alerts, err := svc.QueryByCourse(ctx, courseID, false)
	if err != nil {
		return nil, err
	}
	summaries := make([]Summary, 0, len(alerts))
	for _, a := range alerts {
		s := Summary{Alert: a, ActivityName: invalidAlertName}
		if a.HasTarget() {
			act, err := svc.courses.GetActivity(ctx, a.ActivityID)
			switch {
			case errors.Is(err, course.ErrActivityNotFound):
			case err != nil:
				return nil, err
			case act.CourseID == a.CourseID:
				s.ActivityName = act.Name
				s.Valid = true
			}
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

// Update writes the template and enabled flag. The activity reference cannot change.
func (svc *Service) Update(ctx context.Context, courseID, id int, uu UpdateAlert) (Alert, error) {
	if err := svc.validator.Struct(uu); err != nil {
		return Alert{}, err
	}
	a, err := svc.Get(ctx, courseID, id)
	if err != nil {
		return Alert{}, err
	}
	if !uu.Dirty() {
		return a, nil
	}
	uu.Apply(&a)
	a.UpdatedAt = nowFunc().UTC()
	a, err = svc.repo.UpdateAlert(ctx, a)
	return a, repoErr("update", err)
}

func (svc *Service) Delete(ctx context.Context, courseID, id int) error {
	if _, err := svc.Get(ctx, courseID, id); err != nil {
		return err
	}
	_, err := svc.repo.DeleteAlerts(ctx, DeleteFilter{IDs: []int{id}})
	return repoErr("delete", err)
}

// DeleteByActivity removes the alerts of a deleted activity.
func (svc *Service) DeleteByActivity(ctx context.Context, activityID int) (int, error) {
	if activityID <= 0 {
		return 0, ErrEmptyFilter
	}
	n, err := svc.repo.DeleteAlerts(ctx, DeleteFilter{ActivityID: activityID})
	return n, repoErr("delete", err)
}

// DeleteByCourse removes every alert of a course.
func (svc *Service) DeleteByCourse(ctx context.Context, courseID int) (int, error) {
	if courseID <= 0 {
		return 0, ErrEmptyFilter
	}
	n, err := svc.repo.DeleteAlerts(ctx, DeleteFilter{CourseID: courseID})
	return n, repoErr("delete", err)
}

// AvailableActivities returns the completion tracked activities of a course that have no alert yet.
func (svc *Service) AvailableActivities(ctx context.Context, courseID int) ([]course.Activity, error) {
	acts, err := svc.courses.QueryActivities(ctx, courseID)
	if err != nil {
		return nil, err
	}
	alerts, err := svc.QueryByCourse(ctx, courseID, false)
	if err != nil {
		return nil, err
	}
	taken := make(map[int]bool, len(alerts))
	for _, a := range alerts {
		taken[a.ActivityID] = true
	}

	available := make([]course.Activity, 0, len(acts))
	for _, act := range acts {
		if act.CompletionTracked && !taken[act.ID] {
			available = append(available, act)
		}
	}
	return available, nil
}

// DueAlerts returns the enabled alerts whose due date falls on the calendar day of today.
func (svc *Service) DueAlerts(ctx context.Context, today time.Time) ([]Alert, error) {
	start, end := core.DayBounds(today, svc.opts.Location)
	enabled := true
	alerts, err := svc.repo.QueryAlerts(ctx, QueryFilter{Enabled: &enabled, DueFrom: start, DueTo: end})
	if err != nil {
		return nil, repoErr("due alerts", err)
	}
	if alerts == nil {
		alerts = []Alert{}
	}
	return alerts, nil
}

// MarkSent advances the due date of a by one cadence after a send pass.
func (svc *Service) MarkSent(ctx context.Context, a Alert) (Alert, error) {
	next := a.NextDue(svc.opts.Cadence)
	if err := svc.repo.AdvanceNextDue(ctx, a.ID, a.NextDueAt, next); err != nil {
		return a, &SaveError{AlertID: a.ID, Err: err}
	}
	a.NextDueAt = next
	return a, nil
}
