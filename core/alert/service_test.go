package alert_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/trezcool/alertify/core"
	"github.com/trezcool/alertify/core/alert"
	"github.com/trezcool/alertify/core/course"
	"github.com/trezcool/alertify/storage/database/inmem"
	"github.com/trezcool/alertify/tests"
)

const defaultTemplate = "Hello {userfullname}, please complete {alink}."

var ctx = context.Background()

type fixture struct {
	repo alert.Repository
	host *inmemdb.HostRepository
	svc  *alert.Service
}

func setup(t *testing.T) fixture {
	db, host := testutil.PrepareDB(t)
	repo := inmemdb.NewAlertRepository(db)
	svc := alert.NewService(repo, host, core.NewValidator(), alert.Options{
		Cadence:         alert.DefaultCadence,
		Location:        time.UTC,
		DefaultTemplate: defaultTemplate,
	})
	testutil.CourseWithActivity(host, 10, 42)
	return fixture{repo: repo, host: host, svc: svc}
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	f.host.AddActivity(course.Activity{ID: 43, CourseID: 11, ModName: "page", Name: "Elsewhere", CompletionTracked: true})
	f.host.AddActivity(course.Activity{ID: 44, CourseID: 10, ModName: "page", Name: "Untracked"})
	f.host.AddActivity(course.Activity{ID: 45, CourseID: 10, ModName: "page", Name: "Reading", CompletionTracked: true})

	tests := []struct {
		name      string
		na        alert.NewAlert
		wantErr   error
		wantField string
	}{
		{name: "missing course", na: alert.NewAlert{ActivityID: 42, Template: "hi"}, wantField: "course"},
		{name: "missing activity", na: alert.NewAlert{CourseID: 10, Template: "hi"}, wantField: "cmid"},
		{name: "unknown course", na: alert.NewAlert{CourseID: 99, ActivityID: 42}, wantErr: course.ErrNotFound, wantField: "course"},
		{name: "unknown activity", na: alert.NewAlert{CourseID: 10, ActivityID: 99}, wantErr: course.ErrActivityNotFound, wantField: "cmid"},
		{name: "activity of another course", na: alert.NewAlert{CourseID: 10, ActivityID: 43}, wantErr: alert.ErrCourseMismatch, wantField: "cmid"},
		{name: "completion not tracked", na: alert.NewAlert{CourseID: 10, ActivityID: 44}, wantErr: alert.ErrCompletionDisabled, wantField: "cmid"},
		{name: "created", na: alert.NewAlert{CourseID: 10, ActivityID: 42, Template: "Hi {userfullname}", Enabled: true}},
		{name: "duplicate", na: alert.NewAlert{CourseID: 10, ActivityID: 42, Enabled: true}, wantErr: alert.ErrAlertExists, wantField: "cmid"},
		{name: "default template", na: alert.NewAlert{CourseID: 10, ActivityID: 45, Template: "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := f.svc.Create(ctx, tt.na)
			if tt.wantField != "" {
				var verr *core.ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("Create() error = %v, want a validation error", err)
				}
				if len(verr.Fields) != 1 || verr.Fields[0].Field != tt.wantField {
					t.Errorf("Create() fields = %+v, want %q", verr.Fields, tt.wantField)
				}
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Create() failed: %v", err)
			}
			if a.ID == 0 {
				t.Error("Create() did not assign an id")
			}
			if !a.NextDueAt.Equal(a.CreatedAt) {
				t.Errorf("NextDueAt = %v, want the creation time %v", a.NextDueAt, a.CreatedAt)
			}
			if tt.na.Template == "  " && a.Template != defaultTemplate {
				t.Errorf("Template = %q, want the default template", a.Template)
			}
		})
	}
}

func TestService_Get(t *testing.T) {
	f := setup(t)
	a := testutil.CreateAlert(t, f.repo, 10, 42, "hi", true, time.Now())

	tests := []struct {
		name     string
		courseID int
		id       int
		wantErr  error
	}{
		{name: "found", courseID: 10, id: a.ID},
		{name: "any course", id: a.ID},
		{name: "wrong course", courseID: 11, id: a.ID, wantErr: alert.ErrCourseMismatch},
		{name: "not found", courseID: 10, id: a.ID + 1, wantErr: alert.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.Get(ctx, tt.courseID, tt.id)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Get() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && got.ID != a.ID {
				t.Errorf("Get() = %+v", got)
			}
		})
	}
}

func TestService_Update(t *testing.T) {
	f := setup(t)
	a := testutil.CreateAlert(t, f.repo, 10, 42, "hi", true, time.Now())
	tmpl, blank, disabled := "Reminder for {userfullname}", " \n ", false

	tests := []struct {
		name        string
		courseID    int
		uu          alert.UpdateAlert
		wantErr     error
		wantInvalid bool
		wantTmpl    string
		wantEnabled bool
	}{
		{name: "nothing to update", courseID: 10, wantTmpl: "hi", wantEnabled: true},
		{name: "blank template", courseID: 10, uu: alert.UpdateAlert{Template: &blank}, wantInvalid: true},
		{name: "wrong course", courseID: 11, uu: alert.UpdateAlert{Template: &tmpl}, wantErr: alert.ErrCourseMismatch},
		{name: "template", courseID: 10, uu: alert.UpdateAlert{Template: &tmpl}, wantTmpl: tmpl, wantEnabled: true},
		{name: "disable", courseID: 10, uu: alert.UpdateAlert{Enabled: &disabled}, wantTmpl: tmpl},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.Update(ctx, tt.courseID, a.ID, tt.uu)
			if tt.wantInvalid {
				var verr *core.ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("Update() error = %v, want a validation error", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Update() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got.Template != tt.wantTmpl || got.Enabled != tt.wantEnabled {
				t.Errorf("Update() = %+v", got)
			}
			if got.ActivityID != 42 || !got.NextDueAt.Equal(a.NextDueAt) {
				t.Errorf("Update() changed the activity or due date: %+v", got)
			}
		})
	}
}

func TestService_Delete(t *testing.T) {
	f := setup(t)
	a := testutil.CreateAlert(t, f.repo, 10, 42, "hi", true, time.Now())
	b := testutil.CreateAlert(t, f.repo, 10, 43, "hi", true, time.Now())
	c := testutil.CreateAlert(t, f.repo, 11, 50, "hi", true, time.Now())
	d := testutil.CreateAlert(t, f.repo, 11, 51, "hi", true, time.Now())

	if err := f.svc.Delete(ctx, 11, a.ID); !errors.Is(err, alert.ErrCourseMismatch) {
		t.Errorf("Delete() error = %v, want %v", err, alert.ErrCourseMismatch)
	}
	if err := f.svc.Delete(ctx, 10, a.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if err := f.svc.Delete(ctx, 10, a.ID); !errors.Is(err, alert.ErrNotFound) {
		t.Errorf("Delete() twice error = %v, want %v", err, alert.ErrNotFound)
	}

	if _, err := f.svc.DeleteByActivity(ctx, 0); !errors.Is(err, alert.ErrEmptyFilter) {
		t.Errorf("DeleteByActivity(0) error = %v, want %v", err, alert.ErrEmptyFilter)
	}
	if n, err := f.svc.DeleteByActivity(ctx, 43); err != nil || n != 1 {
		t.Errorf("DeleteByActivity() = %d, %v", n, err)
	}
	if _, err := f.svc.Get(ctx, 0, b.ID); !errors.Is(err, alert.ErrNotFound) {
		t.Errorf("alert %d still exists", b.ID)
	}

	if _, err := f.svc.DeleteByCourse(ctx, 0); !errors.Is(err, alert.ErrEmptyFilter) {
		t.Errorf("DeleteByCourse(0) error = %v, want %v", err, alert.ErrEmptyFilter)
	}
	if n, err := f.svc.DeleteByCourse(ctx, 11); err != nil || n != 2 {
		t.Errorf("DeleteByCourse() = %d, %v", n, err)
	}
	for _, id := range []int{c.ID, d.ID} {
		if _, err := f.svc.Get(ctx, 0, id); !errors.Is(err, alert.ErrNotFound) {
			t.Errorf("alert %d still exists", id)
		}
	}
}

func TestService_Summaries(t *testing.T) {
	f := setup(t)
	f.host.AddActivity(course.Activity{ID: 43, CourseID: 10, ModName: "page", Name: "Handbook", CompletionTracked: true})
	f.host.AddActivity(course.Activity{ID: 50, CourseID: 11, ModName: "page", Name: "Moved", CompletionTracked: true})
	valid := testutil.CreateAlert(t, f.repo, 10, 42, "hi", true, time.Now())
	deleted := testutil.CreateAlert(t, f.repo, 10, 43, "hi", false, time.Now())
	moved := testutil.CreateAlert(t, f.repo, 10, 50, "hi", true, time.Now())
	unset := testutil.CreateAlert(t, f.repo, 10, 0, "hi", true, time.Now())
	f.host.DeleteActivity(43)

	got, err := f.svc.Summaries(ctx, 10)
	if err != nil {
		t.Fatalf("Summaries() failed: %v", err)
	}
	want := []struct {
		id    int
		name  string
		valid bool
	}{
		{id: valid.ID, name: "Fire drill quiz", valid: true},
		{id: deleted.ID, name: "Invalid alert"},
		{id: moved.ID, name: "Invalid alert"},
		{id: unset.ID, name: "Invalid alert"},
	}
	if len(got) != len(want) {
		t.Fatalf("Summaries() returned %d items, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].ID != w.id || got[i].ActivityName != w.name || got[i].Valid != w.valid {
			t.Errorf("Summaries()[%d] = %+v, want %+v", i, got[i], w)
		}
	}
}

func TestService_AvailableActivities(t *testing.T) {
	f := setup(t)
	f.host.AddActivity(course.Activity{ID: 43, CourseID: 10, ModName: "page", Name: "Handbook", CompletionTracked: true})
	f.host.AddActivity(course.Activity{ID: 44, CourseID: 10, ModName: "label", Name: "Untracked"})
	testutil.CreateAlert(t, f.repo, 10, 42, "hi", true, time.Now())

	acts, err := f.svc.AvailableActivities(ctx, 10)
	if err != nil {
		t.Fatalf("AvailableActivities() failed: %v", err)
	}
	if len(acts) != 1 || acts[0].ID != 43 {
		t.Errorf("AvailableActivities() = %+v, want only activity 43", acts)
	}
}

func TestService_DueAlerts(t *testing.T) {
	f := setup(t)
	today := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)

	dayStart := testutil.CreateAlert(t, f.repo, 10, 1, "hi", true, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))
	dayEnd := testutil.CreateAlert(t, f.repo, 10, 2, "hi", true, time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC))
	testutil.CreateAlert(t, f.repo, 10, 3, "hi", true, time.Date(2024, 3, 9, 23, 59, 59, 0, time.UTC))
	testutil.CreateAlert(t, f.repo, 10, 4, "hi", true, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC))
	testutil.CreateAlert(t, f.repo, 10, 5, "hi", false, time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))

	due, err := f.svc.DueAlerts(ctx, today)
	if err != nil {
		t.Fatalf("DueAlerts() failed: %v", err)
	}
	if len(due) != 2 || due[0].ID != dayStart.ID || due[1].ID != dayEnd.ID {
		t.Errorf("DueAlerts() = %+v, want alerts %d and %d", due, dayStart.ID, dayEnd.ID)
	}

	none, err := f.svc.DueAlerts(ctx, today.AddDate(0, 0, 2))
	if err != nil || none == nil || len(none) != 0 {
		t.Errorf("DueAlerts() = %v, %v, want an empty list", none, err)
	}
}

func TestService_MarkSent(t *testing.T) {
	f := setup(t)
	prev := time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC)
	a := testutil.CreateAlert(t, f.repo, 10, 42, "hi", true, prev)

	got, err := f.svc.MarkSent(ctx, a)
	if err != nil {
		t.Fatalf("MarkSent() failed: %v", err)
	}
	want := prev.Add(96 * time.Hour)
	if !got.NextDueAt.Equal(want) {
		t.Errorf("NextDueAt = %v, want %v", got.NextDueAt, want)
	}
	stored, _ := f.svc.Get(ctx, 10, a.ID)
	if !stored.NextDueAt.Equal(want) {
		t.Errorf("stored NextDueAt = %v, want %v", stored.NextDueAt, want)
	}

	// a stale copy must not advance twice
	_, err = f.svc.MarkSent(ctx, a)
	var serr *alert.SaveError
	if !errors.As(err, &serr) || !errors.Is(err, alert.ErrConflict) {
		t.Errorf("MarkSent() stale error = %v, want a conflict", err)
	}
}
