package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/trezcool/alertify/core"
	"github.com/trezcool/alertify/core/alert"
	"github.com/trezcool/alertify/core/course"
	"github.com/trezcool/alertify/core/user"
	"github.com/trezcool/alertify/services/logger"
	"github.com/trezcool/alertify/storage/database/inmem"
)

// Config returns a configuration suitable for tests.
func Config() *core.Config {
	return &core.Config{
		Env:      "TEST",
		TestMode: true,
		AppName:  "Alertify",
		Timezone: "UTC",
		Host:     core.HostConfig{BaseURL: "https://lms.test"},
		Mail:     core.MailConfig{Backend: "console", From: "Support <support@lms.test>"},
		Alerts: core.AlertsConfig{
			Subject:     "Course not completed yet",
			Cadence:     alert.DefaultCadence,
			Workers:     2,
			SendWorkers: 2,
		},
	}
}

// NewLogger returns a logger that reports nowhere.
func NewLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	return logger
}

// PrepareDB opens an empty in-memory store.
func PrepareDB(t *testing.T) (*inmemdb.DB, *inmemdb.HostRepository) {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	return db, inmemdb.NewHostRepository(db)
}

// CourseWithActivity adds a visible course holding one visible, completion tracked quiz.
func CourseWithActivity(host *inmemdb.HostRepository, courseID, activityID int) (course.Course, course.Activity) {
	crs := host.AddCourse(course.Course{
		ID:                courseID,
		FullName:          "Workplace Safety",
		ShortName:         "WS101",
		Visible:           true,
		CompletionEnabled: true,
	})
	act := host.AddActivity(course.Activity{
		ID:                activityID,
		CourseID:          courseID,
		ModName:           "quiz",
		Name:              "Fire drill quiz",
		Visible:           true,
		CompletionTracked: true,
	})
	return crs, act
}

// EnrolStudent enrols a user with an email address in the course.
func EnrolStudent(host *inmemdb.HostRepository, courseID, id int, first, last string) user.User {
	return host.Enrol(courseID, user.User{
		ID:        id,
		Username:  first,
		FirstName: first,
		LastName:  last,
		Email:     first + "@lms.test",
	})
}

// CreateAlert stores an alert due at nextDue, bypassing the service checks.
func CreateAlert(
	t *testing.T,
	repo alert.Repository,
	courseID, activityID int,
	tmpl string,
	enabled bool,
	nextDue time.Time,
) alert.Alert {
	now := time.Now().UTC().Truncate(time.Microsecond)
	a, err := repo.CreateAlert(context.Background(), alert.Alert{
		CourseID:   courseID,
		ActivityID: activityID,
		Template:   tmpl,
		Enabled:    enabled,
		CreatedAt:  now,
		UpdatedAt:  now,
		NextDueAt:  nextDue,
	})
	if err != nil {
		t.Fatalf("CreateAlert() failed: %v", err)
	}
	return a
}
