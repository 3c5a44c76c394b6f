package alert

import (
	"time"

	"github.com/trezcool/alertify/core"
)

// DefaultCadence is the interval between two sends of the same alert.
const DefaultCadence = 4 * 24 * time.Hour

type (
	Alert struct {
		ID         int       `json:"id"`
		CourseID   int       `json:"course"`
		ActivityID int       `json:"cmid"` // 0 when unset
		Template   string    `json:"template"`
		Enabled    bool      `json:"enabled"`
		CreatedAt  time.Time `json:"timecreated"`
		UpdatedAt  time.Time `json:"timemodified"`
		NextDueAt  time.Time `json:"alertcreated"`
	}

	NewAlert struct {
		CourseID   int    `json:"course" validate:"required,gt=0"`
		ActivityID int    `json:"cmid" validate:"required,gt=0"`
		Template   string `json:"template" validate:"notblank"`
		Enabled    bool   `json:"enabled"`
	}

	// UpdateAlert is a partial update: only non-nil fields are written.
	UpdateAlert struct {
		Template *string `json:"template" validate:"omitempty,notblank"`
		Enabled  *bool   `json:"enabled"`
	}

	QueryFilter struct {
		IDs        []int
		CourseID   int
		ActivityID int
		Enabled    *bool
		DueFrom    time.Time // inclusive
		DueTo      time.Time // exclusive
	}

	// DeleteFilter must set at least one field.
	DeleteFilter struct {
		IDs        []int
		CourseID   int
		ActivityID int
	}

	// Summary is an alert as listed to instructors.
	Summary struct {
		Alert
		ActivityName string `json:"name"`
		Valid        bool   `json:"valid"`
	}
)

// HasTarget reports whether the alert references an activity.
func (a Alert) HasTarget() bool {
	return a.ActivityID > 0
}

// IsDueOn reports whether the alert must be processed on the calendar day of today.
func (a Alert) IsDueOn(today time.Time, loc *time.Location) bool {
	return a.Enabled && core.SameDay(a.NextDueAt, today, loc)
}

// NextDue is the due date after a completed send pass.
// It is computed from the previous due date, not from the time of the run.
func (a Alert) NextDue(cadence time.Duration) time.Time {
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	return a.NextDueAt.Add(cadence)
}

// Dirty reports whether uu changes anything.
func (uu UpdateAlert) Dirty() bool {
	return uu.Template != nil || uu.Enabled != nil
}

// Apply writes the set fields of uu onto a.
func (uu UpdateAlert) Apply(a *Alert) {
	if uu.Template != nil {
		a.Template = *uu.Template
	}
	if uu.Enabled != nil {
		a.Enabled = *uu.Enabled
	}
}

func (f DeleteFilter) IsEmpty() bool {
	return len(f.IDs) == 0 && f.CourseID == 0 && f.ActivityID == 0
}
