package sqlxrepos

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/trezcool/alertify/core/alert"
)

var cols = []string{"id", "course_id", "activity_id", "template", "enabled", "created_at", "updated_at", "next_due_at"}

func setup(t *testing.T) (*alertRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewAlertRepository(sqlx.NewDb(db, "postgres")), mock
}

func TestAlertRepository_GetAlert(t *testing.T) {
	repo, mock := setup(t)
	created := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	q := regexp.QuoteMeta("SELECT " + alertColumns + " FROM alert WHERE id = $1")

	mock.ExpectQuery(q).WithArgs(1).WillReturnRows(
		sqlmock.NewRows(cols).AddRow(1, 10, 42, "Hi {userfullname}", true, created, created, created),
	)
	mock.ExpectQuery(q).WithArgs(2).WillReturnRows(
		sqlmock.NewRows(cols).AddRow(2, 10, nil, "Hi", false, created, created, created),
	)
	mock.ExpectQuery(q).WithArgs(3).WillReturnRows(sqlmock.NewRows(cols))

	tests := []struct {
		name    string
		id      int
		want    alert.Alert
		wantErr error
	}{
		{
			name: "found",
			id:   1,
			want: alert.Alert{ID: 1, CourseID: 10, ActivityID: 42, Template: "Hi {userfullname}", Enabled: true, CreatedAt: created, UpdatedAt: created, NextDueAt: created},
		},
		{
			name: "null activity",
			id:   2,
			want: alert.Alert{ID: 2, CourseID: 10, Template: "Hi", CreatedAt: created, UpdatedAt: created, NextDueAt: created},
		},
		{name: "not found", id: 3, wantErr: alert.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.GetAlert(context.Background(), tt.id)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("GetAlert() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("GetAlert() = %+v, want %+v", got, tt.want)
			}
		})
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAlertRepository_QueryAlerts_due(t *testing.T) {
	repo, mock := setup(t)
	from := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	enabled := true

	q := regexp.QuoteMeta(
		"SELECT " + alertColumns + " FROM alert WHERE enabled = $1 AND next_due_at >= $2 AND next_due_at < $3 ORDER BY id ASC",
	)
	mock.ExpectQuery(q).WithArgs(true, from, to).WillReturnRows(
		sqlmock.NewRows(cols).
			AddRow(1, 10, 42, "a", true, from, from, from.Add(time.Hour)).
			AddRow(2, 11, 43, "b", true, from, from, from.Add(2*time.Hour)),
	)

	alerts, err := repo.QueryAlerts(context.Background(), alert.QueryFilter{Enabled: &enabled, DueFrom: from, DueTo: to})
	if err != nil {
		t.Fatalf("QueryAlerts() failed: %v", err)
	}
	if len(alerts) != 2 || alerts[0].ID != 1 || alerts[1].ActivityID != 43 {
		t.Errorf("QueryAlerts() = %+v", alerts)
	}
	if err = mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAlertRepository_CreateAlert(t *testing.T) {
	repo, mock := setup(t)
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	a := alert.Alert{CourseID: 10, ActivityID: 42, Template: "Hi", Enabled: true, CreatedAt: now, UpdatedAt: now, NextDueAt: now}
	q := regexp.QuoteMeta("INSERT INTO alert")

	mock.ExpectQuery(q).
		WithArgs(10, 42, "Hi", true, now, now, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(q).
		WithArgs(10, 42, "Hi", true, now, now, now).
		WillReturnError(&pq.Error{Code: uniqueViolation})

	got, err := repo.CreateAlert(context.Background(), a)
	if err != nil {
		t.Fatalf("CreateAlert() failed: %v", err)
	}
	if got.ID != 7 {
		t.Errorf("CreateAlert() id = %d, want 7", got.ID)
	}

	if _, err = repo.CreateAlert(context.Background(), a); !errors.Is(err, alert.ErrAlertExists) {
		t.Errorf("CreateAlert() error = %v, want %v", err, alert.ErrAlertExists)
	}
	if err = mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAlertRepository_AdvanceNextDue(t *testing.T) {
	prev := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	next := prev.Add(alert.DefaultCadence)
	update := regexp.QuoteMeta("UPDATE alert SET next_due_at = $1 WHERE id = $2 AND next_due_at = $3")
	exists := regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM alert WHERE id = $1)")

	tests := []struct {
		name    string
		expect  func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "advanced",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(update).WithArgs(next, 1, prev).WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "moved by another run",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(update).WithArgs(next, 1, prev).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(exists).WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
			},
			wantErr: alert.ErrConflict,
		},
		{
			name: "deleted",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(update).WithArgs(next, 1, prev).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(exists).WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
			},
			wantErr: alert.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := setup(t)
			tt.expect(mock)
			if err := repo.AdvanceNextDue(context.Background(), 1, prev, next); !errors.Is(err, tt.wantErr) {
				t.Errorf("AdvanceNextDue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}

func TestAlertRepository_DeleteAlerts(t *testing.T) {
	repo, mock := setup(t)

	if _, err := repo.DeleteAlerts(context.Background(), alert.DeleteFilter{}); !errors.Is(err, alert.ErrEmptyFilter) {
		t.Errorf("DeleteAlerts() error = %v, want %v", err, alert.ErrEmptyFilter)
	}

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM alert WHERE activity_id = $1")).
		WithArgs(42).
		WillReturnResult(sqlmock.NewResult(0, 2))
	n, err := repo.DeleteAlerts(context.Background(), alert.DeleteFilter{ActivityID: 42})
	if err != nil {
		t.Fatalf("DeleteAlerts() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteAlerts() = %d, want 2", n)
	}
	if err = mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
