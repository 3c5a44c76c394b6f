package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alertify/core"
	"github.com/trezcool/alertify/core/alert"
)

const (
	alertColumns = "id, course_id, activity_id, template, enabled, created_at, updated_at, next_due_at"

	uniqueViolation = "23505"
)

var orderableColumns = map[string]bool{"id": true, "course_id": true, "next_due_at": true, "created_at": true}

type (
	alertRow struct {
		ID         int       `db:"id"`
		CourseID   int       `db:"course_id"`
		ActivityID null.Int  `db:"activity_id"`
		Template   string    `db:"template"`
		Enabled    bool      `db:"enabled"`
		CreatedAt  time.Time `db:"created_at"`
		UpdatedAt  time.Time `db:"updated_at"`
		NextDueAt  time.Time `db:"next_due_at"`
	}

	alertRepository struct {
		db *sqlx.DB
	}
)

var _ alert.Repository = (*alertRepository)(nil) // interface compliance check

func NewAlertRepository(db *sqlx.DB) *alertRepository {
	return &alertRepository{db: db}
}

func toRow(a alert.Alert) alertRow {
	return alertRow{
		ID:         a.ID,
		CourseID:   a.CourseID,
		ActivityID: null.NewInt(a.ActivityID, a.ActivityID > 0),
		Template:   a.Template,
		Enabled:    a.Enabled,
		CreatedAt:  a.CreatedAt.UTC(),
		UpdatedAt:  a.UpdatedAt.UTC(),
		NextDueAt:  a.NextDueAt.UTC(),
	}
}

func (row alertRow) toAlert() alert.Alert {
	return alert.Alert{
		ID:         row.ID,
		CourseID:   row.CourseID,
		ActivityID: row.ActivityID.Int,
		Template:   row.Template,
		Enabled:    row.Enabled,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
		NextDueAt:  row.NextDueAt,
	}
}

// trapNoRowsErr maps the "no rows" err to alert.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return alert.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (repo alertRepository) CreateAlert(ctx context.Context, a alert.Alert) (alert.Alert, error) {
	q := `INSERT INTO alert (course_id, activity_id, template, enabled, created_at, updated_at, next_due_at)
		VALUES (:course_id, :activity_id, :template, :enabled, :created_at, :updated_at, :next_due_at)
		RETURNING id`
	rows, err := repo.db.NamedQueryContext(ctx, q, toRow(a))
	if err != nil {
		if isUniqueViolation(err) {
			return alert.Alert{}, alert.ErrAlertExists
		}
		return alert.Alert{}, errors.Wrap(err, "inserting alert")
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err = rows.Err(); err == nil {
			err = sql.ErrNoRows
		}
		return alert.Alert{}, errors.Wrap(err, "inserting alert")
	}
	if err = rows.Scan(&a.ID); err != nil {
		return alert.Alert{}, errors.Wrap(err, "inserting alert")
	}
	return a, nil
}

func (repo alertRepository) GetAlert(ctx context.Context, id int) (alert.Alert, error) {
	var row alertRow
	q := "SELECT " + alertColumns + " FROM alert WHERE id = $1"
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return alert.Alert{}, trapNoRowsErr(err, "getting alert")
	}
	return row.toAlert(), nil
}

// where builds the WHERE clause of filter with postgres placeholders.
func where(filter alert.QueryFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if len(filter.IDs) > 0 {
		add("id = ANY($%d)", pq.Array(filter.IDs))
	}
	if filter.CourseID != 0 {
		add("course_id = $%d", filter.CourseID)
	}
	if filter.ActivityID != 0 {
		add("activity_id = $%d", filter.ActivityID)
	}
	if filter.Enabled != nil {
		add("enabled = $%d", *filter.Enabled)
	}
	if !filter.DueFrom.IsZero() {
		add("next_due_at >= $%d", filter.DueFrom.UTC())
	}
	if !filter.DueTo.IsZero() {
		add("next_due_at < $%d", filter.DueTo.UTC())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderBy(ordering []core.DBOrdering) string {
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if orderableColumns[ord.Field] {
			parts = append(parts, ord.String())
		}
	}
	if len(parts) == 0 {
		return " ORDER BY id ASC"
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func (repo alertRepository) QueryAlerts(ctx context.Context, filter alert.QueryFilter, ordering ...core.DBOrdering) ([]alert.Alert, error) {
	cond, args := where(filter)
	q := "SELECT " + alertColumns + " FROM alert" + cond + orderBy(ordering)

	var rows []alertRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying alerts")
	}
	alerts := make([]alert.Alert, 0, len(rows))
	for _, row := range rows {
		alerts = append(alerts, row.toAlert())
	}
	return alerts, nil
}

func (repo alertRepository) UpdateAlert(ctx context.Context, a alert.Alert) (alert.Alert, error) {
	var row alertRow
	q := `UPDATE alert SET template = $1, enabled = $2, updated_at = $3
		WHERE id = $4 RETURNING ` + alertColumns
	if err := repo.db.GetContext(ctx, &row, q, a.Template, a.Enabled, a.UpdatedAt.UTC(), a.ID); err != nil {
		return alert.Alert{}, trapNoRowsErr(err, "updating alert")
	}
	return row.toAlert(), nil
}

func (repo alertRepository) AdvanceNextDue(ctx context.Context, id int, prev, next time.Time) error {
	q := "UPDATE alert SET next_due_at = $1 WHERE id = $2 AND next_due_at = $3"
	res, err := repo.db.ExecContext(ctx, q, next.UTC(), id, prev.UTC())
	if err != nil {
		return errors.Wrap(err, "advancing alert")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "advancing alert")
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err = repo.db.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM alert WHERE id = $1)", id); err != nil {
		return errors.Wrap(err, "advancing alert")
	}
	if !exists {
		return alert.ErrNotFound
	}
	return alert.ErrConflict
}

func (repo alertRepository) DeleteAlerts(ctx context.Context, filter alert.DeleteFilter) (int, error) {
	if filter.IsEmpty() {
		return 0, alert.ErrEmptyFilter
	}
	cond, args := where(alert.QueryFilter{IDs: filter.IDs, CourseID: filter.CourseID, ActivityID: filter.ActivityID})
	res, err := repo.db.ExecContext(ctx, "DELETE FROM alert"+cond, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting alerts")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting alerts")
	}
	return int(n), nil
}
