package boiledrepos

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/boil"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/alertify/core/course"
	"github.com/trezcool/alertify/core/user"
)

// host context levels
const (
	contextSystem   = 10
	contextCategory = 40
	contextCourse   = 50
	contextModule   = 70

	permissionAllow    = 1
	completionComplete = 1
)

var (
	nowFunc = time.Now // mockable

	tableRegex   = regexp.MustCompile(`\{(\w+)\}`)
	modNameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

type (
	courseRow struct {
		ID               int    `boil:"id"`
		FullName         string `boil:"fullname"`
		ShortName        string `boil:"shortname"`
		Visible          int    `boil:"visible"`
		EnableCompletion int    `boil:"enablecompletion"`
	}

	moduleRow struct {
		ID         int    `boil:"id"`
		Course     int    `boil:"course"`
		ModName    string `boil:"modname"`
		Instance   int    `boil:"instance"`
		Visible    int    `boil:"visible"`
		Completion int    `boil:"completion"`
	}

	instanceRow struct {
		Name string `boil:"name"`
	}

	userRow struct {
		ID        int    `boil:"id"`
		Username  string `boil:"username"`
		FirstName string `boil:"firstname"`
		LastName  string `boil:"lastname"`
		Email     string `boil:"email"`
	}

	completionRow struct {
		UserID int `boil:"userid"`
	}

	countRow struct {
		Count int `boil:"count"`
	}

	// hostRepository reads the LMS tables. It never writes to them.
	hostRepository struct {
		exec     boil.ContextExecutor
		prefix   string
		bindType int
	}
)

var (
	_ course.Provider        = (*hostRepository)(nil) // interface compliance check
	_ user.CapabilityChecker = (*hostRepository)(nil)
)

// NewHostRepository builds a repository over the host database.
// driverName picks the placeholder style, tablePrefix is usually "mdl_".
func NewHostRepository(exec boil.ContextExecutor, driverName, tablePrefix string) *hostRepository {
	return &hostRepository{
		exec:     exec,
		prefix:   tablePrefix,
		bindType: sqlx.BindType(driverName),
	}
}

// expand expands {table} references and rebinds "?" placeholders for the driver.
func (repo hostRepository) expand(query string) string {
	query = tableRegex.ReplaceAllString(query, repo.prefix+"$1")
	return sqlx.Rebind(repo.bindType, query)
}

func (repo hostRepository) bind(ctx context.Context, obj interface{}, query string, args ...interface{}) error {
	return queries.Raw(repo.expand(query), args...).Bind(ctx, repo.exec, obj)
}

func (repo hostRepository) GetCourse(ctx context.Context, id int) (course.Course, error) {
	var row courseRow
	err := repo.bind(ctx, &row,
		"SELECT id, fullname, shortname, visible, enablecompletion FROM {course} WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "getting course")
	}
	return course.Course{
		ID:                row.ID,
		FullName:          row.FullName,
		ShortName:         row.ShortName,
		Visible:           row.Visible != 0,
		CompletionEnabled: row.EnableCompletion != 0,
	}, nil
}

const moduleQuery = `SELECT cm.id, cm.course, m.name AS modname, cm.instance, cm.visible, cm.completion
	FROM {course_modules} cm
	JOIN {modules} m ON m.id = cm.module
	WHERE cm.deletioninprogress = 0`

func (repo hostRepository) GetActivity(ctx context.Context, id int) (course.Activity, error) {
	var row moduleRow
	if err := repo.bind(ctx, &row, moduleQuery+" AND cm.id = ?", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return course.Activity{}, course.ErrActivityNotFound
		}
		return course.Activity{}, errors.Wrap(err, "getting activity")
	}
	return repo.activity(ctx, row)
}

func (repo hostRepository) QueryActivities(ctx context.Context, courseID int) ([]course.Activity, error) {
	var rows []*moduleRow
	if err := repo.bind(ctx, &rows, moduleQuery+" AND cm.course = ? ORDER BY cm.id", courseID); err != nil {
		return nil, errors.Wrap(err, "querying activities")
	}
	acts := make([]course.Activity, 0, len(rows))
	for _, row := range rows {
		act, err := repo.activity(ctx, *row)
		if err != nil {
			if errors.Is(err, course.ErrActivityNotFound) {
				continue
			}
			return nil, err
		}
		acts = append(acts, act)
	}
	return acts, nil
}

// activity loads the instance name from the module's own table.
func (repo hostRepository) activity(ctx context.Context, row moduleRow) (course.Activity, error) {
	if !modNameRegex.MatchString(row.ModName) {
		return course.Activity{}, errors.Errorf("invalid module name %q", row.ModName)
	}
	var inst instanceRow
	err := repo.bind(ctx, &inst, fmt.Sprintf("SELECT name FROM {%s} WHERE id = ?", row.ModName), row.Instance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return course.Activity{}, course.ErrActivityNotFound
		}
		return course.Activity{}, errors.Wrap(err, "getting activity instance")
	}
	return course.Activity{
		ID:                row.ID,
		CourseID:          row.Course,
		ModName:           row.ModName,
		Name:              inst.Name,
		Visible:           row.Visible != 0,
		CompletionTracked: row.Completion != 0,
	}, nil
}

func (repo hostRepository) EnrolledUsers(ctx context.Context, courseID int) ([]user.User, error) {
	now := nowFunc().Unix()
	var rows []*userRow
	err := repo.bind(ctx, &rows, `SELECT DISTINCT u.id, u.username, u.firstname, u.lastname, u.email
		FROM {user} u
		JOIN {user_enrolments} ue ON ue.userid = u.id
		JOIN {enrol} e ON e.id = ue.enrolid
		WHERE e.courseid = ? AND e.status = 0 AND ue.status = 0
			AND ue.timestart <= ? AND (ue.timeend = 0 OR ue.timeend > ?)
			AND u.deleted = 0 AND u.suspended = 0
		ORDER BY u.id`, courseID, now, now)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrolled users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, user.User{
			ID:        row.ID,
			Username:  row.Username,
			FirstName: row.FirstName,
			LastName:  row.LastName,
			Email:     row.Email,
		})
	}
	return users, nil
}

func (repo hostRepository) CompletedUserIDs(ctx context.Context, activityID int) ([]int, error) {
	var rows []*completionRow
	err := repo.bind(ctx, &rows,
		"SELECT userid FROM {course_modules_completion} WHERE coursemoduleid = ? AND completionstate = ?",
		activityID, completionComplete)
	if err != nil {
		return nil, errors.Wrap(err, "querying completions")
	}
	ids := make([]int, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.UserID)
	}
	return ids, nil
}

// HasCapability looks for a role assignment allowing the capability at system level,
// on any category above the course, on the course or on the module.
// Overrides and prohibitions are not evaluated.
func (repo hostRepository) HasCapability(ctx context.Context, usr user.User, capability user.Capability, scope user.Scope) (bool, error) {
	var row countRow
	err := repo.bind(ctx, &row, `SELECT COUNT(1) AS count
		FROM {role_assignments} ra
		JOIN {role_capabilities} rc ON rc.roleid = ra.roleid
		JOIN {context} ctx ON ctx.id = ra.contextid
		WHERE ra.userid = ? AND rc.capability = ? AND rc.permission = ?
			AND (ctx.contextlevel = ?
				OR (ctx.contextlevel = ? AND EXISTS (
					SELECT 1 FROM {context} cctx
					WHERE cctx.contextlevel = ? AND cctx.instanceid = ?
						AND cctx.path LIKE CONCAT(ctx.path, '/%')))
				OR (ctx.contextlevel = ? AND ctx.instanceid = ?)
				OR (ctx.contextlevel = ? AND ctx.instanceid = ?))`,
		usr.ID, string(capability), permissionAllow,
		contextSystem,
		contextCategory, contextCourse, scope.CourseID,
		contextCourse, scope.CourseID,
		contextModule, scope.ActivityID,
	)
	if err != nil {
		return false, errors.Wrap(err, "checking capability")
	}
	return row.Count > 0, nil
}
