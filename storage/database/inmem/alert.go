package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/alertify/core"
	"github.com/trezcool/alertify/core/alert"
)

type alertRepository struct {
	db *alertTable
}

var _ alert.Repository = (*alertRepository)(nil) // interface compliance check

func NewAlertRepository(db *DB) alert.Repository {
	return &alertRepository{db: db.alert}
}

func matchAlert(a alert.Alert, filter alert.QueryFilter) bool {
	if len(filter.IDs) > 0 && !containsInt(filter.IDs, a.ID) {
		return false
	}
	if filter.CourseID != 0 && a.CourseID != filter.CourseID {
		return false
	}
	if filter.ActivityID != 0 && a.ActivityID != filter.ActivityID {
		return false
	}
	if filter.Enabled != nil && a.Enabled != *filter.Enabled {
		return false
	}
	if !filter.DueFrom.IsZero() && a.NextDueAt.Before(filter.DueFrom) {
		return false
	}
	if !filter.DueTo.IsZero() && !a.NextDueAt.Before(filter.DueTo) {
		return false
	}
	return true
}

func containsInt(ids []int, id int) bool {
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}

func (repo *alertRepository) CreateAlert(_ context.Context, a alert.Alert) (alert.Alert, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if a.ActivityID != 0 {
		for _, other := range repo.db.table {
			if other.CourseID == a.CourseID && other.ActivityID == a.ActivityID {
				return alert.Alert{}, alert.ErrAlertExists
			}
		}
	}
	repo.db.pkCount++
	a.ID = repo.db.pkCount
	repo.db.table[a.ID] = &a
	return a, nil
}

func (repo *alertRepository) GetAlert(_ context.Context, id int) (alert.Alert, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.table[id]; ok {
		return *a, nil
	}
	return alert.Alert{}, alert.ErrNotFound
}

func (repo *alertRepository) QueryAlerts(_ context.Context, filter alert.QueryFilter, ordering ...core.DBOrdering) ([]alert.Alert, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	alerts := make([]alert.Alert, 0, len(repo.db.table))
	for _, a := range repo.db.table {
		if matchAlert(*a, filter) {
			alerts = append(alerts, *a)
		}
	}

	// only ordering by id is supported
	asc := true
	if len(ordering) > 0 {
		asc = ordering[0].Ascending
	}
	sort.Slice(alerts, func(i, j int) bool {
		if asc {
			return alerts[i].ID < alerts[j].ID
		}
		return alerts[i].ID > alerts[j].ID
	})
	return alerts, nil
}

func (repo *alertRepository) UpdateAlert(_ context.Context, a alert.Alert) (alert.Alert, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored, ok := repo.db.table[a.ID]
	if !ok {
		return alert.Alert{}, alert.ErrNotFound
	}
	stored.Template = a.Template
	stored.Enabled = a.Enabled
	stored.UpdatedAt = a.UpdatedAt
	return *stored, nil
}

func (repo *alertRepository) AdvanceNextDue(_ context.Context, id int, prev, next time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored, ok := repo.db.table[id]
	if !ok {
		return alert.ErrNotFound
	}
	if !stored.NextDueAt.Equal(prev) {
		return alert.ErrConflict
	}
	stored.NextDueAt = next
	return nil
}

func (repo *alertRepository) DeleteAlerts(_ context.Context, filter alert.DeleteFilter) (int, error) {
	if filter.IsEmpty() {
		return 0, alert.ErrEmptyFilter
	}
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	qf := alert.QueryFilter{IDs: filter.IDs, CourseID: filter.CourseID, ActivityID: filter.ActivityID}
	var n int
	for id, a := range repo.db.table {
		if matchAlert(*a, qf) {
			delete(repo.db.table, id)
			n++
		}
	}
	return n, nil
}
