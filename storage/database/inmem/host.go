package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/alertify/core/course"
	"github.com/trezcool/alertify/core/user"
)

// HostRepository is an in-memory stand-in for the LMS database.
type HostRepository struct {
	db *hostTables
}

var (
	_ course.Provider        = (*HostRepository)(nil)
	_ user.CapabilityChecker = (*HostRepository)(nil)
)

func NewHostRepository(db *DB) *HostRepository {
	return &HostRepository{db: db.host}
}

// Fixtures

func (repo *HostRepository) AddCourse(crs course.Course) course.Course {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.courses[crs.ID] = crs
	return crs
}

func (repo *HostRepository) AddActivity(act course.Activity) course.Activity {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.activities[act.ID] = act
	return act
}

func (repo *HostRepository) DeleteActivity(id int) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.activities, id)
	delete(repo.db.completions, id)
}

// Enrol adds an active enrolment of usr in the course.
func (repo *HostRepository) Enrol(courseID int, usr user.User) user.User {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.users[usr.ID] = usr
	repo.db.enrolments[courseID] = append(repo.db.enrolments[courseID], usr.ID)
	return usr
}

func (repo *HostRepository) Complete(activityID, userID int) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if repo.db.completions[activityID] == nil {
		repo.db.completions[activityID] = make(map[int]bool)
	}
	repo.db.completions[activityID][userID] = true
}

// Grant gives a capability to a user in a course, or site wide when courseID is 0.
func (repo *HostRepository) Grant(userID int, capability user.Capability, courseID int) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.grants[grant{userID: userID, capability: capability, courseID: courseID}] = true
}

// course.Provider

func (repo *HostRepository) GetCourse(_ context.Context, id int) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *HostRepository) GetActivity(_ context.Context, id int) (course.Activity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if act, ok := repo.db.activities[id]; ok {
		return act, nil
	}
	return course.Activity{}, course.ErrActivityNotFound
}

func (repo *HostRepository) QueryActivities(_ context.Context, courseID int) ([]course.Activity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	acts := make([]course.Activity, 0)
	for _, act := range repo.db.activities {
		if act.CourseID == courseID {
			acts = append(acts, act)
		}
	}
	sort.Slice(acts, func(i, j int) bool { return acts[i].ID < acts[j].ID })
	return acts, nil
}

func (repo *HostRepository) EnrolledUsers(_ context.Context, courseID int) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := repo.db.enrolments[courseID]
	users := make([]user.User, 0, len(ids))
	for _, id := range ids {
		users = append(users, repo.db.users[id])
	}
	return users, nil
}

func (repo *HostRepository) CompletedUserIDs(_ context.Context, activityID int) ([]int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := make([]int, 0, len(repo.db.completions[activityID]))
	for id, done := range repo.db.completions[activityID] {
		if done {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

// user.CapabilityChecker

func (repo *HostRepository) HasCapability(_ context.Context, usr user.User, capability user.Capability, scope user.Scope) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	return repo.db.grants[grant{userID: usr.ID, capability: capability}] ||
		repo.db.grants[grant{userID: usr.ID, capability: capability, courseID: scope.CourseID}], nil
}
