package inmemdb

import (
	"sync"

	"github.com/trezcool/alertify/core/alert"
	"github.com/trezcool/alertify/core/course"
	"github.com/trezcool/alertify/core/user"
)

type (
	DB struct {
		alert *alertTable
		host  *hostTables
	}

	alertTable struct {
		mutex   sync.RWMutex
		table   map[int]*alert.Alert
		pkCount int
	}

	grant struct {
		userID     int
		capability user.Capability
		courseID   int // 0 for site wide
	}

	hostTables struct {
		mutex       sync.RWMutex
		courses     map[int]course.Course
		activities  map[int]course.Activity
		users       map[int]user.User
		enrolments  map[int][]int        // courseID -> userIDs
		completions map[int]map[int]bool // activityID -> userID -> complete
		grants      map[grant]bool
	}
)

func Open() (*DB, error) {
	db := &DB{
		alert: &alertTable{table: make(map[int]*alert.Alert)},
		host: &hostTables{
			courses:     make(map[int]course.Course),
			activities:  make(map[int]course.Activity),
			users:       make(map[int]user.User),
			enrolments:  make(map[int][]int),
			completions: make(map[int]map[int]bool),
			grants:      make(map[grant]bool),
		},
	}
	return db, nil
}
