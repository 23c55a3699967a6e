package inmemdb

import (
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core/checkin"
	"github.com/trezcool/mahudhurio/core/course"
	"github.com/trezcool/mahudhurio/core/user"
)

// DB is an in-memory store used in tests and local hacking. It honors the
// same uniqueness guarantees as the SQL schema: unique usernames/emails,
// unique course invite codes, unique (courseID, userID) memberships and
// unique (userID, taskID) records.
type (
	DB struct {
		user       *userTable
		course     *courseTable
		membership *membershipTable
		checkin    *checkinTable
	}

	userTable struct {
		mutex sync.RWMutex
		table map[string]*user.User
	}

	courseTable struct {
		mutex sync.RWMutex
		table map[string]*course.Course
	}

	membershipTable struct {
		mutex sync.RWMutex
		table map[string]*course.Membership
		// byCourseUser enforces (courseID, userID) uniqueness
		byCourseUser map[[2]string]string
	}

	checkinTable struct {
		mutex   sync.RWMutex
		tasks   map[string]*checkin.Task
		records map[string]*checkin.Record
		// byUserTask enforces (userID, taskID) uniqueness
		byUserTask map[[2]string]string
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:   &userTable{table: make(map[string]*user.User)},
		course: &courseTable{table: make(map[string]*course.Course)},
		membership: &membershipTable{
			table:        make(map[string]*course.Membership),
			byCourseUser: make(map[[2]string]string),
		},
		checkin: &checkinTable{
			tasks:      make(map[string]*checkin.Task),
			records:    make(map[string]*checkin.Record),
			byUserTask: make(map[[2]string]string),
		},
	}
	return db, nil
}

func newPK() string {
	return uuid.New().String()
}
