package inmemdb

import (
	"sort"

	"github.com/trezcool/mahudhurio/core/course"
)

type courseRepository struct {
	courses     *courseTable
	memberships *membershipTable
}

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{courses: db.course, memberships: db.membership}
}

func (repo *courseRepository) CreateCourse(crs course.Course) (course.Course, error) {
	repo.courses.mutex.Lock()
	defer repo.courses.mutex.Unlock()

	for _, c := range repo.courses.table {
		if c.InviteCode == crs.InviteCode {
			return course.Course{}, course.ErrInviteCodeExists
		}
	}
	crs.ID = newPK()
	repo.courses.table[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) GetCourseByID(id string) (course.Course, error) {
	repo.courses.mutex.RLock()
	defer repo.courses.mutex.RUnlock()

	if crs, ok := repo.courses.table[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) GetCourseByInviteCode(code string) (course.Course, error) {
	repo.courses.mutex.RLock()
	defer repo.courses.mutex.RUnlock()

	for _, crs := range repo.courses.table {
		if crs.InviteCode == code {
			return *crs, nil
		}
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCoursesByMember(userID string) ([]course.Course, error) {
	repo.memberships.mutex.RLock()
	courseIDs := make([]string, 0)
	for _, m := range repo.memberships.table {
		if m.UserID == userID && m.IsActive {
			courseIDs = append(courseIDs, m.CourseID)
		}
	}
	repo.memberships.mutex.RUnlock()

	repo.courses.mutex.RLock()
	defer repo.courses.mutex.RUnlock()
	courses := make([]course.Course, 0, len(courseIDs))
	for _, id := range courseIDs {
		if crs, ok := repo.courses.table[id]; ok {
			courses = append(courses, *crs)
		}
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.Before(courses[j].CreatedAt) })
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(crs course.Course) (course.Course, error) {
	repo.courses.mutex.Lock()
	defer repo.courses.mutex.Unlock()

	if _, ok := repo.courses.table[crs.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	repo.courses.table[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) CreateMembership(m course.Membership) (course.Membership, error) {
	repo.memberships.mutex.Lock()
	defer repo.memberships.mutex.Unlock()

	key := [2]string{m.CourseID, m.UserID}
	if _, exists := repo.memberships.byCourseUser[key]; exists {
		return course.Membership{}, course.ErrAlreadyMember
	}
	m.ID = newPK()
	repo.memberships.table[m.ID] = &m
	repo.memberships.byCourseUser[key] = m.ID
	return m, nil
}

func (repo *courseRepository) GetMembership(courseID, userID string) (course.Membership, error) {
	repo.memberships.mutex.RLock()
	defer repo.memberships.mutex.RUnlock()

	if id, ok := repo.memberships.byCourseUser[[2]string{courseID, userID}]; ok {
		return *repo.memberships.table[id], nil
	}
	return course.Membership{}, course.ErrMembershipNotFound
}

func (repo *courseRepository) QueryCourseMembers(courseID string, activeOnly bool) ([]course.Membership, error) {
	repo.memberships.mutex.RLock()
	defer repo.memberships.mutex.RUnlock()

	members := make([]course.Membership, 0)
	for _, m := range repo.memberships.table {
		if m.CourseID != courseID {
			continue
		}
		if activeOnly && !m.IsActive {
			continue
		}
		members = append(members, *m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].CreatedAt.Before(members[j].CreatedAt) })
	return members, nil
}

func (repo *courseRepository) UpdateMembership(m course.Membership) (course.Membership, error) {
	repo.memberships.mutex.Lock()
	defer repo.memberships.mutex.Unlock()

	if _, ok := repo.memberships.table[m.ID]; !ok {
		return course.Membership{}, course.ErrMembershipNotFound
	}
	repo.memberships.table[m.ID] = &m
	return m, nil
}
