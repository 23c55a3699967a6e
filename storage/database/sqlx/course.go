package sqlxrepos

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/course"
)

type courseRepository struct {
	db *sqlx.DB
}

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{db: db}
}

type dbCourse struct {
	ID          string        `db:"id"`
	Name        string        `db:"name"`
	Description string        `db:"description"`
	InviteCode  string        `db:"invite_code"`
	Status      course.Status `db:"status"`
	CreatorID   string        `db:"creator_id"`
	CreatedAt   sql.NullTime  `db:"created_at"`
	UpdatedAt   sql.NullTime  `db:"updated_at"`
}

func (row dbCourse) toCourse() course.Course {
	return course.Course{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		InviteCode:  row.InviteCode,
		Status:      row.Status,
		CreatorID:   row.CreatorID,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
}

type dbMembership struct {
	ID         string            `db:"id"`
	CourseID   string            `db:"course_id"`
	UserID     string            `db:"user_id"`
	Role       course.MemberRole `db:"role"`
	JoinMethod course.JoinMethod `db:"join_method"`
	IsActive   bool              `db:"is_active"`
	CreatedAt  sql.NullTime      `db:"created_at"`
	UpdatedAt  sql.NullTime      `db:"updated_at"`
}

func (row dbMembership) toMembership() course.Membership {
	return course.Membership{
		ID:         row.ID,
		CourseID:   row.CourseID,
		UserID:     row.UserID,
		Role:       row.Role,
		JoinMethod: row.JoinMethod,
		IsActive:   row.IsActive,
		CreatedAt:  row.CreatedAt.Time,
		UpdatedAt:  row.UpdatedAt.Time,
	}
}

const (
	selectCourse = `
SELECT id, name, description, invite_code, status, creator_id, created_at, updated_at
FROM courses`

	selectMembership = `
SELECT id, course_id, user_id, role, join_method, is_active, created_at, updated_at
FROM memberships`
)

func (repo *courseRepository) getCourse(query string, args ...interface{}) (course.Course, error) {
	var row dbCourse
	if err := repo.db.Get(&row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "getting course")
	}
	return row.toCourse(), nil
}

func (repo *courseRepository) CreateCourse(crs course.Course) (course.Course, error) {
	err := repo.db.QueryRowx(`
INSERT INTO courses (name, description, invite_code, status, creator_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`,
		crs.Name, crs.Description, crs.InviteCode, crs.Status, crs.CreatorID, crs.CreatedAt, crs.UpdatedAt,
	).Scan(&crs.ID)
	if err != nil {
		if isUniqueViolation(err, "courses_invite_code_key") {
			return course.Course{}, course.ErrInviteCodeExists
		}
		return course.Course{}, errors.Wrap(err, "creating course")
	}
	return crs, nil
}

func (repo *courseRepository) GetCourseByID(id string) (course.Course, error) {
	return repo.getCourse(selectCourse+" WHERE id = $1", id)
}

func (repo *courseRepository) GetCourseByInviteCode(code string) (course.Course, error) {
	return repo.getCourse(selectCourse+" WHERE invite_code = $1", code)
}

func (repo *courseRepository) QueryCoursesByMember(userID string) ([]course.Course, error) {
	var rows []dbCourse
	err := repo.db.Select(&rows, `
SELECT c.id, c.name, c.description, c.invite_code, c.status, c.creator_id, c.created_at, c.updated_at
FROM courses c
JOIN memberships m ON m.course_id = c.id
WHERE m.user_id = $1 AND m.is_active
ORDER BY c.created_at`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, len(rows))
	for i, row := range rows {
		courses[i] = row.toCourse()
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(crs course.Course) (course.Course, error) {
	res, err := repo.db.Exec(`
UPDATE courses
SET name = $1, description = $2, invite_code = $3, status = $4, updated_at = $5
WHERE id = $6`,
		crs.Name, crs.Description, crs.InviteCode, crs.Status, crs.UpdatedAt, crs.ID)
	if err != nil {
		if isUniqueViolation(err, "courses_invite_code_key") {
			return course.Course{}, course.ErrInviteCodeExists
		}
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return crs, nil
}

func (repo *courseRepository) CreateMembership(m course.Membership) (course.Membership, error) {
	err := repo.db.QueryRowx(`
INSERT INTO memberships (course_id, user_id, role, join_method, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`,
		m.CourseID, m.UserID, m.Role, m.JoinMethod, m.IsActive, m.CreatedAt, m.UpdatedAt,
	).Scan(&m.ID)
	if err != nil {
		if isUniqueViolation(err, "memberships_course_id_user_id_key") {
			return course.Membership{}, course.ErrAlreadyMember
		}
		return course.Membership{}, errors.Wrap(err, "creating membership")
	}
	return m, nil
}

func (repo *courseRepository) GetMembership(courseID, userID string) (course.Membership, error) {
	var row dbMembership
	err := repo.db.Get(&row, selectMembership+" WHERE course_id = $1 AND user_id = $2", courseID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return course.Membership{}, course.ErrMembershipNotFound
		}
		return course.Membership{}, errors.Wrap(err, "getting membership")
	}
	return row.toMembership(), nil
}

func (repo *courseRepository) QueryCourseMembers(courseID string, activeOnly bool) ([]course.Membership, error) {
	query := selectMembership + " WHERE course_id = $1"
	if activeOnly {
		query += " AND is_active"
	}
	query += " ORDER BY created_at"

	var rows []dbMembership
	if err := repo.db.Select(&rows, query, courseID); err != nil {
		return nil, errors.Wrap(err, "querying members")
	}
	members := make([]course.Membership, len(rows))
	for i, row := range rows {
		members[i] = row.toMembership()
	}
	return members, nil
}

func (repo *courseRepository) UpdateMembership(m course.Membership) (course.Membership, error) {
	res, err := repo.db.Exec(`
UPDATE memberships
SET role = $1, join_method = $2, is_active = $3, updated_at = $4
WHERE id = $5`,
		m.Role, m.JoinMethod, m.IsActive, m.UpdatedAt, m.ID)
	if err != nil {
		return course.Membership{}, errors.Wrap(err, "updating membership")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.Membership{}, course.ErrMembershipNotFound
	}
	return m, nil
}
