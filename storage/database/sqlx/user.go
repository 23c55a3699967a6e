package sqlxrepos

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core/user"
)

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

// dbUser is the row shape of the users table.
type dbUser struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     string         `db:"username"`
	Email        string         `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    null.Time      `db:"created_at"`
	UpdatedAt    null.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func (row dbUser) toUser() user.User {
	usr := user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username,
		Email:        row.Email,
		IsActive:     row.IsActive,
		Roles:        row.Roles,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
	}
	if row.LastLogin.Valid {
		usr.LastLogin = row.LastLogin.Time
	}
	return usr
}

const selectUser = `
SELECT id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login
FROM users`

func (repo *userRepository) getUser(query string, args ...interface{}) (user.User, error) {
	var row dbUser
	if err := repo.db.Get(&row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) queryUsers(query string, args ...interface{}) ([]user.User, error) {
	var rows []dbUser
	if err := repo.db.Select(&rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, len(rows))
	for i, row := range rows {
		users[i] = row.toUser()
	}
	return users, nil
}

func (repo *userRepository) CheckUsernameUniqueness(username, email string, excludedUsers ...user.User) error {
	excluded := make(pq.StringArray, len(excludedUsers))
	for i, usr := range excludedUsers {
		excluded[i] = usr.ID
	}

	var taken struct {
		Username bool `db:"username_taken"`
		Email    bool `db:"email_taken"`
	}
	err := repo.db.Get(&taken, `
SELECT COALESCE(BOOL_OR(username = $1), FALSE) AS username_taken,
       COALESCE(BOOL_OR(email = $2), FALSE)    AS email_taken
FROM users
WHERE (username = $1 OR email = $2) AND NOT (id = ANY ($3))`,
		username, email, excluded)
	if err != nil {
		return errors.Wrap(err, "checking uniqueness")
	}
	if taken.Username {
		return user.ErrUsernameExists
	}
	if taken.Email {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(usr user.User) (user.User, error) {
	row := dbUser{
		Name:         usr.Name,
		Username:     usr.Username,
		Email:        usr.Email,
		IsActive:     usr.IsActive,
		Roles:        usr.Roles,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    null.TimeFrom(usr.CreatedAt),
		UpdatedAt:    null.TimeFrom(usr.UpdatedAt),
	}
	if row.Roles == nil {
		row.Roles = pq.StringArray{}
	}

	err := repo.db.QueryRowx(`
INSERT INTO users (name, username, email, is_active, roles, password_hash, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`,
		row.Name, row.Username, row.Email, row.IsActive, row.Roles, row.PasswordHash, row.CreatedAt, row.UpdatedAt,
	).Scan(&usr.ID)
	if err != nil {
		switch {
		case isUniqueViolation(err, "users_username_key"):
			return user.User{}, user.ErrUsernameExists
		case isUniqueViolation(err, "users_email_key"):
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (repo *userRepository) QueryAllUsers() ([]user.User, error) {
	return repo.queryUsers(selectUser + " ORDER BY created_at")
}

func (repo *userRepository) FilterUsers(filter user.QueryFilter) ([]user.User, error) {
	conds := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		p := arg("%" + strings.ToLower(filter.Search) + "%")
		conds = append(conds, "(LOWER(name) LIKE "+p+" OR LOWER(username) LIKE "+p+" OR LOWER(email) LIKE "+p+")")
	}
	if len(filter.Roles) > 0 {
		conds = append(conds, "roles && "+arg(pq.StringArray(filter.Roles)))
	}
	if filter.IsActive != nil {
		conds = append(conds, "is_active = "+arg(*filter.IsActive))
	}

	query := selectUser
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at"
	return repo.queryUsers(query, args...)
}

func (repo *userRepository) GetUserByID(id string) (user.User, error) {
	return repo.getUser(selectUser+" WHERE id = $1", id)
}

func (repo *userRepository) GetUserByUsername(username string) (user.User, error) {
	return repo.getUser(selectUser+" WHERE LOWER(username) = $1", strings.ToLower(username))
}

func (repo *userRepository) GetUserByEmail(email string) (user.User, error) {
	return repo.getUser(selectUser+" WHERE LOWER(email) = $1", strings.ToLower(email))
}

func (repo *userRepository) GetUserByUsernameOrEmail(username string) (user.User, error) {
	return repo.getUser(selectUser+" WHERE LOWER(username) = $1 OR LOWER(email) = $1", strings.ToLower(username))
}

// UpdateUser only saves set fields.
func (repo *userRepository) UpdateUser(usr user.User, isActive *bool) (user.User, error) {
	sets := make([]string, 0, 8)
	args := make([]interface{}, 0, 8)
	set := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if usr.Name != "" {
		set("name", usr.Name)
	}
	if usr.Username != "" {
		set("username", usr.Username)
	}
	if usr.Email != "" {
		set("email", usr.Email)
	}
	if usr.Roles != nil {
		set("roles", pq.StringArray(usr.Roles))
	}
	if usr.PasswordHash != nil {
		set("password_hash", usr.PasswordHash)
	}
	if isActive != nil {
		set("is_active", *isActive)
	}
	if !usr.LastLogin.IsZero() {
		set("last_login", usr.LastLogin)
	}
	if !usr.UpdatedAt.IsZero() {
		set("updated_at", usr.UpdatedAt)
	}
	if len(sets) == 0 {
		return repo.GetUserByID(usr.ID)
	}

	args = append(args, usr.ID)
	query := "UPDATE users SET " + strings.Join(sets, ", ") +
		fmt.Sprintf(" WHERE id = $%d", len(args)) +
		" RETURNING id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login"

	var row dbUser
	if err := repo.db.Get(&row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		switch {
		case isUniqueViolation(err, "users_username_key"):
			return user.User{}, user.ErrUsernameExists
		case isUniqueViolation(err, "users_email_key"):
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) DeleteUsersByID(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := repo.db.Exec("DELETE FROM users WHERE id = ANY ($1)", pq.StringArray(ids))
	return errors.Wrap(err, "deleting users")
}
