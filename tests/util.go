package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/checkin"
	"github.com/trezcool/mahudhurio/core/course"
	"github.com/trezcool/mahudhurio/core/user"
)

// NewConfig returns a config suitable for tests.
func NewConfig() *core.Config {
	return &core.Config{
		Debug:     false,
		TestMode:  true,
		SecretKey: "poq5-wer6-ty7u-1i2o",
		AppName:   "Mahudhurio",
		Server: core.ServerConfig{
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Checkin: core.CheckinConfig{
			SchedulerTickInterval: time.Minute,
			CodeLength:            8,
		},
	}
}

// CreateUser creates and stores a user with the given roles.
func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
) user.User {
	t.Helper()

	usr := user.User{
		Name:     name,
		Username: uname,
		Email:    email,
		IsActive: isActive,
		Roles:    roles,
	}
	if pwd != "" {
		require.NoError(t, usr.SetPassword(pwd))
	}
	usr, err := repo.CreateUser(usr)
	require.NoError(t, err)
	return usr
}

// CreateCourse creates a course with creator as its active creator member.
func CreateCourse(
	t *testing.T,
	svc *course.Service,
	name string,
	creator user.User,
) course.Course {
	t.Helper()

	crs, err := svc.Create(course.NewCourse{Name: name}, creator)
	require.NoError(t, err)
	return crs
}

// Enroll adds usr to crs as an active student member.
func Enroll(
	t *testing.T,
	svc *course.Service,
	crs course.Course,
	usr user.User,
	caller user.User,
) course.Membership {
	t.Helper()

	m, err := svc.AddMember(crs.ID, course.NewMember{UserID: usr.ID, Role: course.RoleStudent}, caller)
	require.NoError(t, err)
	return m
}

// CreateTask creates a check-in task under crs.
func CreateTask(
	t *testing.T,
	svc *checkin.Service,
	crs course.Course,
	name string,
	startsAt, endsAt time.Time,
	modality checkin.Modality,
	params checkin.VerifyParams,
	creator user.User,
) checkin.Task {
	t.Helper()

	task, err := svc.CreateTask(checkin.NewTask{
		ParentCourseID: crs.ID,
		Name:           name,
		StartsAt:       startsAt,
		EndsAt:         endsAt,
		Modality:       modality,
		Params:         params,
	}, creator)
	require.NoError(t, err)
	return task
}
