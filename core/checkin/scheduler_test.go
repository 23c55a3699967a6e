package checkin_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/checkin"
	"github.com/trezcool/mahudhurio/core/course"
	inmemdb "github.com/trezcool/mahudhurio/storage/database/inmem"
	testutil "github.com/trezcool/mahudhurio/tests"
)

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

var _ core.Logger = nopLogger{}

type schedFixture struct {
	repo  checkin.Repository
	svc   *checkin.Service
	sched *checkin.Scheduler
	f     *fixture
}

func newSchedFixture(t *testing.T) *schedFixture {
	t.Helper()

	db, err := inmemdb.Open()
	require.NoError(t, err)

	f := &fixture{
		userRepo:  inmemdb.NewUserRepository(db),
		courseSvc: course.NewService(inmemdb.NewCourseRepository(db)),
	}
	repo := inmemdb.NewCheckinRepository(db)
	conf := testutil.NewConfig()
	f.svc = checkin.NewService(repo, f.courseSvc, conf)

	f.teacher = testutil.CreateUser(t, f.userRepo, "Asha Mwalimu", "asha", "asha@test.cd", "", nil, true)
	f.crs = testutil.CreateCourse(t, f.courseSvc, "Distributed Systems", f.teacher)

	return &schedFixture{
		repo:  repo,
		svc:   f.svc,
		sched: checkin.NewScheduler(repo, nopLogger{}, conf),
		f:     f,
	}
}

func (sf *schedFixture) taskStatus(t *testing.T, id string) checkin.TaskStatus {
	t.Helper()
	task, err := sf.svc.GetTask(id)
	require.NoError(t, err)
	return task.Status
}

func TestSchedulerTick(t *testing.T) {
	sf := newSchedFixture(t)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	due := testutil.CreateTask(t, sf.svc, sf.f.crs, "Due", start, end, checkin.ModalityManual,
		checkin.VerifyParams{}, sf.f.teacher)
	future := testutil.CreateTask(t, sf.svc, sf.f.crs, "Future", start.Add(24*time.Hour), end.Add(24*time.Hour),
		checkin.ModalityManual, checkin.VerifyParams{}, sf.f.teacher)

	// before the window: nothing moves
	sf.sched.Tick(start.Add(-time.Minute))
	assert.Equal(t, checkin.StatusCreated, sf.taskStatus(t, due.ID))

	// window open: the due task activates, the future one stays put
	sf.sched.Tick(start.Add(time.Minute))
	assert.Equal(t, checkin.StatusActive, sf.taskStatus(t, due.ID))
	assert.Equal(t, checkin.StatusCreated, sf.taskStatus(t, future.ID))

	// window closed: the active task ends
	sf.sched.Tick(end.Add(time.Minute))
	assert.Equal(t, checkin.StatusEnded, sf.taskStatus(t, due.ID))
	assert.Equal(t, checkin.StatusCreated, sf.taskStatus(t, future.ID))
}

func TestSchedulerTickIdempotent(t *testing.T) {
	sf := newSchedFixture(t)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	task := testutil.CreateTask(t, sf.svc, sf.f.crs, "Due", start, start.Add(time.Hour),
		checkin.ModalityManual, checkin.VerifyParams{}, sf.f.teacher)

	now := start.Add(time.Minute)
	sf.sched.Tick(now)
	sf.sched.Tick(now)
	sf.sched.Tick(now)
	assert.Equal(t, checkin.StatusActive, sf.taskStatus(t, task.ID))
}

func TestSchedulerSkipsCanceled(t *testing.T) {
	sf := newSchedFixture(t)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	task := testutil.CreateTask(t, sf.svc, sf.f.crs, "Nope", start, start.Add(time.Hour),
		checkin.ModalityManual, checkin.VerifyParams{}, sf.f.teacher)

	_, err := sf.svc.CancelTask(task.ID, sf.f.teacher)
	require.NoError(t, err)

	// a canceled task is never resurrected by the scan
	sf.sched.Tick(start.Add(time.Minute))
	assert.Equal(t, checkin.StatusCanceled, sf.taskStatus(t, task.ID))
	sf.sched.Tick(start.Add(2 * time.Hour))
	assert.Equal(t, checkin.StatusCanceled, sf.taskStatus(t, task.ID))
}

func TestSchedulerRacesUserEnd(t *testing.T) {
	sf := newSchedFixture(t)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	task := testutil.CreateTask(t, sf.svc, sf.f.crs, "Lecture", start, end,
		checkin.ModalityManual, checkin.VerifyParams{}, sf.f.teacher)

	sf.sched.Tick(start.Add(time.Minute))
	require.Equal(t, checkin.StatusActive, sf.taskStatus(t, task.ID))

	// the teacher ends early; the later scan finds nothing to do
	_, err := sf.svc.EndTask(task.ID, sf.f.teacher)
	require.NoError(t, err)
	sf.sched.Tick(end.Add(time.Minute))
	assert.Equal(t, checkin.StatusEnded, sf.taskStatus(t, task.ID))
}

func TestSchedulerStartStops(t *testing.T) {
	sf := newSchedFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sf.sched.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on context cancellation")
	}
}
