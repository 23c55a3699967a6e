package inmemdb

import (
	"sort"
	"time"

	"github.com/trezcool/mahudhurio/core/checkin"
)

type checkinRepository struct {
	db *checkinTable
}

func NewCheckinRepository(db *DB) checkin.Repository {
	return &checkinRepository{db: db.checkin}
}

// Tasks

func (repo *checkinRepository) CreateTask(t checkin.Task) (checkin.Task, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	t.ID = newPK()
	repo.db.tasks[t.ID] = &t
	return t, nil
}

func (repo *checkinRepository) GetTaskByID(id string) (checkin.Task, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.tasks[id]; ok {
		return *t, nil
	}
	return checkin.Task{}, checkin.ErrTaskNotFound
}

func (repo *checkinRepository) QueryTasksByCourse(courseID string) ([]checkin.Task, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	tasks := make([]checkin.Task, 0)
	for _, t := range repo.db.tasks {
		if t.ParentCourseID.Valid && t.ParentCourseID.String == courseID {
			tasks = append(tasks, *t)
		}
	}
	sortTasks(tasks)
	return tasks, nil
}

func (repo *checkinRepository) QueryTasksToActivate(now time.Time) ([]checkin.Task, error) {
	return repo.queryByStatus(checkin.StatusCreated, func(t checkin.Task) bool {
		return !t.StartsAt.After(now)
	})
}

func (repo *checkinRepository) QueryTasksToEnd(now time.Time) ([]checkin.Task, error) {
	return repo.queryByStatus(checkin.StatusActive, func(t checkin.Task) bool {
		return !t.EndsAt.After(now)
	})
}

func (repo *checkinRepository) queryByStatus(status checkin.TaskStatus, match func(checkin.Task) bool) ([]checkin.Task, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	tasks := make([]checkin.Task, 0)
	for _, t := range repo.db.tasks {
		if t.Status == status && match(*t) {
			tasks = append(tasks, *t)
		}
	}
	sortTasks(tasks)
	return tasks, nil
}

// ClaimTaskSecret sets the secret under the table lock only if no racing
// caller beat us to it; either way the stored task is returned.
func (repo *checkinRepository) ClaimTaskSecret(id, secret string) (checkin.Task, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	t, ok := repo.db.tasks[id]
	if !ok {
		return checkin.Task{}, checkin.ErrTaskNotFound
	}
	if t.Params.Secret == "" {
		t.Params.Secret = secret
		t.UpdatedAt = time.Now().UTC()
	}
	return *t, nil
}

// TransitionTask compare-and-swaps the task status under the table lock, so
// scheduler ticks and user actions can never clobber each other's terminal
// states.
func (repo *checkinRepository) TransitionTask(id string, from, to checkin.TaskStatus) (checkin.Task, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	t, ok := repo.db.tasks[id]
	if !ok {
		return checkin.Task{}, checkin.ErrTaskNotFound
	}
	if t.Status != from || !from.CanTransitionTo(to) {
		return checkin.Task{}, checkin.ErrInvalidTransition
	}
	t.Status = to
	t.UpdatedAt = time.Now().UTC()
	return *t, nil
}

// Records

func (repo *checkinRepository) CreateRecord(rec checkin.Record) (checkin.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := [2]string{rec.UserID, rec.TaskID}
	if _, exists := repo.db.byUserTask[key]; exists {
		return checkin.Record{}, checkin.ErrAlreadyCheckedIn
	}
	rec.ID = newPK()
	repo.db.records[rec.ID] = &rec
	repo.db.byUserTask[key] = rec.ID
	return rec, nil
}

func (repo *checkinRepository) GetRecord(userID, taskID string) (checkin.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if id, ok := repo.db.byUserTask[[2]string{userID, taskID}]; ok {
		return *repo.db.records[id], nil
	}
	return checkin.Record{}, checkin.ErrRecordNotFound
}

func (repo *checkinRepository) GetRecordByID(id string) (checkin.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rec, ok := repo.db.records[id]; ok {
		return *rec, nil
	}
	return checkin.Record{}, checkin.ErrRecordNotFound
}

func (repo *checkinRepository) QueryTaskRecords(taskID string) ([]checkin.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	records := make([]checkin.Record, 0)
	for _, rec := range repo.db.records {
		if rec.TaskID == taskID {
			records = append(records, *rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CheckedInAt.Before(records[j].CheckedInAt) })
	return records, nil
}

func (repo *checkinRepository) UpdateRecord(rec checkin.Record) (checkin.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.records[rec.ID]; !ok {
		return checkin.Record{}, checkin.ErrRecordNotFound
	}
	repo.db.records[rec.ID] = &rec
	return rec, nil
}

func sortTasks(tasks []checkin.Task) {
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].StartsAt.Before(tasks[j].StartsAt) })
}
