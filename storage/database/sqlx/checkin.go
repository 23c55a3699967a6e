package sqlxrepos

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core/checkin"
)

type checkinRepository struct {
	db *sqlx.DB
}

func NewCheckinRepository(db *sqlx.DB) checkin.Repository {
	return &checkinRepository{db: db}
}

type dbTask struct {
	ID             string             `db:"id"`
	ParentCourseID null.String        `db:"parent_course_id"`
	Name           string             `db:"name"`
	Description    string             `db:"description"`
	StartsAt       time.Time          `db:"starts_at"`
	EndsAt         time.Time          `db:"ends_at"`
	Modality       checkin.Modality   `db:"modality"`
	Params         []byte             `db:"params"`
	Status         checkin.TaskStatus `db:"status"`
	CreatorID      string             `db:"creator_id"`
	CreatedAt      time.Time          `db:"created_at"`
	UpdatedAt      time.Time          `db:"updated_at"`
}

func (row dbTask) toTask() (checkin.Task, error) {
	t := checkin.Task{
		ID:             row.ID,
		ParentCourseID: row.ParentCourseID,
		Name:           row.Name,
		Description:    row.Description,
		StartsAt:       row.StartsAt.UTC(),
		EndsAt:         row.EndsAt.UTC(),
		Modality:       row.Modality,
		Status:         row.Status,
		CreatorID:      row.CreatorID,
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
	if len(row.Params) > 0 {
		if err := json.Unmarshal(row.Params, &t.Params); err != nil {
			return checkin.Task{}, errors.Wrap(err, "decoding task params")
		}
	}
	return t, nil
}

type dbRecord struct {
	ID          string               `db:"id"`
	UserID      string               `db:"user_id"`
	TaskID      string               `db:"task_id"`
	CourseID    null.String          `db:"course_id"`
	Status      checkin.RecordStatus `db:"status"`
	CheckedInAt time.Time            `db:"checked_in_at"`
	Lat         null.Float64         `db:"lat"`
	Lng         null.Float64         `db:"lng"`
	Device      string               `db:"device"`
	Modality    checkin.Modality     `db:"modality"`
	Payload     string               `db:"payload"`
	CreatedAt   time.Time            `db:"created_at"`
	UpdatedAt   time.Time            `db:"updated_at"`
}

func (row dbRecord) toRecord() checkin.Record {
	return checkin.Record{
		ID:          row.ID,
		UserID:      row.UserID,
		TaskID:      row.TaskID,
		CourseID:    row.CourseID,
		Status:      row.Status,
		CheckedInAt: row.CheckedInAt.UTC(),
		Lat:         row.Lat,
		Lng:         row.Lng,
		Device:      row.Device,
		Modality:    row.Modality,
		Payload:     row.Payload,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

const (
	selectTask = `
SELECT id, parent_course_id, name, description, starts_at, ends_at, modality, params, status, creator_id, created_at, updated_at
FROM checkin_tasks`

	selectRecord = `
SELECT id, user_id, task_id, course_id, status, checked_in_at, lat, lng, device, modality, payload, created_at, updated_at
FROM checkin_records`
)

func (repo *checkinRepository) getTask(query string, args ...interface{}) (checkin.Task, error) {
	var row dbTask
	if err := repo.db.Get(&row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return checkin.Task{}, checkin.ErrTaskNotFound
		}
		return checkin.Task{}, errors.Wrap(err, "getting task")
	}
	return row.toTask()
}

func (repo *checkinRepository) queryTasks(query string, args ...interface{}) ([]checkin.Task, error) {
	var rows []dbTask
	if err := repo.db.Select(&rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying tasks")
	}
	tasks := make([]checkin.Task, len(rows))
	for i, row := range rows {
		t, err := row.toTask()
		if err != nil {
			return nil, err
		}
		tasks[i] = t
	}
	return tasks, nil
}

func (repo *checkinRepository) CreateTask(t checkin.Task) (checkin.Task, error) {
	params, err := json.Marshal(t.Params)
	if err != nil {
		return checkin.Task{}, errors.Wrap(err, "encoding task params")
	}

	err = repo.db.QueryRowx(`
INSERT INTO checkin_tasks (parent_course_id, name, description, starts_at, ends_at, modality, params, status, creator_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id`,
		t.ParentCourseID, t.Name, t.Description, t.StartsAt, t.EndsAt, t.Modality, params, t.Status, t.CreatorID, t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		return checkin.Task{}, errors.Wrap(err, "creating task")
	}
	return t, nil
}

func (repo *checkinRepository) GetTaskByID(id string) (checkin.Task, error) {
	return repo.getTask(selectTask+" WHERE id = $1", id)
}

func (repo *checkinRepository) QueryTasksByCourse(courseID string) ([]checkin.Task, error) {
	return repo.queryTasks(selectTask+" WHERE parent_course_id = $1 ORDER BY starts_at", courseID)
}

func (repo *checkinRepository) QueryTasksToActivate(now time.Time) ([]checkin.Task, error) {
	return repo.queryTasks(selectTask+" WHERE status = $1 AND starts_at <= $2 ORDER BY starts_at",
		checkin.StatusCreated, now)
}

func (repo *checkinRepository) QueryTasksToEnd(now time.Time) ([]checkin.Task, error) {
	return repo.queryTasks(selectTask+" WHERE status = $1 AND ends_at <= $2 ORDER BY starts_at",
		checkin.StatusActive, now)
}

// ClaimTaskSecret compare-and-swaps the secret into the params column; if a
// racing caller already claimed one, the stored task is returned instead.
func (repo *checkinRepository) ClaimTaskSecret(id, secret string) (checkin.Task, error) {
	var row dbTask
	err := repo.db.Get(&row, `
UPDATE checkin_tasks
SET params = jsonb_set(params, '{secret}', to_jsonb($1::text)), updated_at = NOW()
WHERE id = $2 AND COALESCE(params->>'secret', '') = ''
RETURNING id, parent_course_id, name, description, starts_at, ends_at, modality, params, status, creator_id, created_at, updated_at`,
		secret, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return repo.GetTaskByID(id)
		}
		return checkin.Task{}, errors.Wrap(err, "claiming task secret")
	}
	return row.toTask()
}

// TransitionTask is a compare-and-swap on the status column; the WHERE clause
// is what makes concurrent scheduler ticks and user actions safe.
func (repo *checkinRepository) TransitionTask(id string, from, to checkin.TaskStatus) (checkin.Task, error) {
	if !from.CanTransitionTo(to) {
		return checkin.Task{}, checkin.ErrInvalidTransition
	}

	var row dbTask
	err := repo.db.Get(&row, `
UPDATE checkin_tasks
SET status = $1, updated_at = NOW()
WHERE id = $2 AND status = $3
RETURNING id, parent_course_id, name, description, starts_at, ends_at, modality, params, status, creator_id, created_at, updated_at`,
		to, id, from)
	if err != nil {
		if err == sql.ErrNoRows {
			// either the task is gone or its status moved under us
			if _, err = repo.GetTaskByID(id); err != nil {
				return checkin.Task{}, err
			}
			return checkin.Task{}, checkin.ErrInvalidTransition
		}
		return checkin.Task{}, errors.Wrap(err, "transitioning task")
	}
	return row.toTask()
}

func (repo *checkinRepository) CreateRecord(rec checkin.Record) (checkin.Record, error) {
	err := repo.db.QueryRowx(`
INSERT INTO checkin_records (user_id, task_id, course_id, status, checked_in_at, lat, lng, device, modality, payload, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id`,
		rec.UserID, rec.TaskID, rec.CourseID, rec.Status, rec.CheckedInAt, rec.Lat, rec.Lng, rec.Device, rec.Modality, rec.Payload, rec.CreatedAt, rec.UpdatedAt,
	).Scan(&rec.ID)
	if err != nil {
		if isUniqueViolation(err, "checkin_records_user_id_task_id_key") {
			return checkin.Record{}, checkin.ErrAlreadyCheckedIn
		}
		return checkin.Record{}, errors.Wrap(err, "creating record")
	}
	return rec, nil
}

func (repo *checkinRepository) getRecord(query string, args ...interface{}) (checkin.Record, error) {
	var row dbRecord
	if err := repo.db.Get(&row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return checkin.Record{}, checkin.ErrRecordNotFound
		}
		return checkin.Record{}, errors.Wrap(err, "getting record")
	}
	return row.toRecord(), nil
}

func (repo *checkinRepository) GetRecord(userID, taskID string) (checkin.Record, error) {
	return repo.getRecord(selectRecord+" WHERE user_id = $1 AND task_id = $2", userID, taskID)
}

func (repo *checkinRepository) GetRecordByID(id string) (checkin.Record, error) {
	return repo.getRecord(selectRecord+" WHERE id = $1", id)
}

func (repo *checkinRepository) QueryTaskRecords(taskID string) ([]checkin.Record, error) {
	var rows []dbRecord
	if err := repo.db.Select(&rows, selectRecord+" WHERE task_id = $1 ORDER BY checked_in_at", taskID); err != nil {
		return nil, errors.Wrap(err, "querying records")
	}
	records := make([]checkin.Record, len(rows))
	for i, row := range rows {
		records[i] = row.toRecord()
	}
	return records, nil
}

func (repo *checkinRepository) UpdateRecord(rec checkin.Record) (checkin.Record, error) {
	res, err := repo.db.Exec(`
UPDATE checkin_records
SET status = $1, updated_at = $2
WHERE id = $3`,
		rec.Status, rec.UpdatedAt, rec.ID)
	if err != nil {
		return checkin.Record{}, errors.Wrap(err, "updating record")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return checkin.Record{}, checkin.ErrRecordNotFound
	}
	return rec, nil
}
