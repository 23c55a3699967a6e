package checkin

import (
	"errors"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/course"
	"github.com/trezcool/mahudhurio/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrTaskNotFound     = errors.New("task not found")
	ErrRecordNotFound   = errors.New("record not found")
	ErrNotCourseMember  = errors.New("user is not an active member of the task's course")
	ErrTaskNotOpen      = errors.New("task is not open for submissions")
	ErrAlreadyCheckedIn = errors.New("user has already checked in to this task")
	ErrNotAllowed       = errors.New("permission denied")
	ErrNotCodeTask      = errors.New("task does not use code verification")
)

type (
	Repository interface {
		CreateTask(t Task) (Task, error)
		GetTaskByID(id string) (Task, error)
		QueryTasksByCourse(courseID string) ([]Task, error)
		// QueryTasksToActivate returns created tasks whose window has opened.
		QueryTasksToActivate(now time.Time) ([]Task, error)
		// QueryTasksToEnd returns active tasks whose window has closed.
		QueryTasksToEnd(now time.Time) ([]Task, error)
		// ClaimTaskSecret stores the secret only if the task has none yet
		// and returns the stored task, so racing callers converge on one
		// code instead of the last write invalidating an already read one.
		ClaimTaskSecret(id, secret string) (Task, error)
		// TransitionTask atomically moves the task from `from` to `to`,
		// failing with ErrInvalidTransition if the stored status is no longer
		// `from`. This is what keeps scheduler ticks and user actions
		// commutative: a stale read can never clobber a terminal state.
		TransitionTask(id string, from, to TaskStatus) (Task, error)

		// CreateRecord persists the record; (UserID, TaskID) uniqueness is
		// enforced by the store and violations surface as ErrAlreadyCheckedIn.
		CreateRecord(r Record) (Record, error)
		GetRecord(userID, taskID string) (Record, error)
		GetRecordByID(id string) (Record, error)
		QueryTaskRecords(taskID string) ([]Record, error)
		UpdateRecord(r Record) (Record, error)
	}

	// CourseDirectory is the slice of the course service the check-in engine
	// relies on for membership checks and roster sizes.
	CourseDirectory interface {
		HasActiveMember(courseID, userID string) (bool, error)
		ActiveMemberCount(courseID string) (int, error)
		GetMembership(courseID, userID string) (course.Membership, error)
	}

	Service struct {
		repo      Repository
		courses   CourseDirectory
		secretLen int
	}
)

func NewService(repo Repository, courses CourseDirectory, conf *core.Config) *Service {
	secretLen := defaultSecretLen
	if conf != nil && conf.Checkin.CodeLength > 0 {
		secretLen = conf.Checkin.CodeLength
	}
	return &Service{repo: repo, courses: courses, secretLen: secretLen}
}

// CreateTask persists a new task in the created state. When the task is
// nested under a course, the creator must be allowed to manage that course.
func (svc *Service) CreateTask(nt NewTask, creator user.User) (Task, error) {
	if nt.ParentCourseID != "" {
		if err := svc.requireCourseManager(nt.ParentCourseID, creator); err != nil {
			return Task{}, err
		}
	}

	now := NowFunc().UTC()
	t := Task{
		ParentCourseID: null.NewString(nt.ParentCourseID, nt.ParentCourseID != ""),
		Name:           nt.Name,
		Description:    nt.Description,
		StartsAt:       nt.StartsAt.UTC(),
		EndsAt:         nt.EndsAt.UTC(),
		Modality:       nt.Modality,
		Params:         nt.Params,
		Status:         StatusCreated,
		CreatorID:      creator.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return svc.repo.CreateTask(t)
}

func (svc *Service) GetTask(id string) (Task, error) {
	return svc.repo.GetTaskByID(id)
}

func (svc *Service) QueryCourseTasks(courseID string) ([]Task, error) {
	return svc.repo.QueryTasksByCourse(courseID)
}

// Explicit user-driven transitions. Each enforces the caller gate, then the
// lifecycle guard, then applies the change atomically.

func (svc *Service) ActivateTask(id string, caller user.User) (Task, error) {
	return svc.transition(id, caller, StatusActive)
}

func (svc *Service) EndTask(id string, caller user.User) (Task, error) {
	return svc.transition(id, caller, StatusEnded)
}

func (svc *Service) CancelTask(id string, caller user.User) (Task, error) {
	return svc.transition(id, caller, StatusCanceled)
}

func (svc *Service) transition(id string, caller user.User, to TaskStatus) (Task, error) {
	t, err := svc.repo.GetTaskByID(id)
	if err != nil {
		return Task{}, err
	}
	if err = svc.requireTaskManager(t, caller); err != nil {
		return Task{}, err
	}
	if !t.Status.CanTransitionTo(to) {
		return Task{}, ErrInvalidTransition
	}
	return svc.repo.TransitionTask(t.ID, t.Status, to)
}

// Submit runs one check-in submission end to end:
// membership -> open-window gate -> duplicate check -> verification ->
// classification -> record. Fail-fast; no partial records on any path.
func (svc *Service) Submit(sub CheckIn, usr user.User) (Record, error) {
	t, err := svc.repo.GetTaskByID(sub.TaskID)
	if err != nil {
		return Record{}, err
	}

	if t.ParentCourseID.Valid {
		ok, err := svc.courses.HasActiveMember(t.ParentCourseID.String, usr.ID)
		if err != nil {
			return Record{}, err
		}
		if !ok {
			return Record{}, ErrNotCourseMember
		}
	}

	now := NowFunc().UTC()
	if !t.AcceptsSubmissions(now) {
		return Record{}, ErrTaskNotOpen
	}

	// fast duplicate check; the store's uniqueness guarantee below is what
	// actually closes the race
	if _, err = svc.repo.GetRecord(usr.ID, t.ID); err == nil {
		return Record{}, ErrAlreadyCheckedIn
	} else if err != ErrRecordNotFound {
		return Record{}, err
	}

	if err = verify(t, sub); err != nil {
		return Record{}, err
	}

	rec := Record{
		UserID:      usr.ID,
		TaskID:      t.ID,
		CourseID:    t.ParentCourseID,
		Status:      classify(t.StartsAt, t.EndsAt, now),
		CheckedInAt: now,
		Device:      sub.Device,
		Modality:    t.Modality,
		Payload:     sub.Code,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if sub.Lat != nil {
		rec.Lat = null.Float64From(*sub.Lat)
	}
	if sub.Lng != nil {
		rec.Lng = null.Float64From(*sub.Lng)
	}
	return svc.repo.CreateRecord(rec)
}

// SubmitFor lets a task manager record a submission on behalf of a student,
// eg. for manual attendance taking.
func (svc *Service) SubmitFor(sub CheckIn, student user.User, caller user.User) (Record, error) {
	t, err := svc.repo.GetTaskByID(sub.TaskID)
	if err != nil {
		return Record{}, err
	}
	if err = svc.requireTaskManager(t, caller); err != nil {
		return Record{}, err
	}
	return svc.Submit(sub, student)
}

// CheckInCode returns the task's shared secret, lazily generating and
// persisting one on first request.
func (svc *Service) CheckInCode(taskID string, caller user.User) (string, error) {
	t, err := svc.repo.GetTaskByID(taskID)
	if err != nil {
		return "", err
	}
	if err = svc.requireTaskManager(t, caller); err != nil {
		return "", err
	}
	if t.Modality != ModalityCode {
		return "", ErrNotCodeTask
	}
	if t.Params.Secret != "" {
		return t.Params.Secret, nil
	}

	secret, err := generateSecret(svc.secretLen)
	if err != nil {
		return "", err
	}
	if t, err = svc.repo.ClaimTaskSecret(t.ID, secret); err != nil {
		return "", err
	}
	return t.Params.Secret, nil
}

// Statistics returns record counts per status for a task. The absent count is
// synthetic: eligible course members who never submitted count as absent on
// top of explicitly recorded absences.
func (svc *Service) Statistics(taskID string) (map[RecordStatus]int, error) {
	t, err := svc.repo.GetTaskByID(taskID)
	if err != nil {
		return nil, err
	}
	records, err := svc.repo.QueryTaskRecords(t.ID)
	if err != nil {
		return nil, err
	}

	stats := map[RecordStatus]int{
		RecordNormal: 0,
		RecordLate:   0,
		RecordAbsent: 0,
		RecordLeave:  0,
	}
	for _, rec := range records {
		stats[rec.Status]++
	}

	if t.ParentCourseID.Valid {
		eligible, err := svc.courses.ActiveMemberCount(t.ParentCourseID.String)
		if err != nil {
			return nil, err
		}
		if missing := eligible - len(records); missing > 0 {
			stats[RecordAbsent] += missing
		}
	}
	return stats, nil
}

func (svc *Service) TaskRecords(taskID string, caller user.User) ([]Record, error) {
	t, err := svc.repo.GetTaskByID(taskID)
	if err != nil {
		return nil, err
	}
	if err = svc.requireTaskManager(t, caller); err != nil {
		return nil, err
	}
	return svc.repo.QueryTaskRecords(t.ID)
}

// OverrideRecord is the administrative escape hatch: approve (normal),
// reject (absent) or excuse (leave) an existing record. It updates in place,
// so the (UserID, TaskID) uniqueness invariant is untouched.
func (svc *Service) OverrideRecord(recordID string, status RecordStatus, caller user.User) (Record, error) {
	if !status.Valid() {
		return Record{}, core.NewValidationError(nil, core.FieldError{Field: "status", Error: "invalid record status"})
	}
	rec, err := svc.repo.GetRecordByID(recordID)
	if err != nil {
		return Record{}, err
	}
	t, err := svc.repo.GetTaskByID(rec.TaskID)
	if err != nil {
		return Record{}, err
	}
	if err = svc.requireTaskManager(t, caller); err != nil {
		return Record{}, err
	}
	rec.Status = status
	rec.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateRecord(rec)
}

// CanManage reports whether the caller may drive the task's lifecycle and
// read its privileged data (secret, records, stats).
func (svc *Service) CanManage(t Task, caller user.User) bool {
	return svc.requireTaskManager(t, caller) == nil
}

// requireTaskManager fails with ErrNotAllowed unless the caller is an admin,
// the task creator, or a manager of the task's parent course.
func (svc *Service) requireTaskManager(t Task, caller user.User) error {
	if caller.IsAdmin() || caller.ID == t.CreatorID {
		return nil
	}
	if t.ParentCourseID.Valid {
		return svc.requireCourseManager(t.ParentCourseID.String, caller)
	}
	return ErrNotAllowed
}

func (svc *Service) requireCourseManager(courseID string, caller user.User) error {
	if caller.IsAdmin() {
		return nil
	}
	m, err := svc.courses.GetMembership(courseID, caller.ID)
	if err != nil {
		if err == course.ErrMembershipNotFound {
			return ErrNotAllowed
		}
		return err
	}
	if !m.IsActive || !m.Role.CanManageTasks() {
		return ErrNotAllowed
	}
	return nil
}
