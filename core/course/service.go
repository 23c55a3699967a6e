package course

import (
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("course not found")
	ErrMembershipNotFound = errors.New("membership not found")
	ErrAlreadyMember      = errors.New("user is already a member of this course")
	ErrNotAllowed         = errors.New("permission denied")
	ErrInvalidTransition  = errors.New("course status does not allow this transition")
	ErrNotJoinable        = errors.New("course is no longer accepting members")
	ErrInviteCodeExists   = errors.New("a course with this invite code already exists")
)

type (
	Repository interface {
		// CreateCourse persists the course; InviteCode uniqueness is enforced
		// by the store and violations surface as ErrInviteCodeExists.
		CreateCourse(crs Course) (Course, error)
		GetCourseByID(id string) (Course, error)
		GetCourseByInviteCode(code string) (Course, error)
		QueryCoursesByMember(userID string) ([]Course, error)
		UpdateCourse(crs Course) (Course, error)

		// CreateMembership persists the membership; (CourseID, UserID)
		// uniqueness is enforced by the store and violations surface as
		// ErrAlreadyMember.
		CreateMembership(m Membership) (Membership, error)
		GetMembership(courseID, userID string) (Membership, error)
		QueryCourseMembers(courseID string, activeOnly bool) ([]Membership, error)
		UpdateMembership(m Membership) (Membership, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create persists a new course along with the creator's implicit membership.
func (svc *Service) Create(nc NewCourse, creator user.User) (Course, error) {
	now := time.Now().UTC()
	crs := Course{
		Name:        nc.Name,
		Description: nc.Description,
		CreatorID:   creator.ID,
		Status:      StatusCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// invite codes are random; retry the (unlikely) collisions
	var err error
	for attempts := 0; attempts < 3; attempts++ {
		if crs.InviteCode, err = generateInviteCode(); err != nil {
			return Course{}, err
		}
		var created Course
		if created, err = svc.repo.CreateCourse(crs); err == nil {
			crs = created
			break
		}
		if err != ErrInviteCodeExists {
			return Course{}, err
		}
	}
	if err != nil {
		return Course{}, err
	}

	_, err = svc.repo.CreateMembership(Membership{
		CourseID:   crs.ID,
		UserID:     creator.ID,
		Role:       RoleCreator,
		JoinMethod: JoinCreated,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return Course{}, pkgerrors.Wrap(err, "creating creator membership")
	}
	return crs, nil
}

func (svc *Service) GetByID(id string) (Course, error) {
	return svc.repo.GetCourseByID(id)
}

func (svc *Service) QueryByMember(userID string) ([]Course, error) {
	return svc.repo.QueryCoursesByMember(userID)
}

func (svc *Service) Update(id string, uc UpdateCourse, caller user.User) (Course, error) {
	crs, err := svc.repo.GetCourseByID(id)
	if err != nil {
		return Course{}, err
	}
	if err = svc.requireManager(crs.ID, caller); err != nil {
		return Course{}, err
	}
	crs.Name = uc.Name
	crs.Description = uc.Description
	crs.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(crs)
}

// Join adds the user as a student member of the course matching the invite code.
// A previously removed member is quietly reactivated.
func (svc *Service) Join(inviteCode string, usr user.User) (Membership, error) {
	crs, err := svc.repo.GetCourseByInviteCode(inviteCode)
	if err != nil {
		return Membership{}, err
	}
	if !crs.Status.Joinable() {
		return Membership{}, ErrNotJoinable
	}
	return svc.addMember(crs.ID, usr.ID, RoleStudent, JoinInviteCode)
}

// AddMember adds a member on behalf of a course manager.
func (svc *Service) AddMember(courseID string, nm NewMember, caller user.User) (Membership, error) {
	crs, err := svc.repo.GetCourseByID(courseID)
	if err != nil {
		return Membership{}, err
	}
	if err = svc.requireManager(crs.ID, caller); err != nil {
		return Membership{}, err
	}
	return svc.addMember(crs.ID, nm.UserID, nm.Role, JoinAdded)
}

func (svc *Service) addMember(courseID, userID string, role MemberRole, how JoinMethod) (Membership, error) {
	now := time.Now().UTC()

	if m, err := svc.repo.GetMembership(courseID, userID); err == nil {
		if m.IsActive {
			return Membership{}, ErrAlreadyMember
		}
		m.IsActive = true
		m.Role = role
		m.JoinMethod = how
		m.UpdatedAt = now
		return svc.repo.UpdateMembership(m)
	} else if err != ErrMembershipNotFound {
		return Membership{}, err
	}

	return svc.repo.CreateMembership(Membership{
		CourseID:   courseID,
		UserID:     userID,
		Role:       role,
		JoinMethod: how,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

// RemoveMember soft-deletes a membership; the row stays for audit.
func (svc *Service) RemoveMember(courseID, userID string, caller user.User) error {
	if err := svc.requireManager(courseID, caller); err != nil {
		return err
	}
	m, err := svc.repo.GetMembership(courseID, userID)
	if err != nil {
		return err
	}
	if !m.IsActive {
		return ErrMembershipNotFound
	}
	m.IsActive = false
	m.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateMembership(m)
	return err
}

func (svc *Service) Members(courseID string) ([]Membership, error) {
	return svc.repo.QueryCourseMembers(courseID, true /* activeOnly */)
}

func (svc *Service) GetMembership(courseID, userID string) (Membership, error) {
	return svc.repo.GetMembership(courseID, userID)
}

// HasActiveMember reports whether the user is an active member of the course.
func (svc *Service) HasActiveMember(courseID, userID string) (bool, error) {
	m, err := svc.repo.GetMembership(courseID, userID)
	if err != nil {
		if err == ErrMembershipNotFound {
			return false, nil
		}
		return false, err
	}
	return m.IsActive, nil
}

// ActiveMemberCount returns the number of active members eligible to check in.
func (svc *Service) ActiveMemberCount(courseID string) (int, error) {
	members, err := svc.repo.QueryCourseMembers(courseID, true /* activeOnly */)
	if err != nil {
		return 0, err
	}
	return len(members), nil
}

// Status transitions. Illegal transitions never mutate state.

func (svc *Service) Activate(id string, caller user.User) (Course, error) {
	return svc.transition(id, caller, StatusActive, func(s Status) bool { return s == StatusCreated })
}

func (svc *Service) Finish(id string, caller user.User) (Course, error) {
	return svc.transition(id, caller, StatusFinished, func(s Status) bool { return s == StatusActive })
}

func (svc *Service) Archive(id string, caller user.User) (Course, error) {
	return svc.transition(id, caller, StatusArchived, func(s Status) bool { return !s.Terminal() })
}

func (svc *Service) transition(id string, caller user.User, to Status, legalFrom func(Status) bool) (Course, error) {
	crs, err := svc.repo.GetCourseByID(id)
	if err != nil {
		return Course{}, err
	}
	if err = svc.requireManager(crs.ID, caller); err != nil {
		return Course{}, err
	}
	if !legalFrom(crs.Status) {
		return Course{}, ErrInvalidTransition
	}
	crs.Status = to
	crs.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(crs)
}

// ResetInviteCode replaces the course invite code, invalidating the old one.
func (svc *Service) ResetInviteCode(id string, caller user.User) (Course, error) {
	crs, err := svc.repo.GetCourseByID(id)
	if err != nil {
		return Course{}, err
	}
	if err = svc.requireManager(crs.ID, caller); err != nil {
		return Course{}, err
	}
	if crs.InviteCode, err = generateInviteCode(); err != nil {
		return Course{}, err
	}
	crs.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(crs)
}

// requireManager fails with ErrNotAllowed unless the caller is an admin or an
// active creator/assistant member of the course.
func (svc *Service) requireManager(courseID string, caller user.User) error {
	if caller.IsAdmin() {
		return nil
	}
	m, err := svc.repo.GetMembership(courseID, caller.ID)
	if err != nil {
		if err == ErrMembershipNotFound {
			return ErrNotAllowed
		}
		return err
	}
	if !m.IsActive || !m.Role.CanManageTasks() {
		return ErrNotAllowed
	}
	return nil
}
