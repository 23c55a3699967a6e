package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mahudhurio/core"
)

// Status is the closed set of course states. Archived is terminal.
type Status string

const (
	StatusCreated  Status = "created"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
	StatusArchived Status = "archived"
)

func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusActive, StatusFinished, StatusArchived:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave this status.
func (s Status) Terminal() bool {
	return s == StatusArchived
}

// Joinable reports whether new members may still join a course in this status.
func (s Status) Joinable() bool {
	return s == StatusCreated || s == StatusActive
}

// MemberRole is the closed set of roles a user may hold within a course.
type MemberRole string

const (
	RoleCreator   MemberRole = "creator"
	RoleAssistant MemberRole = "assistant"
	RoleStudent   MemberRole = "student"
)

func (r MemberRole) Valid() bool {
	switch r {
	case RoleCreator, RoleAssistant, RoleStudent:
		return true
	}
	return false
}

// CanManageTasks reports whether this role may create or drive check-in tasks.
func (r MemberRole) CanManageTasks() bool {
	return r == RoleCreator || r == RoleAssistant
}

// JoinMethod records how a membership came to be, for audit.
type JoinMethod string

const (
	JoinCreated    JoinMethod = "created"     // course creator's implicit membership
	JoinInviteCode JoinMethod = "invite_code" // self-joined with the course invite code
	JoinAdded      JoinMethod = "added"       // added by a creator/assistant
)

type Course struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatorID   string    `json:"creator_id"`
	InviteCode  string    `json:"invite_code"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// Membership ties a user to a course. (CourseID, UserID) is unique;
// removal is soft via IsActive so the join audit trail survives.
type Membership struct {
	ID         string     `json:"id"`
	CourseID   string     `json:"course_id"`
	UserID     string     `json:"user_id"`
	Role       MemberRole `json:"role"`
	JoinMethod JoinMethod `json:"join_method"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"` // UTC
	UpdatedAt  time.Time  `json:"updated_at"` // UTC
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
type UpdateCourse struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate, orig Course) error {
	name := core.CleanString(uc.Name)
	if name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}

	desc := core.CleanString(uc.Description)
	if desc != "" {
		uc.Description = desc
	} else {
		uc.Description = orig.Description
	}
	return validate.Struct(uc)
}

// NewMember contains information needed to add a member to a Course.
type NewMember struct {
	UserID string     `json:"user_id" validate:"required"`
	Role   MemberRole `json:"role" validate:"required,oneof=creator assistant student"`
}

func (nm *NewMember) Validate(validate *validator.Validate) error {
	nm.UserID = core.CleanString(nm.UserID)
	return validate.Struct(nm)
}
