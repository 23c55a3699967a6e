package checkin

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
)

// TaskStatus is the closed set of check-in task states.
// Ended and Canceled are terminal.
type TaskStatus string

const (
	StatusCreated  TaskStatus = "created"
	StatusActive   TaskStatus = "active"
	StatusEnded    TaskStatus = "ended"
	StatusCanceled TaskStatus = "canceled"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusCreated, StatusActive, StatusEnded, StatusCanceled:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave this status.
func (s TaskStatus) Terminal() bool {
	return s == StatusEnded || s == StatusCanceled
}

// Modality is the closed set of verification methods a task may be
// configured with.
type Modality string

const (
	ModalityCode     Modality = "code"
	ModalityLocation Modality = "location"
	ModalityWifi     Modality = "wifi"
	ModalityManual   Modality = "manual"
)

func (m Modality) Valid() bool {
	switch m {
	case ModalityCode, ModalityLocation, ModalityWifi, ModalityManual:
		return true
	}
	return false
}

// VerifyParams holds the modality-specific verification configuration of a
// task. Only the fields matching Task.Modality are meaningful.
type VerifyParams struct {
	// code
	Secret string `json:"secret,omitempty"`
	// location; Radius in meters
	Lat    float64 `json:"lat,omitempty"`
	Lng    float64 `json:"lng,omitempty"`
	Radius float64 `json:"radius,omitempty"`
	// wifi
	SSID  string `json:"ssid,omitempty"`
	BSSID string `json:"bssid,omitempty"`
}

// Task is a time-bounded check-in activity students submit proof of
// presence against. Tasks are never deleted, only canceled.
type Task struct {
	ID             string       `json:"id"`
	ParentCourseID null.String  `json:"parent_course_id"`
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	StartsAt       time.Time    `json:"starts_at"` // UTC
	EndsAt         time.Time    `json:"ends_at"`   // UTC
	Modality       Modality     `json:"modality"`
	Params         VerifyParams `json:"params"`
	Status         TaskStatus   `json:"status"`
	CreatorID      string       `json:"creator_id"`
	CreatedAt      time.Time    `json:"created_at"` // UTC
	UpdatedAt      time.Time    `json:"updated_at"` // UTC
}

// RecordStatus is the closed set of attendance outcomes.
type RecordStatus string

const (
	RecordNormal RecordStatus = "normal"
	RecordLate   RecordStatus = "late"
	RecordAbsent RecordStatus = "absent"
	RecordLeave  RecordStatus = "leave"
)

func (s RecordStatus) Valid() bool {
	switch s {
	case RecordNormal, RecordLate, RecordAbsent, RecordLeave:
		return true
	}
	return false
}

// Record is the durable outcome of one user's submission against one task.
// At most one Record exists per (UserID, TaskID); the stores enforce it.
type Record struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	TaskID      string       `json:"task_id"`
	CourseID    null.String  `json:"course_id"` // denormalized from the task
	Status      RecordStatus `json:"status"`
	CheckedInAt time.Time    `json:"checked_in_at"` // UTC
	Lat         null.Float64 `json:"lat"`
	Lng         null.Float64 `json:"lng"`
	Device      string       `json:"device,omitempty"`
	Modality    Modality     `json:"modality"`
	Payload     string       `json:"payload,omitempty"` // raw verification data, for audit
	CreatedAt   time.Time    `json:"created_at"`        // UTC
	UpdatedAt   time.Time    `json:"updated_at"`        // UTC
}

// NewTask contains information needed to create a new Task.
type NewTask struct {
	ParentCourseID string       `json:"parent_course_id" validate:"omitempty"`
	Name           string       `json:"name" validate:"required"`
	Description    string       `json:"description"`
	StartsAt       time.Time    `json:"starts_at" validate:"required"`
	EndsAt         time.Time    `json:"ends_at" validate:"required"`
	Modality       Modality     `json:"modality" validate:"required,oneof=code location wifi manual"`
	Params         VerifyParams `json:"params"`
}

func (nt *NewTask) Validate(validate *validator.Validate) error {
	nt.ParentCourseID = core.CleanString(nt.ParentCourseID)
	nt.Name = core.CleanString(nt.Name)
	nt.Description = core.CleanString(nt.Description)

	if err := validate.Struct(nt); err != nil {
		return err
	}
	if nt.EndsAt.Before(nt.StartsAt) {
		return core.NewValidationError(nil, core.FieldError{Field: "ends_at", Error: "must not be before starts_at"})
	}
	return nt.validateParams()
}

// validateParams checks the modality-specific configuration. The code secret
// is deliberately optional: it may be lazily generated on first request.
func (nt *NewTask) validateParams() error {
	switch nt.Modality {
	case ModalityLocation:
		var flds []core.FieldError
		if nt.Params.Lat < -90 || nt.Params.Lat > 90 {
			flds = append(flds, core.FieldError{Field: "params.lat", Error: "must be a valid latitude"})
		}
		if nt.Params.Lng < -180 || nt.Params.Lng > 180 {
			flds = append(flds, core.FieldError{Field: "params.lng", Error: "must be a valid longitude"})
		}
		if nt.Params.Radius <= 0 {
			flds = append(flds, core.FieldError{Field: "params.radius", Error: "must be a positive number of meters"})
		}
		if len(flds) > 0 {
			return core.NewValidationError(nil, flds...)
		}
	case ModalityWifi:
		var flds []core.FieldError
		if nt.Params.SSID == "" {
			flds = append(flds, core.FieldError{Field: "params.ssid", Error: "this field is required"})
		}
		if nt.Params.BSSID == "" {
			flds = append(flds, core.FieldError{Field: "params.bssid", Error: "this field is required"})
		}
		if len(flds) > 0 {
			return core.NewValidationError(nil, flds...)
		}
	}
	return nil
}

// CheckIn is one user's submission against a task. Which fields are required
// depends on the task's modality.
type CheckIn struct {
	TaskID string `json:"task_id" validate:"required"`
	// code
	Code string `json:"code,omitempty"`
	// location
	Lat *float64 `json:"lat,omitempty" validate:"omitempty,latitude"`
	Lng *float64 `json:"lng,omitempty" validate:"omitempty,longitude"`
	// wifi
	SSID  string `json:"ssid,omitempty"`
	BSSID string `json:"bssid,omitempty"`

	Device string `json:"device,omitempty"`
}

func (ci *CheckIn) Validate(validate *validator.Validate) error {
	ci.TaskID = core.CleanString(ci.TaskID)
	ci.Code = core.CleanString(ci.Code)
	ci.Device = core.CleanString(ci.Device)
	return validate.Struct(ci)
}
