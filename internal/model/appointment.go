package model

import (
	"time"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusBlocked   AppointmentStatus = "blocked"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

// Appointment is a provider calendar entry. A nil UserID marks the row as
// a provider-side block rather than a client booking; blocks and bookings
// share one interval space per provider.
type Appointment struct {
	ID          int64             `db:"id" json:"id"`
	ProviderID  int64             `db:"provider_id" json:"provider_id"`
	UserID      *int64            `db:"user_id" json:"user_id,omitempty"`
	StartTime   time.Time         `db:"start_time" json:"start_time"`
	EndTime     time.Time         `db:"end_time" json:"end_time"`
	Status      AppointmentStatus `db:"status" json:"status"`
	ServiceType string            `db:"service_type" json:"service_type,omitempty"`
	Comments    string            `db:"comments" json:"comments,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// IsBlock reports whether the appointment is a provider-side block.
func (a *Appointment) IsBlock() bool {
	return a.UserID == nil
}

// IsActive reports whether the appointment still occupies calendar space.
func (a *Appointment) IsActive() bool {
	return a.Status != AppointmentStatusCancelled
}

type CreateAppointmentRequest struct {
	ProviderID  *int64    `json:"provider_id" validate:"required"`
	UserID      *int64    `json:"user_id"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	Status      string    `json:"status"`
	ServiceType string    `json:"service_type"`
	Comments    string    `json:"comments" validate:"max=1000"`
}

type CreateBlockRequest struct {
	ProviderID *int64    `json:"provider_id" validate:"required"`
	StartTime  time.Time `json:"start_time" validate:"required"`
	EndTime    time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
}

type CreateRecurringBlockRequest struct {
	ProviderID *int64    `json:"provider_id"`
	StartTime  TimeOfDay `json:"start_time"`
	EndTime    TimeOfDay `json:"end_time"`
	StartDate  Date      `json:"start_date"`
	EndDate    Date      `json:"end_date"`
}

type CreateRecurringBlockInOneYearRequest struct {
	ProviderID *int64    `json:"provider_id"`
	StartTime  TimeOfDay `json:"start_time"`
	EndTime    TimeOfDay `json:"end_time"`
}

// RecurringBlockReport is the partial-success outcome of a recurring block
// expansion: every conflicting date is listed, every other date's block is
// already persisted.
type RecurringBlockReport struct {
	Message       string   `json:"message"`
	ConflictDates []string `json:"conflict_dates,omitempty"`
	CreatedCount  int      `json:"created_count"`
}

// UpdateAppointmentRequest carries a partial update; nil fields are left
// untouched. A time conflict is re-checked only when StartTime or EndTime
// is supplied.
type UpdateAppointmentRequest struct {
	UserID      *int64             `json:"user_id"`
	StartTime   *time.Time         `json:"start_time"`
	EndTime     *time.Time         `json:"end_time"`
	Status      *AppointmentStatus `json:"status"`
	ServiceType *string            `json:"service_type"`
	Comments    *string            `json:"comments"`
}

// TimeSlot is a free interval of a provider's day.
type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
