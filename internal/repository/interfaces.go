package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/provcal/appointment-api/internal/model"
)

// AppointmentRepository is the persistence collaborator the scheduling core
// depends on. CountConflicts implements the authoritative overlap predicate;
// see the postgres implementation for the exact boundary rules.
type AppointmentRepository interface {
	Create(ctx context.Context, apt *model.Appointment) error
	Get(ctx context.Context, id int64) (*model.Appointment, error)
	ListByProvider(ctx context.Context, providerID int64) ([]*model.Appointment, error)
	ListByProviderAndDate(ctx context.Context, providerID int64, date model.Date) ([]*model.Appointment, error)
	ListByProviderAndDateRange(ctx context.Context, providerID int64, startDate, endDate model.Date) ([]*model.Appointment, error)
	ListHistoryByProviderAndUser(ctx context.Context, providerID, userID int64) ([]*model.Appointment, error)
	CountConflicts(ctx context.Context, providerID int64, startTime, endTime time.Time, excludeID *int64) (int, error)
	Update(ctx context.Context, apt *model.Appointment) error
	Cancel(ctx context.Context, id int64) (bool, error)
	HardDelete(ctx context.Context, id int64) (bool, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, event *model.OutboxEvent) error
	GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
