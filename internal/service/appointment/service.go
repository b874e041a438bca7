package appointment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/provcal/appointment-api/internal/model"
	"github.com/provcal/appointment-api/internal/repository"
	"github.com/provcal/appointment-api/internal/service/event"
	apperrors "github.com/provcal/appointment-api/pkg/errors"
	"github.com/provcal/appointment-api/pkg/validator"
)

// EventRecorder records calendar changes for asynchronous publication.
type EventRecorder interface {
	Emit(ctx context.Context, eventType string, payload interface{}) error
}

// Service orchestrates appointment lifecycle operations. Every
// check-then-write pair runs under a per-provider lock; the store's
// exclusion constraint remains the backstop for overlapping writers.
type Service struct {
	repo     repository.AppointmentRepository
	events   EventRecorder
	validate *validator.Validator

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewService(repo repository.AppointmentRepository, events EventRecorder) *Service {
	return &Service{
		repo:     repo,
		events:   events,
		validate: validator.New(),
		locks:    make(map[int64]*sync.Mutex),
	}
}

func (s *Service) CreateAppointment(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, apperrors.NewValidation(err.Error())
	}

	providerID := *req.ProviderID

	unlock := s.lockProvider(providerID)
	defer unlock()

	count, err := s.repo.CountConflicts(ctx, providerID, req.StartTime, req.EndTime, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check conflicts: %w", err)
	}
	if count > 0 {
		return nil, apperrors.NewConflict("the selected time slot is not available or conflicts with an existing appointment")
	}

	status := model.AppointmentStatus(req.Status)
	if status == "" {
		status = model.AppointmentStatusScheduled
	}

	apt := &model.Appointment{
		ProviderID:  providerID,
		UserID:      req.UserID,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Status:      status,
		ServiceType: req.ServiceType,
		Comments:    req.Comments,
	}

	if err := s.repo.Create(ctx, apt); err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	s.emit(ctx, event.TypeAppointmentCreated, apt)
	return apt, nil
}

func (s *Service) CreateBlock(ctx context.Context, req *model.CreateBlockRequest) (*model.Appointment, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, apperrors.NewValidation(err.Error())
	}

	providerID := *req.ProviderID

	unlock := s.lockProvider(providerID)
	defer unlock()

	apt, err := s.createBlockLocked(ctx, providerID, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, event.TypeBlockCreated, apt)
	return apt, nil
}

// createBlockLocked persists one block occurrence; the caller holds the
// provider lock.
func (s *Service) createBlockLocked(ctx context.Context, providerID int64, startTime, endTime time.Time) (*model.Appointment, error) {
	count, err := s.repo.CountConflicts(ctx, providerID, startTime, endTime, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check conflicts: %w", err)
	}
	if count > 0 {
		return nil, apperrors.NewConflict("the selected time slot is not available or conflicts with an existing appointment; to block this time, cancel the conflicting appointment or block")
	}

	apt := &model.Appointment{
		ProviderID:  providerID,
		UserID:      nil,
		StartTime:   startTime,
		EndTime:     endTime,
		Status:      model.AppointmentStatusBlocked,
		ServiceType: "blocked",
		Comments:    "blocked",
	}

	if err := s.repo.Create(ctx, apt); err != nil {
		return nil, fmt.Errorf("failed to create block: %w", err)
	}
	return apt, nil
}

func (s *Service) CreateRecurringBlock(ctx context.Context, req *model.CreateRecurringBlockRequest) (*model.RecurringBlockReport, error) {
	if req.ProviderID == nil {
		return nil, apperrors.NewValidation("provider id is required")
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return nil, apperrors.NewValidation("start date and end date are required")
	}
	if req.StartDate.After(req.EndDate) {
		return nil, apperrors.NewValidation("start date must not be after end date")
	}

	report, err := s.expandBlocks(ctx, *req.ProviderID, req.StartTime, req.EndTime, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	if len(report.ConflictDates) == 0 {
		report.Message = fmt.Sprintf("Recurring block created successfully from %s to %s",
			req.StartDate, req.EndDate)
	}
	return report, nil
}

func (s *Service) CreateRecurringBlockInOneYear(ctx context.Context, req *model.CreateRecurringBlockInOneYearRequest) (*model.RecurringBlockReport, error) {
	if req.ProviderID == nil {
		return nil, apperrors.NewValidation("provider id is required")
	}

	startDate := model.DateOf(time.Now())
	endDate := startDate.AddYears(1)

	report, err := s.expandBlocks(ctx, *req.ProviderID, req.StartTime, req.EndTime, startDate, endDate)
	if err != nil {
		return nil, err
	}

	if len(report.ConflictDates) == 0 {
		report.Message = "Yearly recurring block created successfully."
	}
	return report, nil
}

// expandBlocks materializes one block per date across the inclusive range.
// Conflicting dates are collected, never aborted on: already-created blocks
// stay persisted and every failing date is reported.
func (s *Service) expandBlocks(ctx context.Context, providerID int64, startTime, endTime model.TimeOfDay, startDate, endDate model.Date) (*model.RecurringBlockReport, error) {
	occStart := startTime.On(startDate)
	occEnd := endTime.On(startDate)
	if !occStart.Before(occEnd) {
		return nil, apperrors.NewValidation("start time must be before end time")
	}

	unlock := s.lockProvider(providerID)
	defer unlock()

	report := &model.RecurringBlockReport{}

	for d := startDate; !d.After(endDate); d = d.AddDays(1) {
		count, err := s.repo.CountConflicts(ctx, providerID, startTime.On(d), endTime.On(d), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to check conflicts for %s: %w", d, err)
		}
		if count > 0 {
			report.ConflictDates = append(report.ConflictDates, d.String())
			continue
		}

		apt := &model.Appointment{
			ProviderID:  providerID,
			UserID:      nil,
			StartTime:   startTime.On(d),
			EndTime:     endTime.On(d),
			Status:      model.AppointmentStatusBlocked,
			ServiceType: "blocked",
			Comments:    "blocked",
		}
		if err := s.repo.Create(ctx, apt); err != nil {
			return nil, fmt.Errorf("failed to create block for %s: %w", d, err)
		}
		report.CreatedCount++
		s.emit(ctx, event.TypeBlockCreated, apt)
	}

	if len(report.ConflictDates) > 0 {
		report.Message = "Conflicts found on the following dates: " +
			strings.Join(report.ConflictDates, ", ")
	}
	return report, nil
}

// UpdateAppointment merges the supplied fields into the stored appointment.
// The conflict check runs only when a time bound is supplied; the missing
// bound is backfilled from the stored row and the appointment's own id is
// excluded so it cannot conflict with itself.
func (s *Service) UpdateAppointment(ctx context.Context, id int64, req *model.UpdateAppointmentRequest) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := s.lockProvider(apt.ProviderID)
	defer unlock()

	if req.StartTime != nil || req.EndTime != nil {
		newStart := apt.StartTime
		newEnd := apt.EndTime
		if req.StartTime != nil {
			newStart = *req.StartTime
		}
		if req.EndTime != nil {
			newEnd = *req.EndTime
		}
		if !newStart.Before(newEnd) {
			return nil, apperrors.NewValidation("start time must be before end time")
		}

		count, err := s.repo.CountConflicts(ctx, apt.ProviderID, newStart, newEnd, &id)
		if err != nil {
			return nil, fmt.Errorf("failed to check conflicts: %w", err)
		}
		if count > 0 {
			return nil, apperrors.NewConflict("the selected time slot conflicts with an existing appointment")
		}

		apt.StartTime = newStart
		apt.EndTime = newEnd
	}

	if req.UserID != nil {
		apt.UserID = req.UserID
	}
	if req.Status != nil {
		apt.Status = *req.Status
	}
	if req.ServiceType != nil {
		apt.ServiceType = *req.ServiceType
	}
	if req.Comments != nil {
		apt.Comments = *req.Comments
	}

	if err := s.repo.Update(ctx, apt); err != nil {
		return nil, fmt.Errorf("failed to update appointment: %w", err)
	}

	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, event.TypeAppointmentUpdated, updated)
	return updated, nil
}

// CancelAppointment flips the status to cancelled, keeping the row for
// history. Returns false, without error, when the row is absent or already
// cancelled.
func (s *Service) CancelAppointment(ctx context.Context, id int64) (bool, error) {
	affected, err := s.repo.Cancel(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to cancel appointment: %w", err)
	}

	if affected {
		s.emit(ctx, event.TypeAppointmentCancelled, map[string]interface{}{"id": id})
	}
	return affected, nil
}

// DeleteBlock hard-removes a row. Meant for blocks, so their volume does not
// grow without bound; deleting a user appointment is allowed but loses
// history.
func (s *Service) DeleteBlock(ctx context.Context, id int64) (bool, error) {
	affected, err := s.repo.HardDelete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete block: %w", err)
	}

	if affected {
		s.emit(ctx, event.TypeBlockDeleted, map[string]interface{}{"id": id})
	}
	return affected, nil
}

func (s *Service) GetAppointment(ctx context.Context, id int64) (*model.Appointment, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListByProvider(ctx context.Context, providerID int64) ([]*model.Appointment, error) {
	return s.repo.ListByProvider(ctx, providerID)
}

func (s *Service) ListByProviderAndDate(ctx context.Context, providerID int64, date model.Date) ([]*model.Appointment, error) {
	return s.repo.ListByProviderAndDate(ctx, providerID, date)
}

func (s *Service) ListByProviderAndDateRange(ctx context.Context, providerID int64, startDate, endDate model.Date) ([]*model.Appointment, error) {
	if startDate.After(endDate) {
		return nil, apperrors.NewValidation("start date must not be after end date")
	}
	return s.repo.ListByProviderAndDateRange(ctx, providerID, startDate, endDate)
}

func (s *Service) GetHistory(ctx context.Context, providerID, userID int64) ([]*model.Appointment, error) {
	return s.repo.ListHistoryByProviderAndUser(ctx, providerID, userID)
}

// AvailableIntervals computes the ordered free gaps of a provider's day.
// The day spans 00:00:00 to the last representable instant, so the trailing
// gap ends at the end-of-day sentinel rather than the next midnight.
func (s *Service) AvailableIntervals(ctx context.Context, providerID int64, date model.Date) ([]model.TimeSlot, error) {
	appointments, err := s.repo.ListByProviderAndDate(ctx, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list day appointments: %w", err)
	}

	return freeIntervals(date.StartOfDay(), date.EndOfDay(), appointments), nil
}

func (s *Service) lockProvider(providerID int64) func() {
	s.mu.Lock()
	l, ok := s.locks[providerID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[providerID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *Service) emit(ctx context.Context, eventType string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Emit(ctx, eventType, payload); err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Msg("failed to record calendar event")
	}
}
