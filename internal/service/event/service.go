package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/provcal/appointment-api/internal/model"
	"github.com/provcal/appointment-api/internal/repository"
)

// Calendar event types published through the outbox.
const (
	TypeAppointmentCreated   = "appointment.created"
	TypeAppointmentUpdated   = "appointment.updated"
	TypeAppointmentCancelled = "appointment.cancelled"
	TypeBlockCreated         = "block.created"
	TypeBlockDeleted         = "block.deleted"
)

// Service records calendar changes as outbox events; the worker publishes
// them asynchronously.
type Service struct {
	outboxRepo repository.OutboxRepository
}

func NewService(outboxRepo repository.OutboxRepository) *Service {
	return &Service{outboxRepo: outboxRepo}
}

func (s *Service) Emit(ctx context.Context, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	return s.outboxRepo.Create(ctx, &model.OutboxEvent{
		EventType: eventType,
		Payload:   data,
	})
}
