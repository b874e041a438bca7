package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/provcal/appointment-api/internal/model"
	apperrors "github.com/provcal/appointment-api/pkg/errors"
)

const appointmentColumns = `
	id, provider_id, user_id, start_time, end_time,
	status, service_type, comments, created_at, updated_at
`

func (r *appointmentRepository) Create(ctx context.Context, apt *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			provider_id, user_id, start_time, end_time,
			status, service_type, comments, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	apt.CreatedAt = time.Now()
	apt.UpdatedAt = time.Now()

	err := r.db.QueryRowContext(ctx, query,
		apt.ProviderID,
		apt.UserID,
		apt.StartTime,
		apt.EndTime,
		apt.Status,
		apt.ServiceType,
		apt.Comments,
		apt.CreatedAt,
		apt.UpdatedAt,
	).Scan(&apt.ID)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id int64) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var apt model.Appointment
	err := r.db.GetContext(ctx, &apt, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("appointment", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &apt, nil
}

func (r *appointmentRepository) ListByProvider(ctx context.Context, providerID int64) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE provider_id = $1
		ORDER BY start_time ASC
	`
	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, providerID); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

// ListByProviderAndDate selects by the start time's calendar date.
func (r *appointmentRepository) ListByProviderAndDate(ctx context.Context, providerID int64, date model.Date) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE provider_id = $1
		AND start_time >= $2 AND start_time < $3
		ORDER BY start_time ASC
	`
	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query,
		providerID, date.StartOfDay(), date.AddDays(1).StartOfDay())
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments by date: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListByProviderAndDateRange(ctx context.Context, providerID int64, startDate, endDate model.Date) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE provider_id = $1
		AND start_time >= $2 AND start_time < $3
		ORDER BY start_time ASC
	`
	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query,
		providerID, startDate.StartOfDay(), endDate.AddDays(1).StartOfDay())
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments by date range: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListHistoryByProviderAndUser(ctx context.Context, providerID, userID int64) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE provider_id = $1 AND user_id = $2
		ORDER BY start_time ASC
	`
	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, providerID, userID); err != nil {
		return nil, fmt.Errorf("failed to list appointment history: %w", err)
	}
	return appointments, nil
}

// CountConflicts counts active intervals overlapping the candidate range.
// The three clauses are asymmetric on purpose: intervals that merely touch
// at a boundary do not conflict.
func (r *appointmentRepository) CountConflicts(ctx context.Context, providerID int64, startTime, endTime time.Time, excludeID *int64) (int, error) {
	query := `
		SELECT COUNT(*) FROM appointments
		WHERE provider_id = $1
		AND status <> 'cancelled'
		AND (
			($2 >= start_time AND $2 < end_time)
			OR ($3 > start_time AND $3 <= end_time)
			OR ($2 <= start_time AND $3 >= end_time)
		)
	`
	args := []interface{}{providerID, startTime, endTime}

	if excludeID != nil {
		query += " AND id <> $4"
		args = append(args, *excludeID)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count conflicts: %w", err)
	}
	return count, nil
}

func (r *appointmentRepository) Update(ctx context.Context, apt *model.Appointment) error {
	query := `
		UPDATE appointments
		SET user_id = $1, start_time = $2, end_time = $3, status = $4,
			service_type = $5, comments = $6, updated_at = $7
		WHERE id = $8
	`
	apt.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		apt.UserID,
		apt.StartTime,
		apt.EndTime,
		apt.Status,
		apt.ServiceType,
		apt.Comments,
		apt.UpdatedAt,
		apt.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NewNotFound("appointment", nil)
	}
	return nil
}

// Cancel flips the status to cancelled, keeping the row for history.
// Returns false when the row is absent or already cancelled.
func (r *appointmentRepository) Cancel(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE appointments
		SET status = 'cancelled', updated_at = $1
		WHERE id = $2 AND status <> 'cancelled'
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return false, fmt.Errorf("failed to cancel appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *appointmentRepository) HardDelete(ctx context.Context, id int64) (bool, error) {
	query := `DELETE FROM appointments WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}
