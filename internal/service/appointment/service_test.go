package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/provcal/appointment-api/internal/model"
	apperrors "github.com/provcal/appointment-api/pkg/errors"
)

type mockAppointmentRepo struct {
	mock.Mock
}

func (m *mockAppointmentRepo) Create(ctx context.Context, apt *model.Appointment) error {
	args := m.Called(ctx, apt)
	return args.Error(0)
}

func (m *mockAppointmentRepo) Get(ctx context.Context, id int64) (*model.Appointment, error) {
	args := m.Called(ctx, id)
	if apt := args.Get(0); apt != nil {
		return apt.(*model.Appointment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAppointmentRepo) ListByProvider(ctx context.Context, providerID int64) ([]*model.Appointment, error) {
	args := m.Called(ctx, providerID)
	if apts := args.Get(0); apts != nil {
		return apts.([]*model.Appointment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAppointmentRepo) ListByProviderAndDate(ctx context.Context, providerID int64, date model.Date) ([]*model.Appointment, error) {
	args := m.Called(ctx, providerID, date)
	if apts := args.Get(0); apts != nil {
		return apts.([]*model.Appointment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAppointmentRepo) ListByProviderAndDateRange(ctx context.Context, providerID int64, startDate, endDate model.Date) ([]*model.Appointment, error) {
	args := m.Called(ctx, providerID, startDate, endDate)
	if apts := args.Get(0); apts != nil {
		return apts.([]*model.Appointment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAppointmentRepo) ListHistoryByProviderAndUser(ctx context.Context, providerID, userID int64) ([]*model.Appointment, error) {
	args := m.Called(ctx, providerID, userID)
	if apts := args.Get(0); apts != nil {
		return apts.([]*model.Appointment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAppointmentRepo) CountConflicts(ctx context.Context, providerID int64, startTime, endTime time.Time, excludeID *int64) (int, error) {
	args := m.Called(ctx, providerID, startTime, endTime, excludeID)
	return args.Int(0), args.Error(1)
}

func (m *mockAppointmentRepo) Update(ctx context.Context, apt *model.Appointment) error {
	args := m.Called(ctx, apt)
	return args.Error(0)
}

func (m *mockAppointmentRepo) Cancel(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockAppointmentRepo) HardDelete(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func int64Ptr(v int64) *int64 { return &v }

func TestCreateAppointment(t *testing.T) {
	repo := new(mockAppointmentRepo)
	svc := NewService(repo, nil)

	repo.On("CountConflicts", mock.Anything, int64(1), at(10, 0), at(11, 0), (*int64)(nil)).
		Return(0, nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*model.Appointment")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*model.Appointment).ID = 42
		}).
		Return(nil)

	apt, err := svc.CreateAppointment(context.Background(), &model.CreateAppointmentRequest{
		ProviderID: int64Ptr(1),
		UserID:     int64Ptr(2),
		StartTime:  at(10, 0),
		EndTime:    at(11, 0),
	})

	require.NoError(t, err)
	assert.Equal(t, int64(42), apt.ID)
	assert.Equal(t, model.AppointmentStatusScheduled, apt.Status)
	repo.AssertExpectations(t)
}

func TestCreateAppointment_Conflict(t *testing.T) {
	repo := new(mockAppointmentRepo)
	svc := NewService(repo, nil)

	repo.On("CountConflicts", mock.Anything, int64(1), at(10, 0), at(11, 0), (*int64)(nil)).
		Return(1, nil)

	_, err := svc.CreateAppointment(context.Background(), &model.CreateAppointmentRequest{
		ProviderID: int64Ptr(1),
		StartTime:  at(10, 0),
		EndTime:    at(11, 0),
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateAppointment_MissingProvider(t *testing.T) {
	repo := new(mockAppointmentRepo)
	svc := NewService(repo, nil)

	_, err := svc.CreateAppointment(context.Background(), &model.CreateAppointmentRequest{
		StartTime: at(10, 0),
		EndTime:   at(11, 0),
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	repo.AssertNotCalled(t, "CountConflicts", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateAppointment_EndBeforeStart(t *testing.T) {
	repo := new(mockAppointmentRepo)
	svc := NewService(repo, nil)

	_, err := svc.CreateAppointment(context.Background(), &model.CreateAppointmentRequest{
		ProviderID: int64Ptr(1),
		StartTime:  at(11, 0),
		EndTime:    at(10, 0),
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestCreateBlock(t *testing.T) {
	repo := new(mockAppointmentRepo)
	svc := NewService(repo, nil)

	repo.On("CountConflicts", mock.Anything, int64(1), at(12, 0), at(13, 0), (*int64)(nil)).
		Return(0, nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*model.Appointment")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*model.Appointment).ID = 7
		}).
		Return(nil)

	apt, err := svc.CreateBlock(context.Background(), &model.CreateBlockRequest{
		ProviderID: int64Ptr(1),
		StartTime:  at(12, 0),
		EndTime:    at(13, 0),
	})

	require.NoError(t, err)
	assert.Nil(t, apt.UserID)
	assert.Equal(t, model.AppointmentStatusBlocked, apt.Status)
	assert.Equal(t, "blocked", apt.ServiceType)
	repo.AssertExpectations(t)
}

func TestCreateRecurringBlock_NilProvider(t *testing.T) {
	repo := new(mockAppointmentRepo)
	svc := NewService(repo, nil)

	_, err := svc.CreateRecurringBlock(context.Background(), &model.CreateRecurringBlockRequest{
		StartTime: model.TimeOfDay{Hour: 9},
		EndTime:   model.TimeOfDay{Hour: 17},
		StartDate: model.NewDate(2024, time.October, 15),
		EndDate:   model.NewDate(2024, time.October, 15),
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	repo.AssertNotCalled(t, "CountConflicts", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateRecurringBlock_SingleDay(t *testing.T) {
	repo := new(mockAppointmentRepo)
	svc := NewService(repo, nil)

	repo.On("CountConflicts", mock.Anything, int64(1), mock.Anything, mock.Anything, (*int64)(nil)).
		Return(0, nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*model.Appointment")).Return(nil)

	report, err := svc.CreateRecurringBlock(context.Background(), &model.CreateRecurringBlockRequest{
		ProviderID: int64Ptr(1),
		StartTime:  model.TimeOfDay{Hour: 9},
		EndTime:    model.TimeOfDay{Hour: 17},
		StartDate:  model.NewDate(2024, time.October, 15),
		EndDate:    model.NewDate(2024, time.October, 15),
	})

	require.NoError(t, err)
	assert.Equal(t, "Recurring block created successfully from 2024-10-15 to 2024-10-15", report.Message)
	assert.Equal(t, 1, report.CreatedCount)
	assert.Empty(t, report.ConflictDates)
}

func TestCreateRecurringBlock(t *testing.T) {
	repo := new(mockAppointmentRepo)
	svc := NewService(repo, nil)

	repo.On("CountConflicts", mock.Anything, int64(1), mock.Anything, mock.Anything, (*int64)(nil)).
		Return(0, nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*model.Appointment")).Return(nil)

	report, err := svc.CreateRecurringBlock(context.Background(), &model.CreateRecurringBlockRequest{
		ProviderID: int64Ptr(1),
		StartTime:  model.TimeOfDay{Hour: 8},
		EndTime:    model.TimeOfDay{Hour: 19},
		StartDate:  model.NewDate(2024, time.December, 24),
		EndDate:    model.NewDate(2024, time.December, 25),
	})

	require.NoError(t, err)
	assert.Equal(t, "Recurring block created successfully from 2024-12-24 to 2024-12-25", report.Message)
	assert.Equal(t, 2, report.CreatedCount)
	repo.AssertNumberOfCalls(t, "Create", 2)
}

func TestCreateRecurringBlock_Conflicts(t *testing.T) {
	repo := new(mockAppointmentRepo)
	svc := NewService(repo, nil)

	repo.On("CountConflicts", mock.Anything, int64(1), mock.Anything, mock.Anything, (*int64)(nil)).
		Return(1, nil)

	report, err := svc.CreateRecurringBlock(context.Background(), &model.CreateRecurringBlockRequest{
		ProviderID: int64Ptr(1),
		StartTime:  model.TimeOfDay{Hour: 8},
		EndTime:    model.TimeOfDay{Hour: 19},
		StartDate:  model.NewDate(2024, time.December, 24),
		EndDate:    model.NewDate(2024, time.December, 25),
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"2024-12-24", "2024-12-25"}, report.ConflictDates)
	assert.Contains(t, report.Message, "Conflicts found on the following dates")
	assert.Contains(t, report.Message, "2024-12-24")
	assert.Contains(t, report.Message, "2024-12-25")
	assert.Zero(t, report.CreatedCount)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateRecurringBlock_PartialConflict(t *testing.T) {
	repo := new(mockAppointmentRepo)
	svc := NewService(repo, nil)

	conflictDay := model.NewDate(2024, time.December, 24)
	repo.On("CountConflicts", mock.Anything, int64(1),
		model.TimeOfDay{Hour: 8}.On(conflictDay), model.TimeOfDay{Hour: 19}.On(conflictDay), (*int64)(nil)).
		Return(1, nil)
	repo.On("CountConflicts", mock.Anything, int64(1), mock.Anything, mock.Anything, (*int64)(nil)).
		Return(0, nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*model.Appointment")).Return(nil)

	report, err := svc.CreateRecurringBlock(context.Background(), &model.CreateRecurringBlockRequest{
		ProviderID: int64Ptr(1),
		StartTime:  model.TimeOfDay{Hour: 8},
		EndTime:    model.TimeOfDay{Hour: 19},
		StartDate:  model.NewDate(2024, time.December, 24),
		EndDate:    model.NewDate(2024, time.December, 25),
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"2024-12-24"}, report.ConflictDates)
	assert.Equal(t, 1, report.CreatedCount)
}

func TestCreateRecurringBlockInOneYear(t *testing.T) {
	repo := new(mockAppointmentRepo)
	svc := NewService(repo, nil)

	repo.On("CountConflicts", mock.Anything, int64(1), mock.Anything, mock.Anything, (*int64)(nil)).
		Return(0, nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*model.Appointment")).Return(nil)

	report, err := svc.CreateRecurringBlockInOneYear(context.Background(), &model.CreateRecurringBlockInOneYearRequest{
		ProviderID: int64Ptr(1),
		StartTime:  model.TimeOfDay{Hour: 8},
		EndTime:    model.TimeOfDay{Hour: 19},
	})

	require.NoError(t, err)
	assert.Equal(t, "Yearly recurring block created successfully.", report.Message)
	// Inclusive range over one year covers at least 366 days.
	assert.GreaterOrEqual(t, report.CreatedCount, 366)
}

func TestCreateRecurringBlockInOneYear_NilProvider(t *testing.T) {
	repo := new(mockAppointmentRepo)
	svc := NewService(repo, nil)

	_, err := svc.CreateRecurringBlockInOneYear(context.Background(), &model.CreateRecurringBlockInOneYearRequest{
		StartTime: model.TimeOfDay{Hour: 9},
		EndTime:   model.TimeOfDay{Hour: 17},
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestUpdateAppointment_CommentsOnly(t *testing.T) {
	repo := new(mockAppointmentRepo)
	svc := NewService(repo, nil)

	stored := &model.Appointment{
		ID:         5,
		ProviderID: 1,
		StartTime:  at(10, 0),
		EndTime:    at(11, 0),
		Status:     model.AppointmentStatusScheduled,
	}
	repo.On("Get", mock.Anything, int64(5)).Return(stored, nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("*model.Appointment")).Return(nil)

	comments := "bring insurance card"
	updated, err := svc.UpdateAppointment(context.Background(), 5, &model.UpdateAppointmentRequest{
		Comments: &comments,
	})

	require.NoError(t, err)
	assert.Equal(t, comments, updated.Comments)
	// No time supplied, so the conflict check must never run.
	repo.AssertNotCalled(t, "CountConflicts", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateAppointment_TimeChangeExcludesSelf(t *testing.T) {
	repo := new(mockAppointmentRepo)
	svc := NewService(repo, nil)

	stored := &model.Appointment{
		ID:         5,
		ProviderID: 1,
		StartTime:  at(10, 0),
		EndTime:    at(11, 0),
		Status:     model.AppointmentStatusScheduled,
	}
	repo.On("Get", mock.Anything, int64(5)).Return(stored, nil)

	newStart := at(10, 30)
	// End is backfilled from the stored row; own id excluded.
	excludeID := int64(5)
	repo.On("CountConflicts", mock.Anything, int64(1), newStart, at(11, 0), &excludeID).
		Return(0, nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("*model.Appointment")).Return(nil)

	updated, err := svc.UpdateAppointment(context.Background(), 5, &model.UpdateAppointmentRequest{
		StartTime: &newStart,
	})

	require.NoError(t, err)
	assert.Equal(t, newStart, updated.StartTime)
	assert.Equal(t, at(11, 0), updated.EndTime)
	repo.AssertExpectations(t)
}

func TestUpdateAppointment_Conflict(t *testing.T) {
	repo := new(mockAppointmentRepo)
	svc := NewService(repo, nil)

	stored := &model.Appointment{
		ID:         5,
		ProviderID: 1,
		StartTime:  at(10, 0),
		EndTime:    at(11, 0),
	}
	repo.On("Get", mock.Anything, int64(5)).Return(stored, nil)
	repo.On("CountConflicts", mock.Anything, int64(1), mock.Anything, mock.Anything, mock.AnythingOfType("*int64")).
		Return(1, nil)

	newStart := at(14, 0)
	newEnd := at(15, 0)
	_, err := svc.UpdateAppointment(context.Background(), 5, &model.UpdateAppointmentRequest{
		StartTime: &newStart,
		EndTime:   &newEnd,
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestUpdateAppointment_NotFound(t *testing.T) {
	repo := new(mockAppointmentRepo)
	svc := NewService(repo, nil)

	repo.On("Get", mock.Anything, int64(99)).Return(nil, apperrors.NewNotFound("appointment", nil))

	comments := "x"
	_, err := svc.UpdateAppointment(context.Background(), 99, &model.UpdateAppointmentRequest{
		Comments: &comments,
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCancelAppointment(t *testing.T) {
	repo := new(mockAppointmentRepo)
	svc := NewService(repo, nil)

	repo.On("Cancel", mock.Anything, int64(5)).Return(true, nil)

	affected, err := svc.CancelAppointment(context.Background(), 5)

	require.NoError(t, err)
	assert.True(t, affected)
}

func TestCancelAppointment_Absent(t *testing.T) {
	repo := new(mockAppointmentRepo)
	svc := NewService(repo, nil)

	repo.On("Cancel", mock.Anything, int64(99)).Return(false, nil)

	affected, err := svc.CancelAppointment(context.Background(), 99)

	require.NoError(t, err)
	assert.False(t, affected)
}

func TestDeleteBlock_Absent(t *testing.T) {
	repo := new(mockAppointmentRepo)
	svc := NewService(repo, nil)

	repo.On("HardDelete", mock.Anything, int64(99)).Return(false, nil)

	affected, err := svc.DeleteBlock(context.Background(), 99)

	require.NoError(t, err)
	assert.False(t, affected)
}

func TestAvailableIntervals(t *testing.T) {
	repo := new(mockAppointmentRepo)
	svc := NewService(repo, nil)

	date := model.NewDate(2024, time.October, 15)
	repo.On("ListByProviderAndDate", mock.Anything, int64(1), date).Return([]*model.Appointment{
		{StartTime: at(9, 0), EndTime: at(10, 0), Status: model.AppointmentStatusScheduled},
		{StartTime: at(14, 0), EndTime: at(15, 0), Status: model.AppointmentStatusScheduled},
	}, nil)

	slots, err := svc.AvailableIntervals(context.Background(), 1, date)

	require.NoError(t, err)
	assert.Equal(t, []model.TimeSlot{
		{Start: date.StartOfDay(), End: at(9, 0)},
		{Start: at(10, 0), End: at(14, 0)},
		{Start: at(15, 0), End: date.EndOfDay()},
	}, slots)
}

func TestListByProviderAndDateRange_InvalidRange(t *testing.T) {
	repo := new(mockAppointmentRepo)
	svc := NewService(repo, nil)

	_, err := svc.ListByProviderAndDateRange(context.Background(), 1,
		model.NewDate(2024, time.November, 2), model.NewDate(2024, time.November, 1))

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}
