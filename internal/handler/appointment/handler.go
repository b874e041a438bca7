package appointment

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/provcal/appointment-api/internal/model"
	apperrors "github.com/provcal/appointment-api/pkg/errors"
	"github.com/provcal/appointment-api/pkg/httputil"
	"github.com/provcal/appointment-api/pkg/metrics"
)

// Service is the scheduling surface the handler depends on.
type Service interface {
	CreateAppointment(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error)
	CreateBlock(ctx context.Context, req *model.CreateBlockRequest) (*model.Appointment, error)
	CreateRecurringBlock(ctx context.Context, req *model.CreateRecurringBlockRequest) (*model.RecurringBlockReport, error)
	CreateRecurringBlockInOneYear(ctx context.Context, req *model.CreateRecurringBlockInOneYearRequest) (*model.RecurringBlockReport, error)
	UpdateAppointment(ctx context.Context, id int64, req *model.UpdateAppointmentRequest) (*model.Appointment, error)
	CancelAppointment(ctx context.Context, id int64) (bool, error)
	DeleteBlock(ctx context.Context, id int64) (bool, error)
	GetAppointment(ctx context.Context, id int64) (*model.Appointment, error)
	ListByProvider(ctx context.Context, providerID int64) ([]*model.Appointment, error)
	ListByProviderAndDate(ctx context.Context, providerID int64, date model.Date) ([]*model.Appointment, error)
	ListByProviderAndDateRange(ctx context.Context, providerID int64, startDate, endDate model.Date) ([]*model.Appointment, error)
	GetHistory(ctx context.Context, providerID, userID int64) ([]*model.Appointment, error)
	AvailableIntervals(ctx context.Context, providerID int64, date model.Date) ([]model.TimeSlot, error)
}

type Handler struct {
	service Service
	metrics *metrics.Metrics
}

func NewHandler(service Service, m *metrics.Metrics) *Handler {
	return &Handler{service: service, metrics: m}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.CreateAppointment)
		appointments.POST("/blocks", h.CreateBlock)
		appointments.POST("/blocks/recurring", h.CreateRecurringBlock)
		appointments.POST("/blocks/recurring/yearly", h.CreateRecurringBlockInOneYear)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PUT("/:id", h.UpdateAppointment)
		appointments.PUT("/:id/cancel", h.CancelAppointment)
		appointments.DELETE("/blocks/:id", h.DeleteBlock)
	}

	providers := r.Group("/providers/:providerId")
	{
		providers.GET("/appointments", h.ListByProvider)
		providers.GET("/appointments/date/:date", h.ListByProviderAndDate)
		providers.GET("/appointments/range", h.ListByProviderAndDateRange)
		providers.GET("/availability/:date", h.GetAvailability)
		providers.GET("/history/:userId", h.GetHistory)
	}
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": gin.H{"code": http.StatusBadRequest, "message": err.Error()}})
		return
	}

	apt, err := h.service.CreateAppointment(c.Request.Context(), &req)
	if err != nil {
		if h.metrics != nil && apperrors.IsConflict(err) {
			h.metrics.ConflictsRejected.Inc()
		}
		httputil.RespondWithError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.AppointmentsCreated.Inc()
	}
	httputil.RespondWithCreated(c, apt)
}

func (h *Handler) CreateBlock(c *gin.Context) {
	var req model.CreateBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": gin.H{"code": http.StatusBadRequest, "message": err.Error()}})
		return
	}

	apt, err := h.service.CreateBlock(c.Request.Context(), &req)
	if err != nil {
		if h.metrics != nil && apperrors.IsConflict(err) {
			h.metrics.ConflictsRejected.Inc()
		}
		httputil.RespondWithError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.BlocksCreated.Inc()
	}
	httputil.RespondWithCreated(c, apt)
}

func (h *Handler) CreateRecurringBlock(c *gin.Context) {
	var req model.CreateRecurringBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": gin.H{"code": http.StatusBadRequest, "message": err.Error()}})
		return
	}

	report, err := h.service.CreateRecurringBlock(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.recordRecurrence(report)
	httputil.RespondWithCreated(c, report)
}

func (h *Handler) CreateRecurringBlockInOneYear(c *gin.Context) {
	var req model.CreateRecurringBlockInOneYearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": gin.H{"code": http.StatusBadRequest, "message": err.Error()}})
		return
	}

	report, err := h.service.CreateRecurringBlockInOneYear(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.recordRecurrence(report)
	httputil.RespondWithCreated(c, report)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	apt, err := h.service.GetAppointment(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": gin.H{"code": http.StatusBadRequest, "message": err.Error()}})
		return
	}

	apt, err := h.service.UpdateAppointment(c.Request.Context(), id, &req)
	if err != nil {
		if h.metrics != nil && apperrors.IsConflict(err) {
			h.metrics.ConflictsRejected.Inc()
		}
		httputil.RespondWithError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.AppointmentsUpdated.Inc()
	}
	httputil.RespondWithSuccess(c, apt)
}

// CancelAppointment reports the affected outcome in the body; a missing or
// already-cancelled row is not an error.
func (h *Handler) CancelAppointment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	affected, err := h.service.CancelAppointment(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if h.metrics != nil {
		outcome := "cancelled"
		if !affected {
			outcome = "not_found"
		}
		h.metrics.CancellationsTotal.WithLabelValues(outcome).Inc()
	}

	message := "Appointment cancelled successfully."
	if !affected {
		message = "Appointment not found or already cancelled."
	}
	httputil.RespondWithSuccess(c, gin.H{"cancelled": affected, "message": message})
}

func (h *Handler) DeleteBlock(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	affected, err := h.service.DeleteBlock(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"deleted": affected})
}

func (h *Handler) ListByProvider(c *gin.Context) {
	providerID, ok := pathID(c, "providerId")
	if !ok {
		return
	}

	appointments, err := h.service.ListByProvider(c.Request.Context(), providerID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, appointments)
}

func (h *Handler) ListByProviderAndDate(c *gin.Context) {
	providerID, ok := pathID(c, "providerId")
	if !ok {
		return
	}
	date, ok := pathDate(c, "date")
	if !ok {
		return
	}

	appointments, err := h.service.ListByProviderAndDate(c.Request.Context(), providerID, date)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, appointments)
}

func (h *Handler) ListByProviderAndDateRange(c *gin.Context) {
	providerID, ok := pathID(c, "providerId")
	if !ok {
		return
	}

	startDate, err := model.ParseDate(c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": gin.H{"code": http.StatusBadRequest, "message": "invalid start date"}})
		return
	}
	endDate, err := model.ParseDate(c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": gin.H{"code": http.StatusBadRequest, "message": "invalid end date"}})
		return
	}

	appointments, err := h.service.ListByProviderAndDateRange(c.Request.Context(), providerID, startDate, endDate)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, appointments)
}

func (h *Handler) GetAvailability(c *gin.Context) {
	providerID, ok := pathID(c, "providerId")
	if !ok {
		return
	}
	date, ok := pathDate(c, "date")
	if !ok {
		return
	}

	start := time.Now()
	slots, err := h.service.AvailableIntervals(c.Request.Context(), providerID, date)
	if h.metrics != nil {
		h.metrics.AvailabilityLatency.Observe(time.Since(start).Seconds())
		h.metrics.AvailabilityQueries.Inc()
	}
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, slots)
}

func (h *Handler) GetHistory(c *gin.Context) {
	providerID, ok := pathID(c, "providerId")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	appointments, err := h.service.GetHistory(c.Request.Context(), providerID, userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, appointments)
}

func (h *Handler) recordRecurrence(report *model.RecurringBlockReport) {
	if h.metrics == nil || report == nil {
		return
	}
	h.metrics.RecurrenceDates.WithLabelValues("created").Add(float64(report.CreatedCount))
	h.metrics.RecurrenceDates.WithLabelValues("conflict").Add(float64(len(report.ConflictDates)))
}

func pathID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": gin.H{"code": http.StatusBadRequest, "message": "invalid " + param}})
		return 0, false
	}
	return id, true
}

func pathDate(c *gin.Context, param string) (model.Date, bool) {
	date, err := model.ParseDate(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": gin.H{"code": http.StatusBadRequest, "message": "invalid " + param}})
		return model.Date{}, false
	}
	return date, true
}
