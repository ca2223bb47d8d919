package scheduling

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/scheduler/internal/platform/auth"
	"github.com/ehr/scheduler/internal/platform/db"
	"github.com/ehr/scheduler/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Staff endpoints – admin, physician, nurse, registrar
	staff := api.Group("", auth.RequireRole("admin", "physician", "nurse", "registrar"))
	staff.GET("/resources/:resource/slots", h.AvailableSlots)
	staff.GET("/resources/:resource/wait", h.EstimateWait)
	staff.POST("/appointments/validate", h.ValidateAppointment)
	staff.POST("/appointments", h.BookAppointment)
	staff.GET("/appointments", h.ListAppointments)
	staff.GET("/appointments/:id", h.GetAppointment)
	staff.POST("/appointments/:id/reschedule", h.RescheduleAppointment)
	staff.POST("/appointments/:id/cancel", h.CancelAppointment)
	staff.POST("/appointments/:id/status", h.TransitionStatus)
	staff.GET("/tenant/config", h.GetConfig)

	// Tenant settings – admin only
	admin := api.Group("", auth.RequireRole("admin"))
	admin.PUT("/tenant/config", h.UpdateConfig)
}

type BookingRequest struct {
	ResourceID      string    `json:"resource_id"`
	PatientID       string    `json:"patient_id"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
}

func (r BookingRequest) appointment() *Appointment {
	return &Appointment{
		ResourceID:      r.ResourceID,
		PatientID:       r.PatientID,
		Start:           r.Start,
		DurationMinutes: r.DurationMinutes,
	}
}

type RescheduleRequest struct {
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

// BookingResponse carries the decision and, when accepted, the stored
// appointment.
type BookingResponse struct {
	Decision    Decision     `json:"decision"`
	Appointment *Appointment `json:"appointment,omitempty"`
}

type SlotsResponse struct {
	ResourceID string `json:"resource_id"`
	Date       string `json:"date"`
	Slots      []Slot `json:"slots"`
}

type WaitResponse struct {
	ResourceID  string    `json:"resource_id"`
	At          time.Time `json:"at"`
	WaitMinutes int       `json:"wait_minutes"`
}

// -- Availability --

func (h *Handler) AvailableSlots(c echo.Context) error {
	tenantID, err := tenantFrom(c)
	if err != nil {
		return err
	}
	day, err := ParseDate(c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resource := c.Param("resource")
	slots, err := h.svc.AvailableSlots(c.Request().Context(), tenantID, resource, day)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, SlotsResponse{ResourceID: resource, Date: day.String(), Slots: slots})
}

func (h *Handler) EstimateWait(c echo.Context) error {
	tenantID, err := tenantFrom(c)
	if err != nil {
		return err
	}
	at := time.Now()
	if raw := c.QueryParam("at"); raw != "" {
		if at, err = time.Parse(time.RFC3339, raw); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid at: expected RFC3339")
		}
	}
	resource := c.Param("resource")
	wait, err := h.svc.EstimateWait(c.Request().Context(), tenantID, resource, at)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, WaitResponse{ResourceID: resource, At: at, WaitMinutes: wait})
}

// -- Booking --

func (h *Handler) ValidateAppointment(c echo.Context) error {
	tenantID, err := tenantFrom(c)
	if err != nil {
		return err
	}
	var req BookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.Validate(c.Request().Context(), tenantID, req.appointment())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) BookAppointment(c echo.Context) error {
	tenantID, err := tenantFrom(c)
	if err != nil {
		return err
	}
	var req BookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a := req.appointment()
	d, err := h.svc.Book(c.Request().Context(), tenantID, a)
	if err != nil {
		return httpError(err)
	}
	if !d.Accepted {
		return c.JSON(rejectionStatus(d), BookingResponse{Decision: d})
	}
	return c.JSON(http.StatusCreated, BookingResponse{Decision: d, Appointment: a})
}

// -- Appointments --

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := AppointmentFilter{
		ResourceID: c.QueryParam("resource_id"),
		PatientID:  c.QueryParam("patient_id"),
	}
	if raw := c.QueryParam("status"); raw != "" {
		st, err := ParseStatus(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		f.Status = st
	}
	var err error
	if f.From, err = parseOptionalTime(c.QueryParam("from")); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid from: expected RFC3339")
	}
	if f.To, err = parseOptionalTime(c.QueryParam("to")); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid to: expected RFC3339")
	}
	items, total, err := h.svc.Search(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) RescheduleAppointment(c echo.Context) error {
	tenantID, err := tenantFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req RescheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Start.IsZero() {
		return echo.NewHTTPError(http.StatusBadRequest, "start is required")
	}
	a, d, err := h.svc.Reschedule(c.Request().Context(), tenantID, id, req.Start, req.DurationMinutes)
	if err != nil {
		return httpError(err)
	}
	if !d.Accepted {
		return c.JSON(rejectionStatus(d), BookingResponse{Decision: d, Appointment: a})
	}
	return c.JSON(http.StatusOK, BookingResponse{Decision: d, Appointment: a})
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	tenantID, err := tenantFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req CancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, d, err := h.svc.Cancel(c.Request().Context(), tenantID, id, req.Reason)
	if err != nil {
		return httpError(err)
	}
	if !d.Accepted {
		return c.JSON(rejectionStatus(d), BookingResponse{Decision: d, Appointment: a})
	}
	return c.JSON(http.StatusOK, BookingResponse{Decision: d, Appointment: a})
}

func (h *Handler) TransitionStatus(c echo.Context) error {
	tenantID, err := tenantFrom(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req StatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	next, err := ParseStatus(req.Status)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.TransitionStatus(c.Request().Context(), tenantID, id, next)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

// -- Tenant configuration --

func (h *Handler) GetConfig(c echo.Context) error {
	tenantID, err := tenantFrom(c)
	if err != nil {
		return err
	}
	cfg, err := h.svc.Config(c.Request().Context(), tenantID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cfg)
}

func (h *Handler) UpdateConfig(c echo.Context) error {
	tenantID, err := tenantFrom(c)
	if err != nil {
		return err
	}
	cfg := DefaultTenantConfig(tenantID)
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cfg.TenantID = tenantID
	saved, err := h.svc.UpdateConfig(c.Request().Context(), cfg)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, saved)
}

// -- helpers --

func tenantFrom(c echo.Context) (string, error) {
	if tid, ok := c.Get("tenant_id").(string); ok && tid != "" {
		return tid, nil
	}
	if tid := db.TenantFromContext(c.Request().Context()); tid != "" {
		return tid, nil
	}
	return "", echo.NewHTTPError(http.StatusBadRequest, "tenant not resolved")
}

func parseOptionalTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func rejectionStatus(d Decision) int {
	if d.Reason == ReasonSlotConflict {
		return http.StatusConflict
	}
	return http.StatusUnprocessableEntity
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrOverlap):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidConfig):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrInvalidAppointment), errors.Is(err, ErrInvalidFormat), errors.Is(err, ErrInvalidRange):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
