package clinical

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/scheduler/internal/platform/auth"
)

const dateLayout = "2006-01-02"

type Handler struct {
	now func() time.Time
}

func NewHandler() *Handler {
	return &Handler{now: time.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/clinical", auth.RequireRole("admin", "physician", "nurse", "registrar"))
	g.POST("/metrics", h.ComputeMetrics)
}

// MetricsRequest carries dates as YYYY-MM-DD; reference_date defaults to today (UTC).
type MetricsRequest struct {
	BirthDate     string  `json:"birth_date"`
	ReferenceDate string  `json:"reference_date,omitempty"`
	WeightKg      float64 `json:"weight_kg,omitempty"`
	HeightCm      float64 `json:"height_cm,omitempty"`
	Systolic      int     `json:"systolic,omitempty"`
	Diastolic     int     `json:"diastolic,omitempty"`
}

func (h *Handler) ComputeMetrics(c echo.Context) error {
	var req MetricsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	birth, err := time.Parse(dateLayout, req.BirthDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "birth_date must be YYYY-MM-DD")
	}
	ref := h.now().UTC()
	if req.ReferenceDate != "" {
		ref, err = time.Parse(dateLayout, req.ReferenceDate)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "reference_date must be YYYY-MM-DD")
		}
	}

	m, err := Derive(Snapshot{
		BirthDate: birth,
		WeightKg:  req.WeightKg,
		HeightCm:  req.HeightCm,
		Systolic:  req.Systolic,
		Diastolic: req.Diastolic,
	}, ref)
	if err != nil {
		if errors.Is(err, ErrInvalidMeasurement) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, m)
}
