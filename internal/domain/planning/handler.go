package planning

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/snertp/labsched/pkg/pagination"
)

// Handler exposes planning and optimization endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/plannings/optimize", h.Optimize)
	api.POST("/plannings/optimize/weekly", h.OptimizeWeekly)
	api.GET("/plannings", h.List)
	api.GET("/plannings/active", h.GetActive)
	api.GET("/plannings/:id", h.Get)
	api.GET("/plannings/:id/assignments", h.Assignments)
	api.POST("/plannings/:id/activate", h.Activate)
	api.POST("/plannings/:id/archive", h.Archive)
	api.POST("/plannings/dispatch-due", h.DispatchDue)
}

type optimizeRequest struct {
	HorizonStart string `json:"horizon_start"`
	HorizonEnd   string `json:"horizon_end"`
	Section      string `json:"section"`
}

func (h *Handler) Optimize(c echo.Context) error {
	var req optimizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	start, err := time.Parse("2006-01-02", req.HorizonStart)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "horizon_start must be YYYY-MM-DD")
	}
	end, err := time.Parse("2006-01-02", req.HorizonEnd)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "horizon_end must be YYYY-MM-DD")
	}

	result, err := h.svc.RunOptimization(c.Request().Context(), start, end, req.Section)
	if err != nil {
		return planningError(err)
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) OptimizeWeekly(c echo.Context) error {
	result, err := h.svc.OptimizeWeekly(c.Request().Context())
	if err != nil {
		return planningError(err)
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) List(c echo.Context) error {
	params := pagination.FromContext(c)
	plannings, total, err := h.svc.List(c.Request().Context(),
		c.QueryParam("section"), c.QueryParam("status"), params.Limit, params.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(plannings, total, params.Limit, params.Offset))
}

func (h *Handler) GetActive(c echo.Context) error {
	p, err := h.svc.GetActive(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if p == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no active planning")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid planning id")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Assignments(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid planning id")
	}
	assignments, err := h.svc.Assignments(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, assignments)
}

func (h *Handler) Activate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid planning id")
	}
	p, err := h.svc.Activate(c.Request().Context(), id)
	if err != nil {
		return planningError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Archive(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid planning id")
	}
	if err := h.svc.Archive(c.Request().Context(), id); err != nil {
		return planningError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DispatchDue(c echo.Context) error {
	var req struct {
		Date string `json:"date"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	day := time.Now()
	if req.Date != "" {
		var err error
		day, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
		}
	}
	n, err := h.svc.DispatchDue(c.Request().Context(), day)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"dispatched": n})
}

func planningError(err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	}
	var inf *InfeasibleError
	if errors.As(err, &inf) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]string{
			"error": inf.Error(),
			"class": inf.Class,
		})
	}
	if errors.Is(err, ErrPlanningNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
