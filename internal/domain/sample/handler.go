package sample

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/snertp/labsched/pkg/pagination"
)

// Handler exposes sample and test endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/samples", h.CreateSample)
	api.GET("/samples", h.ListSamples)
	api.GET("/samples/:id", h.GetSample)
	api.PUT("/samples/:id", h.UpdateSample)
	api.DELETE("/samples/:id", h.DeleteSample)
	api.GET("/samples/:id/tests", h.ListTests)
	api.POST("/samples/:id/tests", h.AddTest)

	api.GET("/tests/:id", h.GetTest)
	api.POST("/tests/:id/reject", h.RejectTest)
	api.POST("/tests/:id/resume", h.ResumeTest)
	api.POST("/tests/:id/complete", h.CompleteTest)

	api.GET("/queue-depths", h.QueueDepths)
}

type createSampleRequest struct {
	Nature         string   `json:"nature"`
	ReceptionDate  string   `json:"reception_date"`
	Priority       string   `json:"priority"`
	RequestedTypes []string `json:"requested_types"`
}

func (h *Handler) CreateSample(c echo.Context) error {
	var req createSampleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	smp := &Sample{
		Nature:         req.Nature,
		Priority:       req.Priority,
		RequestedTypes: req.RequestedTypes,
	}
	if req.ReceptionDate != "" {
		d, err := time.Parse("2006-01-02", req.ReceptionDate)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "reception_date must be YYYY-MM-DD")
		}
		smp.ReceptionDate = d
	}

	if err := h.svc.CreateSample(c.Request().Context(), smp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, smp)
}

func (h *Handler) ListSamples(c echo.Context) error {
	params := pagination.FromContext(c)
	status := c.QueryParam("status")

	if code := c.QueryParam("code"); code != "" {
		smp, err := h.svc.GetSampleByCode(c.Request().Context(), code)
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse([]*Sample{smp}, 1, params.Limit, params.Offset))
	}

	samples, total, err := h.svc.ListSamples(c.Request().Context(), status, params.Limit, params.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(samples, total, params.Limit, params.Offset))
}

func (h *Handler) GetSample(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid sample id")
	}
	smp, err := h.svc.GetSample(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, smp)
}

func (h *Handler) UpdateSample(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid sample id")
	}
	smp, err := h.svc.GetSample(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	var req struct {
		Nature   string `json:"nature"`
		Priority string `json:"priority"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Nature != "" {
		smp.Nature = req.Nature
	}
	if req.Priority != "" {
		smp.Priority = req.Priority
	}

	if err := h.svc.UpdateSample(c.Request().Context(), smp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, smp)
}

func (h *Handler) DeleteSample(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid sample id")
	}
	if err := h.svc.DeleteSample(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrSampleNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListTests(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid sample id")
	}
	tests, err := h.svc.ListTests(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, tests)
}

func (h *Handler) AddTest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid sample id")
	}
	var req struct {
		TestType string `json:"test_type"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	t, err := h.svc.AddTest(c.Request().Context(), id, req.TestType)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) GetTest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid test id")
	}
	t, err := h.svc.GetTest(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) RejectTest(c echo.Context) error {
	return h.transition(c, h.svc.RejectTest)
}

func (h *Handler) ResumeTest(c echo.Context) error {
	return h.transition(c, h.svc.ResumeTest)
}

func (h *Handler) CompleteTest(c echo.Context) error {
	return h.transition(c, h.svc.CompleteTest)
}

func (h *Handler) transition(c echo.Context, fn func(ctx context.Context, id uuid.UUID) (*Test, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid test id")
	}
	t, err := fn(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrTestNotFound) || errors.Is(err, ErrSampleNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) QueueDepths(c echo.Context) error {
	depths, err := h.svc.QueueDepths(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, depths)
}
