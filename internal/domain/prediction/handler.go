package prediction

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/snertp/labsched/internal/domain/sample"
)

// Handler exposes the date prediction endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/samples/:id/prediction", h.Estimate)
	api.POST("/samples/:id/prediction", h.EstimateAndStore)
}

func (h *Handler) Estimate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid sample id")
	}
	pred, err := h.svc.EstimateForSample(c.Request().Context(), id)
	if err != nil {
		return predictionError(err)
	}
	return c.JSON(http.StatusOK, pred)
}

func (h *Handler) EstimateAndStore(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid sample id")
	}
	pred, err := h.svc.EstimateAndStore(c.Request().Context(), id)
	if err != nil {
		return predictionError(err)
	}
	return c.JSON(http.StatusOK, pred)
}

func predictionError(err error) error {
	if errors.Is(err, sample.ErrSampleNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
