package scheduling

import (
	"errors"
	"net/http"
	"path"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the appointment endpoints. Middleware in write is
// applied to POST, PUT and DELETE only.
func (h *Handler) RegisterRoutes(api *echo.Group, write ...echo.MiddlewareFunc) {
	api.GET("/appointments", h.ListAppointments)
	api.GET("/appointments/:id", h.GetAppointment)
	api.GET("/appointments/patient/:patientId", h.ListAppointmentsForPatient)

	api.POST("/appointments", h.CreateAppointment, write...)
	api.PUT("/appointments/:id", h.UpdateAppointment, write...)
	api.DELETE("/appointments/:id", h.DeleteAppointment, write...)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	items, err := h.svc.ListAppointments(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	v, err := h.svc.GetAppointment(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) ListAppointmentsForPatient(c echo.Context) error {
	items, err := h.svc.ListAppointmentsForPatient(c.Request().Context(), c.Param("patientId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	v, err := h.svc.CreateAppointment(c.Request().Context(), &a)
	if err != nil {
		return toHTTPError(err)
	}
	c.Response().Header().Set(echo.HeaderLocation, path.Join(c.Request().URL.Path, v.ID))
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.UpdateAppointment(c.Request().Context(), c.Param("id"), &a); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	if err := h.svc.DeleteAppointment(c.Request().Context(), c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// toHTTPError maps domain errors to responses. Anything unrecognised is
// returned as is and rendered as a 500 by the server's error handler.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, ErrNotFound.Error())
	case errors.Is(err, ErrIDMismatch):
		return echo.NewHTTPError(http.StatusBadRequest, ErrIDMismatch.Error())
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}
