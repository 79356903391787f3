package appointment

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medimeet/telehealth-api/internal/handler"
	"github.com/medimeet/telehealth-api/internal/middleware"
	"github.com/medimeet/telehealth-api/internal/model"
	"github.com/medimeet/telehealth-api/internal/service/appointment"
	"github.com/medimeet/telehealth-api/internal/service/booking"
)

type Handler struct {
	booking      *booking.Service
	appointments *appointment.Service
}

func NewHandler(bookingSvc *booking.Service, appointmentSvc *appointment.Service) *Handler {
	return &Handler{booking: bookingSvc, appointments: appointmentSvc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	appointments := rg.Group("/appointments")
	{
		appointments.POST("", middleware.RequireRole(model.RolePatient), h.BookAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/:id", h.GetAppointment)
		appointments.POST("/:id/cancel", h.CancelAppointment)
		appointments.POST("/:id/complete", middleware.RequireRole(model.RoleDoctor), h.CompleteAppointment)
		appointments.PATCH("/:id/notes", middleware.RequireRole(model.RoleDoctor), h.UpdateNotes)
		appointments.POST("/:id/token", h.GetVideoToken)
	}
}

func (h *Handler) BookAppointment(c *gin.Context) {
	var req model.BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	booked, err := h.booking.Book(c.Request.Context(), middleware.CurrentUser(c), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(booked))
}

func (h *Handler) ListAppointments(c *gin.Context) {
	status := model.AppointmentStatus(c.Query("status"))

	var page model.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	appointments, err := h.appointments.ListForUser(c.Request.Context(), middleware.CurrentUser(c), status, page)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointments))
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, ok := h.appointmentID(c)
	if !ok {
		return
	}

	apt, err := h.appointments.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(apt))
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	id, ok := h.appointmentID(c)
	if !ok {
		return
	}

	apt, err := h.appointments.Cancel(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(apt))
}

func (h *Handler) CompleteAppointment(c *gin.Context) {
	id, ok := h.appointmentID(c)
	if !ok {
		return
	}

	apt, err := h.appointments.Complete(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(apt))
}

func (h *Handler) UpdateNotes(c *gin.Context) {
	id, ok := h.appointmentID(c)
	if !ok {
		return
	}

	var req model.UpdateNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	apt, err := h.appointments.UpdateNotes(c.Request.Context(), middleware.CurrentUser(c), id, &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(apt))
}

// GetVideoToken mints a join token for the appointment's video session and
// returns it alongside the session id.
func (h *Handler) GetVideoToken(c *gin.Context) {
	id, ok := h.appointmentID(c)
	if !ok {
		return
	}

	apt, err := h.appointments.GetVideoToken(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"appointment_id": apt.ID,
		"session_id":     apt.VideoSessionID,
		"token":          apt.VideoSessionToken,
	}))
}

func (h *Handler) appointmentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return uuid.Nil, false
	}
	return id, true
}
