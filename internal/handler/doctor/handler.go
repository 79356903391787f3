package doctor

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medimeet/telehealth-api/internal/handler"
	"github.com/medimeet/telehealth-api/internal/middleware"
	"github.com/medimeet/telehealth-api/internal/model"
	"github.com/medimeet/telehealth-api/internal/service/availability"
	"github.com/medimeet/telehealth-api/internal/service/schedule"
	"github.com/medimeet/telehealth-api/internal/service/user"
)

type Handler struct {
	users        *user.Service
	availability *availability.Service
	schedule     *schedule.Service
}

func NewHandler(users *user.Service, availabilitySvc *availability.Service, scheduleSvc *schedule.Service) *Handler {
	return &Handler{
		users:        users,
		availability: availabilitySvc,
		schedule:     scheduleSvc,
	}
}

// RegisterPublicRoutes exposes the doctor directory without authentication;
// patients browse it before signing in.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	doctors := rg.Group("/doctors")
	{
		doctors.GET("", h.ListDoctors)
		doctors.GET("/:id", h.GetDoctor)
		doctors.GET("/:id/slots", h.GetAvailableSlots)
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	mine := rg.Group("/availability", middleware.RequireRole(model.RoleDoctor))
	{
		mine.PUT("", h.SetAvailability)
		mine.GET("", h.ListAvailability)
	}
}

// ListDoctors is the public directory of verified doctors.
func (h *Handler) ListDoctors(c *gin.Context) {
	var page model.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	doctors, err := h.users.ListVerifiedDoctors(c.Request.Context(), c.Query("specialty"), page)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(doctors))
}

func (h *Handler) GetDoctor(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid doctor ID"))
		return
	}

	doctor, err := h.users.GetDoctor(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(doctor))
}

// GetAvailableSlots returns the doctor's bookable slots for the next four
// days, grouped by day.
func (h *Handler) GetAvailableSlots(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid doctor ID"))
		return
	}

	days, err := h.schedule.GetAvailableSlots(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(days))
}

func (h *Handler) SetAvailability(c *gin.Context) {
	var req model.SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	created, err := h.availability.SetAvailability(c.Request.Context(), middleware.CurrentUser(c), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) ListAvailability(c *gin.Context) {
	windows, err := h.availability.ListAvailability(c.Request.Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(windows))
}
