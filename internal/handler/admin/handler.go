package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medimeet/telehealth-api/internal/handler"
	"github.com/medimeet/telehealth-api/internal/middleware"
	"github.com/medimeet/telehealth-api/internal/model"
	"github.com/medimeet/telehealth-api/internal/service/admin"
)

type Handler struct {
	admin *admin.Service
}

func NewHandler(adminSvc *admin.Service) *Handler {
	return &Handler{admin: adminSvc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/admin", middleware.RequireRole(model.RoleAdmin))
	{
		group.GET("/doctors", h.ListDoctors)
		group.POST("/doctors/:id/verification", h.UpdateVerification)
		group.POST("/doctors/:id/suspend", h.SetSuspended)
	}
}

// ListDoctors returns doctors in the requested verification state,
// defaulting to the PENDING vetting queue.
func (h *Handler) ListDoctors(c *gin.Context) {
	status := model.VerificationStatus(c.DefaultQuery("status", string(model.VerificationPending)))

	var page model.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	doctors, err := h.admin.ListDoctors(c.Request.Context(), status, page)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(doctors))
}

func (h *Handler) UpdateVerification(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid doctor ID"))
		return
	}

	var req model.UpdateVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.admin.UpdateVerification(c.Request.Context(), id, &req); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

func (h *Handler) SetSuspended(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid doctor ID"))
		return
	}

	var req model.SuspendDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.admin.SetSuspended(c.Request.Context(), id, req.Suspend); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}
