package user

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medimeet/telehealth-api/internal/handler"
	"github.com/medimeet/telehealth-api/internal/middleware"
	"github.com/medimeet/telehealth-api/internal/model"
	"github.com/medimeet/telehealth-api/internal/service/ledger"
	"github.com/medimeet/telehealth-api/internal/service/user"
)

type Handler struct {
	users  *user.Service
	ledger *ledger.Service
}

func NewHandler(users *user.Service, ledgerSvc *ledger.Service) *Handler {
	return &Handler{users: users, ledger: ledgerSvc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	me := rg.Group("/users/me")
	{
		me.GET("", h.GetMe)
		me.POST("/role", h.SetRole)
	}
	rg.GET("/credits", h.ListTransactions)
}

// GetMe returns the caller's profile. Monthly credit allocation is lazy:
// it runs here, on the first profile fetch of the month.
func (h *Handler) GetMe(c *gin.Context) {
	current := middleware.CurrentUser(c)

	current, err := h.ledger.AllocateMonthly(c.Request.Context(), current)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(current))
}

func (h *Handler) SetRole(c *gin.Context) {
	var req model.SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	updated, err := h.users.SetRole(c.Request.Context(), middleware.CurrentUser(c), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(updated))
}

func (h *Handler) ListTransactions(c *gin.Context) {
	transactions, err := h.ledger.Transactions(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(transactions))
}
