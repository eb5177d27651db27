// internal/handlers/admin.go
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sokoni/sokoni-backend/internal/config"
	"github.com/sokoni/sokoni-backend/internal/i18n"
	"github.com/sokoni/sokoni-backend/internal/models"
	"github.com/sokoni/sokoni-backend/internal/services"
	"github.com/sokoni/sokoni-backend/internal/utils"
)

type AdminHandler struct {
	adminService *services.AdminService
	orderService *services.OrderService
	config       *config.Config
}

func NewAdminHandler(adminService *services.AdminService, orderService *services.OrderService, config *config.Config) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		orderService: orderService,
		config:       config,
	}
}

// GET /admin/dashboard
func (h *AdminHandler) GetDashboard(c *gin.Context) {
	stats, err := h.adminService.GetDashboardStats()
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"stats": stats,
	})
}

// POST /admin/agents
func (h *AdminHandler) CreateAgent(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	agent, err := h.adminService.CreateAgent(&req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyAgentCreated),
		"agent":   agent,
	})
}

// GET /admin/agents
func (h *AdminHandler) ListAgents(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	filter := &services.AdminAgentFilter{
		PaginationParams: params,
	}
	if agentType := c.Query("agent_type"); agentType != "" {
		role := models.AgentRole(agentType)
		filter.AgentType = &role
	}
	if status := c.Query("status"); status != "" {
		userStatus := models.UserStatus(status)
		filter.Status = &userStatus
	}

	agents, total, err := h.adminService.ListAgents(filter)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(agents, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /admin/agents/:id
func (h *AdminHandler) GetAgent(c *gin.Context) {
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid agent ID", nil)
		return
	}

	agent, err := h.adminService.GetAgent(agentID)
	if err != nil {
		utils.NotFoundResponse(c, "agent")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"agent": agent,
	})
}

// PUT /admin/agents/:id/status
func (h *AdminHandler) SetAgentStatus(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid agent ID", nil)
		return
	}

	var req struct {
		Status models.UserStatus `json:"status" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "status"), err.Error())
		return
	}

	agent, err := h.adminService.SetAgentStatus(agentID, req.Status)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyAdminActionSuccess),
		"agent":   agent,
	})
}

// POST /admin/orders/:id/assign
func (h *AdminHandler) AssignPDA(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid order ID", nil)
		return
	}

	actor, exists := actorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req struct {
		AgentID uuid.UUID `json:"agent_id" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "agent_id"), err.Error())
		return
	}

	order, err := h.orderService.AssignPDA(orderID, req.AgentID, actor)
	if err != nil {
		respondOrderError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyOrderAssigned),
		"order":   order,
	})
}

// GET /admin/orders/stale
func (h *AdminHandler) ListStaleOrders(c *gin.Context) {
	window := time.Duration(h.config.Fulfillment.StaleWindowHours) * time.Hour
	if hoursStr := c.Query("hours"); hoursStr != "" {
		if hours, err := time.ParseDuration(hoursStr + "h"); err == nil && hours > 0 {
			window = hours
		}
	}

	orders, err := h.orderService.ListStaleOrders(window)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"window_hours": int(window.Hours()),
		"orders":       orders,
	})
}

// GET /admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	userType := c.Query("user_type")

	users, total, err := h.adminService.ListUsers(params, userType)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(users, total, params)
	utils.PaginatedResponse(c, result)
}
