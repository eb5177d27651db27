// internal/handlers/fulfillment.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sokoni/sokoni-backend/internal/i18n"
	"github.com/sokoni/sokoni-backend/internal/models"
	"github.com/sokoni/sokoni-backend/internal/services"
	"github.com/sokoni/sokoni-backend/internal/utils"
)

// FulfillmentHandler is the agent-facing surface of the custody protocol:
// status advances, the two code-verified hand-offs, and evidence uploads.
type FulfillmentHandler struct {
	orderService   *services.OrderService
	storageService *services.StorageService
}

func NewFulfillmentHandler(orderService *services.OrderService, storageService *services.StorageService) *FulfillmentHandler {
	return &FulfillmentHandler{
		orderService:   orderService,
		storageService: storageService,
	}
}

// GET /fulfillment/orders
func (h *FulfillmentHandler) ListAssignedOrders(c *gin.Context) {
	actor, exists := actorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}
	if actor.AgentID == nil {
		utils.ForbiddenResponse(c, "")
		return
	}

	params := utils.GetPaginationParams(c)
	orders, total, err := h.orderService.ListOrdersForAgent(*actor.AgentID, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(orders, total, params)
	utils.PaginatedResponse(c, result)
}

// POST /fulfillment/orders/:id/advance
func (h *FulfillmentHandler) AdvanceStatus(c *gin.Context) {
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
		Status   models.OrderStatus `json:"status" validate:"required"`
		Evidence []string           `json:"evidence,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "status"), err.Error())
		return
	}

	order, err := h.orderService.AdvancePDAStatus(orderID, actor, req.Status, req.Evidence)
	if err != nil {
		respondOrderError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyOrderStatusAdvanced),
		"order":   order,
	})
}

// POST /fulfillment/orders/:id/confirm-deposit
func (h *FulfillmentHandler) ConfirmDeposit(c *gin.Context) {
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
	if actor.AgentID == nil {
		utils.ForbiddenResponse(c, "")
		return
	}

	var req struct {
		Code     string   `json:"code" validate:"required"`
		Evidence []string `json:"evidence,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "code"), err.Error())
		return
	}

	order, err := h.orderService.ConfirmPDADeposit(orderID, *actor.AgentID, req.Code, req.Evidence)
	if err != nil {
		respondOrderError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyOrderDepositRecorded),
		"order":   order,
	})
}

// POST /fulfillment/orders/:id/ready
func (h *FulfillmentHandler) MarkReadyForPickup(c *gin.Context) {
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

	order, err := h.orderService.MarkReadyForPickup(orderID, actor)
	if err != nil {
		respondOrderError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyOrderReadyForPickup),
		"order":   order,
	})
}

// POST /fulfillment/orders/:id/confirm-pickup
func (h *FulfillmentHandler) ConfirmPickup(c *gin.Context) {
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
	if actor.AgentID == nil {
		utils.ForbiddenResponse(c, "")
		return
	}

	var req struct {
		Code string `json:"code" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "code"), err.Error())
		return
	}

	order, err := h.orderService.ConfirmBuyerPickup(orderID, *actor.AgentID, req.Code)
	if err != nil {
		respondOrderError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyOrderCompleted),
		"order":   order,
	})
}

// POST /fulfillment/evidence
func (h *FulfillmentHandler) UploadEvidence(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	actor, exists := actorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}
	if actor.AgentID == nil {
		utils.ForbiddenResponse(c, "")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "file"), nil)
		return
	}
	defer file.Close()

	if err := h.storageService.ValidateImage(file); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyFileInvalidType), nil)
		return
	}

	result, err := h.storageService.UploadFile(file, header, services.EvidenceUploadOptions())
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyFileUploadFailed), err.Error())
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyFileUploadSuccess),
		"file":    result,
	})
}
