package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/ecocoin-market/internal/dto"
	"github.com/ignatzorin/ecocoin-market/internal/http/handlers/common"
	"github.com/ignatzorin/ecocoin-market/internal/service"
)

type OrderHandler struct {
	orders     *service.OrderService
	settlement *service.SettlementService
}

func NewOrderHandler(orders *service.OrderService, settlement *service.SettlementService) *OrderHandler {
	return &OrderHandler{orders: orders, settlement: settlement}
}

// MarkShipped POST /api/orders/:id/ship
func (h *OrderHandler) MarkShipped(c *gin.Context) {
	sellerID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req dto.ShipRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}

	order, err := h.orders.MarkShipped(c.Request.Context(), sellerID, orderID, req.TrackingNumber)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// ConfirmDelivery POST /api/orders/:id/confirm
func (h *OrderHandler) ConfirmDelivery(c *gin.Context) {
	buyerID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	result, err := h.settlement.ConfirmDelivery(c.Request.Context(), buyerID, orderID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetOrder GET /api/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), userID, orderID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// ListMyOrders GET /api/orders/my
func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	orders, err := h.orders.ListMyOrders(c.Request.Context(), userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, orders)
}
