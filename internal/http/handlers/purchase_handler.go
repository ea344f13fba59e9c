package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/ecocoin-market/internal/dto"
	"github.com/ignatzorin/ecocoin-market/internal/http/handlers/common"
	"github.com/ignatzorin/ecocoin-market/internal/service"
)

type PurchaseHandler struct {
	purchases *service.PurchaseService
}

func NewPurchaseHandler(purchases *service.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{purchases: purchases}
}

// Purchase POST /api/purchases
// Код партнёра берётся из тела или из query параметра ref.
func (h *PurchaseHandler) Purchase(c *gin.Context) {
	buyerID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req dto.PurchaseRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}
	listingID, err := uuid.Parse(req.ListingID)
	if err != nil {
		common.RespondError(c, common.ErrInvalidUUID)
		return
	}

	code := req.AffiliateCode
	if code == "" {
		code = c.Query("ref")
	}

	order, err := h.purchases.Purchase(c.Request.Context(), service.PurchaseRequest{
		BuyerID:       buyerID,
		ListingID:     listingID,
		AffiliateCode: code,
		BuyerNotes:    req.BuyerNotes,
		ClientIP:      c.ClientIP(),
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}
