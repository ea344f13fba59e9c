package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/ecocoin-market/internal/dto"
	"github.com/ignatzorin/ecocoin-market/internal/http/handlers/common"
	"github.com/ignatzorin/ecocoin-market/internal/service"
)

type AffiliateHandler struct {
	affiliates *service.AffiliateService
}

func NewAffiliateHandler(affiliates *service.AffiliateService) *AffiliateHandler {
	return &AffiliateHandler{affiliates: affiliates}
}

// CreateLink POST /api/affiliate/links
func (h *AffiliateHandler) CreateLink(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req dto.AffiliateLinkRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}
	listingID, err := uuid.Parse(req.ListingID)
	if err != nil {
		common.RespondError(c, common.ErrInvalidUUID)
		return
	}

	link, err := h.affiliates.GetOrCreateLink(c.Request.Context(), userID, common.CurrentUserRole(c), listingID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, link)
}

// Stats GET /api/affiliate/stats
func (h *AffiliateHandler) Stats(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	stats, err := h.affiliates.Stats(c.Request.Context(), userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
