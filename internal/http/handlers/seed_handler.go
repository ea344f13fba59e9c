package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/ecocoin-market/internal/dto"
	"github.com/ignatzorin/ecocoin-market/internal/http/handlers/common"
	"github.com/ignatzorin/ecocoin-market/internal/service"
)

// SeedHandler обслуживает dev-эндпоинты: тестовые данные и выдачу токенов.
// Регистрируется только вне production.
type SeedHandler struct {
	seed   *service.SeedService
	tokens *service.TokenManager
}

// NewSeedHandler создаёт новый seed handler.
func NewSeedHandler(seed *service.SeedService, tokens *service.TokenManager) *SeedHandler {
	return &SeedHandler{seed: seed, tokens: tokens}
}

// Seed POST /api/dev/seed
func (h *SeedHandler) Seed(c *gin.Context) {
	var req dto.SeedRequest
	if c.Request.ContentLength > 0 {
		if err := common.BindJSON(c, &req); err != nil {
			common.RespondError(c, err)
			return
		}
	}

	result, err := h.seed.Seed(c.Request.Context(), req.BuyerBalance)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// IssueToken POST /api/dev/token
func (h *SeedHandler) IssueToken(c *gin.Context) {
	var req dto.DevTokenRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}

	token, err := h.tokens.IssueAccess(uuid.MustParse(req.UserID), req.Role)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, token)
}
