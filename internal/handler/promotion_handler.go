package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vidyalaya-dev/vidyalaya-api/internal/dto"
	"github.com/vidyalaya-dev/vidyalaya-api/internal/service"
	"github.com/vidyalaya-dev/vidyalaya-api/pkg/response"
)

// PromotionHandler exposes the year-end promotion batch endpoint.
type PromotionHandler struct {
	promotions *service.PromotionService
}

// NewPromotionHandler constructs PromotionHandler.
func NewPromotionHandler(promotions *service.PromotionService) *PromotionHandler {
	return &PromotionHandler{promotions: promotions}
}

// PromoteAll godoc
// @Summary Run the year-end promotion batch
// @Tags Promotion
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /promotions [post]
func (h *PromotionHandler) PromoteAll(c *gin.Context) {
	logs, err := h.promotions.PromoteAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.PromotionResult{Logs: logs}, nil)
}
