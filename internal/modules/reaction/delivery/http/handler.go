package handler

import (
	"net/http"

	"anoa.com/schoolportal/internal/middleware"
	"anoa.com/schoolportal/internal/modules/reaction/dto"
	reactionService "anoa.com/schoolportal/internal/modules/reaction/service"
	"anoa.com/schoolportal/pkg/response"
	"github.com/gin-gonic/gin"
)

type ReactionHandler struct {
	service reactionService.ReactionService
}

func NewReactionHandler(service reactionService.ReactionService) *ReactionHandler {
	return &ReactionHandler{service: service}
}

// React toggles the caller's like or dislike on an announcement.
func (h *ReactionHandler) React(c *gin.Context) {
	id, ok := response.ParamUUID(c, "id")
	if !ok {
		return
	}
	var input dto.ReactionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BindError(c, err)
		return
	}

	res, err := h.service.React(c.Request.Context(), middleware.ActorFrom(c), id, input.Kind)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
