package handler

import (
	"net/http"

	"anoa.com/schoolportal/internal/middleware"
	"anoa.com/schoolportal/internal/modules/message/dto"
	msgService "anoa.com/schoolportal/internal/modules/message/service"
	"anoa.com/schoolportal/pkg/response"
	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	service msgService.MessageService
}

func NewMessageHandler(service msgService.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

func (h *MessageHandler) Conversations(c *gin.Context) {
	items, err := h.service.Conversations(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (h *MessageHandler) Open(c *gin.Context) {
	userID, ok := response.ParamUUID(c, "user_id")
	if !ok {
		return
	}
	res, err := h.service.Open(c.Request.Context(), middleware.ActorFrom(c), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *MessageHandler) Send(c *gin.Context) {
	var input dto.SendMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BindError(c, err)
		return
	}
	res, err := h.service.Send(c.Request.Context(), middleware.ActorFrom(c), input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *MessageHandler) Delete(c *gin.Context) {
	id, ok := response.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "message deleted"})
}

func (h *MessageHandler) UnreadCount(c *gin.Context) {
	n, err := h.service.UnreadCount(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}
