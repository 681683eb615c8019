package handler

import (
	"net/http"

	"anoa.com/schoolportal/internal/middleware"
	"anoa.com/schoolportal/internal/modules/comment/dto"
	commentService "anoa.com/schoolportal/internal/modules/comment/service"
	"anoa.com/schoolportal/pkg/response"
	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	service commentService.CommentService
}

func NewCommentHandler(service commentService.CommentService) *CommentHandler {
	return &CommentHandler{service: service}
}

func (h *CommentHandler) List(c *gin.Context) {
	postID, ok := response.ParamUUID(c, "id")
	if !ok {
		return
	}
	items, err := h.service.List(c.Request.Context(), middleware.ActorFrom(c), postID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (h *CommentHandler) Create(c *gin.Context) {
	postID, ok := response.ParamUUID(c, "id")
	if !ok {
		return
	}
	var input dto.CreateCommentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BindError(c, err)
		return
	}
	res, err := h.service.Create(c.Request.Context(), middleware.ActorFrom(c), postID, input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *CommentHandler) Update(c *gin.Context) {
	id, ok := response.ParamUUID(c, "comment_id")
	if !ok {
		return
	}
	var input dto.UpdateCommentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BindError(c, err)
		return
	}
	res, err := h.service.Update(c.Request.Context(), middleware.ActorFrom(c), id, input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *CommentHandler) Delete(c *gin.Context) {
	id, ok := response.ParamUUID(c, "comment_id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "comment deleted"})
}
