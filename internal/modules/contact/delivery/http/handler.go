package handler

import (
	"net/http"

	"anoa.com/schoolportal/internal/middleware"
	"anoa.com/schoolportal/internal/modules/contact/dto"
	contactService "anoa.com/schoolportal/internal/modules/contact/service"
	"anoa.com/schoolportal/pkg/response"
	"github.com/gin-gonic/gin"
)

type ContactHandler struct {
	service contactService.ContactService
}

func NewContactHandler(service contactService.ContactService) *ContactHandler {
	return &ContactHandler{service: service}
}

func (h *ContactHandler) Submit(c *gin.Context) {
	var input dto.ContactInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BindError(c, err)
		return
	}
	if _, err := h.service.Submit(c.Request.Context(), c.ClientIP(), input); err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "thank you, we will get back to you soon"})
}

func (h *ContactHandler) List(c *gin.Context) {
	var filter dto.ContactFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BindError(c, err)
		return
	}
	res, err := h.service.List(c.Request.Context(), middleware.ActorFrom(c), filter)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ContactHandler) Get(c *gin.Context) {
	id, ok := response.ParamUUID(c, "id")
	if !ok {
		return
	}
	res, err := h.service.Get(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ContactHandler) SetStatus(c *gin.Context) {
	id, ok := response.ParamUUID(c, "id")
	if !ok {
		return
	}
	var input dto.StatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BindError(c, err)
		return
	}
	if err := h.service.SetStatus(c.Request.Context(), middleware.ActorFrom(c), id, input.Status); err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "status updated"})
}

func (h *ContactHandler) Delete(c *gin.Context) {
	id, ok := response.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "contact message deleted"})
}
