package handler

import (
	"net/http"

	"anoa.com/schoolportal/internal/middleware"
	"anoa.com/schoolportal/internal/modules/announcement/dto"
	annService "anoa.com/schoolportal/internal/modules/announcement/service"
	commonDto "anoa.com/schoolportal/pkg/dto"
	"anoa.com/schoolportal/pkg/response"
	"github.com/gin-gonic/gin"
)

const maxImageSize = 5 << 20

type AnnouncementHandler struct {
	service annService.AnnouncementService
}

func NewAnnouncementHandler(service annService.AnnouncementService) *AnnouncementHandler {
	return &AnnouncementHandler{service: service}
}

func (h *AnnouncementHandler) Feed(c *gin.Context) {
	items, err := h.service.Feed(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (h *AnnouncementHandler) List(c *gin.Context) {
	var filter dto.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BindError(c, err)
		return
	}

	res, err := h.service.ListVisibleAnnouncements(c.Request.Context(), middleware.ActorFrom(c), filter)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AnnouncementHandler) Search(c *gin.Context) {
	var query dto.SearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BindError(c, err)
		return
	}

	items, err := h.service.Search(c.Request.Context(), middleware.ActorFrom(c), query)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (h *AnnouncementHandler) Get(c *gin.Context) {
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

func (h *AnnouncementHandler) Create(c *gin.Context) {
	var input dto.AnnouncementInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BindError(c, err)
		return
	}
	res, err := h.service.Create(c.Request.Context(), middleware.ActorFrom(c), input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *AnnouncementHandler) Update(c *gin.Context) {
	id, ok := response.ParamUUID(c, "id")
	if !ok {
		return
	}
	var input dto.AnnouncementInput
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

func (h *AnnouncementHandler) Delete(c *gin.Context) {
	id, ok := response.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "announcement deleted"})
}

func (h *AnnouncementHandler) SetPinned(c *gin.Context) {
	id, ok := response.ParamUUID(c, "id")
	if !ok {
		return
	}
	var input dto.PinInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BindError(c, err)
		return
	}
	if err := h.service.SetPinned(c.Request.Context(), middleware.ActorFrom(c), id, *input.Pinned); err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "is_pinned": *input.Pinned})
}

func (h *AnnouncementHandler) UploadImage(c *gin.Context) {
	id, ok := response.ParamUUID(c, "id")
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	if fileHeader.Size > maxImageSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image must be at most 5MB"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read image"})
		return
	}
	defer file.Close()

	res, err := h.service.UploadImage(c.Request.Context(), middleware.ActorFrom(c), id, commonDto.UploadFile{
		Reader:   file,
		FileName: fileHeader.Filename,
	})
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AnnouncementHandler) ReactionDetails(c *gin.Context) {
	id, ok := response.ParamUUID(c, "id")
	if !ok {
		return
	}
	res, err := h.service.ReactionDetails(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
