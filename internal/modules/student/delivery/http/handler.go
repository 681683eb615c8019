package handler

import (
	"fmt"
	"net/http"
	"time"

	"anoa.com/schoolportal/internal/middleware"
	"anoa.com/schoolportal/internal/modules/student/dto"
	studentService "anoa.com/schoolportal/internal/modules/student/service"
	"anoa.com/schoolportal/pkg/response"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type StudentHandler struct {
	service studentService.StudentService
}

func NewStudentHandler(service studentService.StudentService) *StudentHandler {
	return &StudentHandler{service: service}
}

// Submit handles POST /api/my-children.
func (h *StudentHandler) Submit(c *gin.Context) {
	var input dto.GuardianLinkInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BindError(c, err)
		return
	}
	res, err := h.service.SubmitGuardianLink(c.Request.Context(), middleware.ActorFrom(c), input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *StudentHandler) ListMine(c *gin.Context) {
	items, err := h.service.ListMine(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (h *StudentHandler) UpdateMine(c *gin.Context) {
	id, ok := response.ParamUUID(c, "id")
	if !ok {
		return
	}
	var input dto.OwnChildUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BindError(c, err)
		return
	}
	res, err := h.service.UpdateMine(c.Request.Context(), middleware.ActorFrom(c), id, input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *StudentHandler) DeleteMine(c *gin.Context) {
	id, ok := response.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteMine(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "child removed"})
}

func (h *StudentHandler) List(c *gin.Context) {
	var filter dto.StudentFilter
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

// Pending is the approval queue: List with status fixed to pending.
func (h *StudentHandler) Pending(c *gin.Context) {
	var filter dto.StudentFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BindError(c, err)
		return
	}
	filter.Status = "pending"
	res, err := h.service.List(c.Request.Context(), middleware.ActorFrom(c), filter)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *StudentHandler) Get(c *gin.Context) {
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

func (h *StudentHandler) Create(c *gin.Context) {
	var input dto.AdminStudentInput
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

func (h *StudentHandler) Update(c *gin.Context) {
	id, ok := response.ParamUUID(c, "id")
	if !ok {
		return
	}
	var input dto.AdminStudentInput
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

func (h *StudentHandler) Delete(c *gin.Context) {
	id, ok := response.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "student deleted"})
}

func (h *StudentHandler) Decide(c *gin.Context) {
	id, ok := response.ParamUUID(c, "id")
	if !ok {
		return
	}
	var input dto.DecisionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BindError(c, err)
		return
	}
	res, err := h.service.DecideGuardianLink(c.Request.Context(), middleware.ActorFrom(c), id, input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *StudentHandler) Export(c *gin.Context) {
	var filter dto.StudentFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BindError(c, err)
		return
	}
	data, err := h.service.Export(c.Request.Context(), middleware.ActorFrom(c), filter)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	name := fmt.Sprintf("students-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (h *StudentHandler) Classes(c *gin.Context) {
	var query dto.ClassQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BindError(c, err)
		return
	}
	items, err := h.service.Classes(c.Request.Context(), query.Grade)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}
