package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"formbuilder/internal/builder"
	"formbuilder/internal/form"
)

// BuilderHandler 暴露模板编辑操作。每个写操作都返回更新后的完整模板。
type BuilderHandler struct {
	builder *builder.Builder
}

func NewBuilderHandler(b *builder.Builder) *BuilderHandler {
	return &BuilderHandler{builder: b}
}

type renameSectionRequest struct {
	Title string `json:"title"`
}

type dropFieldRequest struct {
	FieldType string `json:"fieldType" binding:"required"`
}

type uploadTypeRequest struct {
	UploadType string `json:"uploadType" binding:"required"`
}

type dragEndRequest struct {
	OverID string `json:"overId"`
}

// POST /v1/templates/:id/sections
func (h *BuilderHandler) AddSection(c *gin.Context) {
	t, section, err := h.builder.AddSection(c.Request.Context(), c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"template": t, "section": section})
}

// PATCH /v1/templates/:id/sections/:sid
func (h *BuilderHandler) RenameSection(c *gin.Context) {
	var req renameSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	t, err := h.builder.RenameSection(c.Request.Context(), c.Param("id"), c.Param("sid"), req.Title)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// DELETE /v1/templates/:id/sections/:sid
func (h *BuilderHandler) DeleteSection(c *gin.Context) {
	t, err := h.builder.DeleteSection(c.Request.Context(), c.Param("id"), c.Param("sid"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// POST /v1/templates/:id/sections/:sid/fields
func (h *BuilderHandler) DropField(c *gin.Context) {
	var req dropFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	fieldType, err := form.ParseFieldType(req.FieldType)
	if err != nil {
		WriteError(c, err)
		return
	}
	t, field, err := h.builder.DropField(c.Request.Context(), c.Param("id"), c.Param("sid"), fieldType)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"template": t, "field": field})
}

// DELETE /v1/templates/:id/sections/:sid/fields/:fid
func (h *BuilderHandler) DeleteField(c *gin.Context) {
	t, err := h.builder.DeleteField(c.Request.Context(), c.Param("id"), c.Param("sid"), c.Param("fid"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// PUT /v1/templates/:id/sections/:sid/fields/:fid/upload-type
func (h *BuilderHandler) SetUploadType(c *gin.Context) {
	var req uploadTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	kind, err := form.ParseUploadKind(req.UploadType)
	if err != nil {
		WriteError(c, err)
		return
	}
	t, err := h.builder.SetUploadConstraint(c.Request.Context(), c.Param("id"), c.Param("sid"), c.Param("fid"), kind)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// GET /v1/templates/:id/fields/:fid/draft
func (h *BuilderHandler) EditField(c *gin.Context) {
	d, err := h.builder.EditField(c.Request.Context(), c.Param("id"), c.Param("fid"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// POST /v1/templates/:id/fields/:fid/draft
// 字段 ID 以路径为准，忽略请求体中的 fieldId。
func (h *BuilderHandler) ConfirmEdit(c *gin.Context) {
	var d form.Draft
	if err := c.ShouldBindJSON(&d); err != nil {
		BadRequest(c, err.Error())
		return
	}
	d.FieldID = c.Param("fid")
	t, field, err := h.builder.ConfirmEdit(c.Request.Context(), c.Param("id"), d)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": t, "field": field})
}

// PUT /v1/templates/:id/fields/:fid
func (h *BuilderHandler) SaveField(c *gin.Context) {
	var f form.Field
	if err := c.ShouldBindJSON(&f); err != nil {
		BadRequest(c, err.Error())
		return
	}
	f.ID = c.Param("fid")
	t, err := h.builder.SaveField(c.Request.Context(), c.Param("id"), f)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// POST /v1/templates/:id/drag/start
func (h *BuilderHandler) DragStart(c *gin.Context) {
	var payload builder.DragPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if err := h.builder.DragStart(c.Param("id"), payload); err != nil {
		BadRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusAccepted, payload)
}

// GET /v1/templates/:id/drag
func (h *BuilderHandler) ActiveDrag(c *gin.Context) {
	payload, ok := h.builder.Active(c.Param("id"))
	if !ok {
		c.JSON(http.StatusOK, gin.H{"active": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": payload})
}

// POST /v1/templates/:id/drag/end
// overId 为空表示在非放置区域松开，此时只清除拖拽状态。
func (h *BuilderHandler) DragEnd(c *gin.Context) {
	var req dragEndRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(c, err.Error())
		return
	}
	t, field, dropped, err := h.builder.DragEnd(c.Request.Context(), c.Param("id"), req.OverID)
	if err != nil {
		WriteError(c, err)
		return
	}
	if !dropped {
		c.JSON(http.StatusOK, gin.H{"dropped": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"dropped": true, "template": t, "field": field})
}

// GET /v1/templates/:id/preview
func (h *BuilderHandler) Preview(c *gin.Context) {
	sections, err := h.builder.Preview(c.Request.Context(), c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sections": sections})
}

// POST /v1/templates/:id/draft
func (h *BuilderHandler) SaveDraft(c *gin.Context) {
	next, err := h.builder.SaveDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"next": next})
}
