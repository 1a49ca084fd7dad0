package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"formbuilder/internal/form"
	"formbuilder/internal/runtime"
	"formbuilder/internal/upload"
)

// FormHandler 负责填写会话：作答、上传与提交。
type FormHandler struct {
	runtime *runtime.Controller
}

func NewFormHandler(rt *runtime.Controller) *FormHandler {
	return &FormHandler{runtime: rt}
}

type sessionResponse struct {
	runtime.Snapshot
	Sections []form.RenderedSection `json:"sections"`
}

type setAnswerRequest struct {
	Value form.Value `json:"value"`
}

func (h *FormHandler) respond(c *gin.Context, status int, snap runtime.Snapshot) {
	sections, err := h.runtime.Render(c.Request.Context(), snap.ID)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(status, sessionResponse{Snapshot: snap, Sections: sections})
}

// POST /v1/forms/:id/sessions
func (h *FormHandler) StartSession(c *gin.Context) {
	snap, err := h.runtime.Start(c.Request.Context(), c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	h.respond(c, http.StatusCreated, snap)
}

// GET /v1/sessions/:sid
func (h *FormHandler) GetSession(c *gin.Context) {
	snap, err := h.runtime.Session(c.Param("sid"))
	if err != nil {
		WriteError(c, err)
		return
	}
	h.respond(c, http.StatusOK, snap)
}

// DELETE /v1/sessions/:sid
func (h *FormHandler) CloseSession(c *gin.Context) {
	h.runtime.Close(c.Param("sid"))
	c.Status(http.StatusNoContent)
}

// PUT /v1/sessions/:sid/answers/:fid
// 值可以是字符串、数字或布尔；null 清空作答，清空的字段不会被持久化。
func (h *FormHandler) SetAnswer(c *gin.Context) {
	var req setAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if err := h.runtime.SetAnswer(c.Param("sid"), c.Param("fid"), req.Value); err != nil {
		WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /v1/sessions/:sid/uploads/:fid
func (h *FormHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	file, err := header.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	url, err := h.runtime.Upload(c.Request.Context(), c.Param("sid"), c.Param("fid"), upload.File{
		Name:        header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}

// POST /v1/sessions/:sid/submit
// 必填校验失败返回 422，并指出第一个未填写的字段。
func (h *FormHandler) Submit(c *gin.Context) {
	snap, err := h.runtime.Submit(c.Request.Context(), c.Param("sid"))
	if err != nil {
		var verr *runtime.ValidationError
		if errors.As(err, &verr) {
			status, code := errorStatus(err)
			c.JSON(status, gin.H{"error": verr.Error(), "code": code, "fieldId": verr.FieldID})
			return
		}
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// POST /v1/sessions/:sid/restart
func (h *FormHandler) Restart(c *gin.Context) {
	snap, err := h.runtime.Restart(c.Param("sid"))
	if err != nil {
		WriteError(c, err)
		return
	}
	h.respond(c, http.StatusOK, snap)
}
