package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"formbuilder/internal/dashboard"
	"formbuilder/internal/form"
	"formbuilder/internal/store"
)

// TemplateHandler 负责模板列表、创建、删除与导航。
type TemplateHandler struct {
	dashboard *dashboard.Dashboard
	store     *store.Store
}

func NewTemplateHandler(d *dashboard.Dashboard, s *store.Store) *TemplateHandler {
	return &TemplateHandler{dashboard: d, store: s}
}

type templateListResponse struct {
	Items        []form.Template `json:"items"`
	MaxTemplates int             `json:"maxTemplates"`
}

// GET /v1/templates
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	templates, err := h.dashboard.List(c.Request.Context())
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, templateListResponse{Items: templates, MaxTemplates: h.dashboard.MaxTemplates()})
}

// POST /v1/templates
// 已满时返回 409，集合保持不变。
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	t, err := h.dashboard.Create(c.Request.Context())
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// GET /v1/templates/:id
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	t, err := h.dashboard.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// DELETE /v1/templates/:id
// 删除不存在的模板同样返回 204。
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	if err := h.dashboard.Delete(c.Request.Context(), c.Param("id")); err != nil {
		WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type openResponse struct {
	Builder string `json:"builder"`
	Form    string `json:"form"`
	Share   string `json:"share"`
}

// GET /v1/templates/:id/open
// 只返回导航目标，不读写存储。
func (h *TemplateHandler) OpenTemplate(c *gin.Context) {
	id := c.Param("id")
	c.JSON(http.StatusOK, openResponse{
		Builder: h.dashboard.Open(id),
		Form:    h.dashboard.OpenRuntime(id),
		Share:   shareLink(c.Request, id),
	})
}

func shareLink(r *http.Request, id string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	return scheme + "://" + r.Host + dashboard.FormPath(id)
}

// GET /v1/templates/:id/answers
func (h *TemplateHandler) GetAnswers(c *gin.Context) {
	answers, ok, err := h.store.LoadAnswers(c.Request.Context(), c.Param("id"))
	if err != nil {
		WriteError(c, err)
		return
	}
	if !ok {
		NotFound(c, "no answers submitted")
		return
	}
	c.JSON(http.StatusOK, answers)
}

// GET /v1/palette
func ListPalette(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": form.Palette()})
}
