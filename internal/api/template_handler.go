package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"cvCanvas/internal/templates"
)

// TemplateHandler 负责模板目录的只读 API。
type TemplateHandler struct {
	catalog *templates.Catalog
}

func NewTemplateHandler(catalog *templates.Catalog) *TemplateHandler {
	return &TemplateHandler{catalog: catalog}
}

type templateListItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Style       templates.Style `json:"style"`
	Description string          `json:"description"`
	IsPremium   bool            `json:"isPremium"`
}

// GET /v1/templates?style=modern
// 列表只返回摘要，样式与默认组件在详情中。
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	list := h.catalog.List()
	if style := templates.Style(c.Query("style")); style != "" {
		list = lo.Filter(list, func(t templates.Template, _ int) bool { return t.Style == style })
	}

	items := lo.Map(list, func(t templates.Template, _ int) templateListItem {
		return templateListItem{
			ID:          t.ID,
			Name:        t.Name,
			Style:       t.Style,
			Description: t.Description,
			IsPremium:   t.IsPremium,
		}
	})
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GET /v1/templates/:id
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	t, err := h.catalog.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, templates.ErrNotFound) {
			NotFound(c, "template not found")
			return
		}
		Internal(c, "failed to load template")
		return
	}
	c.JSON(http.StatusOK, t)
}
