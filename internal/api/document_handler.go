package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cvCanvas/internal/api/middleware"
	"cvCanvas/internal/cv"
	"cvCanvas/internal/editor"
	"cvCanvas/internal/layout"
	"cvCanvas/internal/metrics"
	"cvCanvas/internal/storage"
)

// DocumentHandler 暴露文档与组件编辑接口。每个修改接口都返回最新文档及其分页。
type DocumentHandler struct {
	svc     *editor.Service
	exports ExportCleaner
	logger  *slog.Logger
}

// ExportCleaner 删除文档遗留的导出文件。
type ExportCleaner interface {
	DeletePrefix(ctx context.Context, prefix string) error
}

// NewDocumentHandler 创建处理器；exports 为 nil 时删除文档不清理导出文件。
func NewDocumentHandler(svc *editor.Service, exports ExportCleaner, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{svc: svc, exports: exports, logger: logger}
}

type documentResponse struct {
	Document cv.Document       `json:"document"`
	Pages    []layout.PageView `json:"pages"`
}

type documentSummary struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	TemplateID string `json:"templateId"`
	Version    int    `json:"version"`
	Pages      int    `json:"pages"`
	UpdatedAt  string `json:"updatedAt"`
}

// GET /v1/documents
func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	docs, err := h.svc.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log(c), err)
		return
	}
	items := make([]documentSummary, 0, len(docs))
	for _, d := range docs {
		items = append(items, documentSummary{
			ID:         d.ID,
			Title:      d.Title,
			TemplateID: d.TemplateID,
			Version:    d.Version,
			Pages:      max(layout.TotalPages(d.Components), d.PageCount),
			UpdatedAt:  d.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// POST /v1/documents
func (h *DocumentHandler) Create(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req editor.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	doc, err := h.svc.Create(c.Request.Context(), userID, req)
	h.finish(c, "create", http.StatusCreated, doc, err)
}

// GET /v1/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	doc, err := h.svc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, h.log(c), err)
		return
	}
	h.reply(c, http.StatusOK, doc)
}

type patchDocumentRequest struct {
	Version int `json:"version"`
	editor.MetaPatch
}

// PATCH /v1/documents/:id
func (h *DocumentHandler) Patch(c *gin.Context) {
	var req patchDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	h.mutate(c, "update_meta", req.Version, func(ctx context.Context, userID uint, id string, version int) (cv.Document, error) {
		return h.svc.UpdateMeta(ctx, userID, id, version, req.MetaPatch)
	})
}

// DELETE /v1/documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id := c.Param("id")
	if err := h.svc.Delete(c.Request.Context(), userID, id); err != nil {
		metrics.RecordEdit("delete", outcomeOf(err))
		respondError(c, h.log(c), err)
		return
	}
	metrics.RecordEdit("delete", "ok")
	if h.exports != nil {
		prefix := storage.ExportPrefix(userID, id)
		if err := h.exports.DeletePrefix(c.Request.Context(), prefix); err != nil {
			h.log(c).Warn("delete document exports failed", slog.String("prefix", prefix), slog.Any("error", err))
		}
	}
	c.Status(http.StatusNoContent)
}

// POST /v1/documents/:id/duplicate
func (h *DocumentHandler) Duplicate(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	doc, err := h.svc.Duplicate(c.Request.Context(), userID, c.Param("id"))
	h.finish(c, "duplicate", http.StatusCreated, doc, err)
}

// GET /v1/documents/:id/pages
func (h *DocumentHandler) Pages(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	doc, pages, err := h.svc.Pages(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusOK, documentResponse{Document: doc, Pages: pages})
}

// POST /v1/documents/:id/pages
func (h *DocumentHandler) AddPage(c *gin.Context) {
	h.mutate(c, "add_page", 0, h.svc.AddPage)
}

type addComponentRequest struct {
	Version int             `json:"version"`
	Type    cv.Type         `json:"type" binding:"required"`
	Data    json.RawMessage `json:"data"`
}

// POST /v1/documents/:id/components
// 页码与顺序由服务端的版面建议决定，请求中不需要也不接受页码。
func (h *DocumentHandler) AddComponent(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req addComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if !req.Type.Valid() {
		BadRequest(c, "unknown component type")
		return
	}
	payload, err := cv.DecodePayload(req.Type, req.Data)
	if err != nil {
		BadRequest(c, "invalid component data")
		return
	}

	doc, added, err := h.svc.AddComponent(c.Request.Context(), userID, c.Param("id"), versionOf(c, req.Version), req.Type, payload)
	metrics.RecordEdit("add_component", outcomeOf(err))
	if err != nil {
		respondError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"document":  doc,
		"pages":     h.svc.Engine().Layout(doc.Components, doc.PageCount),
		"component": added,
	})
}

// GET /v1/documents/:id/placement?type=experience
func (h *DocumentHandler) Placement(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	typ := cv.Type(c.Query("type"))
	if typ == "" {
		BadRequest(c, "missing type")
		return
	}
	placement, err := h.svc.SuggestPage(c.Request.Context(), userID, c.Param("id"), typ)
	if err != nil {
		respondError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusOK, placement)
}

type updateComponentRequest struct {
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data" binding:"required"`
}

// PUT /v1/documents/:id/components/:cid
func (h *DocumentHandler) UpdateComponent(c *gin.Context) {
	var req updateComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	cid := c.Param("cid")
	h.mutate(c, "update_component", req.Version, func(ctx context.Context, userID uint, id string, version int) (cv.Document, error) {
		return h.svc.UpdateComponent(ctx, userID, id, version, cid, req.Data)
	})
}

// DELETE /v1/documents/:id/components/:cid
func (h *DocumentHandler) RemoveComponent(c *gin.Context) {
	h.mutate(c, "remove_component", 0, componentOp(c, h.svc.RemoveComponent))
}

// POST /v1/documents/:id/components/:cid/visibility
func (h *DocumentHandler) ToggleVisibility(c *gin.Context) {
	h.mutate(c, "toggle_visibility", 0, componentOp(c, h.svc.ToggleVisibility))
}

// POST /v1/documents/:id/components/:cid/split
func (h *DocumentHandler) Split(c *gin.Context) {
	h.mutate(c, "split", 0, componentOp(c, h.svc.Split))
}

// GET /v1/documents/:id/components/:cid/overflow
func (h *DocumentHandler) Overflow(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	overflow, err := h.svc.Overflow(c.Request.Context(), userID, c.Param("id"), c.Param("cid"))
	if err != nil {
		respondError(c, h.log(c), err)
		return
	}
	c.JSON(http.StatusOK, overflow)
}

type moveRequest struct {
	Version int `json:"version"`
	editor.MoveInput
}

// POST /v1/documents/:id/move
// 无效拖拽（缺少 ID、未知 ID、拖到自身、拖到目标之外）返回 200 与未改变的文档。
func (h *DocumentHandler) Move(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	h.mutate(c, "move", req.Version, func(ctx context.Context, userID uint, id string, version int) (cv.Document, error) {
		return h.svc.Move(ctx, userID, id, version, req.MoveInput)
	})
}

// POST /v1/documents/:id/undo
func (h *DocumentHandler) Undo(c *gin.Context) {
	h.mutate(c, "undo", 0, func(ctx context.Context, userID uint, id string, _ int) (cv.Document, error) {
		return h.svc.Undo(ctx, userID, id)
	})
}

// POST /v1/documents/:id/redo
func (h *DocumentHandler) Redo(c *gin.Context) {
	h.mutate(c, "redo", 0, func(ctx context.Context, userID uint, id string, _ int) (cv.Document, error) {
		return h.svc.Redo(ctx, userID, id)
	})
}

type mutation func(ctx context.Context, userID uint, id string, version int) (cv.Document, error)

type componentMutation func(ctx context.Context, userID uint, id string, version int, componentID string) (cv.Document, error)

func componentOp(c *gin.Context, fn componentMutation) mutation {
	cid := c.Param("cid")
	return func(ctx context.Context, userID uint, id string, version int) (cv.Document, error) {
		return fn(ctx, userID, id, version, cid)
	}
}

func (h *DocumentHandler) mutate(c *gin.Context, op string, bodyVersion int, fn mutation) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	doc, err := fn(c.Request.Context(), userID, c.Param("id"), versionOf(c, bodyVersion))
	h.finish(c, op, http.StatusOK, doc, err)
}

func (h *DocumentHandler) finish(c *gin.Context, op string, status int, doc cv.Document, err error) {
	metrics.RecordEdit(op, outcomeOf(err))
	if err != nil {
		respondError(c, h.log(c), err)
		return
	}
	h.reply(c, status, doc)
}

func (h *DocumentHandler) reply(c *gin.Context, status int, doc cv.Document) {
	c.JSON(status, documentResponse{
		Document: doc,
		Pages:    h.svc.Engine().Layout(doc.Components, doc.PageCount),
	})
}

func (h *DocumentHandler) log(c *gin.Context) *slog.Logger {
	if logger := middleware.LoggerFromContext(c); logger != nil {
		return logger
	}
	return h.logger
}

// versionOf 优先使用请求体中的 version，其次是 ?version=；0 表示不做乐观锁校验。
func versionOf(c *gin.Context, bodyVersion int) int {
	if bodyVersion > 0 {
		return bodyVersion
	}
	v, err := strconv.Atoi(c.Query("version"))
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, editor.ErrVersionConflict):
		return "conflict"
	case statusOf(err) < http.StatusInternalServerError:
		return "rejected"
	default:
		return "error"
	}
}
