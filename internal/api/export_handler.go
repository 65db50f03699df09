package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"cvCanvas/internal/api/middleware"
	"cvCanvas/internal/database"
	"cvCanvas/internal/editor"
	"cvCanvas/internal/tasks"
)

// TaskEnqueuer 由 asynq.Client 实现。
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ExportStates 由 editor.GormStore 实现。
type ExportStates interface {
	ExportState(ctx context.Context, ownerID uint, id string) (editor.ExportState, error)
	SetExportState(ctx context.Context, id string, state editor.ExportState) error
}

// Presigner 由 storage.Client 实现。
type Presigner interface {
	GeneratePresignedURL(ctx context.Context, objectKey string, ttl time.Duration, filename string) (string, error)
}

// ExportHandler 负责 PDF 导出任务的投递与状态查询。
type ExportHandler struct {
	svc      *editor.Service
	states   ExportStates
	queue    TaskEnqueuer
	links    Presigner
	linkTTL  time.Duration
	maxRetry int
	logger   *slog.Logger
}

func NewExportHandler(svc *editor.Service, states ExportStates, queue TaskEnqueuer, links Presigner, linkTTL time.Duration, maxRetry int, logger *slog.Logger) *ExportHandler {
	if linkTTL <= 0 {
		linkTTL = 5 * time.Minute
	}
	return &ExportHandler{
		svc:      svc,
		states:   states,
		queue:    queue,
		links:    links,
		linkTTL:  linkTTL,
		maxRetry: maxRetry,
		logger:   logger,
	}
}

type exportStatusResponse struct {
	Status         string `json:"status"`
	Version        int    `json:"version"`
	CurrentVersion int    `json:"currentVersion"`
	Stale          bool   `json:"stale"`
	URL            string `json:"url,omitempty"`
	TaskID         string `json:"taskId,omitempty"`
}

// POST /v1/documents/:id/export
// 同一文档同一版本只排队一次；该版本已导出时直接返回现有结果。
func (h *ExportHandler) Enqueue(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()
	log := middleware.LoggerFromContext(c)

	doc, err := h.svc.Get(ctx, userID, c.Param("id"))
	if err != nil {
		respondError(c, log, err)
		return
	}
	state, err := h.states.ExportState(ctx, userID, doc.ID)
	if err != nil {
		respondError(c, log, err)
		return
	}
	if state.Status == database.ExportCompleted && state.Version == doc.Version {
		h.replyStatus(c, http.StatusOK, doc.Title, doc.Version, state)
		return
	}

	task, err := tasks.NewExportPDFTask(tasks.ExportPDFPayload{
		DocumentID:    doc.ID,
		OwnerID:       userID,
		Version:       doc.Version,
		CorrelationID: middleware.GetCorrelationID(c),
	}, h.maxRetry)
	if err != nil {
		log.Error("build export task failed", slog.Any("error", err))
		Internal(c, "failed to create task")
		return
	}

	taskID := tasks.ExportTaskID(doc.ID, doc.Version)
	if _, err := h.queue.EnqueueContext(ctx, task); err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		log.Error("enqueue export task failed", slog.Any("error", err))
		Internal(c, "failed to enqueue pdf export")
		return
	}

	pending := editor.ExportState{Status: database.ExportPending, Version: doc.Version, ObjectKey: state.ObjectKey}
	if err := h.states.SetExportState(ctx, doc.ID, pending); err != nil {
		log.Error("mark export pending failed", slog.Any("error", err))
		Internal(c, "failed to update export state")
		return
	}

	log.Info("export task queued", slog.String("task_id", taskID), slog.Int("version", doc.Version))
	c.JSON(http.StatusAccepted, exportStatusResponse{
		Status:         database.ExportPending,
		Version:        doc.Version,
		CurrentVersion: doc.Version,
		TaskID:         taskID,
	})
}

// GET /v1/documents/:id/export
func (h *ExportHandler) Status(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()
	log := middleware.LoggerFromContext(c)

	doc, err := h.svc.Get(ctx, userID, c.Param("id"))
	if err != nil {
		respondError(c, log, err)
		return
	}
	state, err := h.states.ExportState(ctx, userID, doc.ID)
	if err != nil {
		respondError(c, log, err)
		return
	}
	h.replyStatus(c, http.StatusOK, doc.Title, doc.Version, state)
}

func (h *ExportHandler) replyStatus(c *gin.Context, status int, title string, currentVersion int, state editor.ExportState) {
	resp := exportStatusResponse{
		Status:         state.Status,
		Version:        state.Version,
		CurrentVersion: currentVersion,
		Stale:          state.Version != 0 && state.Version != currentVersion,
	}
	if resp.Status == database.ExportIdle {
		resp.Status = "idle"
	}
	if state.ObjectKey != "" {
		url, err := h.links.GeneratePresignedURL(c.Request.Context(), state.ObjectKey, h.linkTTL, pdfFilename(title))
		if err != nil {
			middleware.LoggerFromContext(c).Error("generate export link failed", slog.Any("error", err))
			Internal(c, "failed to generate download link")
			return
		}
		resp.URL = url
	}
	c.JSON(status, resp)
}

// pdfFilename 生成下载文件名，去掉路径分隔符与引号。
func pdfFilename(title string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', '\r', '\n':
			return '-'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = "cv"
	}
	return name + ".pdf"
}
