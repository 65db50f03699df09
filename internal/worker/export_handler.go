package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"

	"cvCanvas/internal/cv"
	"cvCanvas/internal/database"
	"cvCanvas/internal/editor"
	"cvCanvas/internal/errcode"
	"cvCanvas/internal/layout"
	"cvCanvas/internal/metrics"
	"cvCanvas/internal/notify"
	"cvCanvas/internal/pdf"
	"cvCanvas/internal/storage"
	"cvCanvas/internal/tasks"
)

// Documents 是导出任务需要的文档存取能力，由 editor.GormStore 实现。
type Documents interface {
	LoadAny(ctx context.Context, id string) (cv.Document, error)
	ExportState(ctx context.Context, ownerID uint, id string) (editor.ExportState, error)
	SetExportState(ctx context.Context, id string, state editor.ExportState) error
}

// Objects 是导出任务需要的对象存储能力，由 storage.Client 实现。
type Objects interface {
	ReadObject(ctx context.Context, objectKey string) ([]byte, error)
	UploadFile(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

// ExportHandler 消费 export:pdf 任务：按当前分页渲染 PDF，上传并通知前端。
type ExportHandler struct {
	docs     Documents
	objects  Objects
	pub      notify.Publisher
	engine   *layout.Engine
	renderer pdf.Renderer
	logger   *slog.Logger
}

func NewExportHandler(
	docs Documents,
	objects Objects,
	pub notify.Publisher,
	engine *layout.Engine,
	renderer pdf.Renderer,
	logger *slog.Logger,
) *ExportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportHandler{
		docs:     docs,
		objects:  objects,
		pub:      pub,
		engine:   engine,
		renderer: renderer,
		logger:   logger,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *ExportHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	payload, err := tasks.ParseExportPDF(t)
	if err != nil {
		h.logger.Error("invalid export payload", slog.Any("error", err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.String("document_id", payload.DocumentID),
		slog.Int("version", payload.Version),
		slog.Uint64("user_id", uint64(payload.OwnerID)),
	)
	log.Info("Starting PDF export task...")

	doc, err := h.docs.LoadAny(ctx, payload.DocumentID)
	if errors.Is(err, editor.ErrNotFound) {
		log.Warn("document not found, skipping task")
		return nil
	}
	if err != nil {
		log.Error("load document failed", slog.Any("error", err))
		return err
	}
	if doc.OwnerID != payload.OwnerID {
		log.Warn("document owner mismatch, skipping task")
		return nil
	}
	if doc.Version != payload.Version {
		// 更新的版本会有自己的任务。
		log.Info("document changed since export was queued, skipping task", slog.Int("current_version", doc.Version))
		return nil
	}

	previous, err := h.docs.ExportState(ctx, doc.OwnerID, doc.ID)
	if err != nil {
		log.Error("load export state failed", slog.Any("error", err))
		return err
	}

	defer func() {
		if retErr == nil || !isFinalAsynqAttempt(ctx) {
			return
		}
		failed := editor.ExportState{Status: database.ExportFailed, Version: doc.Version, ObjectKey: previous.ObjectKey}
		if err := h.docs.SetExportState(ctx, doc.ID, failed); err != nil {
			log.Error("mark export failed", slog.Any("error", err))
		}
		h.publish(ctx, log, doc.OwnerID, notify.Message{
			Status:        notify.StatusFailed,
			DocumentID:    doc.ID,
			Version:       doc.Version,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  errcode.Message(errcode.SystemError) + ": " + strings.TrimSpace(retErr.Error()),
		})
	}()

	processing := editor.ExportState{Status: database.ExportProcessing, Version: doc.Version, ObjectKey: previous.ObjectKey}
	if err := h.docs.SetExportState(ctx, doc.ID, processing); err != nil {
		log.Error("mark export processing failed", slog.Any("error", err))
		return err
	}

	photos, missing, err := h.loadPhotos(ctx, doc)
	if err != nil {
		log.Error("load photos failed", slog.Any("error", err))
		return err
	}

	pages := h.engine.Layout(doc.Components, doc.PageCount)
	data, err := h.renderer.Render(ctx, pdf.Input{Document: doc, Pages: pages, Photos: photos})
	if err != nil {
		log.Error("render pdf failed", slog.Any("error", err))
		return err
	}

	objectKey := storage.ExportKey(doc.OwnerID, doc.ID, doc.Version)
	if _, err := h.objects.UploadFile(ctx, objectKey, bytes.NewReader(data), int64(len(data)), "application/pdf"); err != nil {
		log.Error("upload pdf to minio failed", slog.Any("error", err))
		return err
	}

	done := editor.ExportState{Status: database.ExportCompleted, Version: doc.Version, ObjectKey: objectKey}
	if err := h.docs.SetExportState(ctx, doc.ID, done); err != nil {
		log.Error("mark export completed failed", slog.Any("error", err))
		return err
	}
	if previous.ObjectKey != "" && previous.ObjectKey != objectKey {
		if err := h.objects.DeleteObject(ctx, previous.ObjectKey); err != nil {
			log.Warn("delete previous export failed", slog.String("object_key", previous.ObjectKey), slog.Any("error", err))
		}
	}
	metrics.ObserveExportPages(len(pages))

	msg := notify.Message{
		Status:        notify.StatusCompleted,
		DocumentID:    doc.ID,
		Version:       doc.Version,
		Pages:         len(pages),
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}
	for _, p := range pages {
		if p.Overflowing {
			msg.OverflowingPages = append(msg.OverflowingPages, p.Number)
		}
	}
	switch {
	case len(missing) > 0:
		msg.ErrorCode = errcode.ResourceMissing
		msg.MissingKeys = missing
	case len(msg.OverflowingPages) > 0:
		msg.ErrorCode = errcode.PageOverflow
	}
	msg.ErrorMessage = errcode.Message(msg.ErrorCode)
	if errcode.IsWarning(msg.ErrorCode) {
		log.Warn("pdf generated with warnings",
			slog.Int("error_code", msg.ErrorCode),
			slog.Any("missing_keys", missing),
			slog.Any("overflowing_pages", msg.OverflowingPages),
		)
	}
	h.publish(ctx, log, doc.OwnerID, msg)

	log.Info("PDF export task completed successfully.", slog.Int("pages", len(pages)), slog.Int("bytes", len(data)))
	return nil
}

// loadPhotos 读取 header 引用的图片；不存在的对象记入 missing，其余错误中断任务。
func (h *ExportHandler) loadPhotos(ctx context.Context, doc cv.Document) (map[string][]byte, []string, error) {
	photos := make(map[string][]byte)
	var missing []string
	for _, key := range pdf.PhotoKeys(doc) {
		if !storage.IsAssetKeyOf(doc.OwnerID, key) {
			missing = append(missing, key)
			continue
		}
		data, err := h.objects.ReadObject(ctx, key)
		if storage.IsNoSuchKey(err) {
			missing = append(missing, key)
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read photo %s: %w", key, err)
		}
		photos[key] = data
	}
	return photos, missing, nil
}

func (h *ExportHandler) publish(ctx context.Context, log *slog.Logger, userID uint, msg notify.Message) {
	msg.Event = tasks.TypeExportPDF
	if err := notify.Send(ctx, h.pub, userID, msg); err != nil {
		log.Error("publish export notification failed", slog.Any("error", err))
	}
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
