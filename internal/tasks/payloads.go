package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeExportPDF = "export:pdf"
)

// QueueExport 是导出任务使用的队列。
const QueueExport = "export"

// ExportPDFPayload 描述导出某一版本文档所需的信息。
type ExportPDFPayload struct {
	DocumentID    string `json:"document_id"`
	OwnerID       uint   `json:"owner_id"`
	Version       int    `json:"version"`
	CorrelationID string `json:"correlation_id"`
}

// NewExportPDFTask 构造导出任务。同一文档同一版本只会排队一次。
func NewExportPDFTask(p ExportPDFPayload, maxRetry int) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeExportPDF, payload,
		asynq.TaskID(ExportTaskID(p.DocumentID, p.Version)),
		asynq.Queue(QueueExport),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(2*time.Minute),
		asynq.Retention(time.Hour),
	), nil
}

// ExportTaskID 是导出任务的去重 ID。
func ExportTaskID(documentID string, version int) string {
	return fmt.Sprintf("export:%s:v%d", documentID, version)
}

// ParseExportPDF 解码任务载荷。
func ParseExportPDF(t *asynq.Task) (ExportPDFPayload, error) {
	var p ExportPDFPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return ExportPDFPayload{}, fmt.Errorf("decode %s payload: %w", t.Type(), err)
	}
	if p.DocumentID == "" {
		return ExportPDFPayload{}, fmt.Errorf("%s payload: document id missing", t.Type())
	}
	return p, nil
}
