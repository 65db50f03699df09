package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 导出状态。
const (
	ExportIdle       = ""
	ExportPending    = "pending"
	ExportProcessing = "processing"
	ExportCompleted  = "completed"
	ExportFailed     = "failed"
)

// User 表示系统中的账号信息。
type User struct {
	gorm.Model
	Username     string     `gorm:"uniqueIndex;size:64"`
	PasswordHash string     `gorm:"size:255"`
	Documents    []Document `gorm:"constraint:OnDelete:CASCADE"`
}

// Document 表示一份简历文档，组件列表与样式设置以 JSONB 存储。
type Document struct {
	ID         string         `gorm:"primaryKey;size:36"`
	UserID     uint           `gorm:"index"`
	Title      string         `gorm:"size:255"`
	TemplateID string         `gorm:"size:64"`
	Components datatypes.JSON `gorm:"type:jsonb"`
	Settings   datatypes.JSON `gorm:"type:jsonb"`
	PageCount  int
	Version    int `gorm:"not null;default:1"`

	ExportStatus    string `gorm:"size:32"`
	ExportedVersion int
	PdfObjectKey    string `gorm:"size:512"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// Asset 记录用户上传的图片资源（头像照片）。
type Asset struct {
	gorm.Model
	UserID      uint   `gorm:"index"`
	ObjectKey   string `gorm:"uniqueIndex;size:512"`
	ContentType string `gorm:"size:64"`
	Size        int64
}
