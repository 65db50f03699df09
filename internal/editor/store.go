package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cvCanvas/internal/cv"
	"cvCanvas/internal/database"
)

// Store 持久化文档快照。Save 只在数据库中的版本等于 expectedVersion 时成功。
type Store interface {
	Create(ctx context.Context, doc cv.Document) error
	Load(ctx context.Context, ownerID uint, id string) (cv.Document, error)
	List(ctx context.Context, ownerID uint) ([]cv.Document, error)
	Count(ctx context.Context, ownerID uint) (int64, error)
	Save(ctx context.Context, doc cv.Document, expectedVersion int) error
	Delete(ctx context.Context, ownerID uint, id string) error
}

// ExportState 描述文档最近一次 PDF 导出。
type ExportState struct {
	Status    string `json:"status"`
	Version   int    `json:"version"`
	ObjectKey string `json:"-"`
}

// GormStore 基于 GORM 的文档存储。
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, doc cv.Document) error {
	model, err := toModel(doc)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (s *GormStore) Load(ctx context.Context, ownerID uint, id string) (cv.Document, error) {
	var model database.Document
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return cv.Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return cv.Document{}, fmt.Errorf("load document: %w", err)
	}
	return fromModel(model)
}

// LoadAny 不校验归属，供后台任务使用。
func (s *GormStore) LoadAny(ctx context.Context, id string) (cv.Document, error) {
	var model database.Document
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return cv.Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return cv.Document{}, fmt.Errorf("load document: %w", err)
	}
	return fromModel(model)
}

func (s *GormStore) List(ctx context.Context, ownerID uint) ([]cv.Document, error) {
	var models []database.Document
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("updated_at DESC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	docs := make([]cv.Document, 0, len(models))
	for _, m := range models {
		doc, err := fromModel(m)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *GormStore) Count(ctx context.Context, ownerID uint) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).
		Model(&database.Document{}).
		Where("user_id = ?", ownerID).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

func (s *GormStore) Save(ctx context.Context, doc cv.Document, expectedVersion int) error {
	model, err := toModel(doc)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).
		Model(&database.Document{}).
		Where("id = ? AND user_id = ? AND version = ?", doc.ID, doc.OwnerID, expectedVersion).
		Updates(map[string]any{
			"title":       model.Title,
			"template_id": model.TemplateID,
			"components":  model.Components,
			"settings":    model.Settings,
			"page_count":  model.PageCount,
			"version":     model.Version,
			"updated_at":  model.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("save document: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var n int64
	if err := s.db.WithContext(ctx).
		Model(&database.Document{}).
		Where("id = ? AND user_id = ?", doc.ID, doc.OwnerID).
		Count(&n).Error; err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, doc.ID)
	}
	return fmt.Errorf("%w: %s expected v%d", ErrVersionConflict, doc.ID, expectedVersion)
}

func (s *GormStore) Delete(ctx context.Context, ownerID uint, id string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		Delete(&database.Document{})
	if res.Error != nil {
		return fmt.Errorf("delete document: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// ExportState 读取导出状态。
func (s *GormStore) ExportState(ctx context.Context, ownerID uint, id string) (ExportState, error) {
	var model database.Document
	err := s.db.WithContext(ctx).
		Select("id", "export_status", "exported_version", "pdf_object_key").
		Where("id = ? AND user_id = ?", id, ownerID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ExportState{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return ExportState{}, fmt.Errorf("load export state: %w", err)
	}
	return ExportState{
		Status:    model.ExportStatus,
		Version:   model.ExportedVersion,
		ObjectKey: model.PdfObjectKey,
	}, nil
}

// SetExportState 更新导出状态，不修改文档版本。
func (s *GormStore) SetExportState(ctx context.Context, id string, state ExportState) error {
	res := s.db.WithContext(ctx).
		Model(&database.Document{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"export_status":    state.Status,
			"exported_version": state.Version,
			"pdf_object_key":   state.ObjectKey,
		})
	if res.Error != nil {
		return fmt.Errorf("update export state: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func toModel(doc cv.Document) (database.Document, error) {
	components := doc.Components
	if components == nil {
		components = []cv.Component{}
	}
	compJSON, err := json.Marshal(components)
	if err != nil {
		return database.Document{}, fmt.Errorf("encode components: %w", err)
	}
	settingsJSON, err := json.Marshal(doc.Settings)
	if err != nil {
		return database.Document{}, fmt.Errorf("encode settings: %w", err)
	}

	return database.Document{
		ID:         doc.ID,
		UserID:     doc.OwnerID,
		Title:      doc.Title,
		TemplateID: doc.TemplateID,
		Components: datatypes.JSON(compJSON),
		Settings:   datatypes.JSON(settingsJSON),
		PageCount:  doc.PageCount,
		Version:    doc.Version,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}, nil
}

func fromModel(m database.Document) (cv.Document, error) {
	doc := cv.Document{
		ID:         m.ID,
		OwnerID:    m.UserID,
		Title:      m.Title,
		TemplateID: m.TemplateID,
		Components: []cv.Component{},
		PageCount:  m.PageCount,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
		Version:    m.Version,
	}
	if len(m.Components) > 0 {
		if err := json.Unmarshal(m.Components, &doc.Components); err != nil {
			return cv.Document{}, fmt.Errorf("decode components of %s: %w", m.ID, err)
		}
	}
	if len(m.Settings) > 0 {
		if err := json.Unmarshal(m.Settings, &doc.Settings); err != nil {
			return cv.Document{}, fmt.Errorf("decode settings of %s: %w", m.ID, err)
		}
	}
	return doc, nil
}
