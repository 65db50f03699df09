package api

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"cvCanvas/internal/database"
)

var errAssetNotFound = errors.New("asset not found")

type assetStore interface {
	Create(ctx context.Context, asset database.Asset) error
	Count(ctx context.Context, userID uint) (int64, error)
	List(ctx context.Context, userID uint, limit int) ([]database.Asset, error)
	Delete(ctx context.Context, userID uint, objectKey string) error
}

type gormAssetStore struct {
	db *gorm.DB
}

func newGormAssetStore(db *gorm.DB) *gormAssetStore {
	return &gormAssetStore{db: db}
}

func (s *gormAssetStore) Create(ctx context.Context, asset database.Asset) error {
	if err := s.db.WithContext(ctx).Create(&asset).Error; err != nil {
		return fmt.Errorf("create asset: %w", err)
	}
	return nil
}

func (s *gormAssetStore) Count(ctx context.Context, userID uint) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&database.Asset{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count assets: %w", err)
	}
	return n, nil
}

func (s *gormAssetStore) List(ctx context.Context, userID uint, limit int) ([]database.Asset, error) {
	var assets []database.Asset
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return assets, nil
}

// Delete 永久删除记录，避免软删除占用唯一索引。
func (s *gormAssetStore) Delete(ctx context.Context, userID uint, objectKey string) error {
	res := s.db.WithContext(ctx).Unscoped().
		Where("user_id = ? AND object_key = ?", userID, objectKey).
		Delete(&database.Asset{})
	if res.Error != nil {
		return fmt.Errorf("delete asset: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errAssetNotFound
	}
	return nil
}
