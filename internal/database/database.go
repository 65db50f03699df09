package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cvCanvas/internal/config"
)

// InitDatabase 使用配置初始化 PostgreSQL 连接，并返回 GORM 数据库实例。
// 超过 200ms 的查询按慢查询记录。
func InitDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.New(log.New(os.Stdout, "", log.LstdFlags), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap db: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// Migrate 创建或更新全部表结构。
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&User{}, &Document{}, &Asset{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// ResetStuckExports 将长时间停留在 pending/processing 的导出标记为 failed，返回受影响的文档数。
// worker 异常退出时任务状态不会再被推进，需要人工执行。
func ResetStuckExports(ctx context.Context, db *gorm.DB, olderThan time.Duration, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Model(&Document{}).
		Where("export_status IN ?", []string{ExportPending, ExportProcessing}).
		Where("updated_at < ?", now.Add(-olderThan)).
		UpdateColumn("export_status", ExportFailed)
	if res.Error != nil {
		return 0, fmt.Errorf("reset stuck exports: %w", res.Error)
	}
	return res.RowsAffected, nil
}
