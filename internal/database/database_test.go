package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestResetStuckExports(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:reset_exports?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-2 * time.Hour)
	docs := []Document{
		{ID: "stuck-pending", ExportStatus: ExportPending, UpdatedAt: old},
		{ID: "stuck-processing", ExportStatus: ExportProcessing, UpdatedAt: old},
		{ID: "fresh", ExportStatus: ExportProcessing, UpdatedAt: now.Add(-time.Minute)},
		{ID: "done", ExportStatus: ExportCompleted, UpdatedAt: old},
	}
	require.NoError(t, db.Create(&docs).Error)

	n, err := ResetStuckExports(context.Background(), db, time.Hour, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	status := func(id string) string {
		var d Document
		require.NoError(t, db.First(&d, "id = ?", id).Error)
		return d.ExportStatus
	}
	assert.Equal(t, ExportFailed, status("stuck-pending"))
	assert.Equal(t, ExportFailed, status("stuck-processing"))
	assert.Equal(t, ExportProcessing, status("fresh"))
	assert.Equal(t, ExportCompleted, status("done"))
}
