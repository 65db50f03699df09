package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MINIO_ACCESS_KEY_ID", "minio")
	t.Setenv("MINIO_SECRET_ACCESS_KEY", "minio-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, "native", cfg.Export.Renderer)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 50, cfg.Editor.HistoryDepth)
	assert.Equal(t, "cv-documents", cfg.MinIO.Bucket)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("API_PORT", "9090")
	t.Setenv("EXPORT_RENDERER", "chromium")
	t.Setenv("JWT_ACCESS_TOKEN_TTL", "5m")
	t.Setenv("API_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, "chromium", cfg.Export.Renderer)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.API.Origins())
}

func TestLoad_Validation(t *testing.T) {
	t.Run("missing minio credentials", func(t *testing.T) {
		_, err := Load()
		assert.ErrorContains(t, err, "minio access key id is required")
	})

	t.Run("zero pool size", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("DATABASE_MAX_OPEN_CONNS", "0")
		_, err := Load()
		assert.ErrorContains(t, err, "database pool sizes must be positive")
	})

	t.Run("unknown renderer", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("EXPORT_RENDERER", "wkhtmltopdf")
		_, err := Load()
		assert.ErrorContains(t, err, "unsupported export renderer")
	})
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", d.DSN())
}
