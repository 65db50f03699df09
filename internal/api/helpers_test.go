package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvCanvas/internal/api/middleware"
	"cvCanvas/internal/database"
	"cvCanvas/internal/editor"
	"cvCanvas/internal/layout"
	"cvCanvas/internal/templates"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:api_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func newTestService(t *testing.T, db *gorm.DB) (*editor.Service, *editor.GormStore) {
	t.Helper()
	store := editor.NewGormStore(db)
	n := 0
	svc := editor.NewService(store, layout.NewEngine(), templates.MustBuiltin(),
		editor.WithHistory(editor.NewMemoryHistory(10)),
		editor.WithLogger(discardLogger),
		editor.WithIDFunc(func() string {
			n++
			return fmt.Sprintf("doc-%d", n)
		}),
		editor.WithClock(func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }),
	)
	return svc, store
}

// newAuthedRouter 返回一个已把 userID 注入上下文的测试路由。
func newAuthedRouter(userID uint) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Next()
	})
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
