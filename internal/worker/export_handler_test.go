package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvCanvas/internal/cv"
	"cvCanvas/internal/database"
	"cvCanvas/internal/editor"
	"cvCanvas/internal/errcode"
	"cvCanvas/internal/layout"
	"cvCanvas/internal/notify"
	"cvCanvas/internal/pdf"
	"cvCanvas/internal/storage"
	"cvCanvas/internal/tasks"
)

type fakeObjects struct {
	data    map[string][]byte
	deleted []string
}

func (f *fakeObjects) ReadObject(_ context.Context, key string) ([]byte, error) {
	b, ok := f.data[key]
	if !ok {
		return nil, minio.ErrorResponse{Code: "NoSuchKey", Key: key}
	}
	return b, nil
}

func (f *fakeObjects) UploadFile(_ context.Context, key string, r io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.data[key] = b
	return &minio.UploadInfo{Key: key, Size: int64(len(b))}, nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.data, key)
	return nil
}

type fakePublisher struct {
	channels []string
	messages []notify.Message
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	var msg notify.Message
	if err := json.Unmarshal(message.([]byte), &msg); err != nil {
		return redis.NewIntResult(0, err)
	}
	f.channels = append(f.channels, channel)
	f.messages = append(f.messages, msg)
	return redis.NewIntResult(1, nil)
}

type fakeRenderer struct {
	input pdf.Input
	err   error
}

func (f *fakeRenderer) Render(_ context.Context, in pdf.Input) ([]byte, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.3 fake"), nil
}

type harness struct {
	store    *editor.GormStore
	objects  *fakeObjects
	pub      *fakePublisher
	renderer *fakeRenderer
	handler  *ExportHandler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	require.NoError(t, db.Create(&database.User{Username: "ada", PasswordHash: "x"}).Error)

	h := &harness{
		store:    editor.NewGormStore(db),
		objects:  &fakeObjects{data: map[string][]byte{}},
		pub:      &fakePublisher{},
		renderer: &fakeRenderer{},
	}
	h.handler = NewExportHandler(h.store, h.objects, h.pub, layout.NewEngine(), h.renderer, nil)
	return h
}

func seedDocument(t *testing.T, store *editor.GormStore, photo string) cv.Document {
	t.Helper()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	doc := cv.Document{
		ID:         "doc-1",
		OwnerID:    1,
		Title:      "Ada",
		TemplateID: "modern",
		Components: []cv.Component{
			{ID: "h", Type: cv.TypeHeader, Order: 0, Visible: true, PageNumber: 1,
				Data: cv.HeaderData{FullName: "Ada Lovelace", Photo: photo}},
			{ID: "p", Type: cv.TypeProjects, Order: 0, Visible: true, PageNumber: 2,
				Data: cv.ProjectsData{Items: []cv.ProjectItem{}}},
		},
		Version:   3,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.Create(context.Background(), doc))
	return doc
}

func exportTask(t *testing.T, doc cv.Document) *asynq.Task {
	t.Helper()
	task, err := tasks.NewExportPDFTask(tasks.ExportPDFPayload{
		DocumentID:    doc.ID,
		OwnerID:       doc.OwnerID,
		Version:       doc.Version,
		CorrelationID: "corr-1",
	}, 3)
	require.NoError(t, err)
	return task
}

func TestProcessTask_Success(t *testing.T) {
	h := newHarness(t)
	photo := storage.AssetKey(1, "avatar", ".png")
	h.objects.data[photo] = []byte("png-bytes")
	doc := seedDocument(t, h.store, photo)

	require.NoError(t, h.handler.ProcessTask(context.Background(), exportTask(t, doc)))

	key := storage.ExportKey(1, doc.ID, doc.Version)
	assert.Equal(t, []byte("%PDF-1.3 fake"), h.objects.data[key])
	assert.Len(t, h.renderer.input.Pages, 2)
	assert.Equal(t, []byte("png-bytes"), h.renderer.input.Photos[photo])

	state, err := h.store.ExportState(context.Background(), 1, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, database.ExportCompleted, state.Status)
	assert.Equal(t, doc.Version, state.Version)
	assert.Equal(t, key, state.ObjectKey)

	require.Len(t, h.pub.messages, 1)
	msg := h.pub.messages[0]
	assert.Equal(t, notify.Channel(1), h.pub.channels[0])
	assert.Equal(t, tasks.TypeExportPDF, msg.Event)
	assert.Equal(t, notify.StatusCompleted, msg.Status)
	assert.Equal(t, errcode.OK, msg.ErrorCode)
	assert.Equal(t, 2, msg.Pages)
	assert.Equal(t, "corr-1", msg.CorrelationID)
}

func TestProcessTask_MissingPhotoStillExports(t *testing.T) {
	h := newHarness(t)
	photo := storage.AssetKey(1, "gone", ".jpg")
	doc := seedDocument(t, h.store, photo)

	require.NoError(t, h.handler.ProcessTask(context.Background(), exportTask(t, doc)))

	require.Len(t, h.pub.messages, 1)
	msg := h.pub.messages[0]
	assert.Equal(t, errcode.ResourceMissing, msg.ErrorCode)
	assert.Equal(t, []string{photo}, msg.MissingKeys)
	assert.Empty(t, h.renderer.input.Photos)
}

func TestProcessTask_ForeignPhotoIsNotRead(t *testing.T) {
	h := newHarness(t)
	foreign := storage.AssetKey(2, "other", ".png")
	h.objects.data[foreign] = []byte("secret")
	doc := seedDocument(t, h.store, foreign)

	require.NoError(t, h.handler.ProcessTask(context.Background(), exportTask(t, doc)))

	assert.Empty(t, h.renderer.input.Photos)
	assert.Equal(t, []string{foreign}, h.pub.messages[0].MissingKeys)
}

func TestProcessTask_StaleVersionSkipped(t *testing.T) {
	h := newHarness(t)
	doc := seedDocument(t, h.store, "")
	stale := doc
	stale.Version = 2

	require.NoError(t, h.handler.ProcessTask(context.Background(), exportTask(t, stale)))

	assert.Empty(t, h.objects.data)
	assert.Empty(t, h.pub.messages)
}

func TestProcessTask_MissingDocumentSkipped(t *testing.T) {
	h := newHarness(t)

	err := h.handler.ProcessTask(context.Background(), exportTask(t, cv.Document{ID: "nope", OwnerID: 1, Version: 1}))

	require.NoError(t, err)
	assert.Empty(t, h.pub.messages)
}

func TestProcessTask_InvalidPayloadSkipsRetry(t *testing.T) {
	h := newHarness(t)

	err := h.handler.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeExportPDF, []byte(`{"version":1}`)))

	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestProcessTask_ReplacesPreviousExport(t *testing.T) {
	h := newHarness(t)
	doc := seedDocument(t, h.store, "")
	old := storage.ExportKey(1, doc.ID, 1)
	h.objects.data[old] = []byte("old")
	require.NoError(t, h.store.SetExportState(context.Background(), doc.ID,
		editor.ExportState{Status: database.ExportCompleted, Version: 1, ObjectKey: old}))

	require.NoError(t, h.handler.ProcessTask(context.Background(), exportTask(t, doc)))

	assert.Equal(t, []string{old}, h.objects.deleted)
	assert.NotContains(t, h.objects.data, old)
}

func TestProcessTask_RenderErrorRetries(t *testing.T) {
	h := newHarness(t)
	doc := seedDocument(t, h.store, "")
	h.renderer.err = errors.New("boom")

	err := h.handler.ProcessTask(context.Background(), exportTask(t, doc))

	require.Error(t, err)
	state, stateErr := h.store.ExportState(context.Background(), 1, doc.ID)
	require.NoError(t, stateErr)
	assert.Equal(t, database.ExportProcessing, state.Status)
	// 非最后一次重试不通知前端。
	assert.Empty(t, h.pub.messages)
}

func TestProcessTask_WarnsAboutOverflowingPages(t *testing.T) {
	h := newHarness(t)
	items := make([]cv.ExperienceItem, 10)
	for i := range items {
		items[i] = cv.ExperienceItem{ID: fmt.Sprintf("e%d", i), Company: "Acme"}
	}
	doc := cv.Document{
		ID:      "doc-1",
		OwnerID: 1,
		Title:   "Ada",
		Components: []cv.Component{
			{ID: "x", Type: cv.TypeExperience, Visible: true, PageNumber: 1, Data: cv.ExperienceData{Items: items}},
		},
		Version: 1,
	}
	require.NoError(t, h.store.Create(context.Background(), doc))

	require.NoError(t, h.handler.ProcessTask(context.Background(), exportTask(t, doc)))

	require.Len(t, h.pub.messages, 1)
	msg := h.pub.messages[0]
	assert.Equal(t, notify.StatusCompleted, msg.Status)
	assert.Equal(t, errcode.PageOverflow, msg.ErrorCode)
	assert.Equal(t, []int{1}, msg.OverflowingPages)
	assert.Equal(t, errcode.Message(errcode.PageOverflow), msg.ErrorMessage)
}
