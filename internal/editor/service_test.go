package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvCanvas/internal/cv"
	"cvCanvas/internal/database"
	"cvCanvas/internal/layout"
	"cvCanvas/internal/templates"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func newTestService(t *testing.T, opts ...Option) (*Service, *GormStore) {
	t.Helper()
	store := NewGormStore(newTestDB(t))

	n := 0
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	base := []Option{
		WithHistory(NewMemoryHistory(10)),
		WithIDFunc(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
		WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}),
	}
	svc := NewService(store, layout.NewEngine(), templates.MustBuiltin(), append(base, opts...)...)
	return svc, store
}

func types(components []cv.Component) []cv.Type {
	out := make([]cv.Type, 0, len(components))
	for _, c := range components {
		out = append(out, c.Type)
	}
	return out
}

func TestCreate_FromTemplate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, 1, CreateInput{Title: "Backend CV", TemplateID: "modern"})
	require.NoError(t, err)

	assert.Equal(t, 1, doc.Version)
	assert.Equal(t, "modern", doc.TemplateID)
	assert.Equal(t, []cv.Type{
		cv.TypeHeader, cv.TypeContact, cv.TypeSummary, cv.TypeExperience, cv.TypeEducation, cv.TypeSkills,
	}, types(doc.Components))
	for i, c := range doc.Components {
		assert.Equal(t, 1, c.PageNumber)
		assert.Equal(t, i, c.Order)
		assert.True(t, c.Visible)
	}

	loaded, err := svc.Get(ctx, 1, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Components, loaded.Components)
	assert.Equal(t, doc.Settings, loaded.Settings)
}

func TestCreate_UnknownTemplate(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Create(context.Background(), 1, CreateInput{TemplateID: "retro"})
	assert.True(t, errors.Is(err, templates.ErrNotFound))
	assert.True(t, IsClientError(err))
}

func TestCreate_DocumentLimit(t *testing.T) {
	svc, _ := newTestService(t, WithMaxDocuments(1))
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, CreateInput{TemplateID: "minimal"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, 1, CreateInput{TemplateID: "minimal"})
	assert.True(t, errors.Is(err, ErrDocumentLimit))

	_, err = svc.Create(ctx, 2, CreateInput{TemplateID: "minimal"})
	assert.NoError(t, err)
}

func TestGet_OtherOwner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, 1, CreateInput{TemplateID: "minimal"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, 2, doc.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAddComponent_UsesPlacementAdvice(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, 1, CreateInput{TemplateID: "modern"})
	require.NoError(t, err)

	// 620px used on page 1; an empty experience (150px) still fits under the margin.
	doc, added, err := svc.AddComponent(ctx, 1, doc.ID, doc.Version, cv.TypeExperience, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, added.PageNumber)
	assert.Equal(t, 6, added.Order)
	assert.Equal(t, 2, doc.Version)

	// projects (180px) would reach 950px, past 0.85 of the page.
	doc, added, err = svc.AddComponent(ctx, 1, doc.ID, doc.Version, cv.TypeProjects, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, added.PageNumber)
	assert.Equal(t, 0, added.Order)
	assert.Equal(t, 3, doc.Version)

	_, views, err := svc.Pages(ctx, 1, doc.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Len(t, views[1].Components, 1)
}

func TestAddComponent_RejectsMismatchedPayload(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc, err := svc.Create(ctx, 1, CreateInput{TemplateID: "minimal"})
	require.NoError(t, err)

	_, _, err = svc.AddComponent(ctx, 1, doc.ID, 0, cv.TypeSummary, cv.SkillsData{})
	assert.True(t, errors.Is(err, ErrInvalidPayload))

	_, _, err = svc.AddComponent(ctx, 1, doc.ID, 0, cv.Type("timeline"), nil)
	assert.True(t, errors.Is(err, cv.ErrUnknownType))
}

func TestMutate_VersionConflict(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	doc, err := svc.Create(ctx, 1, CreateInput{TemplateID: "minimal"})
	require.NoError(t, err)

	title := "Renamed"
	updated, err := svc.UpdateMeta(ctx, 1, doc.ID, 1, MetaPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)

	_, err = svc.UpdateMeta(ctx, 1, doc.ID, 1, MetaPatch{Title: &title})
	assert.True(t, errors.Is(err, ErrVersionConflict))

	stale := doc.Touch(time.Now())
	err = store.Save(ctx, stale, 1)
	assert.True(t, errors.Is(err, ErrVersionConflict))

	stale.ID = "missing"
	err = store.Save(ctx, stale, 1)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUpdateComponent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc, err := svc.Create(ctx, 1, CreateInput{TemplateID: "minimal"})
	require.NoError(t, err)
	header := doc.Components[0]

	doc, err = svc.UpdateComponent(ctx, 1, doc.ID, 0, header.ID, []byte(`{"fullName":"Ada Lovelace","title":"Analyst"}`))
	require.NoError(t, err)
	got, _, _ := doc.Find(header.ID)
	assert.Equal(t, cv.HeaderData{FullName: "Ada Lovelace", Title: "Analyst"}, got.Data)

	_, err = svc.UpdateComponent(ctx, 1, doc.ID, 0, doc.Components[2].ID, []byte(`{"items":"nope"}`))
	assert.True(t, errors.Is(err, ErrInvalidPayload))

	_, err = svc.UpdateComponent(ctx, 1, doc.ID, 0, "ghost", []byte(`{}`))
	assert.True(t, errors.Is(err, ErrComponentNotFound))
}

func TestToggleVisibilityAndRemove(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc, err := svc.Create(ctx, 1, CreateInput{TemplateID: "minimal"})
	require.NoError(t, err)
	contact := doc.Components[1]

	doc, err = svc.ToggleVisibility(ctx, 1, doc.ID, 0, contact.ID)
	require.NoError(t, err)
	hidden, _, _ := doc.Find(contact.ID)
	assert.False(t, hidden.Visible)
	assert.Equal(t, contact.Order, hidden.Order)

	_, views, err := svc.Pages(ctx, 1, doc.ID)
	require.NoError(t, err)
	assert.Len(t, views[0].Components, 3)

	doc, err = svc.RemoveComponent(ctx, 1, doc.ID, 0, contact.ID)
	require.NoError(t, err)
	require.Len(t, doc.Components, 3)
	for i, c := range doc.Components {
		assert.Equal(t, i, c.Order)
	}

	_, err = svc.RemoveComponent(ctx, 1, doc.ID, 0, contact.ID)
	assert.True(t, errors.Is(err, ErrComponentNotFound))
}

func TestSplit_MovesOverflowToNextPage(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc, err := svc.Create(ctx, 1, CreateInput{TemplateID: "minimal"})
	require.NoError(t, err)
	exp := doc.Components[2]
	require.Equal(t, cv.TypeExperience, exp.Type)

	raw := `{"items":[{"id":"a"},{"id":"b"},{"id":"c"},{"id":"d"},{"id":"e"}]}`
	doc, err = svc.UpdateComponent(ctx, 1, doc.ID, 0, exp.ID, []byte(raw))
	require.NoError(t, err)

	overflow, err := svc.Overflow(ctx, 1, doc.ID, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, layout.Overflow{OnCurrentPage: 4, OnNextPage: 1}, overflow)

	before := doc.Version
	doc, err = svc.Split(ctx, 1, doc.ID, 0, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, before+1, doc.Version)
	require.Len(t, doc.Components, 5)

	head, _, _ := doc.Find(exp.ID)
	assert.Equal(t, 4, head.ItemCount())
	var tail cv.Component
	for _, c := range doc.Components {
		if c.Type == cv.TypeExperience && c.ID != exp.ID {
			tail = c
		}
	}
	assert.Equal(t, 2, tail.PageNumber)
	assert.Equal(t, 0, tail.Order)
	assert.Equal(t, 1, tail.ItemCount())

	again, err := svc.Split(ctx, 1, doc.ID, 0, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Version, again.Version)
}

func TestMove_InvalidDragIsNoOp(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc, err := svc.Create(ctx, 1, CreateInput{TemplateID: "minimal"})
	require.NoError(t, err)

	for _, in := range []MoveInput{
		{ActiveID: "ghost", OverID: doc.Components[0].ID},
		{ActiveID: doc.Components[0].ID, OverID: doc.Components[0].ID},
		{ActiveID: doc.Components[0].ID, Page: 0},
	} {
		got, err := svc.Move(ctx, 1, doc.ID, 0, in)
		require.NoError(t, err)
		assert.Equal(t, doc.Version, got.Version)
		assert.Equal(t, doc.Components, got.Components)
	}
}

func TestMove_Reorders(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc, err := svc.Create(ctx, 1, CreateInput{TemplateID: "minimal"})
	require.NoError(t, err)
	header, skills := doc.Components[0], doc.Components[3]

	doc, err = svc.Move(ctx, 1, doc.ID, doc.Version, MoveInput{ActiveID: skills.ID, OverID: header.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Version)
	assert.Equal(t, skills.ID, doc.Components[0].ID)
	for i, c := range doc.Components {
		assert.Equal(t, i, c.Order)
	}

	doc, err = svc.AddPage(ctx, 1, doc.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.PageCount)

	doc, err = svc.Move(ctx, 1, doc.ID, 0, MoveInput{ActiveID: header.ID, Page: 2})
	require.NoError(t, err)
	moved, _, _ := doc.Find(header.ID)
	assert.Equal(t, 2, moved.PageNumber)
	assert.Equal(t, 0, moved.Order)
}

func TestUndoRedo(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc, err := svc.Create(ctx, 1, CreateInput{TemplateID: "minimal"})
	require.NoError(t, err)
	original := doc.Components

	_, err = svc.Undo(ctx, 1, doc.ID)
	assert.True(t, errors.Is(err, ErrNothingToUndo))

	doc, err = svc.RemoveComponent(ctx, 1, doc.ID, 0, original[0].ID)
	require.NoError(t, err)
	require.Len(t, doc.Components, 3)

	doc, err = svc.Undo(ctx, 1, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, original, doc.Components)
	assert.Equal(t, 3, doc.Version)

	doc, err = svc.Redo(ctx, 1, doc.ID)
	require.NoError(t, err)
	assert.Len(t, doc.Components, 3)

	_, err = svc.Redo(ctx, 1, doc.ID)
	assert.True(t, errors.Is(err, ErrNothingToRedo))
}

type failingSaveStore struct {
	*GormStore
	failures int
}

func (s *failingSaveStore) Save(ctx context.Context, doc cv.Document, expectedVersion int) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("connection reset")
	}
	return s.GormStore.Save(ctx, doc, expectedVersion)
}

func TestUndo_FailedSaveKeepsHistory(t *testing.T) {
	store := &failingSaveStore{GormStore: NewGormStore(newTestDB(t))}
	svc := NewService(store, layout.NewEngine(), templates.MustBuiltin(), WithHistory(NewMemoryHistory(10)))
	ctx := context.Background()

	doc, err := svc.Create(ctx, 1, CreateInput{TemplateID: "minimal"})
	require.NoError(t, err)
	doc, err = svc.AddPage(ctx, 1, doc.ID, doc.Version)
	require.NoError(t, err)
	pages := doc.PageCount

	store.failures = 1
	_, err = svc.Undo(ctx, 1, doc.ID)
	require.ErrorContains(t, err, "connection reset")

	_, err = svc.Redo(ctx, 1, doc.ID)
	assert.True(t, errors.Is(err, ErrNothingToRedo))

	undone, err := svc.Undo(ctx, 1, doc.ID)
	require.NoError(t, err)
	assert.Less(t, undone.PageCount, pages)
	assert.Equal(t, doc.Version+1, undone.Version)
}

func TestDuplicateAndDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc, err := svc.Create(ctx, 1, CreateInput{Title: "Main", TemplateID: "classic"})
	require.NoError(t, err)

	dup, err := svc.Duplicate(ctx, 1, doc.ID)
	require.NoError(t, err)
	assert.NotEqual(t, doc.ID, dup.ID)
	assert.Equal(t, "Main (Copy)", dup.Title)
	assert.Equal(t, 1, dup.Version)
	assert.Equal(t, doc.Components, dup.Components)

	list, err := svc.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, svc.Delete(ctx, 1, doc.ID))
	_, err = svc.Get(ctx, 1, doc.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(svc.Delete(ctx, 1, doc.ID), ErrNotFound))
}

func TestSuggestPage(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc, err := svc.Create(ctx, 1, CreateInput{TemplateID: "modern"})
	require.NoError(t, err)

	p, err := svc.SuggestPage(ctx, 1, doc.ID, cv.TypeProjects)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 6, p.Order)
	assert.Equal(t, 180, p.EstimatedPx)
	assert.False(t, p.ExceedsPage)

	_, err = svc.SuggestPage(ctx, 1, doc.ID, "timeline")
	assert.True(t, errors.Is(err, cv.ErrUnknownType))
}
