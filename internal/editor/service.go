// Package editor applies layout transformations to persisted documents.
// Every mutation loads a snapshot, derives a new one, and saves it with an optimistic
// version check, so concurrent edits of one document are applied one at a time.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"cvCanvas/internal/cv"
	"cvCanvas/internal/layout"
	"cvCanvas/internal/templates"
)

// Service 编辑器服务：文档生命周期与组件修改。
type Service struct {
	store        Store
	history      History
	engine       *layout.Engine
	catalog      *templates.Catalog
	logger       *slog.Logger
	now          func() time.Time
	newID        func() string
	maxDocuments int
}

type Option func(*Service)

func WithHistory(h History) Option          { return func(s *Service) { s.history = h } }
func WithLogger(l *slog.Logger) Option      { return func(s *Service) { s.logger = l } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }
func WithIDFunc(fn func() string) Option    { return func(s *Service) { s.newID = fn } }

// WithMaxDocuments limits documents per owner; 0 disables the limit.
func WithMaxDocuments(n int) Option { return func(s *Service) { s.maxDocuments = n } }

func NewService(store Store, engine *layout.Engine, catalog *templates.Catalog, opts ...Option) *Service {
	s := &Service{
		store:   store,
		engine:  engine,
		catalog: catalog,
		logger:  slog.Default(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine exposes the layout engine used for derived views.
func (s *Service) Engine() *layout.Engine {
	return s.engine
}

// CreateInput 创建文档的参数。
type CreateInput struct {
	Title      string `json:"title"`
	TemplateID string `json:"templateId"`
}

// Create 按模板创建文档：模板的默认组件依次经过版面建议放置。
func (s *Service) Create(ctx context.Context, ownerID uint, in CreateInput) (cv.Document, error) {
	tpl, err := s.catalog.Get(in.TemplateID)
	if err != nil {
		return cv.Document{}, err
	}
	if err := s.checkQuota(ctx, ownerID); err != nil {
		return cv.Document{}, err
	}

	components := make([]cv.Component, 0, len(tpl.DefaultComponents))
	for _, typ := range tpl.DefaultComponents {
		c, err := s.place(components, typ, nil)
		if err != nil {
			return cv.Document{}, err
		}
		components = append(components, c)
	}

	title := in.Title
	if title == "" {
		title = "Untitled CV"
	}
	now := s.now()
	doc := cv.Document{
		ID:         s.newID(),
		OwnerID:    ownerID,
		Title:      title,
		TemplateID: tpl.ID,
		Components: components,
		Settings:   tpl.DefaultSettings,
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    1,
	}
	if err := s.store.Create(ctx, doc); err != nil {
		return cv.Document{}, err
	}
	return doc, nil
}

func (s *Service) Get(ctx context.Context, ownerID uint, id string) (cv.Document, error) {
	return s.store.Load(ctx, ownerID, id)
}

func (s *Service) List(ctx context.Context, ownerID uint) ([]cv.Document, error) {
	return s.store.List(ctx, ownerID)
}

func (s *Service) Delete(ctx context.Context, ownerID uint, id string) error {
	if err := s.store.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	if s.history != nil {
		if err := s.history.Clear(ctx, id); err != nil {
			s.logger.WarnContext(ctx, "clear history failed", "document_id", id, "error", err)
		}
	}
	return nil
}

// Duplicate 复制文档，标题追加 "(Copy)"，版本从 1 开始。
func (s *Service) Duplicate(ctx context.Context, ownerID uint, id string) (cv.Document, error) {
	src, err := s.store.Load(ctx, ownerID, id)
	if err != nil {
		return cv.Document{}, err
	}
	if err := s.checkQuota(ctx, ownerID); err != nil {
		return cv.Document{}, err
	}

	now := s.now()
	dup := src
	dup.ID = s.newID()
	dup.Title = src.Title + " (Copy)"
	dup.Components = append([]cv.Component(nil), src.Components...)
	dup.CreatedAt = now
	dup.UpdatedAt = now
	dup.Version = 1
	if err := s.store.Create(ctx, dup); err != nil {
		return cv.Document{}, err
	}
	return dup, nil
}

// MetaPatch 修改文档标题、模板或样式设置，nil 字段保持不变。
type MetaPatch struct {
	Title      *string              `json:"title"`
	TemplateID *string              `json:"templateId"`
	Settings   *cv.TemplateSettings `json:"settings"`
}

func (s *Service) UpdateMeta(ctx context.Context, ownerID uint, id string, version int, patch MetaPatch) (cv.Document, error) {
	return s.mutate(ctx, ownerID, id, version, func(doc cv.Document) (cv.Document, bool, error) {
		changed := false
		if patch.Title != nil && *patch.Title != doc.Title {
			doc.Title = *patch.Title
			changed = true
		}
		if patch.TemplateID != nil && *patch.TemplateID != doc.TemplateID {
			if _, err := s.catalog.Get(*patch.TemplateID); err != nil {
				return doc, false, err
			}
			doc.TemplateID = *patch.TemplateID
			changed = true
		}
		if patch.Settings != nil {
			doc.Settings = *patch.Settings
			changed = true
		}
		return doc, changed, nil
	})
}

// AddComponent 添加组件，页码由版面建议决定，排在该页末尾。
// payload 为 nil 时使用该类型的空内容。
func (s *Service) AddComponent(ctx context.Context, ownerID uint, id string, version int, typ cv.Type, payload cv.Payload) (cv.Document, cv.Component, error) {
	var added cv.Component
	doc, err := s.mutate(ctx, ownerID, id, version, func(doc cv.Document) (cv.Document, bool, error) {
		c, err := s.place(doc.Components, typ, payload)
		if err != nil {
			return doc, false, err
		}
		added = c
		return doc.WithComponents(append(append([]cv.Component(nil), doc.Components...), c)), true, nil
	})
	return doc, added, err
}

func (s *Service) place(existing []cv.Component, typ cv.Type, payload cv.Payload) (cv.Component, error) {
	if !typ.Valid() {
		return cv.Component{}, fmt.Errorf("%w: %q", cv.ErrUnknownType, typ)
	}
	if payload == nil {
		empty, err := cv.EmptyPayload(typ)
		if err != nil {
			return cv.Component{}, err
		}
		payload = empty
	}
	if payload.ComponentType() != typ {
		return cv.Component{}, fmt.Errorf("%w: %s payload for %s component", ErrInvalidPayload, payload.ComponentType(), typ)
	}

	page := s.engine.SuggestPage(existing, typ)
	return cv.Component{
		ID:         s.newID(),
		Type:       typ,
		Order:      layout.NextOrder(existing, page),
		Visible:    true,
		PageNumber: page,
		Data:       payload,
	}, nil
}

// UpdateComponent 替换组件内容，raw 按组件自身类型解码。
func (s *Service) UpdateComponent(ctx context.Context, ownerID uint, id string, version int, componentID string, raw []byte) (cv.Document, error) {
	return s.mutateComponent(ctx, ownerID, id, version, componentID, func(c cv.Component) (cv.Component, error) {
		payload, err := cv.DecodePayload(c.Type, raw)
		if err != nil {
			return c, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return c.WithData(payload), nil
	})
}

// ToggleVisibility 切换组件可见性；隐藏的组件保留页码与顺序。
func (s *Service) ToggleVisibility(ctx context.Context, ownerID uint, id string, version int, componentID string) (cv.Document, error) {
	return s.mutateComponent(ctx, ownerID, id, version, componentID, func(c cv.Component) (cv.Component, error) {
		c.Visible = !c.Visible
		return c, nil
	})
}

func (s *Service) RemoveComponent(ctx context.Context, ownerID uint, id string, version int, componentID string) (cv.Document, error) {
	return s.mutate(ctx, ownerID, id, version, func(doc cv.Document) (cv.Document, bool, error) {
		if _, _, ok := doc.Find(componentID); !ok {
			return doc, false, fmt.Errorf("%w: %s", ErrComponentNotFound, componentID)
		}
		rest := lo.Reject(doc.Components, func(c cv.Component, _ int) bool {
			return c.ID == componentID
		})
		return doc.WithComponents(layout.Normalize(rest)), true, nil
	})
}

// Split 把溢出当前页的条目拆到下一页的新组件中；没有溢出时文档保持不变。
func (s *Service) Split(ctx context.Context, ownerID uint, id string, version int, componentID string) (cv.Document, error) {
	return s.mutate(ctx, ownerID, id, version, func(doc cv.Document) (cv.Document, bool, error) {
		if _, _, ok := doc.Find(componentID); !ok {
			return doc, false, fmt.Errorf("%w: %s", ErrComponentNotFound, componentID)
		}
		next, changed := s.engine.ApplySplit(doc.Components, componentID)
		return doc.WithComponents(next), changed, nil
	})
}

// Overflow reports how a component's items divide across its page boundary.
func (s *Service) Overflow(ctx context.Context, ownerID uint, id, componentID string) (layout.Overflow, error) {
	doc, err := s.store.Load(ctx, ownerID, id)
	if err != nil {
		return layout.Overflow{}, err
	}
	c, _, ok := doc.Find(componentID)
	if !ok {
		return layout.Overflow{}, fmt.Errorf("%w: %s", ErrComponentNotFound, componentID)
	}
	return s.engine.ComputeOverflow(c, layout.Distribute(doc.Components)[c.PageNumber]), nil
}

// MoveInput 拖拽结束事件：拖到另一个组件上（OverID）或拖到某页空白处（Page）。
type MoveInput struct {
	ActiveID string `json:"activeId"`
	OverID   string `json:"overId"`
	Page     int    `json:"page"`
}

// Move 应用拖拽结果。无效的拖拽（未知 ID、拖到自身）不报错，文档原样返回。
func (s *Service) Move(ctx context.Context, ownerID uint, id string, version int, in MoveInput) (cv.Document, error) {
	return s.mutate(ctx, ownerID, id, version, func(doc cv.Document) (cv.Document, bool, error) {
		var (
			next    []cv.Component
			changed bool
		)
		if in.OverID != "" {
			next, changed = layout.Reorder(doc.Components, in.ActiveID, in.OverID)
		} else {
			next, changed = layout.MoveToPage(doc.Components, in.ActiveID, in.Page)
		}
		return doc.WithComponents(next), changed, nil
	})
}

// AddPage 追加一个空白尾页。
func (s *Service) AddPage(ctx context.Context, ownerID uint, id string, version int) (cv.Document, error) {
	return s.mutate(ctx, ownerID, id, version, func(doc cv.Document) (cv.Document, bool, error) {
		doc.PageCount = max(doc.PageCount, layout.TotalPages(doc.Components)) + 1
		return doc, true, nil
	})
}

// Pages 返回文档的派生分页视图。
func (s *Service) Pages(ctx context.Context, ownerID uint, id string) (cv.Document, []layout.PageView, error) {
	doc, err := s.store.Load(ctx, ownerID, id)
	if err != nil {
		return cv.Document{}, nil, err
	}
	return doc, s.engine.Layout(doc.Components, doc.PageCount), nil
}

// Placement 是添加组件前的版面建议。
type Placement struct {
	Type         cv.Type `json:"type"`
	Page         int     `json:"page"`
	Order        int     `json:"order"`
	ExceedsPage  bool    `json:"exceedsPage"`
	EstimatedPx  int     `json:"estimatedHeight"`
	CurrentPages int     `json:"totalPages"`
}

func (s *Service) SuggestPage(ctx context.Context, ownerID uint, id string, typ cv.Type) (Placement, error) {
	if !typ.Valid() {
		return Placement{}, fmt.Errorf("%w: %q", cv.ErrUnknownType, typ)
	}
	doc, err := s.store.Load(ctx, ownerID, id)
	if err != nil {
		return Placement{}, err
	}

	page := s.engine.SuggestPage(doc.Components, typ)
	candidate := cv.Component{Type: typ}
	return Placement{
		Type:         typ,
		Page:         page,
		Order:        layout.NextOrder(doc.Components, page),
		ExceedsPage:  s.engine.WillExceedPageHeight(layout.Distribute(doc.Components)[page], candidate),
		EstimatedPx:  s.engine.Estimator().Estimate(candidate),
		CurrentPages: layout.TotalPages(doc.Components),
	}, nil
}

func (s *Service) Undo(ctx context.Context, ownerID uint, id string) (cv.Document, error) {
	return s.travel(ctx, ownerID, id, History.Undo)
}

func (s *Service) Redo(ctx context.Context, ownerID uint, id string) (cv.Document, error) {
	return s.travel(ctx, ownerID, id, History.Redo)
}

type historyStep func(h History, ctx context.Context, docID string, current Snapshot, restore func(Snapshot) error) error

// travel 只有在文档保存成功后才移动历史记录，保存失败时撤销记录仍然可用。
func (s *Service) travel(ctx context.Context, ownerID uint, id string, step historyStep) (cv.Document, error) {
	doc, err := s.store.Load(ctx, ownerID, id)
	if err != nil {
		return cv.Document{}, err
	}
	if s.history == nil {
		return cv.Document{}, ErrNothingToUndo
	}

	var next cv.Document
	err = step(s.history, ctx, id, snapshotOf(doc), func(restored Snapshot) error {
		next = restored.apply(doc).Touch(s.now())
		return s.store.Save(ctx, next, doc.Version)
	})
	if err != nil {
		return cv.Document{}, err
	}
	return next, nil
}

// mutate loads the document, applies fn, and saves the result under version+1.
// expectedVersion 0 skips the client-side version check; the store still guards the write.
// When fn reports no change the loaded document is returned and nothing is written.
func (s *Service) mutate(ctx context.Context, ownerID uint, id string, expectedVersion int, fn func(cv.Document) (cv.Document, bool, error)) (cv.Document, error) {
	doc, err := s.store.Load(ctx, ownerID, id)
	if err != nil {
		return cv.Document{}, err
	}
	if expectedVersion > 0 && doc.Version != expectedVersion {
		return cv.Document{}, fmt.Errorf("%w: %s is at v%d, client has v%d", ErrVersionConflict, id, doc.Version, expectedVersion)
	}

	next, changed, err := fn(doc)
	if err != nil {
		return cv.Document{}, err
	}
	if !changed {
		return doc, nil
	}

	next = next.Touch(s.now())
	if err := s.store.Save(ctx, next, doc.Version); err != nil {
		return cv.Document{}, err
	}

	if s.history != nil {
		if err := s.history.Push(ctx, id, snapshotOf(doc)); err != nil {
			s.logger.WarnContext(ctx, "push history failed", "document_id", id, "error", err)
		}
	}
	return next, nil
}

func (s *Service) mutateComponent(ctx context.Context, ownerID uint, id string, version int, componentID string, fn func(cv.Component) (cv.Component, error)) (cv.Document, error) {
	return s.mutate(ctx, ownerID, id, version, func(doc cv.Document) (cv.Document, bool, error) {
		c, idx, ok := doc.Find(componentID)
		if !ok {
			return doc, false, fmt.Errorf("%w: %s", ErrComponentNotFound, componentID)
		}
		updated, err := fn(c)
		if err != nil {
			return doc, false, err
		}
		components := append([]cv.Component(nil), doc.Components...)
		components[idx] = updated
		return doc.WithComponents(components), true, nil
	})
}

func (s *Service) checkQuota(ctx context.Context, ownerID uint) error {
	if s.maxDocuments <= 0 {
		return nil
	}
	n, err := s.store.Count(ctx, ownerID)
	if err != nil {
		return err
	}
	if n >= int64(s.maxDocuments) {
		return fmt.Errorf("%w: %d", ErrDocumentLimit, s.maxDocuments)
	}
	return nil
}

// IsClientError reports whether err stems from a bad request rather than a failure.
func IsClientError(err error) bool {
	return errors.Is(err, cv.ErrUnknownType) ||
		errors.Is(err, ErrInvalidPayload) ||
		errors.Is(err, templates.ErrNotFound)
}
