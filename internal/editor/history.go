package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"cvCanvas/internal/cv"
)

// Snapshot 是可撤销的文档内容，不含版本与时间戳。
type Snapshot struct {
	Title      string              `json:"title"`
	TemplateID string              `json:"templateId"`
	Components []cv.Component      `json:"components"`
	Settings   cv.TemplateSettings `json:"settings"`
	PageCount  int                 `json:"pageCount"`
}

func snapshotOf(doc cv.Document) Snapshot {
	return Snapshot{
		Title:      doc.Title,
		TemplateID: doc.TemplateID,
		Components: doc.Components,
		Settings:   doc.Settings,
		PageCount:  doc.PageCount,
	}
}

func (s Snapshot) apply(doc cv.Document) cv.Document {
	doc.Title = s.Title
	doc.TemplateID = s.TemplateID
	doc.Components = s.Components
	doc.Settings = s.Settings
	doc.PageCount = s.PageCount
	return doc
}

// History 保存每个文档的撤销/重做栈。
// Undo 与 Redo 先读取栈顶快照交给 restore 持久化；restore 成功后才弹出该快照，
// 并把 current 压入反方向的栈。restore 失败时两个栈保持不变。
type History interface {
	Push(ctx context.Context, docID string, previous Snapshot) error
	Undo(ctx context.Context, docID string, current Snapshot, restore func(Snapshot) error) error
	Redo(ctx context.Context, docID string, current Snapshot, restore func(Snapshot) error) error
	Clear(ctx context.Context, docID string) error
}

const historyTTL = 7 * 24 * time.Hour

// RedisHistory 用两个 Redis 列表实现历史栈，深度由 LTRIM 限制。
type RedisHistory struct {
	client redis.Cmdable
	depth  int
}

func NewRedisHistory(client redis.Cmdable, depth int) *RedisHistory {
	return &RedisHistory{client: client, depth: depth}
}

func undoKey(docID string) string { return "cv:history:" + docID + ":undo" }
func redoKey(docID string) string { return "cv:history:" + docID + ":redo" }

func (h *RedisHistory) Push(ctx context.Context, docID string, previous Snapshot) error {
	if h.depth <= 0 {
		return nil
	}
	raw, err := json.Marshal(previous)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = h.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		h.pushTo(ctx, p, undoKey(docID), raw)
		p.Del(ctx, redoKey(docID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("push history: %w", err)
	}
	return nil
}

func (h *RedisHistory) Undo(ctx context.Context, docID string, current Snapshot, restore func(Snapshot) error) error {
	return h.swap(ctx, undoKey(docID), redoKey(docID), current, restore, ErrNothingToUndo)
}

func (h *RedisHistory) Redo(ctx context.Context, docID string, current Snapshot, restore func(Snapshot) error) error {
	return h.swap(ctx, redoKey(docID), undoKey(docID), current, restore, ErrNothingToRedo)
}

func (h *RedisHistory) Clear(ctx context.Context, docID string) error {
	if err := h.client.Del(ctx, undoKey(docID), redoKey(docID)).Err(); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (h *RedisHistory) pushTo(ctx context.Context, p redis.Pipeliner, key string, raw []byte) {
	p.LPush(ctx, key, raw)
	p.LTrim(ctx, key, 0, int64(h.depth-1))
	p.Expire(ctx, key, historyTTL)
}

func (h *RedisHistory) swap(ctx context.Context, from, to string, current Snapshot, restore func(Snapshot) error, empty error) error {
	raw, err := h.client.LIndex(ctx, from, 0).Bytes()
	if errors.Is(err, redis.Nil) {
		return empty
	}
	if err != nil {
		return fmt.Errorf("peek history: %w", err)
	}

	var restored Snapshot
	if err := json.Unmarshal(raw, &restored); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	currentRaw, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := restore(restored); err != nil {
		return err
	}

	// 文档已保存；出栈与入栈放在同一事务里。
	if _, err := h.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPop(ctx, from)
		h.pushTo(ctx, p, to, currentRaw)
		return nil
	}); err != nil {
		return fmt.Errorf("move history entry: %w", err)
	}
	return nil
}

// MemoryHistory 是进程内实现，用于测试与命令行工具。
type MemoryHistory struct {
	mu    sync.Mutex
	depth int
	undo  map[string][]Snapshot
	redo  map[string][]Snapshot
}

func NewMemoryHistory(depth int) *MemoryHistory {
	return &MemoryHistory{
		depth: depth,
		undo:  map[string][]Snapshot{},
		redo:  map[string][]Snapshot{},
	}
}

func (h *MemoryHistory) Push(_ context.Context, docID string, previous Snapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.depth <= 0 {
		return nil
	}
	h.undo[docID] = h.bounded(append(h.undo[docID], previous))
	delete(h.redo, docID)
	return nil
}

func (h *MemoryHistory) Undo(_ context.Context, docID string, current Snapshot, restore func(Snapshot) error) error {
	return h.swap(h.undo, h.redo, docID, current, restore, ErrNothingToUndo)
}

func (h *MemoryHistory) Redo(_ context.Context, docID string, current Snapshot, restore func(Snapshot) error) error {
	return h.swap(h.redo, h.undo, docID, current, restore, ErrNothingToRedo)
}

func (h *MemoryHistory) Clear(_ context.Context, docID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.undo, docID)
	delete(h.redo, docID)
	return nil
}

// swap 在持锁期间调用 restore，栈顶不会被并发的 Undo/Redo 改变。
func (h *MemoryHistory) swap(from, to map[string][]Snapshot, docID string, current Snapshot, restore func(Snapshot) error, empty error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	stack := from[docID]
	if len(stack) == 0 {
		return empty
	}
	if err := restore(stack[len(stack)-1]); err != nil {
		return err
	}
	from[docID] = stack[:len(stack)-1]
	to[docID] = h.bounded(append(to[docID], current))
	return nil
}

func (h *MemoryHistory) bounded(stack []Snapshot) []Snapshot {
	if len(stack) > h.depth {
		return stack[len(stack)-h.depth:]
	}
	return stack
}
