package editor

import "errors"

var (
	// ErrNotFound 文档不存在或不属于当前用户。
	ErrNotFound = errors.New("document not found")
	// ErrVersionConflict 表示文档在读取后已被其他请求修改。
	ErrVersionConflict = errors.New("document version conflict")
	// ErrComponentNotFound 组件 ID 不存在于文档中。
	ErrComponentNotFound = errors.New("component not found")
	// ErrInvalidPayload 组件内容与其类型不匹配。
	ErrInvalidPayload = errors.New("invalid component payload")
	// ErrDocumentLimit 用户文档数量达到上限。
	ErrDocumentLimit = errors.New("document limit reached")
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)
