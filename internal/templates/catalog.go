package templates

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"cvCanvas/internal/cv"
)

//go:embed catalog.yaml
var builtin []byte

// ErrNotFound 表示模板不存在。
var ErrNotFound = errors.New("template not found")

// Style 模板风格。
type Style string

const (
	StyleModern       Style = "modern"
	StyleClassic      Style = "classic"
	StyleMinimal      Style = "minimal"
	StyleCreative     Style = "creative"
	StyleProfessional Style = "professional"
)

// Template 描述一个可选模板及其默认样式。
type Template struct {
	ID                string              `json:"id" yaml:"id"`
	Name              string              `json:"name" yaml:"name"`
	Style             Style               `json:"style" yaml:"style"`
	Description       string              `json:"description" yaml:"description"`
	IsPremium         bool                `json:"isPremium" yaml:"isPremium"`
	DefaultSettings   cv.TemplateSettings `json:"defaultSettings" yaml:"defaultSettings"`
	DefaultComponents []cv.Type           `json:"defaultComponents" yaml:"defaultComponents"`
}

// Catalog 是只读的模板集合，保持文件中的顺序。
type Catalog struct {
	items []Template
	byID  map[string]int
}

// Builtin 加载内置模板目录。
func Builtin() (*Catalog, error) {
	return Parse(builtin)
}

// MustBuiltin 与 Builtin 相同，失败时 panic。
func MustBuiltin() *Catalog {
	c, err := Builtin()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse 解析 YAML 模板列表并校验 ID 唯一、组件类型合法。
func Parse(data []byte) (*Catalog, error) {
	var items []Template
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode template catalog: %w", err)
	}

	c := &Catalog{items: items, byID: make(map[string]int, len(items))}
	for i, t := range items {
		if t.ID == "" {
			return nil, fmt.Errorf("template #%d: id is required", i)
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("template %q: duplicate id", t.ID)
		}
		for _, typ := range t.DefaultComponents {
			if !typ.Valid() {
				return nil, fmt.Errorf("template %q: %w: %q", t.ID, cv.ErrUnknownType, typ)
			}
		}
		c.byID[t.ID] = i
	}
	return c, nil
}

// List 返回全部模板的副本。
func (c *Catalog) List() []Template {
	out := make([]Template, len(c.items))
	copy(out, c.items)
	return out
}

// Get 按 ID 查找模板。
func (c *Catalog) Get(id string) (Template, error) {
	idx, ok := c.byID[id]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.items[idx], nil
}
