package cv

import "time"

// Document 聚合一份简历的全部组件与样式设置。
// 所有修改都通过返回新值完成，调用方持有的旧快照不会被改写。
type Document struct {
	ID         string           `json:"id"`
	OwnerID    uint             `json:"-"`
	Title      string           `json:"title"`
	TemplateID string           `json:"templateId"`
	Components []Component      `json:"components"`
	Settings   TemplateSettings `json:"settings"`
	// PageCount 记录用户手动追加的空白尾页，0 表示未追加。
	PageCount int       `json:"pageCount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   int       `json:"version"`
}

// Find 按 ID 查找组件，返回组件与其在列表中的下标。
func (d Document) Find(id string) (Component, int, bool) {
	for i, c := range d.Components {
		if c.ID == id {
			return c, i, true
		}
	}
	return Component{}, -1, false
}

// WithComponents 返回替换组件列表后的副本。
func (d Document) WithComponents(components []Component) Document {
	d.Components = components
	return d
}

// Touch 递增版本号并刷新更新时间。
func (d Document) Touch(now time.Time) Document {
	d.Version++
	d.UpdatedAt = now
	return d
}
