package cv

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type 是组件的类型标签，创建后不可变。
type Type string

const (
	TypeHeader         Type = "header"
	TypeContact        Type = "contact"
	TypeSummary        Type = "summary"
	TypeExperience     Type = "experience"
	TypeEducation      Type = "education"
	TypeSkills         Type = "skills"
	TypeProjects       Type = "projects"
	TypeCertifications Type = "certifications"
	TypeLanguages      Type = "languages"
	TypeCustomSection  Type = "custom_section"
)

// Types 按组件库中的展示顺序列出全部组件类型。
var Types = []Type{
	TypeHeader,
	TypeContact,
	TypeSummary,
	TypeExperience,
	TypeEducation,
	TypeSkills,
	TypeProjects,
	TypeCertifications,
	TypeLanguages,
	TypeCustomSection,
}

// ErrUnknownType 表示组件类型不在支持列表中。
var ErrUnknownType = errors.New("unknown component type")

// Valid 判断类型是否受支持。
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Position 预留给未来的精确定位，分页逻辑不读取它。
type Position struct {
	X *int `json:"x,omitempty"`
	Y *int `json:"y,omitempty"`
}

// Payload 是各类组件的专属内容。
type Payload interface {
	ComponentType() Type
}

// ItemList 由持有可重复条目的组件实现，分页与拆分逻辑只通过它识别列表。
type ItemList interface {
	Payload
	ItemCount() int
	// SliceItems 返回只包含 [from, to) 条目的新 Payload，不与原切片共享底层数组。
	SliceItems(from, to int) Payload
}

// Component 表示文档中的一个简历模块及其分页元数据。
type Component struct {
	ID         string
	Type       Type
	Order      int
	Visible    bool
	PageNumber int
	Position   *Position
	Data       Payload
}

// Items 返回组件的条目列表能力。
func (c Component) Items() (ItemList, bool) {
	if c.Data == nil {
		return nil, false
	}
	list, ok := c.Data.(ItemList)
	return list, ok
}

// ItemCount 返回条目数量，非列表组件返回 0。
func (c Component) ItemCount() int {
	if list, ok := c.Items(); ok {
		return list.ItemCount()
	}
	return 0
}

// WithData 返回替换了内容的副本，身份与分页字段保持不变。
func (c Component) WithData(data Payload) Component {
	c.Data = data
	return c
}

type componentHeader struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	Order      int       `json:"order"`
	Visible    bool      `json:"visible"`
	PageNumber int       `json:"pageNumber"`
	Position   *Position `json:"position,omitempty"`
}

// MarshalJSON 输出扁平结构：公共字段与内容字段位于同一对象。
func (c Component) MarshalJSON() ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if c.Data != nil {
		data, err := json.Marshal(c.Data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", c.Type, err)
		}
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("flatten %s payload: %w", c.Type, err)
		}
	}

	header, err := json.Marshal(componentHeader{
		ID:         c.ID,
		Type:       c.Type,
		Order:      c.Order,
		Visible:    c.Visible,
		PageNumber: c.PageNumber,
		Position:   c.Position,
	})
	if err != nil {
		return nil, err
	}
	var common map[string]json.RawMessage
	if err := json.Unmarshal(header, &common); err != nil {
		return nil, err
	}
	for k, v := range common {
		fields[k] = v
	}

	return json.Marshal(fields)
}

// UnmarshalJSON 根据 type 字段解码对应的内容结构。
func (c *Component) UnmarshalJSON(raw []byte) error {
	var header componentHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return err
	}

	data, err := decodePayload(header.Type, raw)
	if err != nil {
		return err
	}

	*c = Component{
		ID:         header.ID,
		Type:       header.Type,
		Order:      header.Order,
		Visible:    header.Visible,
		PageNumber: header.PageNumber,
		Position:   header.Position,
		Data:       data,
	}
	return nil
}

// DecodePayload 将 JSON 解码为指定类型的内容结构。
func DecodePayload(t Type, raw []byte) (Payload, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return EmptyPayload(t)
	}
	return decodePayload(t, raw)
}

func decodePayload(t Type, raw []byte) (Payload, error) {
	switch t {
	case TypeHeader:
		return decodeAs[HeaderData](raw)
	case TypeContact:
		return decodeAs[ContactData](raw)
	case TypeSummary:
		return decodeAs[SummaryData](raw)
	case TypeExperience:
		return decodeAs[ExperienceData](raw)
	case TypeEducation:
		return decodeAs[EducationData](raw)
	case TypeSkills:
		return decodeAs[SkillsData](raw)
	case TypeProjects:
		return decodeAs[ProjectsData](raw)
	case TypeCertifications:
		return decodeAs[CertificationsData](raw)
	case TypeLanguages:
		return decodeAs[LanguagesData](raw)
	case TypeCustomSection:
		return decodeAs[CustomSectionData](raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}

func decodeAs[T Payload](raw []byte) (Payload, error) {
	var p T
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// EmptyPayload 返回指定类型的空内容，列表字段为非 nil 的空切片。
func EmptyPayload(t Type) (Payload, error) {
	switch t {
	case TypeHeader:
		return HeaderData{}, nil
	case TypeContact:
		return ContactData{}, nil
	case TypeSummary:
		return SummaryData{}, nil
	case TypeExperience:
		return ExperienceData{Items: []ExperienceItem{}}, nil
	case TypeEducation:
		return EducationData{Items: []EducationItem{}}, nil
	case TypeSkills:
		return SkillsData{Items: []SkillItem{}}, nil
	case TypeProjects:
		return ProjectsData{Items: []ProjectItem{}}, nil
	case TypeCertifications:
		return CertificationsData{Items: []CertificationItem{}}, nil
	case TypeLanguages:
		return LanguagesData{Items: []LanguageItem{}}, nil
	case TypeCustomSection:
		return CustomSectionData{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}

func sliceCopy[T any](items []T, from, to int) []T {
	out := make([]T, to-from)
	copy(out, items[from:to])
	return out
}
