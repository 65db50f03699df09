package cv

// TemplateSettings 是模板派生出的文档样式。
type TemplateSettings struct {
	Colors     ColorScheme        `json:"colors" yaml:"colors"`
	Typography TypographySettings `json:"typography" yaml:"typography"`
	Layout     LayoutSettings     `json:"layout" yaml:"layout"`
}

type ColorScheme struct {
	Primary    string `json:"primary" yaml:"primary"`
	Secondary  string `json:"secondary" yaml:"secondary"`
	Accent     string `json:"accent" yaml:"accent"`
	Text       string `json:"text" yaml:"text"`
	Background string `json:"background" yaml:"background"`
	Border     string `json:"border" yaml:"border"`
}

type TypographySettings struct {
	FontFamily        string    `json:"fontFamily" yaml:"fontFamily"`
	HeadingFontFamily string    `json:"headingFontFamily,omitempty" yaml:"headingFontFamily,omitempty"`
	FontSize          FontSizes `json:"fontSize" yaml:"fontSize"`
}

type FontSizes struct {
	Heading1 string `json:"heading1" yaml:"heading1"`
	Heading2 string `json:"heading2" yaml:"heading2"`
	Heading3 string `json:"heading3" yaml:"heading3"`
	Body     string `json:"body" yaml:"body"`
	Small    string `json:"small" yaml:"small"`
}

// Spacing 控制分节与条目间距。
type Spacing string

const (
	SpacingCompact Spacing = "compact"
	SpacingNormal  Spacing = "normal"
	SpacingRelaxed Spacing = "relaxed"
)

// SpacingValues 返回分节间距与条目间距（px），未知取 normal。
func (s Spacing) SpacingValues() (section, item int) {
	switch s {
	case SpacingCompact:
		return 16, 8
	case SpacingRelaxed:
		return 32, 16
	default:
		return 24, 12
	}
}

type LayoutSettings struct {
	ColumnCount    int     `json:"columnCount" yaml:"columnCount"`
	Spacing        Spacing `json:"spacing" yaml:"spacing"`
	Margins        Margins `json:"margins" yaml:"margins"`
	SectionSpacing int     `json:"sectionSpacing" yaml:"sectionSpacing"`
}

type Margins struct {
	Top    int `json:"top" yaml:"top"`
	Right  int `json:"right" yaml:"right"`
	Bottom int `json:"bottom" yaml:"bottom"`
	Left   int `json:"left" yaml:"left"`
}
