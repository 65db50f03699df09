package pdf

import (
	"context"
	"fmt"
	"math"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/page"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/extension"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"cvCanvas/internal/cv"
	"cvCanvas/internal/layout"
)

const (
	a4WidthMM   = 210.0
	ptToMM      = 0.3528
	lineSpacing = 1.35
	// 平均字宽约为字号的一半。
	avgCharEm = 0.5
)

// NativeRenderer 使用 maroto 直接生成 PDF，不依赖浏览器。
type NativeRenderer struct{}

type nativeStyle struct {
	primary, text, muted *props.Color
	body, h1, h2         float64
	sectionGapMM         float64
	itemGapMM            float64
	contentWidthMM       float64
}

func newNativeStyle(s cv.TemplateSettings, marginLeft, marginRight float64) nativeStyle {
	section, item := s.Layout.Spacing.SpacingValues()
	st := nativeStyle{
		primary:        colorOr(s.Colors.Primary, &props.Color{Red: 37, Green: 99, Blue: 235}),
		text:           colorOr(s.Colors.Text, &props.Color{Red: 31, Green: 41, Blue: 55}),
		muted:          colorOr(s.Colors.Secondary, &props.Color{Red: 100, Green: 116, Blue: 139}),
		body:           parsePt(s.Typography.FontSize.Body, 10),
		h1:             parsePt(s.Typography.FontSize.Heading1, 22),
		h2:             parsePt(s.Typography.FontSize.Heading2, 13),
		sectionGapMM:   pxToMM(section) / 2,
		itemGapMM:      pxToMM(item) / 4,
		contentWidthMM: a4WidthMM - marginLeft - marginRight,
	}
	return st
}

func colorOr(hex string, def *props.Color) *props.Color {
	r, g, b, ok := parseHex(hex)
	if !ok {
		return def
	}
	return &props.Color{Red: r, Green: g, Blue: b}
}

func (NativeRenderer) Render(ctx context.Context, in Input) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	margins := in.Document.Settings.Layout.Margins
	left, top, right, bottom := marginMM(margins.Left), marginMM(margins.Top), marginMM(margins.Right), marginMM(margins.Bottom)

	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(left).
		WithTopMargin(top).
		WithRightMargin(right).
		WithBottomMargin(bottom).
		Build()
	m := maroto.New(cfg)
	style := newNativeStyle(in.Document.Settings, left, right)

	views := in.Pages
	if len(views) == 0 {
		views = []layout.PageView{{Number: 1}}
	}
	for _, view := range views {
		p := page.New()
		rows := []core.Row{row.New(0.1)}
		for _, c := range view.Components {
			rows = append(rows, style.sectionRows(BuildSection(c), in.Photos)...)
		}
		p.Add(rows...)
		m.AddPages(p)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

func marginMM(px int) float64 {
	if px <= 0 {
		px = layout.PagePaddingPx
	}
	return pxToMM(px)
}

func (st nativeStyle) sectionRows(s Section, photos map[string][]byte) []core.Row {
	var rows []core.Row

	if s.Photo != "" {
		if img, ok := photos[s.Photo]; ok {
			if ext, supported := marotoExt(s.Photo); supported {
				rows = append(rows, row.New(30).Add(
					col.New(3).Add(image.NewFromBytes(img, ext, props.Rect{Percent: 95})),
				))
			}
		}
	}

	if s.Heading != "" {
		rows = append(rows,
			text.NewRow(st.lineHeight(st.h2), s.Heading, props.Text{Size: st.h2, Style: fontstyle.Bold, Color: st.primary}),
			line.NewRow(1, props.Line{Color: st.primary, Thickness: 0.3}),
		)
	}

	for _, l := range s.Lines {
		rows = append(rows, st.lineRow(l))
	}
	rows = append(rows, row.New(st.sectionGapMM))
	return rows
}

func (st nativeStyle) lineRow(l Line) core.Row {
	tp := props.Text{Size: st.body, Color: st.text}
	value := l.Text
	switch l.Kind {
	case LineTitle:
		tp.Size, tp.Style, tp.Color = st.h1, fontstyle.Bold, st.primary
	case LineSubtitle:
		tp.Style = fontstyle.Bold
		tp.Top = st.itemGapMM
	case LineMuted:
		tp.Size, tp.Style, tp.Color = st.body*0.9, fontstyle.Italic, st.muted
	case LineBullet:
		tp.Left = 3
		value = "- " + value
	}
	height := st.wrappedHeight(value, tp.Size) + tp.Top
	return text.NewRow(height, value, tp)
}

func (st nativeStyle) lineHeight(size float64) float64 {
	return size * ptToMM * lineSpacing
}

// wrappedHeight approximates the height of value once maroto wraps it to the content width.
func (st nativeStyle) wrappedHeight(value string, size float64) float64 {
	charMM := size * ptToMM * avgCharEm
	perLine := max(int(st.contentWidthMM/charMM), 1)
	lines := math.Ceil(float64(len([]rune(value))) / float64(perLine))
	return max(lines, 1) * st.lineHeight(size)
}

func marotoExt(key string) (extension.Type, bool) {
	switch photoExt(key) {
	case "png":
		return extension.Png, true
	case "jpg", "jpeg":
		return extension.Jpg, true
	default:
		return "", false
	}
}
