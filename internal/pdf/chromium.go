package pdf

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"mime"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"cvCanvas/internal/cv"
	"cvCanvas/internal/layout"
)

// ChromiumRenderer 在无头浏览器中打印 HTML，每个派生页一个 .page 容器。
type ChromiumRenderer struct {
	Timeout time.Duration
}

func (r *ChromiumRenderer) Render(ctx context.Context, in Input) ([]byte, error) {
	html, err := RenderHTML(in)
	if err != nil {
		return nil, err
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	launch := launcher.New().Context(ctx).Headless(true).NoSandbox(true)
	if bin, ok := launcher.LookPath(); ok {
		launch = launch.Bin(bin)
	}
	controlURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	defer launch.Cleanup()

	browser := rod.New().Context(ctx).ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	defer func() { _ = browser.Close() }()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer func() { _ = page.Close() }()

	if err := page.SetDocumentContent(html); err != nil {
		return nil, fmt.Errorf("set document content: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	reader, err := page.PDF(&proto.PagePrintToPDF{
		PrintBackground:   true,
		PreferCSSPageSize: true,
	})
	if err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf bytes: %w", err)
	}
	return data, nil
}

type htmlPage struct {
	Number   int
	Sections []htmlSection
}

type htmlSection struct {
	Section
	PhotoSrc template.URL
}

type htmlData struct {
	Title    string
	Settings cv.TemplateSettings
	Width    int
	Height   int
	Padding  int
	Pages    []htmlPage
	Section  int
	Item     int
}

var pageTemplate = template.Must(template.New("document").Funcs(template.FuncMap{
	"kindClass": func(k LineKind) string {
		switch k {
		case LineTitle:
			return "title"
		case LineSubtitle:
			return "subtitle"
		case LineMuted:
			return "muted"
		case LineBullet:
			return "bullet"
		default:
			return "body"
		}
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<style>
  @page { size: A4; margin: 0; }
  body { margin: 0; font-family: '{{.Settings.Typography.FontFamily}}', sans-serif; color: {{.Settings.Colors.Text}}; }
  .page { width: {{.Width}}px; height: {{.Height}}px; padding: {{.Padding}}px; box-sizing: border-box;
          overflow: hidden; page-break-after: always; background: {{.Settings.Colors.Background}}; }
  .page:last-child { page-break-after: auto; }
  section { margin-bottom: {{.Section}}px; }
  h2 { color: {{.Settings.Colors.Primary}}; border-bottom: 1px solid {{.Settings.Colors.Primary}}; margin: 0 0 {{.Item}}px; }
  p { margin: 0 0 4px; }
  .title { font-size: 2em; font-weight: bold; color: {{.Settings.Colors.Primary}}; }
  .subtitle { font-weight: bold; margin-top: {{.Item}}px; }
  .muted { color: {{.Settings.Colors.Secondary}}; font-style: italic; }
  .bullet { padding-left: 1em; }
  .bullet::before { content: "- "; }
  img.photo { width: 96px; height: 96px; object-fit: cover; border-radius: 50%; float: right; }
</style>
</head>
<body>
{{range .Pages}}<div class="page" data-page="{{.Number}}">
{{range .Sections}}<section class="{{.Type}}">
  {{if .PhotoSrc}}<img class="photo" src="{{.PhotoSrc}}">{{end}}
  {{if .Heading}}<h2>{{.Heading}}</h2>{{end}}
  {{range .Lines}}<p class="{{kindClass .Kind}}">{{.Text}}</p>
  {{end}}
</section>
{{end}}</div>
{{end}}
</body>
</html>
`))

// RenderHTML 生成打印用 HTML，图片以 data URI 内嵌。
func RenderHTML(in Input) (string, error) {
	section, item := in.Document.Settings.Layout.Spacing.SpacingValues()
	data := htmlData{
		Title:    in.Document.Title,
		Settings: in.Document.Settings,
		Width:    layout.A4WidthPx,
		Height:   layout.A4HeightPx,
		Padding:  layout.PagePaddingPx,
		Section:  section,
		Item:     item,
	}

	views := in.Pages
	if len(views) == 0 {
		views = []layout.PageView{{Number: 1}}
	}
	for _, view := range views {
		hp := htmlPage{Number: view.Number}
		for _, c := range view.Components {
			s := htmlSection{Section: BuildSection(c)}
			s.PhotoSrc = photoSource(s.Photo, in.Photos)
			hp.Sections = append(hp.Sections, s)
		}
		data.Pages = append(data.Pages, hp)
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

func photoSource(key string, photos map[string][]byte) template.URL {
	if key == "" {
		return ""
	}
	if isURL(key) {
		return template.URL(key)
	}
	img, ok := photos[key]
	if !ok {
		return ""
	}
	mimeType := mime.TypeByExtension("." + photoExt(key))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return template.URL("data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(img))
}
