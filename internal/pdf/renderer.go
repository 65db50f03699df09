// Package pdf renders the derived pages of a document into a PDF, one output page per
// layout page, so the export matches what the editor shows.
package pdf

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"cvCanvas/internal/cv"
	"cvCanvas/internal/layout"
)

// Renderer 把分页结果渲染成 PDF 字节。
type Renderer interface {
	Render(ctx context.Context, in Input) ([]byte, error)
}

// Input 是一次渲染所需的全部数据。
type Input struct {
	Document cv.Document
	Pages    []layout.PageView
	// Photos 按 header 中的 photo key 提供图片内容；缺失时跳过图片。
	Photos map[string][]byte
}

// New 按名称创建渲染器："native" 或 "chromium"。
func New(kind string, renderWait time.Duration) (Renderer, error) {
	switch kind {
	case "", "native":
		return NativeRenderer{}, nil
	case "chromium":
		return &ChromiumRenderer{Timeout: renderWait}, nil
	default:
		return nil, fmt.Errorf("unsupported renderer %q", kind)
	}
}

// PhotoKeys 列出文档中所有 header 引用的图片 key（不含外部 URL）。
func PhotoKeys(doc cv.Document) []string {
	var keys []string
	for _, c := range doc.Components {
		h, ok := c.Data.(cv.HeaderData)
		if !ok || !c.Visible || h.Photo == "" || isURL(h.Photo) {
			continue
		}
		keys = append(keys, h.Photo)
	}
	return keys
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func photoExt(key string) string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(key)), ".")
}

// pxToMM converts CSS pixels at 96 DPI.
func pxToMM(px int) float64 {
	return float64(px) * 25.4 / 96
}

// parseHex reads "#rrggbb"; ok is false for anything else.
func parseHex(s string) (r, g, b int, ok bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff), true
}

// parsePt reads sizes like "12pt", "16px" or "1.5rem" as points, falling back to def.
func parsePt(s string, def float64) float64 {
	s = strings.TrimSpace(s)
	scale := 1.0
	switch {
	case strings.HasSuffix(s, "pt"):
		s = strings.TrimSuffix(s, "pt")
	case strings.HasSuffix(s, "px"):
		s, scale = strings.TrimSuffix(s, "px"), 0.75
	case strings.HasSuffix(s, "rem"):
		s, scale = strings.TrimSuffix(s, "rem"), 12
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return def
	}
	return v * scale
}
