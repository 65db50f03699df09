package layout

import (
	"cmp"
	"slices"

	"github.com/samber/lo"

	"cvCanvas/internal/cv"
)

// Pages maps a page number to its visible components in display order.
type Pages map[int][]cv.Component

// Distribute buckets visible components by page number, ordered by (pageNumber, order).
// Page 1 is always present, possibly empty. Page numbers below 1 are read as page 1.
func Distribute(components []cv.Component) Pages {
	visible := lo.FilterMap(components, func(c cv.Component, _ int) (cv.Component, bool) {
		// 页码从 1 开始，非法页码归入第一页。
		c.PageNumber = max(c.PageNumber, 1)
		return c, c.Visible
	})
	slices.SortStableFunc(visible, comparePlacement)

	pages := Pages{1: {}}
	for _, c := range visible {
		pages[c.PageNumber] = append(pages[c.PageNumber], c)
	}
	return pages
}

func comparePlacement(a, b cv.Component) int {
	if a.PageNumber != b.PageNumber {
		return cmp.Compare(a.PageNumber, b.PageNumber)
	}
	return cmp.Compare(a.Order, b.Order)
}

// Numbers returns the page numbers present, ascending.
func (p Pages) Numbers() []int {
	numbers := lo.Keys(p)
	slices.Sort(numbers)
	return numbers
}

// Flatten concatenates the buckets in page order.
func (p Pages) Flatten() []cv.Component {
	var out []cv.Component
	for _, n := range p.Numbers() {
		out = append(out, p[n]...)
	}
	return out
}

// TotalPages is max(highest pageNumber, 1); an empty list has one page.
func TotalPages(components []cv.Component) int {
	total := 1
	for _, c := range components {
		total = max(total, c.PageNumber)
	}
	return total
}

// PageView is a rendered page: its components plus the estimated fill.
type PageView struct {
	Number          int            `json:"pageNumber"`
	Components      []cv.Component `json:"components"`
	EstimatedHeight int            `json:"estimatedHeight"`
	Overflowing     bool           `json:"overflowing"`
}

// Layout returns every page from 1 to max(TotalPages, manualPageCount), including
// empty pages the user added ahead of content.
func (e *Engine) Layout(components []cv.Component, manualPageCount int) []PageView {
	pages := Distribute(components)
	total := max(TotalPages(components), manualPageCount, 1)

	views := make([]PageView, 0, total)
	for n := 1; n <= total; n++ {
		comps := pages[n]
		if comps == nil {
			comps = []cv.Component{}
		}
		height := e.sumHeights(comps, "")
		views = append(views, PageView{
			Number:          n,
			Components:      comps,
			EstimatedHeight: height,
			Overflowing:     height > e.availableHeight,
		})
	}
	return views
}
