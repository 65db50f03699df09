package layout

import "cvCanvas/internal/cv"

// Overflow says how many of a component's items fit on its current page.
type Overflow struct {
	OnCurrentPage int `json:"itemsOnCurrentPage"`
	OnNextPage    int `json:"itemsOnNextPage"`
}

// ComputeOverflow packs the component's items, in order, on top of the other components
// already on the page (the component itself is excluded by id). Each item costs the
// estimate of a one-item component of the same type, the type's base height under
// BaseHeights. Packing stops at the first item that would cross the safety margin.
// Components without an item list report no overflow.
func (e *Engine) ComputeOverflow(component cv.Component, pageComponents []cv.Component) Overflow {
	list, ok := component.Items()
	if !ok {
		return Overflow{}
	}

	total := list.ItemCount()
	accumulated := float64(e.sumHeights(pageComponents, component.ID))
	limit := e.capacity()

	fit := 0
	for i := 0; i < total; i++ {
		unit := float64(e.estimator.Estimate(component.WithData(list.SliceItems(i, i+1))))
		if accumulated+unit > limit {
			break
		}
		accumulated += unit
		fit++
	}

	return Overflow{OnCurrentPage: fit, OnNextPage: total - fit}
}

// Split divides a list-bearing component after onCurrentPage items. The first result keeps
// the original identity, page and order with the head of the items; the second, when
// present, is a new component with a fresh id holding the tail, placed first
// (order 0) on currentPage+1. The halves are unrelated afterwards.
func (e *Engine) Split(component cv.Component, currentPage, onCurrentPage int) []cv.Component {
	list, ok := component.Items()
	if !ok {
		return []cv.Component{component}
	}

	total := list.ItemCount()
	if onCurrentPage >= total {
		return []cv.Component{component}
	}
	onCurrentPage = max(onCurrentPage, 0)

	head := component.WithData(list.SliceItems(0, onCurrentPage))

	tail := component.WithData(list.SliceItems(onCurrentPage, total))
	tail.ID = e.newID()
	tail.PageNumber = currentPage + 1
	tail.Order = 0

	return []cv.Component{head, tail}
}

// ApplySplit splits the component with the given id against its current page and
// returns the new list with the sibling inserted right after it. Components already on
// the next page move down one order slot so that order stays unique per page.
// It reports false, returning the input, when the id is unknown or nothing overflows.
func (e *Engine) ApplySplit(components []cv.Component, id string) ([]cv.Component, bool) {
	idx := indexOf(components, id)
	if idx < 0 {
		return components, false
	}

	target := components[idx]
	page := target.PageNumber
	overflow := e.ComputeOverflow(target, Distribute(components)[page])
	parts := e.Split(target, page, overflow.OnCurrentPage)
	if len(parts) == 1 {
		return components, false
	}

	out := make([]cv.Component, 0, len(components)+1)
	for i, c := range components {
		if i == idx {
			out = append(out, parts...)
			continue
		}
		if c.PageNumber == page+1 {
			c.Order++
		}
		out = append(out, c)
	}
	return out, true
}

func indexOf(components []cv.Component, id string) int {
	if id == "" {
		return -1
	}
	for i, c := range components {
		if c.ID == id {
			return i
		}
	}
	return -1
}
