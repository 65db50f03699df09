package layout

import "cvCanvas/internal/cv"

// SuggestPage advises which page a new component of candidateType should land on.
// It returns the first page, in ascending order, whose estimated fill plus the
// candidate stays within the safety margin; if none has room, the page after the last.
// First fit is deliberate: an earlier page with room wins over a later, emptier one.
// The advice reserves nothing.
func (e *Engine) SuggestPage(existing []cv.Component, candidateType cv.Type) int {
	if len(existing) == 0 {
		return 1
	}

	pages := Distribute(existing)
	maxPage := TotalPages(existing)
	candidate := e.estimator.Estimate(cv.Component{Type: candidateType})

	for page := 1; page <= maxPage; page++ {
		used := e.sumHeights(pages[page], "")
		if float64(used+candidate) <= e.capacity() {
			return page
		}
	}
	return maxPage + 1
}

// WillExceedPageHeight reports whether adding candidate to pageComponents would run past
// the available height. Unlike SuggestPage it applies no safety margin.
func (e *Engine) WillExceedPageHeight(pageComponents []cv.Component, candidate cv.Component) bool {
	return e.sumHeights(pageComponents, "")+e.estimator.Estimate(candidate) > e.availableHeight
}

// NextOrder returns the order that places a new component at the tail of page.
func NextOrder(components []cv.Component, page int) int {
	next := 0
	for _, c := range components {
		if c.PageNumber == page && c.Order >= next {
			next = c.Order + 1
		}
	}
	return next
}
