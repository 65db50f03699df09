package layout

import (
	"slices"

	"cvCanvas/internal/cv"
)

// Reorder applies a drag-and-drop outcome: the component activeID was dropped onto
// the component overID. The moved component adopts the target's page, is reinserted at
// the target's index, and every page is then renumbered densely from 0 in list order.
// Self-drops and unknown ids are ignored: the input is returned with false.
func Reorder(components []cv.Component, activeID, overID string) ([]cv.Component, bool) {
	if activeID == "" || overID == "" || activeID == overID {
		return components, false
	}
	oldIndex := indexOf(components, activeID)
	newIndex := indexOf(components, overID)
	if oldIndex < 0 || newIndex < 0 {
		return components, false
	}

	moved := components[oldIndex]
	rest := slices.Concat(components[:oldIndex], components[oldIndex+1:])

	// Removing the moved component shifts everything after it up by one.
	targetIndex := newIndex
	if newIndex >= oldIndex {
		targetIndex = newIndex - 1
	}
	if targetIndex >= 0 && targetIndex < len(rest) {
		moved.PageNumber = rest[targetIndex].PageNumber
	}

	rest = slices.Insert(rest, min(newIndex, len(rest)), moved)
	return Normalize(rest), true
}

// MoveToPage moves a component to the tail of page, e.g. when it is dropped onto an
// empty page that has no component to target. Unknown ids and pages below 1 are ignored.
func MoveToPage(components []cv.Component, id string, page int) ([]cv.Component, bool) {
	if page < 1 {
		return components, false
	}
	idx := indexOf(components, id)
	if idx < 0 {
		return components, false
	}

	moved := components[idx]
	moved.PageNumber = page
	moved.Order = NextOrder(components, page)

	rest := slices.Concat(components[:idx], components[idx+1:])
	rest = append(rest, moved)
	slices.SortStableFunc(rest, comparePlacement)
	return Normalize(rest), true
}

// Normalize groups components by page (ascending) and renumbers order densely from 0
// within each page, following list traversal order. Invisible components keep a slot.
func Normalize(components []cv.Component) []cv.Component {
	byPage := map[int][]cv.Component{}
	for _, c := range components {
		byPage[c.PageNumber] = append(byPage[c.PageNumber], c)
	}

	numbers := make([]int, 0, len(byPage))
	for n := range byPage {
		numbers = append(numbers, n)
	}
	slices.Sort(numbers)

	out := make([]cv.Component, 0, len(components))
	for _, n := range numbers {
		for i, c := range byPage[n] {
			c.Order = i
			out = append(out, c)
		}
	}
	return out
}
