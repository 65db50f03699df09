package layout

import "cvCanvas/internal/cv"

// Estimator maps a component to an estimated pixel height.
type Estimator interface {
	Estimate(component cv.Component) int
}

// DefaultBaseHeight is used for types missing from the base height table.
const DefaultBaseHeight = 100

var baseHeights = map[cv.Type]int{
	cv.TypeHeader:         100,
	cv.TypeContact:        80,
	cv.TypeSummary:        100,
	cv.TypeExperience:     150, // per item
	cv.TypeEducation:      120, // per item
	cv.TypeSkills:         70,
	cv.TypeProjects:       180, // per item
	cv.TypeCertifications: 70,  // per item
	cv.TypeLanguages:      80,
	cv.TypeCustomSection:  120,
}

// BaseHeight returns one height unit for the given type.
func BaseHeight(t cv.Type) int {
	if h, ok := baseHeights[t]; ok {
		return h
	}
	return DefaultBaseHeight
}

// BaseHeights is the static heuristic: base height for plain components and
// base × max(items, 1) for list-bearing ones, so an empty list still costs one unit.
type BaseHeights struct{}

func (BaseHeights) Estimate(component cv.Component) int {
	base := BaseHeight(component.Type)
	if list, ok := component.Items(); ok {
		return base * max(list.ItemCount(), 1)
	}
	return base
}
