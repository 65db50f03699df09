package pdf

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"cvCanvas/internal/cv"
)

// LineKind 决定一行文字的排版样式。
type LineKind int

const (
	LineBody LineKind = iota
	LineTitle
	LineSubtitle
	LineMuted
	LineBullet
)

type Line struct {
	Kind LineKind
	Text string
}

// Section 是渲染器无关的组件内容：一个可选标题加若干行。
type Section struct {
	Type    cv.Type
	Heading string
	Lines   []Line
	// Photo 只在 header 中出现，保存资产 key 或 URL。
	Photo string
}

var headings = map[cv.Type]string{
	cv.TypeSummary:        "Summary",
	cv.TypeExperience:     "Experience",
	cv.TypeEducation:      "Education",
	cv.TypeSkills:         "Skills",
	cv.TypeProjects:       "Projects",
	cv.TypeCertifications: "Certifications",
	cv.TypeLanguages:      "Languages",
}

// BuildSection 把组件内容展开成行。
func BuildSection(c cv.Component) Section {
	s := Section{Type: c.Type, Heading: headings[c.Type]}

	switch d := c.Data.(type) {
	case cv.HeaderData:
		s.Photo = d.Photo
		s.add(LineTitle, d.FullName)
		s.add(LineSubtitle, d.Title)
	case cv.ContactData:
		parts := lo.Compact([]string{d.Email, d.Phone, d.Location, d.Website, d.LinkedIn, d.GitHub, d.Twitter})
		s.add(LineMuted, strings.Join(parts, "  |  "))
	case cv.SummaryData:
		s.add(LineBody, d.Content)
	case cv.CustomSectionData:
		s.Heading = d.Title
		s.add(LineBody, d.Content)
	case cv.ExperienceData:
		for _, it := range d.Items {
			s.add(LineSubtitle, joinNonEmpty(" - ", it.Position, it.Company))
			s.add(LineMuted, joinNonEmpty("  ", dateRange(it.StartDate, it.EndDate, it.Current), it.Location))
			s.add(LineBody, it.Description)
			s.bullets(it.Highlights)
		}
	case cv.EducationData:
		for _, it := range d.Items {
			s.add(LineSubtitle, joinNonEmpty(", ", it.Degree, it.Field))
			s.add(LineBody, it.Institution)
			gpa := ""
			if it.GPA != "" {
				gpa = "GPA " + it.GPA
			}
			s.add(LineMuted, joinNonEmpty("  ", dateRange(it.StartDate, it.EndDate, it.Current), it.Location, gpa))
			s.add(LineBody, it.Description)
		}
	case cv.SkillsData:
		s.skills(d)
	case cv.ProjectsData:
		for _, it := range d.Items {
			s.add(LineSubtitle, it.Name)
			s.add(LineMuted, joinNonEmpty("  ", strings.Join(it.Technologies, ", "), it.URL))
			s.add(LineBody, it.Description)
			s.bullets(it.Highlights)
		}
	case cv.CertificationsData:
		for _, it := range d.Items {
			s.add(LineSubtitle, joinNonEmpty(" - ", it.Name, it.Issuer))
			s.add(LineMuted, joinNonEmpty("  ", it.Date, it.CredentialID))
		}
	case cv.LanguagesData:
		for _, it := range d.Items {
			s.add(LineBody, joinNonEmpty(" - ", it.Language, string(it.Proficiency)))
		}
	}
	return s
}

func (s *Section) add(kind LineKind, text string) {
	if text = strings.TrimSpace(text); text != "" {
		s.Lines = append(s.Lines, Line{Kind: kind, Text: text})
	}
}

func (s *Section) bullets(items []string) {
	for _, b := range items {
		s.add(LineBullet, b)
	}
}

func (s *Section) skills(d cv.SkillsData) {
	label := func(it cv.SkillItem) string {
		if d.ShowLevel && it.Level != "" {
			return fmt.Sprintf("%s (%s)", it.Name, it.Level)
		}
		return it.Name
	}

	if !d.GroupByCategory {
		s.add(LineBody, strings.Join(lo.Map(d.Items, func(it cv.SkillItem, _ int) string { return label(it) }), ", "))
		return
	}

	groups := lo.GroupBy(d.Items, func(it cv.SkillItem) string { return it.Category })
	categories := lo.Uniq(lo.Map(d.Items, func(it cv.SkillItem, _ int) string { return it.Category }))
	for _, cat := range categories {
		names := lo.Map(groups[cat], func(it cv.SkillItem, _ int) string { return label(it) })
		if cat == "" {
			cat = "Other"
		}
		s.add(LineBody, cat+": "+strings.Join(names, ", "))
	}
}

func dateRange(start, end string, current bool) string {
	if current {
		end = "Present"
	}
	return joinNonEmpty(" - ", start, end)
}

func joinNonEmpty(sep string, parts ...string) string {
	return strings.Join(lo.Compact(lo.Map(parts, func(p string, _ int) string { return strings.TrimSpace(p) })), sep)
}
