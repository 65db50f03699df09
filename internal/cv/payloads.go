package cv

// SkillLevel 技能熟练度。
type SkillLevel string

const (
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
	SkillExpert       SkillLevel = "expert"
)

// Proficiency 语言掌握程度。
type Proficiency string

const (
	ProficiencyBasic          Proficiency = "basic"
	ProficiencyConversational Proficiency = "conversational"
	ProficiencyFluent         Proficiency = "fluent"
	ProficiencyNative         Proficiency = "native"
)

// HeaderData 姓名、头衔与可选头像。Photo 为用户资产的 object key 或外部 URL。
type HeaderData struct {
	FullName string `json:"fullName"`
	Title    string `json:"title"`
	Photo    string `json:"photo,omitempty"`
}

func (HeaderData) ComponentType() Type { return TypeHeader }

type ContactData struct {
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
	Website  string `json:"website,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
	GitHub   string `json:"github,omitempty"`
	Twitter  string `json:"twitter,omitempty"`
}

func (ContactData) ComponentType() Type { return TypeContact }

type SummaryData struct {
	Content string `json:"content"`
}

func (SummaryData) ComponentType() Type { return TypeSummary }

type CustomSectionData struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (CustomSectionData) ComponentType() Type { return TypeCustomSection }

// ExperienceItem 一段工作经历。EndDate 为空表示至今。
type ExperienceItem struct {
	ID          string   `json:"id"`
	Company     string   `json:"company"`
	Position    string   `json:"position"`
	Location    string   `json:"location,omitempty"`
	StartDate   string   `json:"startDate"`
	EndDate     string   `json:"endDate,omitempty"`
	Current     bool     `json:"current"`
	Description string   `json:"description"`
	Highlights  []string `json:"highlights,omitempty"`
}

type ExperienceData struct {
	Items []ExperienceItem `json:"items"`
}

func (ExperienceData) ComponentType() Type { return TypeExperience }
func (d ExperienceData) ItemCount() int    { return len(d.Items) }
func (d ExperienceData) SliceItems(from, to int) Payload {
	d.Items = sliceCopy(d.Items, from, to)
	return d
}

type EducationItem struct {
	ID          string `json:"id"`
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	Field       string `json:"field"`
	Location    string `json:"location,omitempty"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate,omitempty"`
	Current     bool   `json:"current"`
	GPA         string `json:"gpa,omitempty"`
	Description string `json:"description,omitempty"`
}

type EducationData struct {
	Items []EducationItem `json:"items"`
}

func (EducationData) ComponentType() Type { return TypeEducation }
func (d EducationData) ItemCount() int    { return len(d.Items) }
func (d EducationData) SliceItems(from, to int) Payload {
	d.Items = sliceCopy(d.Items, from, to)
	return d
}

type SkillItem struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Level    SkillLevel `json:"level,omitempty"`
	Category string     `json:"category,omitempty"`
}

// SkillsData 除条目外还携带展示开关，拆分时两半沿用同一组开关。
type SkillsData struct {
	Items           []SkillItem `json:"items"`
	ShowLevel       bool        `json:"showLevel"`
	GroupByCategory bool        `json:"groupByCategory"`
}

func (SkillsData) ComponentType() Type { return TypeSkills }
func (d SkillsData) ItemCount() int    { return len(d.Items) }
func (d SkillsData) SliceItems(from, to int) Payload {
	d.Items = sliceCopy(d.Items, from, to)
	return d
}

type ProjectItem struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies,omitempty"`
	URL          string   `json:"url,omitempty"`
	GitHub       string   `json:"github,omitempty"`
	StartDate    string   `json:"startDate,omitempty"`
	EndDate      string   `json:"endDate,omitempty"`
	Highlights   []string `json:"highlights,omitempty"`
}

type ProjectsData struct {
	Items []ProjectItem `json:"items"`
}

func (ProjectsData) ComponentType() Type { return TypeProjects }
func (d ProjectsData) ItemCount() int    { return len(d.Items) }
func (d ProjectsData) SliceItems(from, to int) Payload {
	d.Items = sliceCopy(d.Items, from, to)
	return d
}

type CertificationItem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Issuer       string `json:"issuer"`
	Date         string `json:"date"`
	ExpiryDate   string `json:"expiryDate,omitempty"`
	CredentialID string `json:"credentialId,omitempty"`
	URL          string `json:"url,omitempty"`
}

type CertificationsData struct {
	Items []CertificationItem `json:"items"`
}

func (CertificationsData) ComponentType() Type { return TypeCertifications }
func (d CertificationsData) ItemCount() int    { return len(d.Items) }
func (d CertificationsData) SliceItems(from, to int) Payload {
	d.Items = sliceCopy(d.Items, from, to)
	return d
}

type LanguageItem struct {
	ID          string      `json:"id"`
	Language    string      `json:"language"`
	Proficiency Proficiency `json:"proficiency"`
}

type LanguagesData struct {
	Items []LanguageItem `json:"items"`
}

func (LanguagesData) ComponentType() Type { return TypeLanguages }
func (d LanguagesData) ItemCount() int    { return len(d.Items) }
func (d LanguagesData) SliceItems(from, to int) Payload {
	d.Items = sliceCopy(d.Items, from, to)
	return d
}
