package domain

// Language is the declared language of a challenge file.
type Language string

const (
	LanguageHTML       Language = "html"
	LanguageCSS        Language = "css"
	LanguageJavaScript Language = "js"
)

// CheckType selects how a requirement is verified against learner source.
type CheckType string

const (
	CheckContains CheckType = "contains"
	CheckRegex    CheckType = "regex"
	CheckElement  CheckType = "element"
	CheckManual   CheckType = "manual"
)

// Known reports whether the check type is one the evaluator understands.
func (t CheckType) Known() bool {
	switch t {
	case CheckContains, CheckRegex, CheckElement, CheckManual:
		return true
	default:
		return false
	}
}

// ChallengeFile is the immutable starter template for one editable file.
type ChallengeFile struct {
	Name        string   `json:"name" yaml:"name"`
	Language    Language `json:"language" yaml:"language"`
	StarterCode string   `json:"starter_code" yaml:"starter_code"`
}

// Requirement is a single declarative grading check.
type Requirement struct {
	ID          string    `json:"id" yaml:"id"`
	Description string    `json:"description" yaml:"description"`
	CheckType   CheckType `json:"check_type" yaml:"check_type"`
	CheckValue  *string   `json:"check_value,omitempty" yaml:"check_value,omitempty"`
	Points      int       `json:"points" yaml:"points"`
}

// Value returns the check value, or "" when none was authored.
func (r Requirement) Value() string {
	if r.CheckValue == nil {
		return ""
	}
	return *r.CheckValue
}

// Challenge represents an interactive coding challenge.
type Challenge struct {
	ID             string          `json:"id" yaml:"id"`
	Title          string          `json:"title" yaml:"title"`
	Description    string          `json:"description" yaml:"description"`
	Difficulty     string          `json:"difficulty,omitempty" yaml:"difficulty"`
	Files          []ChallengeFile `json:"files" yaml:"files"`
	Requirements   []Requirement   `json:"requirements" yaml:"requirements"`
	Hints          []string        `json:"hints" yaml:"hints"`
	TotalPoints    int             `json:"total_points" yaml:"total_points"`
	PassingScore   int             `json:"passing_score" yaml:"passing_score"`
	PreviewSupport bool            `json:"preview_support" yaml:"preview_support"`
}

// RequirementPoints returns the declared points for each requirement, keyed by id.
func (c *Challenge) RequirementPoints() map[string]int {
	points := make(map[string]int, len(c.Requirements))
	for _, r := range c.Requirements {
		points[r.ID] = r.Points
	}
	return points
}

// Summary is the listing view of a challenge.
type Summary struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Difficulty     string `json:"difficulty,omitempty"`
	PreviewSupport bool   `json:"preview_support"`
}

// Summarize returns the listing view of the challenge.
func (c *Challenge) Summarize() Summary {
	return Summary{
		ID:             c.ID,
		Title:          c.Title,
		Difficulty:     c.Difficulty,
		PreviewSupport: c.PreviewSupport,
	}
}
