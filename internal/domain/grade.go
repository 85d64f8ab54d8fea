package domain

// WorkingFile is the learner's mutable copy of a ChallengeFile.
type WorkingFile struct {
	Name     string   `json:"name"`
	Language Language `json:"language"`
	Content  string   `json:"content"`
}

// CheckResult is the outcome of one requirement on one grading run.
type CheckResult struct {
	RequirementID string `json:"requirement_id"`
	Passed        bool   `json:"passed"`
	Message       string `json:"message"`
}

// GradeSummary is the aggregated outcome of a grading run.
type GradeSummary struct {
	Score  int           `json:"score"`
	Passed bool          `json:"passed"`
	Checks []CheckResult `json:"checks"`
}

// PassedCount returns how many checks passed.
func (g *GradeSummary) PassedCount() int {
	n := 0
	for _, c := range g.Checks {
		if c.Passed {
			n++
		}
	}
	return n
}
