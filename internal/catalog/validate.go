package catalog

import (
	"errors"
	"fmt"

	"github.com/ashureev/challenge-lab/internal/domain"
	"github.com/dlclark/regexp2"
)

var ErrInvalidChallenge = errors.New("invalid challenge")

// Validate checks the content invariants a challenge must satisfy before it can
// be served. Problems that grading tolerates at runtime (unknown check types,
// patterns that do not compile) are returned as warnings instead.
func Validate(c *domain.Challenge) (warnings []string, err error) {
	var problems []error
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	if c.ID == "" {
		add("id is required")
	}
	if c.TotalPoints <= 0 {
		add("total_points must be > 0, got %d", c.TotalPoints)
	}
	if c.PassingScore < 0 || c.PassingScore > 100 {
		add("passing_score must be within 0..100, got %d", c.PassingScore)
	}

	names := make(map[string]bool, len(c.Files))
	for _, f := range c.Files {
		if f.Name == "" {
			add("file name is required")
			continue
		}
		if names[f.Name] {
			add("duplicate file name %q", f.Name)
		}
		names[f.Name] = true
	}

	ids := make(map[string]bool, len(c.Requirements))
	sum := 0
	for _, r := range c.Requirements {
		if r.ID == "" {
			add("requirement id is required")
		} else if ids[r.ID] {
			add("duplicate requirement id %q", r.ID)
		}
		ids[r.ID] = true

		if r.Points <= 0 {
			add("requirement %q: points must be > 0, got %d", r.ID, r.Points)
		}
		sum += r.Points

		switch {
		case !r.CheckType.Known():
			warnings = append(warnings, fmt.Sprintf("requirement %q: unknown check type %q always fails", r.ID, r.CheckType))
		case r.CheckType == domain.CheckRegex:
			if _, err := regexp2.Compile(r.Value(), regexp2.ECMAScript|regexp2.IgnoreCase); err != nil {
				warnings = append(warnings, fmt.Sprintf("requirement %q: pattern does not compile and always fails: %v", r.ID, err))
			}
		case r.CheckType == domain.CheckContains && r.Value() == "":
			warnings = append(warnings, fmt.Sprintf("requirement %q: empty contains value always passes", r.ID))
		}
	}
	if sum != c.TotalPoints {
		add("requirement points sum to %d, total_points is %d", sum, c.TotalPoints)
	}

	if len(problems) > 0 {
		return warnings, fmt.Errorf("%w %q: %w", ErrInvalidChallenge, c.ID, errors.Join(problems...))
	}
	return warnings, nil
}
