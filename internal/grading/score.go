package grading

import (
	"math"

	"github.com/ashureev/challenge-lab/internal/domain"
)

// Aggregate converts check results into a grade summary for the challenge.
// The challenge must have a positive TotalPoints; the catalog rejects content
// that does not.
func Aggregate(c *domain.Challenge, results []domain.CheckResult) domain.GradeSummary {
	points := c.RequirementPoints()

	earned := 0
	for _, r := range results {
		if r.Passed {
			earned += points[r.RequirementID]
		}
	}

	score := Score(earned, c.TotalPoints)
	return domain.GradeSummary{
		Score:  score,
		Passed: score >= c.PassingScore,
		Checks: results,
	}
}

// Score returns round(100 * earned / total), or 0 when total is not positive.
func Score(earned, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(earned) / float64(total)))
}

// Grade evaluates source against the challenge and aggregates the result.
func Grade(c *domain.Challenge, source string) domain.GradeSummary {
	return Aggregate(c, Evaluate(c.Requirements, source))
}
