// Package grading evaluates learner source against a challenge's requirements and
// turns the results into a score.
package grading

import (
	"log/slog"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/ashureev/challenge-lab/internal/domain"
	"github.com/dlclark/regexp2"
)

const (
	// ManualThreshold is the source length a manual check must exceed.
	ManualThreshold = 200

	// regexTimeout bounds a single pattern match; a pattern that backtracks
	// past it fails its check instead of stalling the grading run.
	regexTimeout = 250 * time.Millisecond

	passPrefix = "✓ "
	failPrefix = "✗ "
)

// Evaluate runs every requirement against source and returns one result per
// requirement, in requirement order. It never panics on bad content.
func Evaluate(requirements []domain.Requirement, source string) []domain.CheckResult {
	results := make([]domain.CheckResult, len(requirements))
	for i, req := range requirements {
		passed := check(req, source)
		results[i] = domain.CheckResult{
			RequirementID: req.ID,
			Passed:        passed,
			Message:       message(req.Description, passed),
		}
	}
	return results
}

func check(req domain.Requirement, source string) bool {
	switch req.CheckType {
	case domain.CheckContains:
		return strings.Contains(source, req.Value())
	case domain.CheckRegex:
		return matchRegex(req, source)
	case domain.CheckElement:
		return containsElements(req.Value(), source)
	case domain.CheckManual:
		return sourceLength(source) > ManualThreshold
	default:
		return false
	}
}

// matchRegex compiles the pattern with JavaScript semantics, case-insensitively.
// Compile errors and match timeouts fail the check.
func matchRegex(req domain.Requirement, source string) bool {
	re, err := regexp2.Compile(req.Value(), regexp2.ECMAScript|regexp2.IgnoreCase)
	if err != nil {
		slog.Warn("Requirement pattern does not compile", "requirement_id", req.ID, "error", err)
		return false
	}
	re.MatchTimeout = regexTimeout

	ok, err := re.MatchString(source)
	if err != nil {
		slog.Warn("Requirement pattern match failed", "requirement_id", req.ID, "error", err)
		return false
	}
	return ok
}

// containsElements reports whether every comma-separated tag appears as an
// opening-tag prefix somewhere in source. This is a substring test, so tags in
// comments or string literals also count.
func containsElements(value, source string) bool {
	lower := strings.ToLower(source)
	for _, tag := range strings.Split(value, ",") {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if !strings.Contains(lower, "<"+tag) {
			return false
		}
	}
	return true
}

// sourceLength counts UTF-16 code units, matching how the editor measures text.
func sourceLength(source string) int {
	n := 0
	for _, r := range source {
		n += utf16.RuneLen(r)
	}
	return n
}

func message(description string, passed bool) string {
	if passed {
		return passPrefix + description
	}
	return failPrefix + description
}
