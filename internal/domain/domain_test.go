package domain

import (
	"testing"
	"time"
)

func TestRequirementValue(t *testing.T) {
	v := "<button"
	if got := (Requirement{CheckValue: &v}).Value(); got != v {
		t.Errorf("Value() = %q", got)
	}
	if got := (Requirement{}).Value(); got != "" {
		t.Errorf("missing value should be empty, got %q", got)
	}
}

func TestCheckTypeKnown(t *testing.T) {
	for _, ct := range []CheckType{CheckContains, CheckRegex, CheckElement, CheckManual} {
		if !ct.Known() {
			t.Errorf("%q should be known", ct)
		}
	}
	if CheckType("ai_review").Known() {
		t.Error("unexpected known check type")
	}
}

func TestRequirementPoints(t *testing.T) {
	c := &Challenge{Requirements: []Requirement{{ID: "a", Points: 10}, {ID: "b", Points: 30}}}
	points := c.RequirementPoints()
	if points["a"] != 10 || points["b"] != 30 || len(points) != 2 {
		t.Errorf("RequirementPoints() = %v", points)
	}
}

func TestPassedCount(t *testing.T) {
	g := GradeSummary{Checks: []CheckResult{{Passed: true}, {Passed: false}, {Passed: true}}}
	if n := g.PassedCount(); n != 2 {
		t.Errorf("PassedCount() = %d", n)
	}
}

func TestIdleFor(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	u := &User{LastSeenAt: now.Add(-10 * time.Minute)}
	if d := u.IdleFor(now); d != 10*time.Minute {
		t.Errorf("IdleFor = %v", d)
	}
	u.LastSeenAt = now.Add(time.Minute)
	if d := u.IdleFor(now); d != 0 {
		t.Errorf("future last-seen should be 0, got %v", d)
	}
}
