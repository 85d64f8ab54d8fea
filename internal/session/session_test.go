package session

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/challenge-lab/internal/domain"
	"github.com/ashureev/challenge-lab/internal/preview"
)

func strPtr(s string) *string { return &s }

func testChallenge() *domain.Challenge {
	return &domain.Challenge{
		ID: "red-button",
		Files: []domain.ChallengeFile{
			{Name: "index.html", Language: domain.LanguageHTML, StarterCode: "<button>Click</button>"},
			{Name: "style.css", Language: domain.LanguageCSS, StarterCode: "button {}"},
		},
		Requirements: []domain.Requirement{
			{ID: "a", Description: "Has a button", CheckType: domain.CheckContains, CheckValue: strPtr("<button"), Points: 50},
			{ID: "b", Description: "Button is red", CheckType: domain.CheckRegex, CheckValue: strPtr(`color\s*:\s*red`), Points: 50},
		},
		Hints:          []string{"Use a button element", "Set the color property"},
		TotalPoints:    100,
		PassingScore:   60,
		PreviewSupport: true,
	}
}

func newTestSession(delay time.Duration) (*Session, *preview.Registry) {
	reg := preview.NewRegistry()
	return New(testChallenge(), reg, Options{SubmitDelay: delay}), reg
}

func TestSubmitScenario(t *testing.T) {
	s, _ := newTestSession(0)

	got, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got.Score != 50 || got.Passed {
		t.Errorf("expected 50/false, got %d/%v", got.Score, got.Passed)
	}

	s.SelectFile(1)
	s.Edit("button { color: red; }")

	got, err = s.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got.Score != 100 || !got.Passed {
		t.Errorf("expected 100/true, got %d/%v", got.Score, got.Passed)
	}
	if snap := s.Snapshot(); snap.Result == nil || snap.Result.Score != 100 {
		t.Error("result should be stored on the session")
	}
}

func TestSubmitTwiceIsIdempotent(t *testing.T) {
	s, _ := newTestSession(0)

	first, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	second, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("submits differ:\n%+v\n%+v", first, second)
	}
}

func TestSubmitIsNotReentrant(t *testing.T) {
	s, _ := newTestSession(300 * time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = s.Submit(context.Background())
	}()

	deadline := time.Now().Add(time.Second)
	for !s.Submitting() {
		if time.Now().After(deadline) {
			t.Fatal("first submit never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if !s.Snapshot().Submitting {
		t.Error("snapshot should report submitting")
	}
	if _, err := s.Submit(context.Background()); !errors.Is(err, ErrSubmitInProgress) {
		t.Errorf("expected ErrSubmitInProgress, got %v", err)
	}

	wg.Wait()
	if firstErr != nil {
		t.Fatalf("first submit failed: %v", firstErr)
	}
	if s.Submitting() {
		t.Error("submitting flag should clear after completion")
	}
}

func TestSubmitHonorsContext(t *testing.T) {
	s, _ := newTestSession(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := s.Submit(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if s.Submitting() {
		t.Error("submitting flag should clear after cancellation")
	}
}

func TestResetDuringSubmitDiscardsResult(t *testing.T) {
	s, _ := newTestSession(100 * time.Millisecond)

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background())
		done <- err
	}()
	for !s.Submitting() {
		time.Sleep(time.Millisecond)
	}
	s.Reset()

	if err := <-done; !errors.Is(err, ErrSessionReset) {
		t.Errorf("expected ErrSessionReset, got %v", err)
	}
	if s.Snapshot().Result != nil {
		t.Error("stale result should not be stored after reset")
	}
}

func TestResetRestoresStarterSource(t *testing.T) {
	s, _ := newTestSession(0)
	want := s.ConcatenatedSource()

	s.Edit("<p>replaced</p>")
	s.SelectFile(1)
	s.Edit("p { color: red }")
	s.RevealNextHint()
	if _, err := s.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	snap, err := s.Reset()
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}

	if got := s.ConcatenatedSource(); got != want {
		t.Errorf("source after reset = %q, want %q", got, want)
	}
	if snap.Result != nil {
		t.Error("reset should clear the grade")
	}
	if snap.ActiveIndex != 0 {
		t.Errorf("reset should activate the first file, got %d", snap.ActiveIndex)
	}
	if len(snap.RevealedHints) != 0 {
		t.Errorf("reset should hide hints, got %v", snap.RevealedHints)
	}
}

func TestRevealNextHintClamps(t *testing.T) {
	s, _ := newTestSession(0)
	total := len(s.Challenge().Hints)

	var hints []string
	for i := 0; i < total+5; i++ {
		hints = s.RevealNextHint()
	}

	if s.RevealedCount() != total {
		t.Errorf("revealed = %d, want %d", s.RevealedCount(), total)
	}
	if !reflect.DeepEqual(hints, s.Challenge().Hints) {
		t.Errorf("revealed hints = %v", hints)
	}
}

func TestEditRefreshesVisiblePreview(t *testing.T) {
	s, reg := newTestSession(0)

	if snap, _ := s.Edit("<p>hidden edit</p>"); snap.Preview != nil {
		t.Error("hidden preview must not build a surface")
	}
	if reg.Len() != 0 {
		t.Fatalf("expected no surfaces, got %d", reg.Len())
	}

	first, err := s.ShowPreview()
	if err != nil {
		t.Fatalf("ShowPreview: %v", err)
	}
	snap, err := s.Edit("<p>visible edit</p>")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}

	if snap.Preview == nil || snap.Preview.ID == first.ID {
		t.Fatal("edit should replace the preview surface")
	}
	if !strings.Contains(snap.Preview.Document, "visible edit") {
		t.Error("new surface should contain the edit")
	}
	if reg.Len() != 1 {
		t.Errorf("expected exactly one live surface, got %d", reg.Len())
	}

	s.HidePreview()
	if reg.Len() != 0 {
		t.Errorf("hide should destroy the surface, %d left", reg.Len())
	}
}

func TestShowPreviewUnsupported(t *testing.T) {
	c := testChallenge()
	c.PreviewSupport = false
	s := New(c, preview.NewRegistry(), Options{})

	if _, err := s.ShowPreview(); !errors.Is(err, preview.ErrPreviewUnsupported) {
		t.Errorf("expected ErrPreviewUnsupported, got %v", err)
	}
}

func TestWatchReceivesChanges(t *testing.T) {
	s, _ := newTestSession(0)

	var mu sync.Mutex
	var versions []uint64
	stop := s.Watch(func(snap Snapshot) {
		mu.Lock()
		versions = append(versions, snap.Version)
		mu.Unlock()
	})

	s.Edit("one")
	s.Edit("two")
	stop()
	s.Edit("three")

	mu.Lock()
	defer mu.Unlock()
	if len(versions) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(versions))
	}
	if versions[1] <= versions[0] {
		t.Errorf("versions should increase: %v", versions)
	}
}

func TestSubmitAfterCloseFails(t *testing.T) {
	s, _ := newTestSession(0)
	s.Close()

	if _, err := s.Submit(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}

func TestClosedSessionRefusesChanges(t *testing.T) {
	s, reg := newTestSession(0)
	if _, err := s.ShowPreview(); err != nil {
		t.Fatalf("ShowPreview: %v", err)
	}
	s.Close()

	if _, err := s.ShowPreview(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("ShowPreview: expected ErrSessionClosed, got %v", err)
	}
	if _, err := s.Edit("<p>late</p>"); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Edit: expected ErrSessionClosed, got %v", err)
	}
	if _, err := s.Reset(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Reset: expected ErrSessionClosed, got %v", err)
	}
	if reg.Len() != 0 {
		t.Errorf("closed session left %d live surfaces", reg.Len())
	}
}

func TestSnapshotSeqIncreases(t *testing.T) {
	s, _ := newTestSession(0)

	first := s.Snapshot()
	if _, err := s.Edit("<p>x</p>"); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	second := s.Snapshot()

	if second.Seq <= first.Seq {
		t.Errorf("seq should increase: %d -> %d", first.Seq, second.Seq)
	}
}
