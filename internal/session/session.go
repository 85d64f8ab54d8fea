// Package session sequences learner actions on a challenge: editing, previewing,
// submitting for grading, resetting and revealing hints.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/challenge-lab/internal/domain"
	"github.com/ashureev/challenge-lab/internal/fileset"
	"github.com/ashureev/challenge-lab/internal/grading"
	"github.com/ashureev/challenge-lab/internal/preview"
)

var (
	ErrSubmitInProgress = errors.New("submit already in progress")
	ErrSessionReset     = errors.New("session was reset during submit")
	ErrSessionClosed    = errors.New("session closed")
)

// Snapshot is a read-only view of a session for the UI. Seq increases with
// every snapshot taken, so receivers can discard stale ones.
type Snapshot struct {
	Seq            uint64               `json:"seq"`
	ChallengeID    string               `json:"challenge_id"`
	Files          []domain.WorkingFile `json:"files"`
	ActiveIndex    int                  `json:"active_index"`
	Version        uint64               `json:"version"`
	Submitting     bool                 `json:"submitting"`
	Result         *domain.GradeSummary `json:"result,omitempty"`
	RevealedHints  []string             `json:"revealed_hints"`
	HintsTotal     int                  `json:"hints_total"`
	PreviewSupport bool                 `json:"preview_support"`
	PreviewVisible bool                 `json:"preview_visible"`
	Preview        *preview.Surface     `json:"preview,omitempty"`
}

// Session is the controller for one learner working on one challenge.
type Session struct {
	mu         sync.Mutex
	challenge  *domain.Challenge
	files      *fileset.Store
	renderer   *preview.Renderer
	result     *domain.GradeSummary
	revealed   int
	generation uint64
	seq        uint64
	closed     bool
	lastActive time.Time

	submitting  atomic.Bool
	submitDelay time.Duration
	now         func() time.Time

	watchMu  sync.Mutex
	watchers map[int]func(Snapshot)
	nextID   int
}

// New starts a session on the challenge with fresh working files and a hidden preview.
func New(c *domain.Challenge, registry *preview.Registry, opts Options) *Session {
	opts = opts.withDefaults()
	return &Session{
		challenge:   c,
		files:       fileset.New(c.Files),
		renderer:    preview.NewRenderer(registry, c.PreviewSupport),
		submitDelay: opts.SubmitDelay,
		now:         opts.Now,
		lastActive:  opts.Now(),
		watchers:    make(map[int]func(Snapshot)),
	}
}

// Challenge returns the challenge this session works on.
func (s *Session) Challenge() *domain.Challenge {
	return s.challenge
}

// Submit grades the current source. Only one submit may run at a time; a
// concurrent call returns ErrSubmitInProgress. The delay before grading is
// cosmetic and cancelled by ctx.
func (s *Session) Submit(ctx context.Context) (domain.GradeSummary, error) {
	if !s.submitting.CompareAndSwap(false, true) {
		return domain.GradeSummary{}, ErrSubmitInProgress
	}
	defer func() {
		s.submitting.Store(false)
		s.notify()
	}()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.GradeSummary{}, ErrSessionClosed
	}
	source := s.files.ConcatenatedSource()
	generation := s.generation
	s.touch()
	s.mu.Unlock()
	s.notify()

	if s.submitDelay > 0 {
		timer := time.NewTimer(s.submitDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.GradeSummary{}, ctx.Err()
		case <-timer.C:
		}
	}

	summary := grading.Grade(s.challenge, source)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return summary, ErrSessionReset
	}
	s.result = &summary
	slog.Info("Challenge graded",
		"challenge_id", s.challenge.ID,
		"score", summary.Score,
		"passed", summary.Passed,
		"checks_passed", summary.PassedCount(),
		"checks_total", len(summary.Checks))
	return summary, nil
}

// Submitting reports whether a submit is in flight.
func (s *Session) Submitting() bool {
	return s.submitting.Load()
}

// Reset restores the starter code, clears the last grade and hides revealed hints.
func (s *Session) Reset() (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrSessionClosed
	}
	s.files.Initialize(s.challenge.Files)
	s.result = nil
	s.revealed = 0
	s.generation++
	s.refreshPreview()
	s.touch()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify()
	return snap, nil
}

// RevealNextHint discloses one more hint, up to the number of hints.
// It returns the hints revealed so far.
func (s *Session) RevealNextHint() []string {
	s.mu.Lock()
	if s.revealed < len(s.challenge.Hints) {
		s.revealed++
	}
	s.touch()
	hints := s.revealedHintsLocked()
	s.mu.Unlock()

	s.notify()
	return hints
}

// RevealedCount returns how many hints are disclosed.
func (s *Session) RevealedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revealed
}

// SelectFile makes the file at index active. Out-of-range indexes are ignored.
func (s *Session) SelectFile(index int) bool {
	s.mu.Lock()
	moved := s.files.SetActive(index)
	s.touch()
	s.mu.Unlock()

	if moved {
		s.notify()
	}
	return moved
}

// Edit replaces the active file's content and re-renders a visible preview.
func (s *Session) Edit(content string) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrSessionClosed
	}
	s.files.UpdateActive(content)
	s.refreshPreview()
	s.touch()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify()
	return snap, nil
}

// ShowPreview renders the current files into a fresh sandboxed surface.
func (s *Session) ShowPreview() (*preview.Surface, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	surface, err := s.renderer.Show(preview.SourcesFromFiles(s.files.Files()))
	s.touch()
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	s.notify()
	return surface, nil
}

// HidePreview destroys the preview surface.
func (s *Session) HidePreview() {
	s.mu.Lock()
	s.renderer.Hide()
	s.touch()
	s.mu.Unlock()

	s.notify()
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// ConcatenatedSource returns the source the evaluator would grade.
func (s *Session) ConcatenatedSource() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files.ConcatenatedSource()
}

// LastActive returns the time of the last learner action.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Watch registers fn to receive a snapshot after every state change.
// The returned function removes the watcher.
func (s *Session) Watch(fn func(Snapshot)) func() {
	s.watchMu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.watchMu.Unlock()

	return func() {
		s.watchMu.Lock()
		delete(s.watchers, id)
		s.watchMu.Unlock()
	}
}

// Close releases the preview surface. Further submits, edits, resets and
// preview requests fail with ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.renderer.Close()
	s.mu.Unlock()
}

func (s *Session) refreshPreview() {
	s.renderer.Refresh(preview.SourcesFromFiles(s.files.Files()))
}

func (s *Session) touch() {
	s.lastActive = s.now()
}

// Touch records activity without changing state, keeping an idle but
// connected session alive.
func (s *Session) Touch() {
	s.mu.Lock()
	s.touch()
	s.mu.Unlock()
}

func (s *Session) revealedHintsLocked() []string {
	hints := make([]string, s.revealed)
	copy(hints, s.challenge.Hints[:s.revealed])
	return hints
}

func (s *Session) snapshotLocked() Snapshot {
	s.seq++
	return Snapshot{
		Seq:            s.seq,
		ChallengeID:    s.challenge.ID,
		Files:          s.files.Files(),
		ActiveIndex:    s.files.ActiveIndex(),
		Version:        s.files.Version(),
		Submitting:     s.submitting.Load(),
		Result:         s.result,
		RevealedHints:  s.revealedHintsLocked(),
		HintsTotal:     len(s.challenge.Hints),
		PreviewSupport: s.renderer.Supported(),
		PreviewVisible: s.renderer.Visible(),
		Preview:        s.renderer.Current(),
	}
}

func (s *Session) notify() {
	s.watchMu.Lock()
	if len(s.watchers) == 0 {
		s.watchMu.Unlock()
		return
	}
	fns := make([]func(Snapshot), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.watchMu.Unlock()

	snap := s.Snapshot()
	for _, fn := range fns {
		fn(snap)
	}
}
