// Package fileset holds the learner's editable working copies of a challenge's files.
//
// Updates never mutate a published snapshot: every edit produces a new slice and bumps
// the version counter, so the preview and grading paths can compare versions rather
// than contents.
package fileset

import (
	"strings"

	"github.com/ashureev/challenge-lab/internal/domain"
)

// Store tracks the working files and the active file index.
// It is not safe for concurrent use; the owning session serializes access.
type Store struct {
	files   []domain.WorkingFile
	active  int
	version uint64
}

// New returns a store initialized from the given starter files.
func New(files []domain.ChallengeFile) *Store {
	s := &Store{}
	s.Initialize(files)
	return s
}

// Initialize replaces all working files with fresh copies of the starter code
// and resets the active file to index 0.
func (s *Store) Initialize(files []domain.ChallengeFile) {
	working := make([]domain.WorkingFile, len(files))
	for i, f := range files {
		working[i] = domain.WorkingFile{
			Name:     f.Name,
			Language: f.Language,
			Content:  f.StarterCode,
		}
	}
	s.files = working
	s.active = 0
	s.version++
}

// SetActive switches the active file. Out-of-range indexes are ignored.
// It reports whether the pointer moved.
func (s *Store) SetActive(index int) bool {
	if index < 0 || index >= len(s.files) {
		return false
	}
	s.active = index
	return true
}

// UpdateActive replaces the active file's content. Other files are untouched
// and the previous snapshot returned by Files is left intact.
func (s *Store) UpdateActive(content string) {
	if len(s.files) == 0 {
		return
	}
	next := make([]domain.WorkingFile, len(s.files))
	copy(next, s.files)
	next[s.active].Content = content
	s.files = next
	s.version++
}

// Files returns the current snapshot. Callers must not modify it.
func (s *Store) Files() []domain.WorkingFile {
	return s.files
}

// ActiveIndex returns the index of the active file.
func (s *Store) ActiveIndex() int {
	return s.active
}

// Active returns the active file, or false when the set is empty.
func (s *Store) Active() (domain.WorkingFile, bool) {
	if len(s.files) == 0 {
		return domain.WorkingFile{}, false
	}
	return s.files[s.active], true
}

// Version increases on every content change or re-initialization.
func (s *Store) Version() uint64 {
	return s.version
}

// ConcatenatedSource joins every file's content with newlines, in file order.
func (s *Store) ConcatenatedSource() string {
	return Concatenate(s.files)
}

// Concatenate joins the contents of files with newlines, in order.
func Concatenate(files []domain.WorkingFile) string {
	parts := make([]string, len(files))
	for i, f := range files {
		parts[i] = f.Content
	}
	return strings.Join(parts, "\n")
}
