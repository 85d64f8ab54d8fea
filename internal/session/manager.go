package session

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ashureev/challenge-lab/internal/domain"
	"github.com/ashureev/challenge-lab/internal/preview"
)

// DefaultSubmitDelay is the pause before grading when none is configured.
const DefaultSubmitDelay = 1500 * time.Millisecond

// Options tunes new sessions.
type Options struct {
	SubmitDelay time.Duration
	Now         func() time.Time
}

func (o Options) withDefaults() Options {
	if o.SubmitDelay < 0 {
		o.SubmitDelay = 0
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Key identifies a session: one per device, browser tab and challenge.
type Key struct {
	UserID      string
	TabID       string
	ChallengeID string
}

// Manager tracks active challenge sessions.
type Manager struct {
	mu       sync.RWMutex
	active   map[Key]*Session
	registry *preview.Registry
	opts     Options
}

// NewManager creates a session manager whose sessions render into registry.
func NewManager(registry *preview.Registry, opts Options) *Manager {
	return &Manager{
		active:   make(map[Key]*Session),
		registry: registry,
		opts:     opts.withDefaults(),
	}
}

// Get returns the session for key, or nil.
func (m *Manager) Get(key Key) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[key]
}

// GetOrCreate returns the session for key, starting one on c if none exists.
func (m *Manager) GetOrCreate(key Key, c *domain.Challenge) *Session {
	if s := m.Get(key); s != nil {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.active[key]; ok {
		return s
	}
	s := New(c, m.registry, m.opts)
	m.active[key] = s
	slog.Info("Challenge session started", "user_id", key.UserID, "session_id", key.TabID, "challenge_id", key.ChallengeID)
	return s
}

// Remove closes and forgets the session for key.
func (m *Manager) Remove(key Key) {
	m.mu.Lock()
	s, ok := m.active[key]
	delete(m.active, key)
	m.mu.Unlock()

	if ok {
		s.Close()
		slog.Info("Challenge session removed", "user_id", key.UserID, "session_id", key.TabID, "challenge_id", key.ChallengeID)
	}
}

// CloseUser removes every session belonging to userID.
func (m *Manager) CloseUser(userID string) {
	for _, key := range m.keys(func(k Key, _ *Session) bool { return k.UserID == userID }) {
		m.Remove(key)
	}
}

// Len returns the number of active sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// Idle returns the keys of sessions inactive for longer than ttl.
// Sessions with a submit in flight are never idle.
func (m *Manager) Idle(ttl time.Duration) []Key {
	cutoff := m.opts.Now().Add(-ttl)
	return m.keys(func(_ Key, s *Session) bool {
		return !s.Submitting() && s.LastActive().Before(cutoff)
	})
}

func (m *Manager) keys(match func(Key, *Session) bool) []Key {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []Key
	for k, s := range m.active {
		if match(k, s) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Info describes an active session for operators.
type Info struct {
	UserID      string    `json:"user_id"`
	TabID       string    `json:"session_id"`
	ChallengeID string    `json:"challenge_id"`
	LastActive  time.Time `json:"last_active"`
	Submitting  bool      `json:"submitting"`
	LastScore   *int      `json:"last_score,omitempty"`
}

// List describes every active session, most recently active first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	infos := make([]Info, 0, len(m.active))
	for k, s := range m.active {
		snap := s.Snapshot()
		info := Info{
			UserID:      k.UserID,
			TabID:       k.TabID,
			ChallengeID: k.ChallengeID,
			LastActive:  s.LastActive(),
			Submitting:  snap.Submitting,
		}
		if snap.Result != nil {
			score := snap.Result.Score
			info.LastScore = &score
		}
		infos = append(infos, info)
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].LastActive.After(infos[j].LastActive)
	})
	return infos
}
