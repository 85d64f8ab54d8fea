package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/challenge-lab/internal/domain"
)

type fakeRepo struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	lastSeen int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[string]*domain.User)}
}

func (f *fakeRepo) GetUser(_ context.Context, userID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[userID]
	if user == nil {
		return nil, nil
	}
	clone := *user
	return &clone, nil
}

func (f *fakeRepo) UpsertUser(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *user
	f.users[user.UserID] = &clone
	return nil
}

func (f *fakeRepo) UpdateLastSeen(_ context.Context, userID string, lastSeen time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSeen++
	if u := f.users[userID]; u != nil {
		u.LastSeenAt = lastSeen
	}
	return nil
}

func (f *fakeRepo) UpsertChallenge(context.Context, *domain.Challenge) error { return nil }

func (f *fakeRepo) DeleteChallenge(context.Context, string) error { return nil }

func (f *fakeRepo) GetChallenge(context.Context, string) (*domain.Challenge, error) {
	return nil, nil
}

func (f *fakeRepo) ListChallenges(context.Context) ([]domain.Summary, error) { return nil, nil }

func (f *fakeRepo) Ping(context.Context) error { return nil }

func (f *fakeRepo) Close() error { return nil }

func capture(repo *fakeRepo, req *http.Request) (*httptest.ResponseRecorder, string, string) {
	var userID, sessionID string
	next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		userID = UserIDFromContext(r.Context())
		sessionID = SessionIDFromContext(r.Context())
	})
	rr := httptest.NewRecorder()
	Middleware(repo, true)(next).ServeHTTP(rr, req)
	return rr, userID, sessionID
}

func TestMiddlewareIssuesAnonymousIdentity(t *testing.T) {
	repo := newFakeRepo()
	req := httptest.NewRequest(http.MethodGet, "/api/challenges", nil)

	rr, userID, sessionID := capture(repo, req)

	if !anonIDPattern.MatchString(userID) {
		t.Fatalf("unexpected user id %q", userID)
	}
	if sessionID != DefaultSessionID {
		t.Errorf("session id = %q, want default", sessionID)
	}
	if repo.users[userID] == nil {
		t.Error("user should be created")
	}

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != AnonCookieName || cookies[0].Value != userID {
		t.Errorf("unexpected cookies: %+v", cookies)
	}
}

func TestMiddlewareReusesValidCookie(t *testing.T) {
	repo := newFakeRepo()
	id := "anon_0123456789abcdef0123456789abcdef"
	now := time.Now()
	repo.users[id] = &domain.User{UserID: id, LastSeenAt: now, CreatedAt: now, UpdatedAt: now}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: id})
	req.Header.Set(SessionHeaderName, "tab-7")

	_, userID, sessionID := capture(repo, req)

	if userID != id {
		t.Errorf("user id = %q, want %q", userID, id)
	}
	if sessionID != "tab-7" {
		t.Errorf("session id = %q, want tab-7", sessionID)
	}
	if repo.lastSeen != 0 {
		t.Error("recent users should not trigger a last-seen write")
	}
}

func TestMiddlewareRefreshesStaleLastSeen(t *testing.T) {
	repo := newFakeRepo()
	id := "anon_0123456789abcdef0123456789abcdef"
	old := time.Now().Add(-time.Hour)
	repo.users[id] = &domain.User{UserID: id, LastSeenAt: old, CreatedAt: old, UpdatedAt: old}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: id})

	capture(repo, req)

	if repo.lastSeen != 1 {
		t.Errorf("expected one last-seen write, got %d", repo.lastSeen)
	}
}

func TestMiddlewareRejectsForgedCookie(t *testing.T) {
	repo := newFakeRepo()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: "admin"})
	req.Header.Set(SessionHeaderName, "bad session id with spaces")

	_, userID, sessionID := capture(repo, req)

	if userID == "admin" {
		t.Error("forged cookie must not be trusted")
	}
	if sessionID != DefaultSessionID {
		t.Errorf("invalid session id should fall back to default, got %q", sessionID)
	}
}

func TestDeriveUsername(t *testing.T) {
	if got := DeriveUsername("anon_0123456789abcdef0123456789abcdef"); got != "learner-89abcdef" {
		t.Errorf("DeriveUsername = %q", got)
	}
	if got := DeriveUsername("short"); got != "learner" {
		t.Errorf("DeriveUsername(short) = %q", got)
	}
}
