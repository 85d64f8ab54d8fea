package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/ashureev/challenge-lab/internal/domain"
	"github.com/ashureev/challenge-lab/internal/identity"
	"github.com/ashureev/challenge-lab/internal/preview"
	"github.com/ashureev/challenge-lab/internal/session"
)

type staticLookup map[string]*domain.Challenge

func (l staticLookup) GetChallengeByID(_ context.Context, id string) (*domain.Challenge, error) {
	return l[id], nil
}

func strPtr(s string) *string { return &s }

func testChallenges() staticLookup {
	return staticLookup{
		"red-button": {
			ID: "red-button",
			Files: []domain.ChallengeFile{
				{Name: "index.html", Language: domain.LanguageHTML, StarterCode: "<button>Click</button>"},
				{Name: "style.css", Language: domain.LanguageCSS, StarterCode: "button {}"},
			},
			Requirements: []domain.Requirement{
				{ID: "a", Description: "Has a button", CheckType: domain.CheckContains, CheckValue: strPtr("<button"), Points: 10},
			},
			TotalPoints:    10,
			PassingScore:   50,
			PreviewSupport: true,
		},
		"no-preview": {
			ID:           "no-preview",
			Files:        []domain.ChallengeFile{{Name: "index.html", Language: domain.LanguageHTML}},
			Requirements: []domain.Requirement{{ID: "a", Description: "x", CheckType: domain.CheckManual, Points: 10}},
			TotalPoints:  10,
		},
	}
}

type fixture struct {
	server   *httptest.Server
	sessions *session.Manager
	registry *preview.Registry
	hub      *Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithOptions(t, session.Options{})
}

func newFixtureWithOptions(t *testing.T, opts session.Options) *fixture {
	t.Helper()
	reg := preview.NewRegistry()
	f := &fixture{
		sessions: session.NewManager(reg, opts),
		registry: reg,
		hub:      NewHub(),
	}
	h := NewHandler(testChallenges(), f.sessions, f.hub, nil, "*", true)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := identity.WithIdentity(r.Context(), "anon_test", r.URL.Query().Get("session_id"))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	r.Get("/ws/challenges/{id}", h.ServeHTTP)

	f.server = httptest.NewServer(r)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) dial(t *testing.T, ctx context.Context, challengeID, tab string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/challenges/" + challengeID + "?session_id=" + tab
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

type received struct {
	Type      string           `json:"type"`
	Visible   bool             `json:"visible"`
	SurfaceID string           `json:"surface_id"`
	Revision  uint64           `json:"revision"`
	URL       string           `json:"url"`
	Error     string           `json:"error"`
	State     session.Snapshot `json:"state"`
}

func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, match func(received) bool) received {
	t.Helper()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		var msg received
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("Unmarshal %s: %v", data, err)
		}
		if match(msg) {
			return msg
		}
	}
}

func TestLiveChannelPushesReplacementSurfaces(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := f.dial(t, ctx, "red-button", "tab-1")
	readUntil(t, ctx, conn, func(m received) bool { return m.Type == "state" })

	send(t, ctx, conn, map[string]string{"type": "show"})
	first := readUntil(t, ctx, conn, func(m received) bool { return m.Type == "preview" && m.Visible })
	if first.SurfaceID == "" || first.URL != "/preview/"+first.SurfaceID {
		t.Fatalf("unexpected preview message: %+v", first)
	}

	send(t, ctx, conn, map[string]string{"type": "edit", "content": "<button>Go</button>"})
	second := readUntil(t, ctx, conn, func(m received) bool { return m.Type == "preview" && m.Visible })
	if second.SurfaceID == first.SurfaceID {
		t.Fatal("an edit should replace the surface")
	}
	if _, err := f.registry.Get(first.SurfaceID); err == nil {
		t.Error("replaced surface should be gone")
	}

	send(t, ctx, conn, map[string]string{"type": "hide"})
	hidden := readUntil(t, ctx, conn, func(m received) bool { return m.Type == "preview" })
	if hidden.Visible || hidden.SurfaceID != "" {
		t.Errorf("expected hidden preview, got %+v", hidden)
	}
	if f.registry.Len() != 0 {
		t.Errorf("registry should be empty after hide, has %d", f.registry.Len())
	}
}

func TestLiveChannelSelectAndPing(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := f.dial(t, ctx, "red-button", "tab-1")

	send(t, ctx, conn, map[string]any{"type": "select", "index": 1})
	readUntil(t, ctx, conn, func(m received) bool { return m.Type == "state" && m.State.ActiveIndex == 1 })

	send(t, ctx, conn, map[string]string{"type": "select"})
	readUntil(t, ctx, conn, func(m received) bool { return m.Type == "error" && m.Error == "index_required" })

	send(t, ctx, conn, map[string]string{"type": "ping"})
	readUntil(t, ctx, conn, func(m received) bool { return m.Type == "pong" })

	send(t, ctx, conn, map[string]string{"type": "bogus"})
	readUntil(t, ctx, conn, func(m received) bool { return m.Type == "error" && m.Error == "unknown_message" })
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestLiveChannelPingKeepsSessionActive(t *testing.T) {
	clock := &stepClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	f := newFixtureWithOptions(t, session.Options{Now: clock.Now})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := f.dial(t, ctx, "red-button", "tab-1")
	readUntil(t, ctx, conn, func(m received) bool { return m.Type == "state" })

	clock.Advance(time.Hour)
	send(t, ctx, conn, map[string]string{"type": "ping"})
	readUntil(t, ctx, conn, func(m received) bool { return m.Type == "pong" })

	key := session.Key{UserID: "anon_test", TabID: "tab-1", ChallengeID: "red-button"}
	sess := f.sessions.Get(key)
	if sess == nil {
		t.Fatal("expected a live session")
	}
	if got := sess.LastActive(); !got.Equal(clock.Now()) {
		t.Errorf("LastActive = %v, want %v", got, clock.Now())
	}
}

func TestLatestDropsStaleSnapshots(t *testing.T) {
	l := newLatest()

	l.set(session.Snapshot{Seq: 5, Version: 5})
	l.set(session.Snapshot{Seq: 3, Version: 3})

	snap, ok := l.take()
	if !ok || snap.Seq != 5 {
		t.Fatalf("expected snapshot 5, got %+v (ok=%v)", snap, ok)
	}

	l.set(session.Snapshot{Seq: 4})
	if _, ok := l.take(); ok {
		t.Error("a snapshot older than one already delivered should be dropped")
	}

	l.set(session.Snapshot{Seq: 6})
	if snap, ok := l.take(); !ok || snap.Seq != 6 {
		t.Errorf("expected snapshot 6, got %+v (ok=%v)", snap, ok)
	}
}

func TestLiveChannelPreviewUnsupported(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := f.dial(t, ctx, "no-preview", "tab-1")
	send(t, ctx, conn, map[string]string{"type": "show"})
	readUntil(t, ctx, conn, func(m received) bool { return m.Type == "error" && m.Error == "preview_unsupported" })
}

func TestLiveChannelUnknownChallenge(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/ws/challenges/missing")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHubReplacesConnectionForSameSession(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first := f.dial(t, ctx, "red-button", "tab-1")
	readUntil(t, ctx, first, func(m received) bool { return m.Type == "state" })

	second := f.dial(t, ctx, "red-button", "tab-1")
	readUntil(t, ctx, second, func(m received) bool { return m.Type == "state" })

	for {
		_, _, err := first.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				t.Errorf("expected normal closure, got %v", err)
			}
			break
		}
	}
	if f.hub.Len() != 1 {
		t.Errorf("hub should track one connection, has %d", f.hub.Len())
	}
}

func TestHubCloseByKey(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := f.dial(t, ctx, "red-button", "tab-1")
	readUntil(t, ctx, conn, func(m received) bool { return m.Type == "state" })

	f.hub.Close(session.Key{UserID: "anon_test", TabID: "tab-1", ChallengeID: "red-button"})

	for {
		if _, _, err := conn.Read(ctx); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusGoingAway {
				t.Errorf("expected going-away closure, got %v", err)
			}
			return
		}
	}
}
