package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/ashureev/challenge-lab/internal/domain"
	"github.com/ashureev/challenge-lab/internal/identity"
	"github.com/ashureev/challenge-lab/internal/preview"
	"github.com/ashureev/challenge-lab/internal/session"
)

const writeTimeout = 5 * time.Second

// ChallengeLookup resolves challenge ids.
type ChallengeLookup interface {
	GetChallengeByID(ctx context.Context, id string) (*domain.Challenge, error)
}

// Handler serves the live channel for one challenge session.
type Handler struct {
	challenges    ChallengeLookup
	sessions      *session.Manager
	hub           *Hub
	previewURL    func(path string) string
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a live channel handler. previewURL maps a surface path
// to the URL the host page should load into its sandboxed frame.
func NewHandler(challenges ChallengeLookup, sessions *session.Manager, hub *Hub, previewURL func(string) string, allowedOrigin string, isDev bool) *Handler {
	if previewURL == nil {
		previewURL = func(path string) string { return path }
	}
	return &Handler{
		challenges:    challenges,
		sessions:      sessions,
		hub:           hub,
		previewURL:    previewURL,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// inbound is a message from the host page.
type inbound struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Index   *int   `json:"index,omitempty"`
}

type previewMessage struct {
	Type      string `json:"type"`
	Visible   bool   `json:"visible"`
	SurfaceID string `json:"surface_id,omitempty"`
	Revision  uint64 `json:"revision,omitempty"`
	URL       string `json:"url,omitempty"`
}

type stateMessage struct {
	Type  string           `json:"type"`
	State session.Snapshot `json:"state"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := session.Key{
		UserID:      identity.UserIDFromContext(r.Context()),
		TabID:       identity.SessionIDFromContext(r.Context()),
		ChallengeID: chi.URLParam(r, "id"),
	}
	slog.Info("Live channel request", "user_id", key.UserID, "session_id", key.TabID, "challenge_id", key.ChallengeID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	c, err := h.challenges.GetChallengeByID(r.Context(), key.ChallengeID)
	if err != nil {
		slog.Error("Failed to look up challenge", "challenge_id", key.ChallengeID, "error", err)
		http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
		return
	}
	if c == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"challenge_not_found","redirect":"/challenges"}`))
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", key.UserID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", key.UserID)
		}
	}()

	h.hub.Register(key, ws)
	defer h.hub.Unregister(key, ws)

	sess := h.sessions.GetOrCreate(key, c)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates := newLatest()
	stopWatching := sess.Watch(updates.set)
	defer stopWatching()
	updates.set(sess.Snapshot())

	var wg sync.WaitGroup
	wg.Add(2)

	// Input loop: host page -> session.
	go func() {
		defer wg.Done()
		defer cancel()
		h.inputLoop(ctx, ws, sess, key)
	}()

	// Output loop: session changes -> host page.
	go func() {
		defer wg.Done()
		defer cancel()
		h.outputLoop(ctx, ws, updates, key)
	}()

	wg.Wait()
	slog.Info("Live channel ended", "user_id", key.UserID, "challenge_id", key.ChallengeID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *Handler) inputLoop(ctx context.Context, ws *websocket.Conn, sess *session.Session, key session.Key) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				slog.Debug("WebSocket closed", "user_id", key.UserID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", key.UserID)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			h.reply(ctx, ws, errorMessage{Type: "error", Error: "invalid_message"})
			continue
		}

		switch msg.Type {
		case "edit":
			if _, err := sess.Edit(msg.Content); err != nil {
				h.reply(ctx, ws, errorMessage{Type: "error", Error: "session_closed"})
				return
			}
		case "select":
			if msg.Index == nil {
				h.reply(ctx, ws, errorMessage{Type: "error", Error: "index_required"})
				continue
			}
			sess.SelectFile(*msg.Index)
		case "show":
			if _, err := sess.ShowPreview(); err != nil {
				if errors.Is(err, preview.ErrPreviewUnsupported) {
					h.reply(ctx, ws, errorMessage{Type: "error", Error: "preview_unsupported"})
					continue
				}
				if errors.Is(err, session.ErrSessionClosed) {
					h.reply(ctx, ws, errorMessage{Type: "error", Error: "session_closed"})
					return
				}
				slog.Warn("Failed to show preview", "error", err, "challenge_id", key.ChallengeID)
			}
		case "hide":
			sess.HidePreview()
		case "ping":
			sess.Touch()
			h.reply(ctx, ws, map[string]string{"type": "pong"})
		default:
			h.reply(ctx, ws, errorMessage{Type: "error", Error: "unknown_message"})
		}
	}
}

func (h *Handler) outputLoop(ctx context.Context, ws *websocket.Conn, updates *latest, key session.Key) {
	lastSurface := "unsent"
	for {
		select {
		case <-ctx.Done():
			return
		case <-updates.ready:
		}

		snap, ok := updates.take()
		if !ok {
			continue
		}

		if err := h.writeJSON(ctx, ws, stateMessage{Type: "state", State: snap}); err != nil {
			slog.Debug("Failed to push state", "error", err, "user_id", key.UserID)
			return
		}

		msg := previewMessage{Type: "preview", Visible: snap.PreviewVisible}
		if snap.Preview != nil {
			msg.SurfaceID = snap.Preview.ID
			msg.Revision = snap.Preview.Revision
			msg.URL = h.previewURL(snap.Preview.Path())
		}
		if msg.SurfaceID == lastSurface {
			continue
		}
		lastSurface = msg.SurfaceID
		if err := h.writeJSON(ctx, ws, msg); err != nil {
			slog.Debug("Failed to push preview", "error", err, "user_id", key.UserID)
			return
		}
	}
}

func (h *Handler) reply(ctx context.Context, ws *websocket.Conn, v any) {
	if err := h.writeJSON(ctx, ws, v); err != nil {
		slog.Debug("Failed to send reply", "error", err)
	}
}

func (h *Handler) writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(writeCtx, websocket.MessageText, data)
}

// latest holds the most recent snapshot not yet pushed. Newer snapshots
// overwrite older ones so a slow client only ever receives current state.
// A snapshot whose Seq is not above the newest one seen is dropped.
type latest struct {
	mu      sync.Mutex
	pending *session.Snapshot
	seq     uint64
	ready   chan struct{}
}

func newLatest() *latest {
	return &latest{ready: make(chan struct{}, 1)}
}

func (l *latest) set(snap session.Snapshot) {
	l.mu.Lock()
	if snap.Seq <= l.seq {
		l.mu.Unlock()
		return
	}
	l.seq = snap.Seq
	l.pending = &snap
	l.mu.Unlock()

	select {
	case l.ready <- struct{}{}:
	default:
	}
}

func (l *latest) take() (session.Snapshot, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending == nil {
		return session.Snapshot{}, false
	}
	snap := *l.pending
	l.pending = nil
	return snap, true
}
