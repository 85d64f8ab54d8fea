package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/challenge-lab/internal/domain"
	"github.com/ashureev/challenge-lab/internal/identity"
	"github.com/ashureev/challenge-lab/internal/preview"
	"github.com/ashureev/challenge-lab/internal/session"
)

const (
	// ChallengesPath is where learners land when a challenge cannot be resolved.
	ChallengesPath = "/challenges"

	maxEditBytes = 1 << 20
)

// ChallengeHandler serves challenge content and drives challenge sessions.
type ChallengeHandler struct {
	*Handler
	submitLimit func(http.Handler) http.Handler
}

// NewChallengeHandler creates a challenge handler. submitLimit wraps the
// submit route; nil leaves it unlimited.
func NewChallengeHandler(base *Handler, submitLimit func(http.Handler) http.Handler) *ChallengeHandler {
	if submitLimit == nil {
		submitLimit = func(next http.Handler) http.Handler { return next }
	}
	return &ChallengeHandler{Handler: base, submitLimit: submitLimit}
}

// RegisterRoutes registers challenge and session routes.
func (h *ChallengeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/me", h.GetMe)
	r.Get("/api/challenges", h.ListChallenges)
	r.Route("/api/challenges/{id}", func(r chi.Router) {
		r.Get("/", h.GetChallenge)
		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.EndSession)
			r.Put("/active", h.SelectFile)
			r.Put("/content", h.EditContent)
			r.With(h.submitLimit).Post("/submit", h.Submit)
			r.Post("/reset", h.Reset)
			r.Post("/hints/next", h.RevealHint)
			r.Post("/preview/show", h.ShowPreview)
			r.Post("/preview/hide", h.HidePreview)
		})
	})
}

// PageHandler guards the challenge page route: unknown ids are redirected to
// the challenge list, known ids fall through to page.
func (h *ChallengeHandler) PageHandler(page http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		c, err := h.catalog.GetChallengeByID(r.Context(), id)
		if err != nil {
			slog.Error("Failed to resolve challenge page", "challenge_id", id, "error", err)
			Error(w, http.StatusInternalServerError, "internal_error")
			return
		}
		if c == nil {
			slog.Info("Unknown challenge, redirecting", "challenge_id", id)
			http.Redirect(w, r, ChallengesPath, http.StatusSeeOther)
			return
		}
		page.ServeHTTP(w, r)
	}
}

// GetMe returns the current learner's identity.
func (h *ChallengeHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"user_id":    user.UserID,
		"username":   user.Username,
		"session_id": identity.SessionIDFromContext(r.Context()),
	})
}

// ListChallenges returns summaries of every challenge.
func (h *ChallengeHandler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.List(r.Context())
	if err != nil {
		slog.Error("Failed to list challenges", "error", err)
		Error(w, http.StatusInternalServerError, "internal_error")
		return
	}
	if list == nil {
		list = []domain.Summary{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{"challenges": list})
}

// GetChallenge returns the learner-facing view of a challenge.
func (h *ChallengeHandler) GetChallenge(w http.ResponseWriter, r *http.Request) {
	c, ok := h.resolve(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, publicChallenge(c))
}

// GetSession returns the learner's session, starting it on first access.
func (h *ChallengeHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, h.sessionView(s.Snapshot()))
}

// EndSession discards the learner's session and its preview.
func (h *ChallengeHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	key := h.key(r)
	h.sessions.Remove(key)
	h.hub.Close(key)
	w.WriteHeader(http.StatusNoContent)
}

// SelectFile changes the active file. Out-of-range indexes are ignored.
func (h *ChallengeHandler) SelectFile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index *int `json:"index"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Index == nil {
		Error(w, http.StatusBadRequest, "index_required")
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.SelectFile(*req.Index)
	JSON(w, http.StatusOK, h.sessionView(s.Snapshot()))
}

// EditContent replaces the active file's content.
func (h *ChallengeHandler) EditContent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content *string `json:"content"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Content == nil {
		Error(w, http.StatusBadRequest, "content_required")
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	snap, err := s.Edit(*req.Content)
	if err != nil {
		Error(w, http.StatusGone, "session_closed")
		return
	}
	JSON(w, http.StatusOK, h.sessionView(snap))
}

// Submit grades the learner's current files.
func (h *ChallengeHandler) Submit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	summary, err := s.Submit(r.Context())
	switch {
	case err == nil:
		JSON(w, http.StatusOK, summary)
	case errors.Is(err, session.ErrSubmitInProgress):
		Error(w, http.StatusConflict, "submit_in_progress")
	case errors.Is(err, session.ErrSessionReset):
		Error(w, http.StatusConflict, "session_reset")
	case errors.Is(err, session.ErrSessionClosed):
		Error(w, http.StatusGone, "session_closed")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		slog.Debug("Submit abandoned", "user_id", identity.UserIDFromContext(r.Context()), "error", err)
	default:
		slog.Error("Submit failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal_error")
	}
}

// Reset restores starter code and clears the result and hints.
func (h *ChallengeHandler) Reset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	snap, err := s.Reset()
	if err != nil {
		Error(w, http.StatusGone, "session_closed")
		return
	}
	JSON(w, http.StatusOK, h.sessionView(snap))
}

// RevealHint discloses the next hint.
func (h *ChallengeHandler) RevealHint(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	hints := s.RevealNextHint()
	JSON(w, http.StatusOK, map[string]interface{}{
		"hints": hints,
		"total": len(s.Challenge().Hints),
	})
}

// ShowPreview renders the current files into a new sandboxed surface.
func (h *ChallengeHandler) ShowPreview(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	surface, err := s.ShowPreview()
	if err != nil {
		if errors.Is(err, preview.ErrPreviewUnsupported) {
			Error(w, http.StatusUnprocessableEntity, "preview_unsupported")
			return
		}
		if errors.Is(err, session.ErrSessionClosed) {
			Error(w, http.StatusGone, "session_closed")
			return
		}
		slog.Error("Failed to show preview", "error", err)
		Error(w, http.StatusInternalServerError, "internal_error")
		return
	}

	url := h.previewURL(surface.Path())
	JSON(w, http.StatusOK, map[string]interface{}{
		"surface": surface,
		"url":     url,
		"frame":   preview.FrameHTML(url),
	})
}

// HidePreview destroys the preview surface.
func (h *ChallengeHandler) HidePreview(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.HidePreview()
	w.WriteHeader(http.StatusNoContent)
}

type sessionResponse struct {
	session.Snapshot
	PreviewURL string `json:"preview_url,omitempty"`
}

func (h *ChallengeHandler) sessionView(snap session.Snapshot) sessionResponse {
	resp := sessionResponse{Snapshot: snap}
	if snap.Preview != nil {
		resp.PreviewURL = h.previewURL(snap.Preview.Path())
	}
	return resp
}

func (h *ChallengeHandler) key(r *http.Request) session.Key {
	return session.Key{
		UserID:      identity.UserIDFromContext(r.Context()),
		TabID:       identity.SessionIDFromContext(r.Context()),
		ChallengeID: chi.URLParam(r, "id"),
	}
}

// resolve looks up the challenge in the URL, writing the error response when
// it cannot.
func (h *ChallengeHandler) resolve(w http.ResponseWriter, r *http.Request) (*domain.Challenge, bool) {
	id := chi.URLParam(r, "id")
	c, err := h.catalog.GetChallengeByID(r.Context(), id)
	if err != nil {
		slog.Error("Failed to get challenge", "challenge_id", id, "error", err)
		Error(w, http.StatusInternalServerError, "internal_error")
		return nil, false
	}
	if c == nil {
		JSON(w, http.StatusNotFound, map[string]string{
			"error":    "challenge_not_found",
			"redirect": ChallengesPath,
		})
		return nil, false
	}
	return c, true
}

func (h *ChallengeHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	c, ok := h.resolve(w, r)
	if !ok {
		return nil, false
	}
	return h.sessions.GetOrCreate(h.key(r), c), true
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxEditBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "content_too_large")
			return false
		}
		Error(w, http.StatusBadRequest, "invalid_json")
		return false
	}
	return true
}

// challengeView is what a learner may see of a challenge: check values and
// hints stay on the server.
type challengeView struct {
	ID             string                 `json:"id"`
	Title          string                 `json:"title"`
	Description    string                 `json:"description"`
	Difficulty     string                 `json:"difficulty,omitempty"`
	Files          []domain.ChallengeFile `json:"files"`
	Requirements   []requirementView      `json:"requirements"`
	HintsTotal     int                    `json:"hints_total"`
	TotalPoints    int                    `json:"total_points"`
	PassingScore   int                    `json:"passing_score"`
	PreviewSupport bool                   `json:"preview_support"`
}

type requirementView struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Points      int    `json:"points"`
}

func publicChallenge(c *domain.Challenge) challengeView {
	reqs := make([]requirementView, len(c.Requirements))
	for i, req := range c.Requirements {
		reqs[i] = requirementView{ID: req.ID, Description: req.Description, Points: req.Points}
	}
	return challengeView{
		ID:             c.ID,
		Title:          c.Title,
		Description:    c.Description,
		Difficulty:     c.Difficulty,
		Files:          c.Files,
		Requirements:   reqs,
		HintsTotal:     len(c.Hints),
		TotalPoints:    c.TotalPoints,
		PassingScore:   c.PassingScore,
		PreviewSupport: c.PreviewSupport,
	}
}
