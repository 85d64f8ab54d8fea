// Package api provides HTTP handlers for the challenge lab API.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ashureev/challenge-lab/internal/domain"
	"github.com/ashureev/challenge-lab/internal/live"
	"github.com/ashureev/challenge-lab/internal/preview"
	"github.com/ashureev/challenge-lab/internal/session"
	"github.com/ashureev/challenge-lab/internal/store"
)

// Catalog resolves challenges for the handlers.
type Catalog interface {
	GetChallengeByID(ctx context.Context, id string) (*domain.Challenge, error)
	List(ctx context.Context) ([]domain.Summary, error)
}

// Handler provides common handler dependencies.
type Handler struct {
	repo       store.Repository
	catalog    Catalog
	sessions   *session.Manager
	registry   *preview.Registry
	hub        *live.Hub
	previewURL func(path string) string
}

// NewHandler creates a new Handler with common dependencies. previewURL maps
// a surface path to the URL the host frame loads; nil serves from this host.
func NewHandler(repo store.Repository, catalog Catalog, sessions *session.Manager, registry *preview.Registry, hub *live.Hub, previewURL func(string) string) *Handler {
	if previewURL == nil {
		previewURL = func(path string) string { return path }
	}
	return &Handler{
		repo:       repo,
		catalog:    catalog,
		sessions:   sessions,
		registry:   registry,
		hub:        hub,
		previewURL: previewURL,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
