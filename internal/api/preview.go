package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/challenge-lab/internal/preview"
)

// PreviewHandler serves rendered preview documents under their isolation policy.
// It must be mounted outside the identity middleware so preview responses
// never carry learner cookies.
type PreviewHandler struct {
	registry *preview.Registry
	policy   preview.Policy
}

// NewPreviewHandler creates a preview document handler.
func NewPreviewHandler(registry *preview.Registry, policy preview.Policy) *PreviewHandler {
	return &PreviewHandler{registry: registry, policy: policy}
}

// RegisterRoutes registers the preview document route.
func (h *PreviewHandler) RegisterRoutes(r chi.Router) {
	r.Get("/preview/{surfaceID}", h.Document)
}

// Document writes the surface's document. Replaced or hidden surfaces are gone.
func (h *PreviewHandler) Document(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "surfaceID")
	surface, err := h.registry.Get(id)
	if err != nil {
		if errors.Is(err, preview.ErrSurfaceNotFound) {
			w.Header().Set("Cache-Control", "no-store")
			http.Error(w, "preview expired", http.StatusGone)
			return
		}
		slog.Error("Failed to load preview", "surface_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.policy.Apply(w.Header())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(surface.Document)); err != nil {
		slog.Debug("Failed to write preview", "surface_id", id, "error", err)
	}
}
