package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// AdminHandler exposes operator views. Access control is applied by the caller.
type AdminHandler struct {
	*Handler
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(base *Handler) *AdminHandler {
	return &AdminHandler{Handler: base}
}

// RegisterRoutes registers admin routes behind guard.
func (h *AdminHandler) RegisterRoutes(r chi.Router, guard func(http.Handler) http.Handler) {
	r.With(guard).Get("/api/admin/sessions", h.Sessions)
}

// Sessions reports active sessions, live channels and preview surfaces.
func (h *AdminHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"count":         h.sessions.Len(),
		"live_channels": h.hub.Len(),
		"surfaces":      h.registry.Len(),
		"sessions":      h.sessions.List(),
	})
}
