package preview

import "log/slog"

// Renderer owns the single preview surface of one challenge session.
// It is not safe for concurrent use; the owning session serializes calls.
type Renderer struct {
	registry  *Registry
	supported bool
	visible   bool
	closed    bool
	revision  uint64
	current   *Surface
}

// NewRenderer creates a hidden renderer. supported mirrors the challenge's
// preview flag.
func NewRenderer(registry *Registry, supported bool) *Renderer {
	return &Renderer{registry: registry, supported: supported}
}

// Supported reports whether the challenge allows previews.
func (r *Renderer) Supported() bool {
	return r.supported
}

// Visible reports whether the preview is shown.
func (r *Renderer) Visible() bool {
	return r.visible
}

// Current returns the live surface, or nil when hidden.
func (r *Renderer) Current() *Surface {
	return r.current
}

// Show makes the preview visible and renders src into a new surface.
func (r *Renderer) Show(src Sources) (*Surface, error) {
	if r.closed {
		return nil, ErrRendererClosed
	}
	if !r.supported {
		return nil, ErrPreviewUnsupported
	}
	r.visible = true
	return r.render(src), nil
}

// Hide destroys the live surface. Nothing is rendered until Show is called again.
func (r *Renderer) Hide() {
	r.visible = false
	r.discard()
}

// Refresh replaces the live surface with a fresh one built from src.
// It returns nil, and constructs nothing, while the preview is hidden or closed.
func (r *Renderer) Refresh(src Sources) *Surface {
	if !r.visible || r.closed {
		return nil
	}
	return r.render(src)
}

// Close releases the live surface. A closed renderer never creates another one.
func (r *Renderer) Close() {
	r.closed = true
	r.Hide()
}

func (r *Renderer) render(src Sources) *Surface {
	r.discard()
	r.revision++
	r.current = r.registry.create(r.revision, Compose(src))
	slog.Debug("Preview surface created", "surface_id", r.current.ID, "revision", r.revision)
	return r.current
}

func (r *Renderer) discard() {
	if r.current == nil {
		return
	}
	r.registry.destroy(r.current.ID)
	slog.Debug("Preview surface destroyed", "surface_id", r.current.ID)
	r.current = nil
}
