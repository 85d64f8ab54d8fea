package preview

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPreviewUnsupported = errors.New("preview is not supported for this challenge")
	ErrSurfaceNotFound    = errors.New("preview surface not found")
	ErrRendererClosed     = errors.New("preview renderer closed")
)

// Surface is one rendered preview document. Surfaces are never updated; a
// content change replaces the surface with a new one.
type Surface struct {
	ID        string    `json:"surface_id"`
	Revision  uint64    `json:"revision"`
	Document  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Path returns the URL path the document is served from.
func (s *Surface) Path() string {
	return "/preview/" + s.ID
}

// Registry holds the live surfaces of all sessions so they can be served over HTTP.
type Registry struct {
	mu       sync.RWMutex
	surfaces map[string]*Surface
}

// NewRegistry creates an empty surface registry.
func NewRegistry() *Registry {
	return &Registry{surfaces: make(map[string]*Surface)}
}

// Get returns a live surface by id.
func (r *Registry) Get(id string) (*Surface, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.surfaces[id]
	if !ok {
		return nil, ErrSurfaceNotFound
	}
	return s, nil
}

// Len returns the number of live surfaces.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.surfaces)
}

func (r *Registry) create(revision uint64, document string) *Surface {
	s := &Surface{
		ID:        uuid.NewString(),
		Revision:  revision,
		Document:  document,
		CreatedAt: time.Now(),
	}
	r.mu.Lock()
	r.surfaces[s.ID] = s
	r.mu.Unlock()
	return s
}

func (r *Registry) destroy(id string) {
	r.mu.Lock()
	delete(r.surfaces, id)
	r.mu.Unlock()
}
