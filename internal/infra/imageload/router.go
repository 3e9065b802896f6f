package imageload

import (
	"context"
	"fmt"
	"strings"
	"sync"

	domain "github.com/bryanwahyu/skinlytics/internal/domain/scans"
)

// Router dispatches handles to loaders by URI scheme. A handle without a
// scheme is treated as "file".
type Router struct {
	mu      sync.RWMutex
	loaders map[string]domain.ImageLoader
}

func NewRouter() *Router {
	return &Router{loaders: make(map[string]domain.ImageLoader)}
}

// Register sets the loader for scheme, replacing any previous one.
func (r *Router) Register(scheme string, l domain.ImageLoader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[strings.ToLower(scheme)] = l
}

// Schemes lists the registered schemes.
func (r *Router) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.loaders))
	for s := range r.loaders {
		out = append(out, s)
	}
	return out
}

func (r *Router) Load(ctx context.Context, h domain.Handle) ([]byte, error) {
	scheme := Scheme(h)

	r.mu.RLock()
	l, ok := r.loaders[scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, &domain.IOError{Handle: h, Err: fmt.Errorf("unsupported handle scheme %q", scheme)}
	}
	return l.Load(ctx, h)
}

// Scheme returns the lowercase scheme of h, or "file" when there is none.
func Scheme(h domain.Handle) string {
	scheme, _, found := strings.Cut(string(h), "://")
	if !found || scheme == "" {
		return "file"
	}
	return strings.ToLower(scheme)
}
