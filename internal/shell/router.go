package shell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// RootPath is the fallback route for unmatched paths.
const RootPath = "/"

// ErrNoRootRoute means no handler is registered for RootPath.
var ErrNoRootRoute = errors.New("no handler registered for " + RootPath)

// Handler builds the view for loc.
type Handler func(ctx context.Context, loc Location) (View, error)

// Router maps paths to view handlers and keeps exactly one view mounted in
// its Document.
type Router struct {
	history History
	doc     *Document

	mu     sync.RWMutex
	routes map[string]Handler
	active string
}

// NewRouter returns a Router driving history and doc. Back/forward moves
// in history re-run route resolution without pushing.
func NewRouter(history History, doc *Document) *Router {
	r := &Router{history: history, doc: doc, routes: make(map[string]Handler)}
	history.OnPop(func(ctx context.Context, _ Location) {
		if err := r.HandleRoute(ctx); err != nil {
			doc.log.Error("route after history move failed", slog.String("error", err.Error()))
		}
	})
	return r
}

// AddRoute registers h for path. Re-registering a path replaces its handler.
func (r *Router) AddRoute(path string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[path] = h
}

// Navigate pushes target onto the history and renders it.
func (r *Router) Navigate(ctx context.Context, target string) error {
	loc, err := ParseLocation(target)
	if err != nil {
		return fmt.Errorf("navigate %q: %w", target, err)
	}
	r.history.Push(loc)
	return r.HandleRoute(ctx)
}

// HandleRoute resolves the current history location, falling back to
// RootPath, and mounts the resulting view.
func (r *Router) HandleRoute(ctx context.Context) error {
	loc := r.history.Location()

	r.mu.RLock()
	h, ok := r.routes[loc.Path]
	path := loc.Path
	if !ok {
		h, ok = r.routes[RootPath]
		path = RootPath
	}
	r.mu.RUnlock()
	if !ok {
		return ErrNoRootRoute
	}

	v, err := h(ctx, loc)
	if err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	r.doc.Mount(v)

	r.mu.Lock()
	r.active = path
	r.mu.Unlock()
	return nil
}

// Active returns the route path of the mounted view, or "" before the
// first HandleRoute.
func (r *Router) Active() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}
