package shell

import (
	"context"
	"net/http"
	"net/url"
	"sync"
)

// Location is a path plus its query parameters.
type Location struct {
	Path  string
	Query url.Values
}

// ParseLocation splits target into path and query. An empty path becomes "/".
func ParseLocation(target string) (Location, error) {
	u, err := url.Parse(target)
	if err != nil {
		return Location{}, err
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return Location{Path: path, Query: u.Query()}, nil
}

// String renders the location as a URL reference.
func (l Location) String() string {
	u := url.URL{Path: l.Path, RawQuery: l.Query.Encode()}
	return u.String()
}

// PopListener is told about back/forward moves, after the history has moved.
type PopListener func(ctx context.Context, loc Location)

// History is the navigation stack a Router drives.
type History interface {
	Location() Location
	Push(loc Location)
	OnPop(fn PopListener)
}

// MemoryHistory is an in-process back/forward stack.
type MemoryHistory struct {
	mu        sync.Mutex
	entries   []Location
	idx       int
	listeners []PopListener
}

// NewMemoryHistory starts at initial.
func NewMemoryHistory(initial Location) *MemoryHistory {
	return &MemoryHistory{entries: []Location{initial}}
}

func (h *MemoryHistory) Location() Location {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.idx]
}

// Push appends loc and discards any forward entries.
func (h *MemoryHistory) Push(loc Location) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries[:h.idx+1], loc)
	h.idx++
}

func (h *MemoryHistory) OnPop(fn PopListener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Len returns the number of entries on the stack.
func (h *MemoryHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Back moves one entry back and notifies listeners. It reports false at the
// start of the stack.
func (h *MemoryHistory) Back(ctx context.Context) bool { return h.move(ctx, -1) }

// Forward moves one entry forward and notifies listeners.
func (h *MemoryHistory) Forward(ctx context.Context) bool { return h.move(ctx, 1) }

func (h *MemoryHistory) move(ctx context.Context, delta int) bool {
	h.mu.Lock()
	next := h.idx + delta
	if next < 0 || next >= len(h.entries) {
		h.mu.Unlock()
		return false
	}
	h.idx = next
	loc := h.entries[next]
	listeners := append([]PopListener(nil), h.listeners...)
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(ctx, loc)
	}
	return true
}

// RequestHistory is the history of a single HTTP request. It starts at the
// request URL; a push moves it for the rest of the request.
type RequestHistory struct {
	current Location
}

// NewRequestHistory reads the location from r.
func NewRequestHistory(r *http.Request) *RequestHistory {
	return &RequestHistory{current: Location{Path: r.URL.Path, Query: r.URL.Query()}}
}

func (h *RequestHistory) Location() Location { return h.current }

func (h *RequestHistory) Push(loc Location) { h.current = loc }

// OnPop is a no-op; a request never moves back.
func (h *RequestHistory) OnPop(PopListener) {}
