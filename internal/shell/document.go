package shell

import (
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"sync"
)

// View is a mounted page. Views that own a controller also implement
// io.Closer and are closed when they are replaced.
type View interface {
	Name() string
	Render(w io.Writer) error
}

// Layout writes the page chrome around the single mounted view.
type Layout func(w io.Writer, v View) error

// Document holds at most one mounted view.
type Document struct {
	layout Layout
	log    *slog.Logger

	mu      sync.Mutex
	current View
}

// NewDocument returns an empty document. A nil layout uses PlainLayout.
func NewDocument(layout Layout, log *slog.Logger) *Document {
	if layout == nil {
		layout = PlainLayout
	}
	return &Document{layout: layout, log: log}
}

// Mount replaces the current view with v, tearing the previous one down.
func (d *Document) Mount(v View) {
	d.mu.Lock()
	prev := d.current
	d.current = v
	d.mu.Unlock()

	d.unmount(prev)
}

// Current returns the mounted view, or nil.
func (d *Document) Current() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Render writes the layout around the mounted view.
func (d *Document) Render(w io.Writer) error {
	v := d.Current()
	if v == nil {
		return fmt.Errorf("render: no view mounted")
	}
	return d.layout(w, v)
}

// Close unmounts the current view.
func (d *Document) Close() error {
	d.mu.Lock()
	prev := d.current
	d.current = nil
	d.mu.Unlock()

	d.unmount(prev)
	return nil
}

func (d *Document) unmount(v View) {
	c, ok := v.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		d.log.Warn("view teardown failed",
			slog.String("view", v.Name()),
			slog.String("error", err.Error()))
	}
}

// PlainLayout wraps the view in a single #app element.
func PlainLayout(w io.Writer, v View) error {
	if _, err := fmt.Fprintf(w, `<main id="app" data-view="%s">`, template.HTMLEscapeString(v.Name())); err != nil {
		return err
	}
	if err := v.Render(w); err != nil {
		return err
	}
	_, err := io.WriteString(w, "</main>")
	return err
}
