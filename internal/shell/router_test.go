package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"contest-portal/internal/platform/logger"

	"github.com/PuerkitoBio/goquery"
)

type testView struct {
	name   string
	body   string
	closed *int
}

func (v testView) Name() string { return v.name }

func (v testView) Render(w io.Writer) error {
	_, err := fmt.Fprintf(w, `<section class="view"><h1>%s</h1>%s</section>`, v.name, v.body)
	return err
}

type closingView struct {
	testView
}

func (v closingView) Close() error {
	*v.closed++
	return nil
}

func static(name string) Handler {
	return func(context.Context, Location) (View, error) {
		return testView{name: name}, nil
	}
}

func newTestRouter(start string) (*Router, *Document, *MemoryHistory) {
	loc, _ := ParseLocation(start)
	h := NewMemoryHistory(loc)
	doc := NewDocument(nil, logger.Discard())
	r := NewRouter(h, doc)
	r.AddRoute("/", static("landing"))
	r.AddRoute("/submit", static("submit"))
	r.AddRoute("/manager", static("manager"))
	return r, doc, h
}

func render(t *testing.T, doc *Document) *goquery.Document {
	t.Helper()
	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	d, err := goquery.NewDocumentFromReader(&buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return d
}

func html(t *testing.T, doc *Document) string {
	t.Helper()
	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return buf.String()
}

func TestRouter_fallback_matches_root(t *testing.T) {
	root, rootDoc, _ := newTestRouter("/")
	if err := root.HandleRoute(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := html(t, rootDoc)

	for _, p := range []string{"/nope", "/submit/extra", "/manager/", "/SUBMIT", "/a/b/c?x=1"} {
		r, doc, _ := newTestRouter(p)
		if err := r.HandleRoute(context.Background()); err != nil {
			t.Fatalf("%s: %v", p, err)
		}
		if got := html(t, doc); got != want {
			t.Fatalf("%s rendered %q, want %q", p, got, want)
		}
		if r.Active() != RootPath {
			t.Fatalf("%s: active = %q", p, r.Active())
		}
	}
}

func TestRouter_single_active_view(t *testing.T) {
	r, doc, _ := newTestRouter("/")
	ctx := context.Background()
	if err := r.HandleRoute(ctx); err != nil {
		t.Fatal(err)
	}

	for _, p := range []string{"/submit", "/manager", "/missing", "/submit?full_name=Jane", "/manager"} {
		if err := r.Navigate(ctx, p); err != nil {
			t.Fatalf("Navigate %s: %v", p, err)
		}
		d := render(t, doc)
		if n := d.Find("#app").Length(); n != 1 {
			t.Fatalf("after %s: %d #app roots", p, n)
		}
		if n := d.Find("#app > *").Length(); n != 1 {
			t.Fatalf("after %s: %d mounted nodes", p, n)
		}
		if n := d.Find("section.view").Length(); n != 1 {
			t.Fatalf("after %s: %d views", p, n)
		}
	}
	if got := render(t, doc).Find("#app").AttrOr("data-view", ""); got != "manager" {
		t.Fatalf("data-view = %q", got)
	}
}

func TestRouter_mount_closes_previous(t *testing.T) {
	r, doc, _ := newTestRouter("/")
	var closed int
	r.AddRoute("/submit", func(context.Context, Location) (View, error) {
		return closingView{testView{name: "submit", closed: &closed}}, nil
	})
	ctx := context.Background()

	if err := r.Navigate(ctx, "/submit"); err != nil {
		t.Fatal(err)
	}
	if err := r.Navigate(ctx, "/submit"); err != nil {
		t.Fatal(err)
	}
	if closed != 1 {
		t.Fatalf("remount closed %d views, want 1", closed)
	}
	if err := r.Navigate(ctx, "/manager"); err != nil {
		t.Fatal(err)
	}
	if closed != 2 {
		t.Fatalf("closed = %d, want 2", closed)
	}
	if err := doc.Close(); err != nil {
		t.Fatal(err)
	}
	if doc.Current() != nil {
		t.Fatal("document still has a view")
	}
}

func TestRouter_back_forward(t *testing.T) {
	r, doc, h := newTestRouter("/")
	ctx := context.Background()
	if err := r.HandleRoute(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.Navigate(ctx, "/submit"); err != nil {
		t.Fatal(err)
	}
	if err := r.Navigate(ctx, "/manager"); err != nil {
		t.Fatal(err)
	}
	entries := h.Len()

	if !h.Back(ctx) {
		t.Fatal("Back failed")
	}
	if doc.Current().Name() != "submit" {
		t.Fatalf("after back: %s", doc.Current().Name())
	}
	if h.Len() != entries {
		t.Fatal("back/forward must not push")
	}
	if !h.Forward(ctx) || doc.Current().Name() != "manager" {
		t.Fatal("forward did not re-render manager")
	}
	if h.Forward(ctx) {
		t.Fatal("forward past the end")
	}

	h.Back(ctx)
	if err := r.Navigate(ctx, "/"); err != nil {
		t.Fatal(err)
	}
	if h.Forward(ctx) {
		t.Fatal("push must drop forward entries")
	}
}

func TestRouter_last_registration_wins(t *testing.T) {
	r, doc, _ := newTestRouter("/submit")
	r.AddRoute("/submit", static("submit-v2"))
	if err := r.HandleRoute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if doc.Current().Name() != "submit-v2" {
		t.Fatalf("got %s", doc.Current().Name())
	}
}

func TestRouter_errors(t *testing.T) {
	h := NewMemoryHistory(Location{Path: "/x"})
	r := NewRouter(h, NewDocument(nil, logger.Discard()))
	if err := r.HandleRoute(context.Background()); !errors.Is(err, ErrNoRootRoute) {
		t.Fatalf("expected ErrNoRootRoute, got %v", err)
	}

	boom := errors.New("boom")
	r.AddRoute("/", func(context.Context, Location) (View, error) { return nil, boom })
	if err := r.HandleRoute(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if r.Active() != "" {
		t.Fatal("failed render must not activate a route")
	}
}

func TestRouter_query_reaches_handler(t *testing.T) {
	r, _, _ := newTestRouter("/")
	var got Location
	r.AddRoute("/submit", func(_ context.Context, loc Location) (View, error) {
		got = loc
		return testView{name: "submit"}, nil
	})
	if err := r.Navigate(context.Background(), "/submit?full_name=Jane+Doe&username=jdoe"); err != nil {
		t.Fatal(err)
	}
	if got.Query.Get("full_name") != "Jane Doe" || got.Query.Get("username") != "jdoe" || got.Query.Get("tg_id") != "" {
		t.Fatalf("query = %v", got.Query)
	}
}

func TestRequestHistory(t *testing.T) {
	req := httptest.NewRequest("GET", "/manager?q=demo", nil)
	h := NewRequestHistory(req)
	if loc := h.Location(); loc.Path != "/manager" || loc.Query.Get("q") != "demo" {
		t.Fatalf("location = %+v", loc)
	}

	doc := NewDocument(nil, logger.Discard())
	r := NewRouter(h, doc)
	r.AddRoute("/", static("landing"))
	if err := r.Navigate(context.Background(), "/elsewhere"); err != nil {
		t.Fatal(err)
	}
	if loc := h.Location(); loc.String() != "/elsewhere" {
		t.Fatalf("location after navigate = %v", loc)
	}
	if cur := doc.Current(); cur == nil || cur.Name() != "landing" {
		t.Fatalf("mounted = %v", cur)
	}
}

func TestPlainLayout_escapes_name(t *testing.T) {
	var buf bytes.Buffer
	if err := PlainLayout(&buf, testView{name: `x"y`}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `data-view="x&#34;y"`) {
		t.Fatalf("unescaped name: %s", buf.String())
	}
}
