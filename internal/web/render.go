package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"time"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"contest-portal/internal/contest"
	"contest-portal/internal/dashboard"
	"contest-portal/internal/shell"
	"contest-portal/internal/upload"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed rules.md
var defaultRules []byte

// Raw HTML in rules markdown is dropped, not passed through.
var md = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// RenderRules converts contest rules markdown to HTML. Empty input renders
// the built-in rules.
func RenderRules(src []byte) (template.HTML, error) {
	if len(bytes.TrimSpace(src)) == 0 {
		src = defaultRules
	}
	var buf bytes.Buffer
	if err := md.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("render rules: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// Renderer executes the embedded page templates.
type Renderer struct {
	t *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	t, err := template.New("").Funcs(template.FuncMap{
		"fileSize": contest.FormatFileSize,
		"when":     func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04") },
		"rfc3339":  func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
		"sortURL":  sortURL,
		"arrow":    arrow,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{t: t}, nil
}

// Layout wraps v in the page chrome. It satisfies shell.Layout.
func (r *Renderer) Layout(w io.Writer, v shell.View) error {
	var body bytes.Buffer
	if err := v.Render(&body); err != nil {
		return err
	}
	title := "Video contest"
	if p, ok := v.(*page); ok && p.title != "" {
		title = p.title
	}
	return r.t.ExecuteTemplate(w, "layout", struct {
		Title string
		Name  string
		Body  template.HTML
	}{title, v.Name(), template.HTML(body.String())})
}

// Rows renders only the table body for v.
func (r *Renderer) Rows(w io.Writer, v dashboard.View) error {
	return r.t.ExecuteTemplate(w, "rows", v)
}

// page is a mounted view backed by one named template.
type page struct {
	r     *Renderer
	name  string
	title string
	data  any
}

func (p *page) Name() string { return p.name }

func (p *page) Render(w io.Writer) error {
	return p.r.t.ExecuteTemplate(w, p.name, p.data)
}

type landingData struct {
	Heading   string
	Rules     template.HTML
	SubmitURL string
}

type fieldError struct {
	Field   string
	Message string
}

type submitData struct {
	Attempt  string
	Identity contest.Identity
	Draft    upload.Form
	MaxTeam  int
	MaxBytes int64
	Error    *fieldError
	Success  *contest.Submission
}

type managerData struct {
	View      dashboard.View
	RetryURL  string
	ReportURL string
}

func viewQuery(v dashboard.View) url.Values {
	q := url.Values{}
	if v.Term != "" {
		q.Set("q", v.Term)
	}
	if v.Column != dashboard.ColumnNone {
		q.Set("sort", string(v.Column))
		q.Set("dir", string(v.Direction))
	}
	return q
}

func withQuery(path string, q url.Values) string {
	return shell.Location{Path: path, Query: q}.String()
}

func sortURL(v dashboard.View, col string) string {
	c := dashboard.Column(col)
	q := viewQuery(v)
	q.Set("sort", col)
	q.Set("dir", string(v.NextDirection(c)))
	return withQuery("/manager", q)
}

func arrow(v dashboard.View, col string) string {
	if v.Column != dashboard.Column(col) {
		return ""
	}
	if v.Direction == dashboard.Desc {
		return " ▼"
	}
	return " ▲"
}
