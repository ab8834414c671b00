package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func TestRequestMiddleware_counts_by_route(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(RequestMiddleware(m))
	r.Get("/api/submissions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") == "missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("ok"))
	})

	for _, p := range []string{"/api/submissions/a", "/api/submissions/b", "/api/submissions/missing", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	body := scrape(t, m, nil)
	for _, want := range []string{
		"contest_requests_total 4",
		"contest_errors_total 2",
		`contest_route_requests_total{code="200",route="/api/submissions/{id}"} 2`,
		`contest_route_requests_total{code="404",route="/api/submissions/{id}"} 1`,
		`contest_route_duration_seconds_count{route="/api/submissions/{id}"} 3`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in:\n%s", want, body)
		}
	}
}

func TestHandler_refreshes_gauge(t *testing.T) {
	m := New()
	body := scrape(t, m, func() { m.SetSubmissions(4) })
	if !strings.Contains(body, "contest_submissions 4") {
		t.Errorf("expected gauge to be refreshed:\n%s", body)
	}
}

func TestNilMetrics_is_noop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("/", http.StatusOK, time.Millisecond)
	m.AddUploadBytes(10)
	m.IncOrphanedObjects()
	m.SetSubmissions(1)
}

func scrape(t *testing.T, m *Metrics, update func()) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler(update).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	b, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}
